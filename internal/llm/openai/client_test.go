package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test", JSONMode: true}, nil)
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"orderNumber\":\"POS-2\"}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	})

	text, err := c.Complete(context.Background(), "receipt")
	require.NoError(t, err)
	assert.Equal(t, `{"orderNumber":"POS-2"}`, text)
	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), "receipt")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestCompleteAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	})
	_, err := c.Complete(context.Background(), "receipt")
	var berr *llm.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusUnauthorized, berr.StatusCode)
	assert.Equal(t, "bad key", berr.Message)
}
