package googleai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), Config{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return c
}

func TestCompleteReturnsFirstPart(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"orderNumber\":\"POS-9\"}"}]}}]}`))
	})

	text, err := c.Complete(context.Background(), "receipt")
	require.NoError(t, err)
	assert.Equal(t, `{"orderNumber":"POS-9"}`, text)
	assert.True(t, strings.HasSuffix(gotPath, "/models/gemini-test:generateContent"), gotPath)
}

func TestCompleteEmptyCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	_, err := c.Complete(context.Background(), "receipt")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestCompleteAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	})
	_, err := c.Complete(context.Background(), "receipt")
	var berr *llm.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "genai", berr.Backend)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	require.Error(t, err)
}
