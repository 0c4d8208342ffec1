package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/gemini"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/local"
	"github.com/joseph-ayodele/canteen-orders/internal/model"
	"github.com/joseph-ayodele/canteen-orders/internal/model/modeltest"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer/tokenizertest"
)

var fixedNow = time.Date(2025, 4, 8, 9, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	out   string
	err   error
	calls atomic.Int32
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	return f.out, f.err
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}

func newStage(c llm.Completer) *ParseStage {
	s := NewParseStage(c, nil, nil)
	s.Location = time.UTC
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestParseIsolatesJSONFromCommentary(t *testing.T) {
	c := &fakeCompleter{out: `Sure! {"orderNumber": "POS-1-110", "totalPrice": 20000} Hope that helps!`}

	draft, err := newStage(c).Run(context.Background(), "KANTIN\nPOS-1-110\nTOTAL 20.000")
	require.NoError(t, err)
	assert.Equal(t, "POS-1-110", draft.OrderNumber)
	assert.Equal(t, 20000.0, draft.Price)
	assert.False(t, draft.DateParsed)
	assert.Equal(t, fixedNow, draft.DateTime)
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestParseSoftFields(t *testing.T) {
	c := &fakeCompleter{out: "```json\n" + `{
		"orderNumber": "  POS-080425-7 ",
		"dateTime": "2025-04-08T12:30:00",
		"totalPrice": 32000,
		"restaurantName": "   ",
		"paymentMethod": 12,
		"items": [{"name": "Nasi Goreng", "price": 25000}, {"name": "  ", "price": 1}, "Es Teh"]
	}` + "\n```"}

	draft, err := newStage(c).Run(context.Background(), "text")
	require.NoError(t, err)

	want := &entity.OrderDraft{
		OrderNumber: "POS-080425-7",
		DateTime:    time.Date(2025, 4, 8, 12, 30, 0, 0, time.UTC),
		DateParsed:  true,
		Price:       32000,
		Items: []entity.LineItem{
			{Name: "Nasi Goreng", Price: 25000},
			{Name: "Es Teh", Price: 0},
		},
	}
	if diff := cmp.Diff(want, draft); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		err      error
		kind     ErrorKind
		sentinel error
	}{
		{"transport", "", &llm.BackendError{Backend: "fake", StatusCode: 503}, KindBackendFailure, ErrBackendFailure},
		{"backend empty", "", llm.ErrEmptyResponse, KindEmptyResponse, ErrEmptyResponse},
		{"blank text", "  \n ", nil, KindEmptyResponse, ErrEmptyResponse},
		{"no braces", "I could not read this receipt.", nil, KindMalformedResponse, ErrMalformedResponse},
		{"broken json", `{"orderNumber": "POS-1", }`, nil, KindSchemaMismatch, ErrSchemaMismatch},
		{"unquoted keys in prose", `Here: {orderNumber: POS-1-110, totalPrice: 20000}`, nil, KindSchemaMismatch, ErrSchemaMismatch},
		{"price as string", `{"orderNumber": "POS-1", "totalPrice": "20000"}`, nil, KindSchemaMismatch, ErrSchemaMismatch},
		{"order number as number", `{"orderNumber": 110, "totalPrice": 20000}`, nil, KindSchemaMismatch, ErrSchemaMismatch},
		{"missing order number", `{"totalPrice": 20000}`, nil, KindValidationFailed, ErrValidationFailed},
		{"blank order number", `{"orderNumber": "   ", "totalPrice": 20000}`, nil, KindValidationFailed, ErrValidationFailed},
		{"zero price", `{"orderNumber": "POS-1", "totalPrice": 0}`, nil, KindValidationFailed, ErrValidationFailed},
		{"negative price", `{"orderNumber": "POS-1", "totalPrice": -5}`, nil, KindValidationFailed, ErrValidationFailed},
		{"null price", `{"orderNumber": "POS-1", "totalPrice": null}`, nil, KindValidationFailed, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCompleter{out: tt.out, err: tt.err}
			draft, err := newStage(c).Run(context.Background(), "text")
			require.Error(t, err)
			assert.Nil(t, draft)
			assert.ErrorIs(t, err, tt.sentinel)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
			assert.EqualValues(t, 1, c.calls.Load(), "backend must be called exactly once")
		})
	}
}

func TestScanImageStopsOnOCRFailure(t *testing.T) {
	for _, ocrErr := range []error{ocr.ErrInvalidImage, ocr.ErrProcessingFailed, ocr.ErrNoTextFound} {
		c := &fakeCompleter{out: `{"orderNumber":"POS-1","totalPrice":1}`}
		p := NewProcessor(nil, NewOCRStage(fakeOCR{err: ocrErr}, nil), newStage(c))

		res, err := p.ScanImage(context.Background(), []byte("img"))
		require.ErrorIs(t, err, ErrOCRFailure)
		require.ErrorIs(t, err, ocrErr)
		assert.Nil(t, res)
		assert.Zero(t, c.calls.Load())
	}
}

func TestScanImageKeepsOCRTextOnParseFailure(t *testing.T) {
	c := &fakeCompleter{out: "nothing useful"}
	p := NewProcessor(nil, NewOCRStage(fakeOCR{text: "POS-9"}, nil), newStage(c))

	res, err := p.ScanImage(context.Background(), []byte("img"))
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.NotNil(t, res)
	assert.Equal(t, "POS-9", res.OCRText)
	assert.Nil(t, res.Draft)
}

func TestExtractTextRejectsBlankInput(t *testing.T) {
	c := &fakeCompleter{}
	p := NewProcessor(nil, nil, newStage(c))
	_, err := p.ExtractText(context.Background(), " \n ")
	require.ErrorIs(t, err, ErrOCRFailure)
	assert.Zero(t, c.calls.Load())
}

func TestParseDateTimeLayouts(t *testing.T) {
	want := time.Date(2025, 4, 8, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2025-04-08T12:30:00",
		"2025-04-08T12:30:00Z",
		"2025-04-08 12:30:00",
		"2025-04-08 12:30",
		"08/04/2025 12:30",
	} {
		got, ok := ParseDateTime(s, time.UTC)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), s)
	}
	_, ok := ParseDateTime("yesterday", time.UTC)
	assert.False(t, ok)
}

const sharedCompletion = `{"orderNumber":"POS-080425-110","dateTime":"2025-04-08T12:30:00","totalPrice":20000,"restaurantName":"Kantin A","items":[{"name":"Nasi Goreng","price":15000},{"name":"Es Teh","price":5000}],"paymentMethod":"QRIS"}`

func TestSameCompletionSameDraftAcrossBackends(t *testing.T) {
	// local: a scripted model that spells out the completion byte by byte
	tok := tokenizertest.New(t)
	script := make([]int32, 0, len(sharedCompletion)+1)
	for i := 0; i < len(sharedCompletion); i++ {
		script = append(script, tokenizertest.ID(sharedCompletion[i]))
	}
	script = append(script, tok.TurnEndID())
	m := &modeltest.Scripted{Vocab: tokenizertest.ByteOffset + 256, Script: script}
	localClient := local.NewClient(model.NewStaticResources(tok, m), local.Config{MaxNewTokens: 512}, nil)

	// remote: the same text in a generateContent envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": sharedCompletion}}},
			}},
		})
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	remote := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, srv.Client(), nil)

	ocrText := "KANTIN A\nPOS-080425-110\n08/04/2025 12:30\nTOTAL 20.000"
	fromLocal, err := newStage(localClient).Run(context.Background(), ocrText)
	require.NoError(t, err)
	fromRemote, err := newStage(remote).Run(context.Background(), ocrText)
	require.NoError(t, err)

	if diff := cmp.Diff(fromLocal, fromRemote); diff != "" {
		t.Errorf("drafts differ (-local +remote):\n%s", diff)
	}
	assert.Equal(t, "POS-080425-110", fromLocal.OrderNumber)
	assert.Len(t, fromLocal.Items, 2)
}

func TestExtractionErrorMessage(t *testing.T) {
	err := newError(KindSchemaMismatch, StageParse, errors.New("bad type"))
	assert.Equal(t, "extraction failed at parse: schema-mismatch: bad type", err.Error())
}
