package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubCompleter) Name() string { return s.name }

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallbackUsesPrimaryWhenItWorks(t *testing.T) {
	p := &stubCompleter{name: "local", text: "{}"}
	s := &stubCompleter{name: "gemini", text: "other"}
	f := &Fallback{Primary: p, Secondary: s}

	text, err := f.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, 0, s.calls)
	assert.Equal(t, "local+gemini", f.Name())
}

func TestFallbackCallsSecondaryOnce(t *testing.T) {
	p := &stubCompleter{name: "local", err: &BackendError{Backend: "local", Err: errors.New("boom")}}
	s := &stubCompleter{name: "gemini", text: `{"orderNumber":"A-1"}`}
	f := &Fallback{Primary: p, Secondary: s}

	text, err := f.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"orderNumber":"A-1"}`, text)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 1, s.calls)
}

func TestFallbackReturnsSecondaryError(t *testing.T) {
	p := &stubCompleter{name: "local", err: errors.New("boom")}
	s := &stubCompleter{name: "gemini", err: ErrEmptyResponse}
	f := &Fallback{Primary: p, Secondary: s}

	_, err := f.Complete(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 1, s.calls)
}

func TestFallbackSkipsSecondaryWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubCompleter{name: "local", err: context.Canceled}
	s := &stubCompleter{name: "gemini", text: "{}"}

	_, err := (&Fallback{Primary: p, Secondary: s}).Complete(ctx, "prompt")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.calls)
}
