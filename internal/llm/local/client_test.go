package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/model"
	"github.com/joseph-ayodele/canteen-orders/internal/model/modeltest"
	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer/tokenizertest"
)

const vocab = tokenizertest.ByteOffset + 256

func scripted(text string, tail ...int32) *modeltest.Scripted {
	s := make([]int32, 0, len(text)+len(tail))
	for i := 0; i < len(text); i++ {
		s = append(s, tokenizertest.ID(text[i]))
	}
	return &modeltest.Scripted{Vocab: vocab, Script: append(s, tail...)}
}

func TestCompleteReturnsGeneratedText(t *testing.T) {
	tok := tokenizertest.New(t)
	m := scripted(`{"orderNumber":"POS-1"}`, tok.TurnEndID())
	c := NewClient(model.NewStaticResources(tok, m), Config{MaxNewTokens: 64}, nil)

	text, err := c.Complete(context.Background(), "OCR text")
	require.NoError(t, err)
	assert.Equal(t, `{"orderNumber":"POS-1"}`, text)
}

func TestCompleteEmptyGeneration(t *testing.T) {
	tok := tokenizertest.New(t)
	m := &modeltest.Scripted{Vocab: vocab, Script: []int32{tok.EndOfTextID()}}
	c := NewClient(model.NewStaticResources(tok, m), Config{}, nil)

	_, err := c.Complete(context.Background(), "OCR text")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestCompleteModelFailure(t *testing.T) {
	tok := tokenizertest.New(t)
	m := &modeltest.Scripted{Vocab: vocab, FailAt: 1}
	c := NewClient(model.NewStaticResources(tok, m), Config{}, nil)

	_, err := c.Complete(context.Background(), "OCR text")
	var berr *llm.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "model-error", berr.Status)
	require.ErrorIs(t, err, modeltest.ErrScripted)
}

func TestCompleteMissingModelFiles(t *testing.T) {
	dir := t.TempDir()
	res := model.NewResources(model.Paths{
		Vocab:   filepath.Join(dir, "vocab.json"),
		Merges:  filepath.Join(dir, "merges.txt"),
		Weights: filepath.Join(dir, "weights.bin"),
	}, nil)
	c := NewClient(res, Config{}, nil)

	_, err := c.Complete(context.Background(), "OCR text")
	var berr *llm.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "local", berr.Backend)
}
