package model

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer/tokenizertest"
)

func tinyWeights() Weights {
	return Weights{
		Vocab:      2,
		Hidden:     1,
		MaxContext: 3,
		Embedding:  []float32{0.5, -0.5},
		Recurrent:  []float32{0},
		HiddenBias: []float32{0},
		Output:     []float32{1, -1},
		OutputBias: []float32{0, 0},
	}
}

func TestRecurrentForward(t *testing.T) {
	m, err := NewRecurrent(tinyWeights())
	require.NoError(t, err)
	sess, err := m.NewSession()
	require.NoError(t, err)

	logits, err := sess.Forward(context.Background(), StepInput{TokenID: 0, Position: 0, Mask: []int32{1}})
	require.NoError(t, err)
	h := math.Tanh(0.5)
	assert.InDelta(t, h, logits[0], 1e-6)
	assert.InDelta(t, -h, logits[1], 1e-6)

	// Masked step keeps the state and still advances the position.
	logits, err = sess.Forward(context.Background(), StepInput{TokenID: 1, Position: 1, Mask: []int32{0}})
	require.NoError(t, err)
	assert.InDelta(t, h, logits[0], 1e-6)
}

func TestRecurrentForwardErrors(t *testing.T) {
	m, err := NewRecurrent(tinyWeights())
	require.NoError(t, err)
	ctx := context.Background()

	sess, _ := m.NewSession()
	_, err = sess.Forward(ctx, StepInput{TokenID: 5, Position: 0})
	require.ErrorIs(t, err, ErrTokenOutOfRange)

	_, err = sess.Forward(ctx, StepInput{TokenID: 0, Position: 2})
	require.ErrorIs(t, err, ErrPositionMismatch)

	for pos := 0; pos < 3; pos++ {
		_, err = sess.Forward(ctx, StepInput{TokenID: 0, Position: pos})
		require.NoError(t, err)
	}
	_, err = sess.Forward(ctx, StepInput{TokenID: 0, Position: 3})
	require.ErrorIs(t, err, ErrContextExceeded)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	fresh, _ := m.NewSession()
	_, err = fresh.Forward(cancelled, StepInput{TokenID: 0, Position: 0})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSessionsAreIndependent(t *testing.T) {
	w := tinyWeights()
	w.Recurrent = []float32{0.9}
	m, err := NewRecurrent(w)
	require.NoError(t, err)
	ctx := context.Background()

	a, _ := m.NewSession()
	b, _ := m.NewSession()
	_, err = a.Forward(ctx, StepInput{TokenID: 0, Position: 0})
	require.NoError(t, err)
	la, err := a.Forward(ctx, StepInput{TokenID: 0, Position: 1})
	require.NoError(t, err)
	lb, err := b.Forward(ctx, StepInput{TokenID: 0, Position: 0})
	require.NoError(t, err)
	assert.NotEqual(t, la[0], lb[0])
}

func TestWeightsFileRoundTrip(t *testing.T) {
	m, err := NewRecurrent(tinyWeights())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := ReadRecurrent(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, m.w, loaded.w)

	_, err = ReadRecurrent(bytes.NewReader([]byte("NOPE")))
	require.ErrorIs(t, err, ErrBadWeights)

	truncated := buf.Bytes()[:buf.Len()-4]
	_, err = ReadRecurrent(bytes.NewReader(truncated))
	require.ErrorIs(t, err, ErrBadWeights)
}

func TestNewRecurrentValidatesShapes(t *testing.T) {
	w := tinyWeights()
	w.Output = w.Output[:1]
	_, err := NewRecurrent(w)
	require.ErrorIs(t, err, ErrBadWeights)
}

func TestResourcesLoadOnce(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "vocab.json")
	mergesPath := filepath.Join(dir, "merges.txt")
	weightsPath := filepath.Join(dir, "weights.bin")

	require.NoError(t, os.WriteFile(vocabPath, []byte(`{"<|endoftext|>":0,"a":1}`), 0o600))
	require.NoError(t, os.WriteFile(mergesPath, nil, 0o600))
	f, err := os.Create(weightsPath)
	require.NoError(t, err)
	m, err := NewRecurrent(tinyWeights())
	require.NoError(t, err)
	_, err = m.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res := NewResources(Paths{Vocab: vocabPath, Merges: mergesPath, Weights: weightsPath}, nil)
	tok1, m1, err := res.Get()
	require.NoError(t, err)
	tok2, m2, err := res.Get()
	require.NoError(t, err)
	assert.Same(t, tok1, tok2)
	assert.Equal(t, m1, m2)
	assert.Equal(t, 2, m1.VocabSize())
}

func TestResourcesFailureIsSticky(t *testing.T) {
	res := NewResources(Paths{Vocab: filepath.Join(t.TempDir(), "missing.json")}, nil)
	_, _, err := res.Get()
	require.Error(t, err)
	_, _, err2 := res.Get()
	assert.Equal(t, err, err2)
}

func TestStaticResources(t *testing.T) {
	tok := tokenizertest.New(t)
	m, err := NewRecurrent(tinyWeights())
	require.NoError(t, err)
	gotTok, gotModel, err := NewStaticResources(tok, m).Get()
	require.NoError(t, err)
	assert.Same(t, tok, gotTok)
	assert.Equal(t, Model(m), gotModel)
}
