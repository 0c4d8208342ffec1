package model

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	weightsMagic   = "CRLM"
	weightsVersion = uint32(1)
)

// Weights are the parameters of a single-layer recurrent language model.
// Matrices are row-major: Embedding is Vocab x Hidden, Recurrent is
// Hidden x Hidden, Output is Vocab x Hidden.
type Weights struct {
	Vocab      int
	Hidden     int
	MaxContext int

	Embedding  []float32
	Recurrent  []float32
	HiddenBias []float32
	Output     []float32
	OutputBias []float32
}

func (w *Weights) validate() error {
	switch {
	case w.Vocab <= 0 || w.Hidden <= 0:
		return fmt.Errorf("%w: vocab=%d hidden=%d", ErrBadWeights, w.Vocab, w.Hidden)
	case len(w.Embedding) != w.Vocab*w.Hidden:
		return fmt.Errorf("%w: embedding has %d values", ErrBadWeights, len(w.Embedding))
	case len(w.Recurrent) != w.Hidden*w.Hidden:
		return fmt.Errorf("%w: recurrent has %d values", ErrBadWeights, len(w.Recurrent))
	case len(w.HiddenBias) != w.Hidden:
		return fmt.Errorf("%w: hidden bias has %d values", ErrBadWeights, len(w.HiddenBias))
	case len(w.Output) != w.Vocab*w.Hidden:
		return fmt.Errorf("%w: output has %d values", ErrBadWeights, len(w.Output))
	case len(w.OutputBias) != w.Vocab:
		return fmt.Errorf("%w: output bias has %d values", ErrBadWeights, len(w.OutputBias))
	}
	return nil
}

// Recurrent is an Elman network: h' = tanh(E[x] + R h + b), logits = O h' + c.
type Recurrent struct {
	w Weights
}

// NewRecurrent wraps in-memory weights.
func NewRecurrent(w Weights) (*Recurrent, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	return &Recurrent{w: w}, nil
}

// LoadRecurrent reads a weights file written by WriteTo.
func LoadRecurrent(path string) (*Recurrent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	return ReadRecurrent(bufio.NewReader(f))
}

// ReadRecurrent decodes the little-endian weights format:
// magic "CRLM", version, vocab, hidden, max context (uint32 each), then the
// float32 arrays in Weights field order.
func ReadRecurrent(r io.Reader) (*Recurrent, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrBadWeights, err)
	}
	if string(magic[:]) != weightsMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadWeights, magic[:])
	}
	var header [4]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrBadWeights, err)
	}
	if header[0] != weightsVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadWeights, header[0])
	}
	w := Weights{Vocab: int(header[1]), Hidden: int(header[2]), MaxContext: int(header[3])}
	if w.Vocab <= 0 || w.Hidden <= 0 || w.Vocab > 1<<22 || w.Hidden > 1<<14 {
		return nil, fmt.Errorf("%w: vocab=%d hidden=%d", ErrBadWeights, w.Vocab, w.Hidden)
	}

	arrays := []struct {
		dst *[]float32
		n   int
	}{
		{&w.Embedding, w.Vocab * w.Hidden},
		{&w.Recurrent, w.Hidden * w.Hidden},
		{&w.HiddenBias, w.Hidden},
		{&w.Output, w.Vocab * w.Hidden},
		{&w.OutputBias, w.Vocab},
	}
	for _, a := range arrays {
		*a.dst = make([]float32, a.n)
		if err := binary.Read(r, binary.LittleEndian, *a.dst); err != nil {
			return nil, fmt.Errorf("%w: read tensor: %v", ErrBadWeights, err)
		}
	}
	return NewRecurrent(w)
}

// WriteTo encodes the weights in the format ReadRecurrent expects.
func (m *Recurrent) WriteTo(dst io.Writer) (int64, error) {
	cw := &countingWriter{w: dst}
	if _, err := cw.Write([]byte(weightsMagic)); err != nil {
		return cw.n, err
	}
	header := [4]uint32{weightsVersion, uint32(m.w.Vocab), uint32(m.w.Hidden), uint32(m.w.MaxContext)}
	if err := binary.Write(cw, binary.LittleEndian, header); err != nil {
		return cw.n, err
	}
	for _, arr := range [][]float32{m.w.Embedding, m.w.Recurrent, m.w.HiddenBias, m.w.Output, m.w.OutputBias} {
		if err := binary.Write(cw, binary.LittleEndian, arr); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (m *Recurrent) VocabSize() int { return m.w.Vocab }

// MaxContext is the longest sequence a session accepts; 0 means unbounded.
func (m *Recurrent) MaxContext() int { return m.w.MaxContext }

func (m *Recurrent) NewSession() (Session, error) {
	return &recurrentSession{
		m:      m,
		hidden: make([]float32, m.w.Hidden),
		next:   make([]float32, m.w.Hidden),
	}, nil
}

type recurrentSession struct {
	m      *Recurrent
	hidden []float32
	next   []float32
	pos    int
}

func (s *recurrentSession) Forward(ctx context.Context, in StepInput) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &s.m.w
	if in.TokenID < 0 || int(in.TokenID) >= w.Vocab {
		return nil, fmt.Errorf("%w: %d (vocab %d)", ErrTokenOutOfRange, in.TokenID, w.Vocab)
	}
	if in.Position != s.pos {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPositionMismatch, in.Position, s.pos)
	}
	if w.MaxContext > 0 && in.Position >= w.MaxContext {
		return nil, fmt.Errorf("%w: position %d, limit %d", ErrContextExceeded, in.Position, w.MaxContext)
	}

	// A masked step leaves the state untouched.
	if len(in.Mask) == 0 || in.Mask[len(in.Mask)-1] != 0 {
		h := w.Hidden
		emb := w.Embedding[int(in.TokenID)*h : int(in.TokenID)*h+h]
		for i := 0; i < h; i++ {
			acc := emb[i] + w.HiddenBias[i]
			row := w.Recurrent[i*h : i*h+h]
			for j, v := range s.hidden {
				acc += row[j] * v
			}
			s.next[i] = float32(math.Tanh(float64(acc)))
		}
		s.hidden, s.next = s.next, s.hidden
	}
	s.pos++

	logits := make([]float32, w.Vocab)
	h := w.Hidden
	for v := 0; v < w.Vocab; v++ {
		acc := w.OutputBias[v]
		row := w.Output[v*h : v*h+h]
		for j, x := range s.hidden {
			acc += row[j] * x
		}
		logits[v] = acc
	}
	return logits, nil
}
