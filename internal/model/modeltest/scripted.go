// Package modeltest provides deterministic models for engine and backend tests.
package modeltest

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/joseph-ayodele/canteen-orders/internal/model"
)

var ErrScripted = errors.New("modeltest: scripted failure")

// Scripted emits a fixed token sequence. The session tracks how many script
// tokens have been fed back to it in a row; the next argmax is the script
// token at that index, or Filler once the script is exhausted. The script must
// not begin with a suffix of the prompt. FailAt (1-based forward call count,
// 0 = never) makes that call fail.
type Scripted struct {
	Vocab  int
	Script []int32
	Filler int32
	FailAt int

	mu  sync.Mutex
	fed [][]int32
}

func (s *Scripted) VocabSize() int { return s.Vocab }

func (s *Scripted) NewSession() (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fed = append(s.fed, nil)
	return &scriptedSession{m: s, idx: len(s.fed) - 1}, nil
}

// Sessions returns how many sessions were opened.
func (s *Scripted) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fed)
}

// FedTokens returns a copy of the tokens fed to session i.
func (s *Scripted) FedTokens(i int) []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int32(nil), s.fed[i]...)
}

type scriptedSession struct {
	m       *Scripted
	idx     int
	calls   int
	matched int
}

func (s *scriptedSession) Forward(ctx context.Context, in model.StepInput) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	if s.m.FailAt > 0 && s.calls == s.m.FailAt {
		return nil, ErrScripted
	}
	s.m.mu.Lock()
	s.m.fed[s.idx] = append(s.m.fed[s.idx], in.TokenID)
	s.m.mu.Unlock()

	script := s.m.Script
	switch {
	case s.matched < len(script) && in.TokenID == script[s.matched]:
		s.matched++
	case s.matched == len(script) && s.matched > 0 && in.TokenID == s.m.Filler:
		// past the script: keep emitting filler
	case len(script) > 0 && in.TokenID == script[0]:
		s.matched = 1
	default:
		s.matched = 0
	}

	next := s.m.Filler
	if s.matched < len(script) {
		next = script[s.matched]
	}
	return OneHot(s.m.Vocab, next), nil
}

// OneHot returns logits with 1 at id and 0 elsewhere.
func OneHot(vocab int, id int32) []float32 {
	l := make([]float32, vocab)
	if int(id) >= 0 && int(id) < vocab {
		l[id] = 1
	}
	return l
}

// Constant returns the same logits on every step.
type Constant struct {
	Logits []float32
}

func (c Constant) VocabSize() int { return len(c.Logits) }

func (c Constant) NewSession() (model.Session, error) { return constantSession(c), nil }

type constantSession Constant

func (c constantSession) Forward(ctx context.Context, _ model.StepInput) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]float32(nil), c.Logits...), nil
}

// NaNLogits is a convenience for models that misbehave numerically.
func NaNLogits(vocab int) []float32 {
	l := make([]float32, vocab)
	for i := range l {
		l[i] = float32(math.NaN())
	}
	return l
}
