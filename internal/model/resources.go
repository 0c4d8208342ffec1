package model

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer"
)

// Paths locate the on-device model files.
type Paths struct {
	Vocab   string
	Merges  string
	Weights string
}

// Resources loads the tokenizer and weights once, on first use, and shares
// them read-only across requests. A failed load is sticky.
type Resources struct {
	paths  Paths
	logger *slog.Logger

	once  sync.Once
	tok   *tokenizer.Tokenizer
	model Model
	err   error
}

func NewResources(paths Paths, logger *slog.Logger) *Resources {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resources{paths: paths, logger: logger}
}

// NewStaticResources wraps an already-built tokenizer and model.
func NewStaticResources(tok *tokenizer.Tokenizer, m Model) *Resources {
	r := &Resources{tok: tok, model: m, logger: slog.Default()}
	r.once.Do(func() {})
	return r
}

// Get returns the shared tokenizer and model, loading them on the first call.
func (r *Resources) Get() (*tokenizer.Tokenizer, Model, error) {
	r.once.Do(r.load)
	return r.tok, r.model, r.err
}

func (r *Resources) load() {
	start := time.Now()
	tok, err := tokenizer.Load(r.paths.Vocab, r.paths.Merges)
	if err != nil {
		r.err = fmt.Errorf("load tokenizer: %w", err)
		r.logger.Error("model.resources.failed", "stage", "tokenizer", "err", err)
		return
	}
	m, err := LoadRecurrent(r.paths.Weights)
	if err != nil {
		r.err = fmt.Errorf("load weights: %w", err)
		r.logger.Error("model.resources.failed", "stage", "weights", "err", err)
		return
	}
	if m.VocabSize() < tok.VocabSize() {
		r.err = fmt.Errorf("%w: model vocab %d smaller than tokenizer vocab %d", ErrBadWeights, m.VocabSize(), tok.VocabSize())
		r.logger.Error("model.resources.failed", "stage", "compat", "err", r.err)
		return
	}
	r.tok, r.model = tok, m
	r.logger.Info("model.resources.loaded",
		"vocab", m.VocabSize(),
		"max_context", m.MaxContext(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
