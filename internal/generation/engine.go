// Package generation runs bounded greedy decoding over the on-device model,
// one token per forward step.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/model"
	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer"
)

// Reason says why a generation ended.
type Reason string

const (
	ReasonStopToken  Reason = "stop-token"
	ReasonMaxTokens  Reason = "max-tokens"
	ReasonModelError Reason = "model-error"
)

var (
	ErrInvalidRequest = errors.New("generation: invalid request")
	ErrEmptyLogits    = errors.New("generation: model returned empty logits")
)

// Request describes one completion.
type Request struct {
	Prompt          string
	System          string
	MaxPromptTokens int // 0 disables truncation
	MaxNewTokens    int
	StopTokenIDs    []int32
}

// Result holds the generated tokens (prompt and stop token excluded).
type Result struct {
	Tokens       []int32
	Reason       Reason
	Text         string
	PromptTokens int
	Steps        int
}

// Observer receives one call per finished generation.
type Observer interface {
	ObserveGeneration(reason string, steps int, elapsed time.Duration)
}

// Engine is safe for concurrent use; each call owns its own model session.
type Engine struct {
	tok      *tokenizer.Tokenizer
	model    model.Model
	sem      *semaphore.Weighted
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSessions bounds how many model sessions may be live at once.
func WithMaxSessions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func NewEngine(tok *tokenizer.Tokenizer, m model.Model, opts ...Option) *Engine {
	e := &Engine{
		tok:    tok,
		model:  m,
		sem:    semaphore.NewWeighted(1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate formats and encodes the prompt, feeds it to a fresh session one
// token at a time, then decodes greedily until a stop token or MaxNewTokens.
// On a model failure the partial output is discarded and Reason is model-error.
func (e *Engine) Generate(ctx context.Context, req Request) (Result, error) {
	if req.MaxNewTokens <= 0 {
		return Result{}, fmt.Errorf("%w: max new tokens must be > 0, got %d", ErrInvalidRequest, req.MaxNewTokens)
	}
	if req.MaxPromptTokens < 0 {
		return Result{}, fmt.Errorf("%w: negative prompt budget %d", ErrInvalidRequest, req.MaxPromptTokens)
	}

	log := common.LoggerWithRequest(ctx, e.logger)
	start := time.Now()

	input := e.tok.Encode(tokenizer.FormatPrompt(req.Prompt, req.System), false, false)
	encoded := len(input)
	input = TruncatePrompt(input, req.MaxPromptTokens)
	if len(input) < encoded {
		log.Warn("generation.prompt.truncated", "encoded", encoded, "kept", len(input))
	}

	res := Result{PromptTokens: len(input)}
	fail := func(err error) (Result, error) {
		res.Tokens = nil
		res.Text = ""
		res.Reason = ReasonModelError
		e.observe(res, start)
		log.Error("generation.failed", "steps", res.Steps, "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return res, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fail(fmt.Errorf("acquire model session: %w", err))
	}
	defer e.sem.Release(1)

	sess, err := e.model.NewSession()
	if err != nil {
		return fail(fmt.Errorf("open model session: %w", err))
	}

	var logits []float32
	for pos, id := range input {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		logits, err = sess.Forward(ctx, model.StepInput{TokenID: id, Position: pos, Mask: []int32{1}})
		if err != nil {
			return fail(fmt.Errorf("prefill step %d: %w", pos, err))
		}
	}

	stops := make(map[int32]struct{}, 2+len(req.StopTokenIDs))
	for _, id := range e.tok.StopIDs() {
		stops[id] = struct{}{}
	}
	for _, id := range req.StopTokenIDs {
		stops[id] = struct{}{}
	}

	out := make([]int32, 0, req.MaxNewTokens)
	res.Reason = ReasonMaxTokens
	for len(out) < req.MaxNewTokens {
		next, err := Argmax(logits)
		if err != nil {
			return fail(fmt.Errorf("decode step %d: %w", res.Steps, err))
		}
		res.Steps++
		if _, stop := stops[next]; stop {
			res.Reason = ReasonStopToken
			break
		}
		out = append(out, next)
		if len(out) == req.MaxNewTokens {
			break
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		logits, err = sess.Forward(ctx, model.StepInput{TokenID: next, Position: len(input) + len(out) - 1, Mask: []int32{1}})
		if err != nil {
			return fail(fmt.Errorf("decode step %d: %w", res.Steps, err))
		}
	}

	res.Tokens = out
	res.Text = e.tok.Decode(out)
	e.observe(res, start)
	log.Debug("generation.done",
		"reason", string(res.Reason),
		"prompt_tokens", res.PromptTokens,
		"new_tokens", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) observe(res Result, start time.Time) {
	if e.observer != nil {
		e.observer.ObserveGeneration(string(res.Reason), res.Steps, time.Since(start))
	}
}
