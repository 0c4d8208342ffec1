// Package local is the on-device backend: tokenizer + greedy generation engine.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/generation"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/model"
)

const defaultSystem = "You extract structured data from canteen receipts. Reply with one JSON object only."

// Config for the local backend.
type Config struct {
	System          string // system turn; defaultSystem when empty
	MaxPromptTokens int
	MaxNewTokens    int
	MaxSessions     int
}

type Client struct {
	res    *model.Resources
	cfg    Config
	logger *slog.Logger
	opts   []generation.Option

	once   sync.Once
	engine *generation.Engine
	err    error
}

// NewClient does not touch the model files; they are loaded on the first Complete.
func NewClient(res *model.Resources, cfg Config, logger *slog.Logger, opts ...generation.Option) *Client {
	if cfg.System == "" {
		cfg.System = defaultSystem
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 512
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{res: res, cfg: cfg, logger: logger, opts: opts}
}

func (c *Client) Name() string { return "local" }

func (c *Client) engineOnce() (*generation.Engine, error) {
	c.once.Do(func() {
		tok, m, err := c.res.Get()
		if err != nil {
			c.err = err
			return
		}
		opts := append([]generation.Option{
			generation.WithLogger(c.logger),
			generation.WithMaxSessions(c.cfg.MaxSessions),
		}, c.opts...)
		c.engine = generation.NewEngine(tok, m, opts...)
	})
	return c.engine, c.err
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, c.logger)

	engine, err := c.engineOnce()
	if err != nil {
		log.Error("llm.complete.model_unavailable", "backend", c.Name(), "error", err)
		return "", &llm.BackendError{Backend: c.Name(), Message: "model unavailable", Err: err}
	}

	log.Info("llm.complete.start", "backend", c.Name(), "prompt_len", len(prompt))
	res, err := engine.Generate(ctx, generation.Request{
		Prompt:          prompt,
		System:          c.cfg.System,
		MaxPromptTokens: c.cfg.MaxPromptTokens,
		MaxNewTokens:    c.cfg.MaxNewTokens,
	})
	if err != nil {
		log.Error("llm.complete.generation_failed",
			"backend", c.Name(),
			"reason", string(res.Reason),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", &llm.BackendError{Backend: c.Name(), Status: string(res.Reason), Err: err}
	}

	if res.Reason == generation.ReasonMaxTokens {
		log.Warn("llm.complete.max_tokens", "backend", c.Name(), "new_tokens", len(res.Tokens))
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", fmt.Errorf("%s: %w", c.Name(), llm.ErrEmptyResponse)
	}

	log.Info("llm.complete.ok",
		"backend", c.Name(),
		"reason", string(res.Reason),
		"prompt_tokens", res.PromptTokens,
		"new_tokens", len(res.Tokens),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res.Text, nil
}
