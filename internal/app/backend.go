package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/generation"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/gemini"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/googleai"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/local"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/openai"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
	"github.com/joseph-ayodele/canteen-orders/internal/model"
)

// NewCompleter builds the configured backend, wrapped in llm.Fallback when a
// fallback backend is configured.
func NewCompleter(ctx context.Context, cfg *common.Config, m *metrics.Metrics, logger *slog.Logger) (llm.Completer, error) {
	primary, err := newBackend(ctx, cfg.LLM.Backend, cfg, m, logger)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.Fallback == "" {
		return primary, nil
	}
	secondary, err := newBackend(ctx, cfg.LLM.Fallback, cfg, m, logger)
	if err != nil {
		return nil, err
	}
	return &llm.Fallback{Primary: primary, Secondary: secondary, Logger: logger}, nil
}

func newBackend(ctx context.Context, name string, cfg *common.Config, m *metrics.Metrics, logger *slog.Logger) (llm.Completer, error) {
	b, ok := constants.ParseBackend(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", common.ErrInvalidInput, name)
	}
	switch b {
	case constants.BackendGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, nil, logger), nil
	case constants.BackendGenAI:
		return googleai.NewClient(ctx, googleai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	case constants.BackendOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout,
			JSONMode: true,
		}, logger), nil
	default:
		res := model.NewResources(model.Paths{
			Vocab:   cfg.Local.VocabPath,
			Merges:  cfg.Local.MergesPath,
			Weights: cfg.Local.WeightsPath,
		}, logger)
		return local.NewClient(res, local.Config{
			MaxPromptTokens: cfg.Local.MaxPromptTokens,
			MaxNewTokens:    cfg.Local.MaxNewTokens,
			MaxSessions:     cfg.Local.MaxConcurrentSessions,
		}, logger,
			generation.WithObserver(m),
		), nil
	}
}
