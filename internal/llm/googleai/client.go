// Package googleai is the hosted Gemini backend built on the Google GenAI SDK.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/llm/gemini"
)

// Config for the SDK-backed client. BaseURL is only set in tests or behind a proxy.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *genai.Client
	gen    *genai.GenerateContentConfig
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = gemini.DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		cfg:    cfg,
		client: client,
		// same decoding parameters as the plain HTTP client
		gen: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](gemini.Temperature),
			TopK:            genai.Ptr[float32](gemini.TopK),
			TopP:            genai.Ptr[float32](gemini.TopP),
			MaxOutputTokens: gemini.MaxOutputTokens,
		},
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return "genai" }

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, c.logger)
	log.Info("llm.complete.start", "backend", c.Name(), "model", c.cfg.Model, "prompt_len", len(prompt))

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), c.gen)
	if err != nil {
		berr := &llm.BackendError{Backend: c.Name(), Err: err}
		var apiErr genai.APIError
		var apiErrPtr *genai.APIError
		switch {
		case errors.As(err, &apiErr):
			berr.StatusCode, berr.Status, berr.Message = apiErr.Code, apiErr.Status, apiErr.Message
		case errors.As(err, &apiErrPtr):
			berr.StatusCode, berr.Status, berr.Message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
		}
		log.Error("llm.complete.api_error",
			"backend", c.Name(),
			"status", berr.StatusCode,
			"api_status", berr.Status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", berr
	}

	text, ok := firstText(resp)
	if !ok {
		log.Warn("llm.complete.empty", "backend", c.Name(), "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%s: %w", c.Name(), llm.ErrEmptyResponse)
	}
	log.Info("llm.complete.ok",
		"backend", c.Name(),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// firstText mirrors the HTTP client: first candidate, first part.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 || cand.Content.Parts[0] == nil {
		return "", false
	}
	text := cand.Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
