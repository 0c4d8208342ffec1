package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
)

// Complete implements llm.Completer over POST {base}/models/{model}:generateContent.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, c.logger)
	log.Info("llm.complete.start", "backend", c.Name(), "model", c.cfg.Model, "prompt_len", len(prompt))

	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: &prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     Temperature,
			TopK:            TopK,
			TopP:            TopP,
			MaxOutputTokens: MaxOutputTokens,
		},
	}

	raw, status, err := llm.SendJSON(ctx, c.http, c.endpoint(), body, nil, c.logger)
	if err != nil {
		berr := &llm.BackendError{Backend: c.Name(), StatusCode: status, Err: err}
		if status != 0 {
			var resp generateResponse
			if json.Unmarshal(raw, &resp) == nil && resp.Error != nil {
				berr.Status = resp.Error.Status
				berr.Message = resp.Error.Message
			}
		}
		log.Error("llm.complete.http_error",
			"backend", c.Name(),
			"status", status,
			"api_status", berr.Status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", berr
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Error("llm.complete.decode_error", "backend", c.Name(), "error", err, "raw_bytes", len(raw))
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}

	text, ok := firstText(resp)
	if !ok {
		log.Warn("llm.complete.empty",
			"backend", c.Name(),
			"candidates", len(resp.Candidates),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%s: %w", c.Name(), llm.ErrEmptyResponse)
	}

	log.Info("llm.complete.ok",
		"backend", c.Name(),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") +
		"/models/" + url.PathEscape(c.cfg.Model) + ":generateContent?key=" + url.QueryEscape(c.cfg.APIKey)
}

// firstText returns the first candidate's first part text.
func firstText(resp generateResponse) (string, bool) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	t := resp.Candidates[0].Content.Parts[0].Text
	if t == nil || strings.TrimSpace(*t) == "" {
		return "", false
	}
	return *t, true
}
