package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
)

// Complete implements llm.Completer using a single-message chat completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, c.logger)
	log.Info("llm.complete.start",
		"backend", c.Name(),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	req := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		berr := &llm.BackendError{Backend: c.Name(), Err: err}
		var apiErr *goopenai.APIError
		var reqErr *goopenai.RequestError
		switch {
		case errors.As(err, &apiErr):
			berr.StatusCode, berr.Status, berr.Message = apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message
		case errors.As(err, &reqErr):
			berr.StatusCode = reqErr.HTTPStatusCode
		}
		log.Error("llm.complete.http_error",
			"backend", c.Name(),
			"status", berr.StatusCode,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", berr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Warn("llm.complete.empty",
			"backend", c.Name(),
			"choices", len(resp.Choices),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%s: %w", c.Name(), llm.ErrEmptyResponse)
	}

	text := resp.Choices[0].Message.Content
	log.Info("llm.complete.ok",
		"backend", c.Name(),
		"text_len", len(text),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
