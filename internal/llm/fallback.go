package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
)

// Fallback tries Primary once and, when it fails, Secondary once.
// A cancelled or expired context is returned as is without trying Secondary.
type Fallback struct {
	Primary   Completer
	Secondary Completer
	Logger    *slog.Logger
}

func (f *Fallback) Name() string {
	return NameOf(f.Primary) + "+" + NameOf(f.Secondary)
}

func (f *Fallback) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := f.Primary.Complete(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return "", err
	}

	logger := common.LoggerWithRequest(ctx, f.Logger)
	logger.Warn("llm.fallback.switch",
		"primary", NameOf(f.Primary),
		"secondary", NameOf(f.Secondary),
		"error", err,
	)

	text, err2 := f.Secondary.Complete(ctx, prompt)
	if err2 != nil {
		return "", fmt.Errorf("%s failed (%v); fallback %s: %w", NameOf(f.Primary), err, NameOf(f.Secondary), err2)
	}
	return text, nil
}
