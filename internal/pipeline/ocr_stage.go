package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
)

type OCRStage struct {
	TextExtractor ocr.TextExtractor
	Logger        *slog.Logger
}

func NewOCRStage(tx ocr.TextExtractor, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{TextExtractor: tx, Logger: logger}
}

// Run extracts text from the receipt image. Every OCR failure, including an
// empty result, is reported as ocr-failure so the LLM stage never runs.
func (s *OCRStage) Run(ctx context.Context, image []byte) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, s.Logger)

	text, err := s.TextExtractor.ExtractText(ctx, image)
	if err != nil {
		log.Error("pipeline.ocr.failed", "bytes", len(image), "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", newError(KindOCRFailure, StageOCR, err)
	}
	if text == "" {
		return "", newError(KindOCRFailure, StageOCR, ocr.ErrNoTextFound)
	}
	log.Debug("pipeline.ocr.ok", "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
