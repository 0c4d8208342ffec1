// Package pipeline runs a receipt image through OCR and then one inference
// backend, returning a validated order draft or a typed ExtractionError.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
)

// Result carries the OCR text alongside the draft. On a parse failure the
// OCR text is still set so callers can record it.
type Result struct {
	OCRText string
	Draft   *entity.OrderDraft
}

// Processor coordinates OCR (text extract) then LLM parse (fields).
// Stages run strictly in sequence; it never writes storage.
type Processor struct {
	Logger *slog.Logger
	OCR    *OCRStage
	Parse  *ParseStage
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, parse *ParseStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Parse: parse}
}

// ScanImage runs OCR on the image, then the parse stage on the resulting text.
func (p *Processor) ScanImage(ctx context.Context, image []byte) (*Result, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, p.Logger)

	text, err := p.OCR.Run(ctx, image)
	if err != nil {
		return nil, err
	}

	res := &Result{OCRText: text}
	draft, err := p.Parse.Run(ctx, text)
	if err != nil {
		return res, err
	}
	res.Draft = draft
	log.Info("processor.scan.ok", "order_number", draft.OrderNumber, "elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

// ExtractText skips OCR and parses already-recognized receipt text.
func (p *Processor) ExtractText(ctx context.Context, ocrText string) (*entity.OrderDraft, error) {
	if strings.TrimSpace(ocrText) == "" {
		return nil, newError(KindOCRFailure, StageOCR, ocr.ErrNoTextFound)
	}
	return p.Parse.Run(ctx, ocrText)
}
