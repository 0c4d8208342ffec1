package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
)

// ParseStage turns OCR text into a validated draft with one backend call.
type ParseStage struct {
	Completer llm.Completer
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Location  *time.Location   // receipt dates are interpreted here; default time.Local
	Now       func() time.Time // fallback for unparsable dates
}

func NewParseStage(c llm.Completer, logger *slog.Logger, m *metrics.Metrics) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{Completer: c, Logger: logger, Metrics: m, Location: time.Local, Now: time.Now}
}

// Run builds the extraction prompt, calls the backend exactly once and
// validates what comes back. No retry happens here; a fallback backend, if
// configured, lives behind the Completer.
func (p *ParseStage) Run(ctx context.Context, ocrText string) (*entity.OrderDraft, error) {
	backend := llm.NameOf(p.Completer)
	log := common.LoggerWithRequest(ctx, p.Logger).With("backend", backend)

	draft, err := p.run(ctx, log, backend, ocrText)
	if err != nil {
		kind, _ := KindOf(err)
		p.Metrics.ObserveExtraction(backend, string(kind))
		log.Warn("pipeline.parse.failed", "kind", string(kind), "err", err)
		return nil, err
	}
	p.Metrics.ObserveExtraction(backend, metrics.OutcomeOK)
	log.Info("pipeline.parse.ok",
		"order_number", draft.OrderNumber,
		"price", draft.Price,
		"items", len(draft.Items),
		"date_parsed", draft.DateParsed,
	)
	return draft, nil
}

func (p *ParseStage) run(ctx context.Context, log *slog.Logger, backend, ocrText string) (*entity.OrderDraft, error) {
	prompt := llm.BuildExtractionPrompt(ocrText)

	start := time.Now()
	raw, err := p.Completer.Complete(ctx, prompt)
	p.Metrics.ObserveBackend(backend, time.Since(start))
	log.Debug("pipeline.backend.done", "prompt_chars", len(prompt), "elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return nil, newError(KindEmptyResponse, StageBackend, err)
		}
		return nil, newError(KindBackendFailure, StageBackend, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, newError(KindEmptyResponse, StageBackend, llm.ErrEmptyResponse)
	}

	obj, ok := llm.ExtractJSONObject(raw)
	if !ok {
		return nil, newError(KindMalformedResponse, StageParse, fmt.Errorf("no JSON object in %d chars of output", len(raw)))
	}

	// braces were found, so undecodable text inside them is a structural mismatch
	clean, _, err := llm.NormalizeAndSanitizeJSON([]byte(obj), log)
	if err != nil {
		return nil, newError(KindSchemaMismatch, StageParse, err)
	}
	if err := llm.ValidateReceiptJSON(clean); err != nil {
		return nil, newError(KindSchemaMismatch, StageParse, err)
	}

	var fields llm.ReceiptFields
	if err := json.Unmarshal(clean, &fields); err != nil {
		return nil, newError(KindSchemaMismatch, StageParse, fmt.Errorf("decode fields: %w", err))
	}

	draft := p.toDraft(fields)
	if err := ValidateDraft(draft); err != nil {
		return nil, newError(KindValidationFailed, StageValidate, err)
	}
	return draft, nil
}

func (p *ParseStage) toDraft(f llm.ReceiptFields) *entity.OrderDraft {
	d := &entity.OrderDraft{
		OrderNumber:    strings.TrimSpace(f.OrderNumber),
		Price:          f.TotalPrice,
		RestaurantName: strings.TrimSpace(f.RestaurantName),
		PaymentMethod:  strings.TrimSpace(f.PaymentMethod),
	}
	if t, ok := ParseDateTime(f.DateTime, p.Location); ok {
		d.DateTime, d.DateParsed = t, true
	} else {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		d.DateTime = now()
	}
	for _, it := range f.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		d.Items = append(d.Items, entity.LineItem{Name: name, Price: it.Price})
	}
	return d
}

// ValidateDraft enforces the minimal viable order: a non-empty order number
// and a positive price.
func ValidateDraft(d *entity.OrderDraft) error {
	return common.NewValidator().
		Field("orderNumber", d.OrderNumber, common.Required).
		Field("totalPrice", d.Price, common.Positive).
		Error()
}
