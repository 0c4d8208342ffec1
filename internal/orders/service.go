// Package orders owns the order lifecycle: promoting drafts, the
// verification state machine, rescans and proof-of-payment attachments.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

// Scanner is the extraction pipeline as seen by the orders service.
type Scanner interface {
	ScanImage(ctx context.Context, image []byte) (*pipeline.Result, error)
	ExtractText(ctx context.Context, ocrText string) (*entity.OrderDraft, error)
}

type Service struct {
	repo    repository.OrderRepository
	scanner Scanner
	jobs    repository.ScanJobRepository
	backend string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithScanJobs records every ProcessFile call as a scan job.
func WithScanJobs(jobs repository.ScanJobRepository) Option {
	return func(s *Service) { s.jobs = jobs }
}

// WithBackendName is recorded on scan jobs.
func WithBackendName(name string) Option {
	return func(s *Service) { s.backend = name }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo repository.OrderRepository, scanner Scanner, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, scanner: scanner, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan extracts a draft from the receipt image and stores it as a pending order.
func (s *Service) Scan(ctx context.Context, image []byte) (*entity.Order, error) {
	log := common.LoggerWithRequest(ctx, s.logger)
	res, err := s.scanner.ScanImage(ctx, image)
	if err != nil {
		return nil, err
	}
	o := NewOrder(res.Draft, image, s.now())
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	log.Info("orders.scan.created", "order_id", o.ID, "order_number", o.OrderNumber, "price", o.Price)
	return o, nil
}

// ExtractText parses recognized text into a draft without storing anything.
func (s *Service) ExtractText(ctx context.Context, ocrText string) (*entity.OrderDraft, error) {
	return s.scanner.ExtractText(ctx, ocrText)
}

// CreateManual stores a hand-entered order after the same validation a scan gets.
func (s *Service) CreateManual(ctx context.Context, m ManualEntry) (*entity.Order, error) {
	now := s.now()
	d := m.draft(now)
	if err := pipeline.ValidateDraft(d); err != nil {
		return nil, err
	}
	o := NewOrder(d, m.ReceiptImage, now)
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	common.LoggerWithRequest(ctx, s.logger).Info("orders.manual.created", "order_id", o.ID, "order_number", o.OrderNumber)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]*entity.Order, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	common.LoggerWithRequest(ctx, s.logger).Info("orders.deleted", "order_id", id)
	return nil
}

// Verify records a human confirmation: pending -> verified.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return s.transition(ctx, id, TriggerConfirm)
}

// MarkMismatch records a human rejection: pending -> mismatch.
func (s *Service) MarkMismatch(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return s.transition(ctx, id, TriggerReject)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, t Trigger) (*entity.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := Next(o.Status, t)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, o.Status, to, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}
	common.LoggerWithRequest(ctx, s.logger).Info("orders.status.changed",
		"order_id", id, "trigger", string(t), "from", o.Status.Label(), "to", to.Label())
	o.Status, o.UpdatedAt = to, now
	return o, nil
}

// Rescan re-runs extraction on a new image for a mismatched order. On success
// the extracted fields and receipt image are replaced and the order goes back
// to pending; on any failure the stored order is left untouched.
func (s *Service) Rescan(ctx context.Context, id uuid.UUID, image []byte) (*entity.Order, error) {
	log := common.LoggerWithRequest(ctx, s.logger)
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := Next(o.Status, TriggerRescan)
	if err != nil {
		return nil, err
	}

	res, err := s.scanner.ScanImage(ctx, image)
	if err != nil {
		log.Warn("orders.rescan.failed", "order_id", id, "err", err)
		return nil, err
	}

	from := o.Status
	updated := *o
	applyDraft(&updated, res.Draft)
	updated.ReceiptImage = image
	updated.Status = to
	updated.UpdatedAt = s.now()
	if err := s.repo.ReplaceExtraction(ctx, &updated, from); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}
	log.Info("orders.rescan.ok", "order_id", id, "order_number", updated.OrderNumber, "to", to.Label())
	return &updated, nil
}

// AttachProof stores a proof-of-payment image on the order. Any status is allowed.
func (s *Service) AttachProof(ctx context.Context, id uuid.UUID, proof []byte) error {
	if _, err := ocr.ValidateImage(proof); err != nil {
		return err
	}
	if err := s.repo.AttachProof(ctx, id, proof, s.now()); err != nil {
		return err
	}
	common.LoggerWithRequest(ctx, s.logger).Info("orders.proof.attached", "order_id", id, "bytes", len(proof))
	return nil
}
