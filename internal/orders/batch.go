package orders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

// ProcessFile scans one receipt image from disk and stores the order. It is
// the unit of work for the batch queue; when scan jobs are configured every
// call leaves a job row behind, successful or not. Returns the job ID, or
// uuid.Nil without a job repository.
func (s *Service) ProcessFile(ctx context.Context, path string) (uuid.UUID, error) {
	log := common.LoggerWithRequest(ctx, s.logger).With("path", path)
	if !constants.IsImageExt(filepath.Ext(path)) {
		return uuid.Nil, fmt.Errorf("%w: unsupported file type %s", common.ErrInvalidInput, filepath.Ext(path))
	}

	jobID := uuid.Nil
	if s.jobs != nil {
		job, err := s.jobs.Start(ctx, path)
		if err != nil {
			return uuid.Nil, err
		}
		jobID = job.ID
	}
	finish := func(out repository.ScanJobOutcome) {
		if s.jobs == nil {
			return
		}
		out.Backend = s.backend
		// record the outcome even if the job context already expired
		if err := s.jobs.Finish(context.WithoutCancel(ctx), jobID, out); err != nil {
			log.Error("orders.batch.job_finish_failed", "job_id", jobID, "err", err)
		}
	}
	fail := func(ocrText string, err error) (uuid.UUID, error) {
		kind, _ := pipeline.KindOf(err)
		finish(repository.ScanJobOutcome{
			Status:       constants.JobStatusFailed,
			OCRText:      ocrText,
			ErrorKind:    string(kind),
			ErrorMessage: err.Error(),
		})
		log.Warn("orders.batch.failed", "job_id", jobID, "kind", string(kind), "err", err)
		return jobID, err
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return fail("", fmt.Errorf("read receipt image: %w", err))
	}

	res, err := s.scanner.ScanImage(ctx, image)
	if err != nil {
		text := ""
		if res != nil {
			text = res.OCRText
		}
		return fail(text, err)
	}

	o := NewOrder(res.Draft, image, s.now())
	if err := s.repo.Create(ctx, o); err != nil {
		return fail(res.OCRText, err)
	}
	finish(repository.ScanJobOutcome{
		Status:  constants.JobStatusLLMOK,
		OrderID: &o.ID,
		OCRText: res.OCRText,
	})
	log.Info("orders.batch.ok", "job_id", jobID, "order_id", o.ID, "order_number", o.OrderNumber)
	return jobID, nil
}
