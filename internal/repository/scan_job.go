package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
)

// ScanJobOutcome is what a finished scan job records.
type ScanJobOutcome struct {
	Status       constants.JobStatus
	OrderID      *uuid.UUID
	Backend      string
	OCRText      string
	ErrorKind    string
	ErrorMessage string
}

type ScanJobRepository interface {
	Start(ctx context.Context, sourcePath string) (*entity.ScanJob, error)
	Finish(ctx context.Context, jobID uuid.UUID, out ScanJobOutcome) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ScanJob, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ScanJob, error)
}

type scanJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewScanJobRepository(db *DB, log *slog.Logger) ScanJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scanJobRepo{db: db, log: log}
}

var scanJobColumns = []string{
	"id", "source_path", "status", "order_id", "backend",
	"ocr_text", "error_kind", "error_message", "started_at", "finished_at",
}

func (r *scanJobRepo) Start(ctx context.Context, sourcePath string) (*entity.ScanJob, error) {
	job := &entity.ScanJob{
		ID:         uuid.New(),
		SourcePath: sourcePath,
		Status:     string(constants.JobStatusRunning),
		StartedAt:  time.Now(),
	}
	query, args := r.db.builder().Insert(tableScanJobs).
		Columns("id", "source_path", "status", "started_at").
		Values(job.ID.String(), job.SourcePath, job.Status, formatTime(job.StartedAt)).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("scan_job start failed", "source_path", sourcePath, "err", err)
		return nil, fmt.Errorf("%w: start scan job: %v", common.ErrDatabase, err)
	}
	r.log.Info("scan_job started", "job_id", job.ID, "source_path", sourcePath)
	return job, nil
}

func (r *scanJobRepo) Finish(ctx context.Context, jobID uuid.UUID, out ScanJobOutcome) error {
	upd := r.db.builder().Update(tableScanJobs).
		Set("status", string(out.Status)).
		Set("backend", out.Backend).
		Set("finished_at", formatTime(time.Now()))
	if out.OrderID != nil {
		upd = upd.Set("order_id", out.OrderID.String())
	}
	if out.OCRText != "" {
		upd = upd.Set("ocr_text", out.OCRText)
	}
	if out.ErrorKind != "" {
		upd = upd.Set("error_kind", out.ErrorKind)
	}
	if out.ErrorMessage != "" {
		upd = upd.Set("error_message", out.ErrorMessage)
	}
	query, args := upd.Where(entsql.EQ("id", jobID.String())).Query()

	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.log.Error("scan_job finish failed", "job_id", jobID, "err", err)
		return fmt.Errorf("%w: finish scan job: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scan job %s: %w", jobID, common.ErrNotFound)
	}
	if out.Status == constants.JobStatusFailed {
		r.log.Warn("scan_job finished (FAILED)", "job_id", jobID, "kind", out.ErrorKind, "error", out.ErrorMessage)
	} else {
		r.log.Info("scan_job finished", "job_id", jobID, "status", out.Status, "order_id", out.OrderID)
	}
	return nil
}

func (r *scanJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ScanJob, error) {
	b := r.db.builder()
	query, args := b.Select(scanJobColumns...).
		From(b.Table(tableScanJobs)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	jobs, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("scan job %s: %w", jobID, common.ErrNotFound)
	}
	return jobs[0], nil
}

func (r *scanJobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ScanJob, error) {
	b := r.db.builder()
	sel := b.Select(scanJobColumns...).
		From(b.Table(tableScanJobs)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()
	return r.query(ctx, query, args)
}

func (r *scanJobRepo) query(ctx context.Context, query string, args []any) ([]*entity.ScanJob, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var scanned []scanJobRow
	if err := entsql.ScanSlice(&rows, &scanned); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.ScanJob, 0, len(scanned))
	for _, row := range scanned {
		job, err := row.job()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// scanJobRow is one row of the scan_jobs table; nullable columns are pointers.
type scanJobRow struct {
	ID           string  `sql:"id"`
	SourcePath   string  `sql:"source_path"`
	Status       string  `sql:"status"`
	OrderID      *string `sql:"order_id"`
	Backend      string  `sql:"backend"`
	OCRText      *string `sql:"ocr_text"`
	ErrorKind    *string `sql:"error_kind"`
	ErrorMessage *string `sql:"error_message"`
	StartedAt    string  `sql:"started_at"`
	FinishedAt   *string `sql:"finished_at"`
}

func (row scanJobRow) job() (*entity.ScanJob, error) {
	job := &entity.ScanJob{
		SourcePath:   row.SourcePath,
		Status:       row.Status,
		Backend:      row.Backend,
		OCRText:      row.OCRText,
		ErrorKind:    row.ErrorKind,
		ErrorMessage: row.ErrorMessage,
	}
	var err error
	if job.ID, err = uuid.Parse(row.ID); err != nil {
		return nil, fmt.Errorf("%w: scan job id %q: %v", common.ErrDatabase, row.ID, err)
	}
	if job.StartedAt, err = parseTime(row.StartedAt); err != nil {
		return nil, err
	}
	if row.OrderID != nil {
		if oid, err := uuid.Parse(*row.OrderID); err == nil {
			job.OrderID = &oid
		}
	}
	if row.FinishedAt != nil {
		t, err := parseTime(*row.FinishedAt)
		if err != nil {
			return nil, err
		}
		job.FinishedAt = &t
	}
	return job, nil
}
