// Package app wires configuration, storage, the extraction pipeline and the
// orders service into one process.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joseph-ayodele/canteen-orders/internal/async"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/export"
	"github.com/joseph-ayodele/canteen-orders/internal/ingest"
	"github.com/joseph-ayodele/canteen-orders/internal/llm"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/orders"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
	"github.com/joseph-ayodele/canteen-orders/internal/server"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *common.Config
	Logger   *slog.Logger
	DB       *repository.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Jobs     repository.ScanJobRepository
	Orders   *orders.Service
	Export   *export.Service
	Backend  string
}

type options struct {
	completer llm.Completer
	extractor ocr.TextExtractor
	now       func() time.Time
}

type Option func(*options)

// WithCompleter replaces the configured inference backend.
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithTextExtractor replaces the tesseract OCR extractor.
func WithTextExtractor(x ocr.TextExtractor) Option {
	return func(o *options) { o.extractor = x }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewLogger is the JSON logger used by the binaries.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New opens the store and builds the pipeline and services described by cfg.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	completer := o.completer
	if completer == nil {
		c, err := NewCompleter(ctx, cfg, m, logger)
		if err != nil {
			return nil, err
		}
		completer = c
	}
	extractor := o.extractor
	if extractor == nil {
		extractor = ocr.NewExtractor(ocr.Config{
			Tesseract:     cfg.OCR.TesseractBin,
			TesseractLang: cfg.OCR.Language,
			TessdataDir:   cfg.OCR.TessdataDir,
			Timeout:       cfg.OCR.Timeout,
		}, nil, logger)
	}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	orderRepo := repository.NewOrderRepository(db, logger)
	jobs := repository.NewScanJobRepository(db, logger)
	proc := pipeline.NewProcessor(logger,
		pipeline.NewOCRStage(extractor, logger),
		pipeline.NewParseStage(completer, logger, m),
	)
	backend := llm.NameOf(completer)
	svcOpts := []orders.Option{orders.WithScanJobs(jobs), orders.WithBackendName(backend)}
	if o.now != nil {
		svcOpts = append(svcOpts, orders.WithClock(o.now))
	}

	logger.Info("app.ready", "backend", backend, "db_driver", db.Dialect())
	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Registry: reg,
		Metrics:  m,
		Jobs:     jobs,
		Orders:   orders.NewService(orderRepo, proc, logger, svcOpts...),
		Export:   export.NewService(orderRepo, logger),
		Backend:  backend,
	}, nil
}

// QueueConfig sizes the batch scan queue.
type QueueConfig struct {
	Workers int
	Size    int
	Timeout time.Duration
}

// NewQueue starts a batch queue that scans files through the orders service.
func (a *App) NewQueue(qc QueueConfig) *async.ProcessorQueue {
	return async.NewProcessorQueue(a.Orders, a.Logger,
		async.WithWorkers(qc.Workers),
		async.WithQueueSize(qc.Size),
		async.WithProcessTimeout(qc.Timeout),
		async.WithMetrics(a.Metrics),
	)
}

// NewIngestor feeds q from directory walks and folder watches.
func (a *App) NewIngestor(q async.Queue) *ingest.Ingestor {
	return ingest.NewIngestor(q, a.Logger)
}

func (a *App) Close() {
	a.DB.Close(a.Logger)
}
