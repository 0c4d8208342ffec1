// Package ingest discovers receipt images on disk and hands them to the
// scan queue, either by walking a directory once or by watching it.
package ingest

import (
	"log/slog"

	"github.com/joseph-ayodele/canteen-orders/internal/async"
)

// Result is the per-file discovery outcome.
type Result struct {
	Path string
	Err  string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned  uint32
	Matched  uint32
	Enqueued uint32
	Failed   uint32
}

// Ingestor feeds discovered images to a queue.
type Ingestor struct {
	queue  async.Queue
	logger *slog.Logger
}

func NewIngestor(queue async.Queue, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{queue: queue, logger: logger}
}
