package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("async: queue is shutting down")

// Job is one receipt image waiting to be scanned.
type Job struct {
	Path        string
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor turns an image on disk into a stored order and returns the
// scan job ID recorded for it.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (uuid.UUID, error)
}
