package async

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
)

type recordingProcessor struct {
	mu      sync.Mutex
	paths   []string
	reqIDs  []string
	block   chan struct{}
	failFor string
}

func (p *recordingProcessor) ProcessFile(ctx context.Context, path string) (uuid.UUID, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	p.reqIDs = append(p.reqIDs, common.RequestIDFromContext(ctx))
	if path == p.failFor {
		return uuid.New(), errors.New("scan failed")
	}
	return uuid.New(), nil
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.paths...)
	sort.Strings(out)
	return out
}

func TestQueueProcessesAllJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{failFor: "b.png"}
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(4),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	ctx := common.WithRequestID(context.Background(), "req-1")
	for _, p := range []string{"a.png", "b.png", "c.jpg"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p}))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	assert.Equal(t, []string{"a.png", "b.png", "c.jpg"}, proc.seen())
	for _, id := range proc.reqIDs {
		assert.Equal(t, "req-1", id)
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewProcessorQueue(&recordingProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.png"})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestEnqueueBackpressureHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "1.png"}))
	// the worker may or may not have picked up job 1 yet; fill until blocked
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{Path: "more.png"})
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	q.Shutdown(context.Background())
}

func TestProcessTimeoutCancelsJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.png"}))

	q.Shutdown(context.Background())
	assert.Empty(t, proc.seen())
}
