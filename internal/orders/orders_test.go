package orders

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

var clock = time.Date(2025, 4, 8, 12, 0, 0, 0, time.UTC)

type fakeScanner struct {
	draft *entity.OrderDraft
	err   error
	calls int
}

func (f *fakeScanner) ScanImage(ctx context.Context, image []byte) (*pipeline.Result, error) {
	f.calls++
	if f.err != nil {
		return &pipeline.Result{OCRText: "partial"}, f.err
	}
	return &pipeline.Result{OCRText: "ocr text", Draft: f.draft}, nil
}

func (f *fakeScanner) ExtractText(ctx context.Context, text string) (*entity.OrderDraft, error) {
	f.calls++
	return f.draft, f.err
}

func draft(number string, price float64) *entity.OrderDraft {
	return &entity.OrderDraft{
		OrderNumber: number,
		DateTime:    clock.Add(-time.Hour),
		DateParsed:  true,
		Price:       price,
		Items:       []entity.LineItem{{Name: "Nasi Goreng", Price: price}},
	}
}

type fixture struct {
	svc     *Service
	scanner *fakeScanner
	repo    repository.OrderRepository
	jobs    repository.ScanJobRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	f := &fixture{
		scanner: &fakeScanner{draft: draft("POS-080425-110", 20000)},
		repo:    repository.NewOrderRepository(db, nil),
		jobs:    repository.NewScanJobRepository(db, nil),
	}
	f.svc = NewService(f.repo, f.scanner, nil,
		WithScanJobs(f.jobs),
		WithBackendName("fake"),
		WithClock(func() time.Time { return clock }),
	)
	return f
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestNumericTail(t *testing.T) {
	tests := map[string]int{
		"POS-080425-110": 110,
		"WALKIN":         0,
		"POS-":           0,
		"POS-12-abc":     0,
		"42":             42,
		" POS-1-7 ":      7,
		"":               0,
		"POS--5":         5,
		"POS-110-":       110,
		"POS-080425-7--": 7,
		"---":            0,
	}
	for in, want := range tests {
		assert.Equal(t, want, NumericTail(in), in)
	}
}

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		from    constants.VerificationStatus
		trigger Trigger
		want    constants.VerificationStatus
		ok      bool
	}{
		{constants.StatusPending, TriggerConfirm, constants.StatusVerified, true},
		{constants.StatusPending, TriggerReject, constants.StatusMismatch, true},
		{constants.StatusPending, TriggerRescan, constants.StatusPending, false},
		{constants.StatusMismatch, TriggerRescan, constants.StatusPending, true},
		{constants.StatusMismatch, TriggerConfirm, constants.StatusMismatch, false},
		{constants.StatusMismatch, TriggerReject, constants.StatusMismatch, false},
		{constants.StatusVerified, TriggerConfirm, constants.StatusVerified, false},
		{constants.StatusVerified, TriggerReject, constants.StatusVerified, false},
		{constants.StatusVerified, TriggerRescan, constants.StatusVerified, false},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.trigger)
		assert.Equal(t, tt.want, got, "%s on %s", tt.trigger, tt.from)
		if tt.ok {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestScanCreatesPendingOrder(t *testing.T) {
	f := newFixture(t)
	img := []byte("receipt")

	o, err := f.svc.Scan(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, o.Status)
	assert.Equal(t, 110, o.NumericTail)
	assert.Equal(t, img, o.ReceiptImage)
	assert.Equal(t, clock, o.CreatedAt)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "POS-080425-110", stored.OrderNumber)
}

func TestScanFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.scanner.err = &pipeline.ExtractionError{Kind: pipeline.KindValidationFailed, Stage: pipeline.StageValidate}

	_, err := f.svc.Scan(context.Background(), []byte("receipt"))
	require.ErrorIs(t, err, pipeline.ErrValidationFailed)

	all, err := f.svc.List(context.Background(), repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestVerifyIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.Scan(ctx, []byte("receipt"))
	require.NoError(t, err)

	v, err := f.svc.Verify(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusVerified, v.Status)

	_, err = f.svc.MarkMismatch(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Rescan(ctx, o.ID, []byte("again"))
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, f.scanner.calls, "rescan of a verified order must not run the pipeline")
}

func TestMismatchRescanReturnsToPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.Scan(ctx, []byte("receipt"))
	require.NoError(t, err)
	_, err = f.svc.MarkMismatch(ctx, o.ID)
	require.NoError(t, err)

	f.scanner.draft = draft("POS-080425-111", 25000)
	r, err := f.svc.Rescan(ctx, o.ID, []byte("better photo"))
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, r.Status)
	assert.NotEqual(t, constants.StatusVerified, r.Status)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, stored.Status)
	assert.Equal(t, "POS-080425-111", stored.OrderNumber)
	assert.Equal(t, 111, stored.NumericTail)
	assert.Equal(t, 25000.0, stored.Price)
	assert.Equal(t, []byte("better photo"), stored.ReceiptImage)
	assert.Equal(t, o.ID, stored.ID)
}

func TestRescanFailureLeavesOrderUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.Scan(ctx, []byte("receipt"))
	require.NoError(t, err)
	_, err = f.svc.MarkMismatch(ctx, o.ID)
	require.NoError(t, err)

	f.scanner.err = &pipeline.ExtractionError{Kind: pipeline.KindMalformedResponse, Stage: pipeline.StageParse}
	_, err = f.svc.Rescan(ctx, o.ID, []byte("blurry"))
	require.ErrorIs(t, err, pipeline.ErrMalformedResponse)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusMismatch, stored.Status)
	assert.Equal(t, "POS-080425-110", stored.OrderNumber)
	assert.Equal(t, []byte("receipt"), stored.ReceiptImage)
}

func TestRescanPendingIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.Scan(ctx, []byte("receipt"))
	require.NoError(t, err)

	_, err = f.svc.Rescan(ctx, o.ID, []byte("again"))
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, f.scanner.calls)
}

func TestTransitionOnMissingOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateManualValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateManual(ctx, ManualEntry{OrderNumber: "  ", Price: 1000})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = f.svc.CreateManual(ctx, ManualEntry{OrderNumber: "WALKIN", Price: 0})
	require.ErrorIs(t, err, common.ErrValidation)

	o, err := f.svc.CreateManual(ctx, ManualEntry{
		OrderNumber: "WALKIN",
		Price:       12000,
		Items:       []entity.LineItem{{Name: " Es Teh "}, {Name: ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, o.NumericTail)
	assert.Equal(t, clock, o.DateTime)
	assert.Equal(t, []entity.LineItem{{Name: "Es Teh"}}, o.Items)
	assert.Equal(t, constants.StatusPending, o.Status)
}

func TestAttachProof(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.svc.Scan(ctx, []byte("receipt"))
	require.NoError(t, err)

	require.Error(t, f.svc.AttachProof(ctx, o.ID, []byte("not an image")))

	proof := pngBytes(t)
	require.NoError(t, f.svc.AttachProof(ctx, o.ID, proof))
	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasProof())
	assert.Equal(t, proof, stored.ProofImage)

	require.ErrorIs(t, f.svc.AttachProof(ctx, uuid.New(), proof), common.ErrNotFound)
}

func TestProcessFileRecordsJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "r1.png")
	require.NoError(t, os.WriteFile(good, []byte("img"), 0o600))
	jobID, err := f.svc.ProcessFile(ctx, good)
	require.NoError(t, err)

	job, err := f.jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusLLMOK), job.Status)
	assert.Equal(t, "fake", job.Backend)
	require.NotNil(t, job.OrderID)
	_, err = f.svc.Get(ctx, *job.OrderID)
	require.NoError(t, err)

	f.scanner.err = &pipeline.ExtractionError{Kind: pipeline.KindOCRFailure, Stage: pipeline.StageOCR, Err: errors.New("blank")}
	jobID, err = f.svc.ProcessFile(ctx, good)
	require.ErrorIs(t, err, pipeline.ErrOCRFailure)
	job, err = f.jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), job.Status)
	require.NotNil(t, job.ErrorKind)
	assert.Equal(t, "ocr-failure", *job.ErrorKind)
	require.NotNil(t, job.OCRText)
	assert.Equal(t, "partial", *job.OCRText)

	missing := filepath.Join(dir, "missing.jpg")
	jobID, err = f.svc.ProcessFile(ctx, missing)
	require.ErrorIs(t, err, os.ErrNotExist)
	job, err = f.jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), job.Status)

	_, err = f.svc.ProcessFile(ctx, filepath.Join(dir, "notes.txt"))
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSampleOrders(t *testing.T) {
	now := time.Now()
	samples := SampleOrders(now)
	require.Len(t, samples, 10)
	for i, o := range samples {
		assert.Equal(t, i+1, o.NumericTail)
		assert.Equal(t, i+1, NumericTail(o.OrderNumber))
		assert.True(t, o.DateTime.Before(now))
		assert.NotEmpty(t, o.Items)
		assert.Greater(t, o.Price, 0.0)
	}
	assert.Equal(t, "POS-080425-1", samples[0].OrderNumber)
	assert.Equal(t, "POS-080425-10", samples[9].OrderNumber)
	assert.Equal(t, constants.StatusMismatch, samples[2].Status)
}
