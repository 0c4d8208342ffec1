package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/export"
	"github.com/joseph-ayodele/canteen-orders/internal/metrics"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/orders"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

type stubScanner struct {
	draft *entity.OrderDraft
	err   error
}

func (s *stubScanner) ScanImage(context.Context, []byte) (*pipeline.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Result{OCRText: "text", Draft: s.draft}, nil
}

func (s *stubScanner) ExtractText(context.Context, string) (*entity.OrderDraft, error) {
	return s.draft, s.err
}

type harness struct {
	client  *Client
	conn    *grpc.ClientConn
	scanner *stubScanner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	repo := repository.NewOrderRepository(db, nil)
	scanner := &stubScanner{draft: &entity.OrderDraft{
		OrderNumber: "POS-080425-110",
		DateTime:    time.Date(2025, 4, 8, 12, 30, 0, 0, time.UTC),
		DateParsed:  true,
		Price:       20000,
		Items:       []entity.LineItem{{Name: "Nasi Goreng", Price: 20000}},
	}}
	svc := NewOrdersService(orders.NewService(repo, scanner, nil), export.NewService(repo, nil), nil, nil)

	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{client: NewClient(conn), conn: conn, scanner: scanner}
}

func codeOf(err error) codes.Code { return status.Code(err) }

func pngB64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestScanVerifyLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var header metadata.MD
	o, err := h.client.ScanReceipt(ctx, []byte("img"), grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(RequestIDHeader))
	assert.Equal(t, "pending", o.Fields["status"].GetStringValue())
	assert.Equal(t, 110.0, o.Fields["numeric_tail"].GetNumberValue())
	id := o.Fields["id"].GetStringValue()

	got, err := h.client.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "POS-080425-110", got.Fields["order_number"].GetStringValue())
	require.Len(t, got.Fields["items"].GetListValue().GetValues(), 1)

	v, err := h.client.Verify(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "verified", v.Fields["status"].GetStringValue())

	_, err = h.client.MarkMismatch(ctx, id)
	assert.Equal(t, codes.FailedPrecondition, codeOf(err))

	require.NoError(t, h.client.DeleteOrder(ctx, id))
	_, err = h.client.GetOrder(ctx, id)
	assert.Equal(t, codes.NotFound, codeOf(err))
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newHarness(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "req-42")
	var header metadata.MD
	_, err := h.client.ListOrders(ctx, &structpb.Struct{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDHeader))
}

func TestMismatchRescanOverGRPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o, err := h.client.ScanReceipt(ctx, []byte("img"))
	require.NoError(t, err)
	id := o.Fields["id"].GetStringValue()
	_, err = h.client.MarkMismatch(ctx, id)
	require.NoError(t, err)

	h.scanner.draft = &entity.OrderDraft{OrderNumber: "POS-080425-111", DateTime: time.Now(), Price: 21000}
	req, err := structpb.NewStruct(map[string]any{"id": id, "image": base64.StdEncoding.EncodeToString([]byte("better"))})
	require.NoError(t, err)
	r, err := h.client.Rescan(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "pending", r.Fields["status"].GetStringValue())
	assert.Equal(t, "POS-080425-111", r.Fields["order_number"].GetStringValue())

	bad, err := structpb.NewStruct(map[string]any{"id": id, "image": "%%%"})
	require.NoError(t, err)
	_, err = h.client.Rescan(ctx, bad)
	assert.Equal(t, codes.InvalidArgument, codeOf(err))
}

func TestListAndExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.client.ScanReceipt(ctx, []byte("img"))
		require.NoError(t, err)
	}
	manual, err := structpb.NewStruct(map[string]any{
		"order_number": "WALKIN",
		"price":        15000,
		"date":         "2025-04-08",
		"items":        []any{map[string]any{"name": "Es Teh", "price": 5000}},
	})
	require.NoError(t, err)
	created, err := h.client.CreateOrder(ctx, manual)
	require.NoError(t, err)
	_, err = h.client.Verify(ctx, created.Fields["id"].GetStringValue())
	require.NoError(t, err)

	all, err := h.client.ListOrders(ctx, &structpb.Struct{})
	require.NoError(t, err)
	require.Len(t, all.GetValues(), 3)
	// WALKIN has tail 0 and sorts last
	assert.Equal(t, "WALKIN", all.GetValues()[2].GetStructValue().Fields["order_number"].GetStringValue())

	verified, err := h.client.ListOrders(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"status": structpb.NewStringValue("verified"),
	}})
	require.NoError(t, err)
	assert.Len(t, verified.GetValues(), 1)

	_, err = h.client.ListOrders(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"status": structpb.NewStringValue("lost"),
	}})
	assert.Equal(t, codes.InvalidArgument, codeOf(err))

	xlsx, err := h.client.ExportOrders(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx, []byte("PK")), "xlsx is a zip archive")
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	req, err := structpb.NewStruct(map[string]any{"order_number": "WALKIN", "price": 0})
	require.NoError(t, err)
	_, err = h.client.CreateOrder(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, codeOf(err))
}

func TestAttachProofOverGRPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o, err := h.client.ScanReceipt(ctx, []byte("img"))
	require.NoError(t, err)
	id := o.Fields["id"].GetStringValue()

	req, err := structpb.NewStruct(map[string]any{"id": id, "image": pngB64(t)})
	require.NoError(t, err)
	require.NoError(t, h.client.AttachProof(ctx, req))

	got, err := h.client.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Fields["has_proof"].GetBoolValue())

	notImage, err := structpb.NewStruct(map[string]any{"id": id, "image": base64.StdEncoding.EncodeToString([]byte("text"))})
	require.NoError(t, err)
	assert.Equal(t, codes.InvalidArgument, codeOf(h.client.AttachProof(ctx, notImage)))
}

func TestPipelineFailuresMapToCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.scanner.err = &pipeline.ExtractionError{Kind: pipeline.KindBackendFailure, Stage: pipeline.StageBackend, Err: errors.New("503")}
	_, err := h.client.ScanReceipt(ctx, []byte("img"))
	assert.Equal(t, codes.Unavailable, codeOf(err))

	_, err = h.client.ExtractText(ctx, "POS-1")
	assert.Equal(t, codes.Unavailable, codeOf(err))

	_, err = h.client.GetOrder(ctx, "not-a-uuid")
	assert.Equal(t, codes.InvalidArgument, codeOf(err))

	_, err = h.client.IngestDirectory(ctx, &structpb.Struct{})
	assert.Equal(t, codes.FailedPrecondition, codeOf(err))
}

func TestHealthServing(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{&pipeline.ExtractionError{Kind: pipeline.KindOCRFailure}, codes.InvalidArgument},
		{&pipeline.ExtractionError{Kind: pipeline.KindValidationFailed}, codes.InvalidArgument},
		{&pipeline.ExtractionError{Kind: pipeline.KindEmptyResponse}, codes.Unavailable},
		{&pipeline.ExtractionError{Kind: pipeline.KindMalformedResponse}, codes.Internal},
		{&pipeline.ExtractionError{Kind: pipeline.KindSchemaMismatch}, codes.Internal},
		{repository.ErrOrderNotFound, codes.NotFound},
		{fmt.Errorf("x: %w", orders.ErrInvalidTransition), codes.FailedPrecondition},
		{fmt.Errorf("%w: empty", ocr.ErrInvalidImage), codes.InvalidArgument},
		{common.ErrValidation, codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Aborted, "keep"), codes.Aborted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveExtraction("local", metrics.OutcomeOK)

	srv := httptest.NewServer(NewMetricsServer(":0", reg).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `canteen_extraction_total{backend="local",outcome="ok"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
