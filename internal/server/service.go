package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/export"
	"github.com/joseph-ayodele/canteen-orders/internal/ingest"
	"github.com/joseph-ayodele/canteen-orders/internal/orders"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

// OrdersService implements OrdersServiceServer on top of the orders, export
// and ingest services. The ingestor is optional.
type OrdersService struct {
	orders   *orders.Service
	exporter *export.Service
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

func NewOrdersService(o *orders.Service, exp *export.Service, ing *ingest.Ingestor, logger *slog.Logger) *OrdersService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrdersService{orders: o, exporter: exp, ingestor: ing, logger: logger}
}

func (s *OrdersService) ScanReceipt(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, common.InvalidArgumentError("image is required")
	}
	o, err := s.orders.Scan(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

func (s *OrdersService) ExtractText(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	d, err := s.orders.ExtractText(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBDraft(d)
}

func (s *OrdersService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	items, err := f.items("items")
	if err != nil {
		return nil, err
	}
	entry := orders.ManualEntry{
		OrderNumber:    f.str("order_number"),
		Price:          f.num("price"),
		RestaurantName: f.str("restaurant_name"),
		PaymentMethod:  f.str("payment_method"),
		Items:          items,
	}
	if f.str("receipt_image") != "" {
		if entry.ReceiptImage, err = f.image("receipt_image"); err != nil {
			return nil, err
		}
	}
	if dt, err := f.date("date"); err != nil {
		return nil, err
	} else if dt != nil {
		entry.DateTime = *dt
	}
	o, err := s.orders.CreateManual(ctx, entry)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

func (s *OrdersService) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID(req.GetValue())
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

// ListOrders accepts {status?: "pending"|"verified"|"mismatch", limit?: n}.
func (s *OrdersService) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	f := fieldsOf(req)
	filter := repository.ListFilter{Limit: int(f.num("limit"))}
	if raw := f.str("status"); raw != "" {
		st, ok := constants.ParseVerificationStatus(raw)
		if !ok {
			return nil, common.InvalidArgumentErrorf("unknown status %q", raw)
		}
		filter.Status = st
	}
	list, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	values := make([]any, 0, len(list))
	for _, o := range list {
		values = append(values, orderFields(o))
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, common.InternalErrorf("encode orders: %v", err)
	}
	return out, nil
}

func (s *OrdersService) Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID(req.GetValue())
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Verify(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

func (s *OrdersService) MarkMismatch(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID(req.GetValue())
	if err != nil {
		return nil, err
	}
	o, err := s.orders.MarkMismatch(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

// Rescan accepts {id, image: base64}.
func (s *OrdersService) Rescan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	id, err := parseID(f.str("id"))
	if err != nil {
		return nil, err
	}
	img, err := f.image("image")
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Rescan(ctx, id, img)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBOrder(o)
}

// AttachProof accepts {id, image: base64}.
func (s *OrdersService) AttachProof(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	f := fieldsOf(req)
	id, err := parseID(f.str("id"))
	if err != nil {
		return nil, err
	}
	img, err := f.image("image")
	if err != nil {
		return nil, err
	}
	if err := s.orders.AttachProof(ctx, id, img); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *OrdersService) DeleteOrder(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := parseID(req.GetValue())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ExportOrders accepts {status?, from_date?, to_date?} and returns XLSX bytes.
func (s *OrdersService) ExportOrders(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	f := fieldsOf(req)
	var filter export.Filter
	if raw := f.str("status"); raw != "" {
		st, ok := constants.ParseVerificationStatus(raw)
		if !ok {
			return nil, common.InvalidArgumentErrorf("unknown status %q", raw)
		}
		filter.Status = st
	}
	var err error
	if filter.From, err = f.date("from_date"); err != nil {
		return nil, err
	}
	if filter.To, err = f.date("to_date"); err != nil {
		return nil, err
	}
	xlsx, err := s.exporter.OrdersXLSX(ctx, filter)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "err", err)
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(xlsx), nil
}

// IngestDirectory accepts {root, skip_hidden?} and queues every image under root.
func (s *OrdersService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil {
		return nil, common.FailedPreconditionError("batch ingest is not enabled")
	}
	f := fieldsOf(req)
	root := f.str("root")
	if strings.TrimSpace(root) == "" {
		return nil, common.InvalidArgumentError("root is required")
	}
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, f.flag("skip_hidden"))
	if err != nil {
		return nil, common.InvalidArgumentErrorf("ingest: %v", err)
	}
	failed := make([]any, 0)
	for _, r := range results {
		if r.Err != "" {
			failed = append(failed, map[string]any{"path": r.Path, "error": r.Err})
		}
	}
	out, err := structpb.NewStruct(map[string]any{
		"scanned":  stats.Scanned,
		"matched":  stats.Matched,
		"enqueued": stats.Enqueued,
		"failed":   failed,
	})
	if err != nil {
		return nil, common.InternalErrorf("encode stats: %v", err)
	}
	return out, nil
}
