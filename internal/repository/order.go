package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
)

var (
	ErrOrderNotFound = fmt.Errorf("order %w", common.ErrNotFound)
	// ErrStaleStatus means the row was no longer in the expected status when written.
	ErrStaleStatus = fmt.Errorf("order status changed: %w", common.ErrConflict)
)

// ListFilter narrows ListOrders. Zero values match everything.
type ListFilter struct {
	Status constants.VerificationStatus
	Limit  int
}

type OrderRepository interface {
	Create(ctx context.Context, o *entity.Order) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Order, error)
	// UpdateStatus moves the order from one status to another, failing with
	// ErrStaleStatus if the stored status is not `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to constants.VerificationStatus, at time.Time) error
	AttachProof(ctx context.Context, id uuid.UUID, proof []byte, at time.Time) error
	// ReplaceExtraction overwrites extracted fields, receipt image and status
	// if the stored status is still `from`.
	ReplaceExtraction(ctx context.Context, o *entity.Order, from constants.VerificationStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOrderRepository(db *DB, logger *slog.Logger) OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{db: db, logger: logger}
}

var orderColumns = []string{
	"id", "order_number", "numeric_tail", "date_time", "price",
	"restaurant_name", "payment_method", "items", "status",
	"receipt_image", "proof_image", "created_at", "updated_at",
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	query, args := r.db.builder().Insert(tableOrders).
		Columns(orderColumns...).
		Values(
			o.ID.String(), o.OrderNumber, int64(o.NumericTail), formatTime(o.DateTime), o.Price,
			o.RestaurantName, o.PaymentMethod, items, string(o.Status),
			nullBytes(o.ReceiptImage), nullBytes(o.ProofImage), formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		).Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to create order", "order_number", o.OrderNumber, "error", err)
		return fmt.Errorf("%w: create order: %v", common.ErrDatabase, err)
	}
	r.logger.Debug("order created", "order_id", o.ID, "order_number", o.OrderNumber)
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	b := r.db.builder()
	query, args := b.Select(orderColumns...).
		From(b.Table(tableOrders)).
		Where(entsql.EQ("id", id.String())).
		Query()
	orders, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to get order", "order_id", id, "error", err)
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

// List returns orders by numeric tail, highest first, then newest first.
func (r *orderRepository) List(ctx context.Context, f ListFilter) ([]*entity.Order, error) {
	b := r.db.builder()
	sel := b.Select(orderColumns...).From(b.Table(tableOrders))
	if f.Status != "" {
		sel = sel.Where(entsql.EQ("status", string(f.Status)))
	}
	sel = sel.OrderBy(entsql.Desc("numeric_tail"), entsql.Desc("created_at"))
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	query, args := sel.Query()
	orders, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to list orders", "status", f.Status, "error", err)
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to constants.VerificationStatus, at time.Time) error {
	query, args := r.db.builder().Update(tableOrders).
		Set("status", string(to)).
		Set("updated_at", formatTime(at)).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("status", string(from)))).
		Query()
	return r.execOne(ctx, id, "update status", query, args)
}

func (r *orderRepository) AttachProof(ctx context.Context, id uuid.UUID, proof []byte, at time.Time) error {
	query, args := r.db.builder().Update(tableOrders).
		Set("proof_image", proof).
		Set("updated_at", formatTime(at)).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.execOne(ctx, id, "attach proof", query, args)
}

func (r *orderRepository) ReplaceExtraction(ctx context.Context, o *entity.Order, from constants.VerificationStatus) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	query, args := r.db.builder().Update(tableOrders).
		Set("order_number", o.OrderNumber).
		Set("numeric_tail", int64(o.NumericTail)).
		Set("date_time", formatTime(o.DateTime)).
		Set("price", o.Price).
		Set("restaurant_name", o.RestaurantName).
		Set("payment_method", o.PaymentMethod).
		Set("items", items).
		Set("receipt_image", nullBytes(o.ReceiptImage)).
		Set("status", string(o.Status)).
		Set("updated_at", formatTime(o.UpdatedAt)).
		Where(entsql.And(entsql.EQ("id", o.ID.String()), entsql.EQ("status", string(from)))).
		Query()
	return r.execOne(ctx, o.ID, "replace extraction", query, args)
}

func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args := r.db.builder().Delete(tableOrders).
		Where(entsql.EQ("id", id.String())).
		Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to delete order", "order_id", id, "error", err)
		return fmt.Errorf("%w: delete order: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// execOne runs a conditional single-row update. When nothing matched it tells
// a missing row apart from a row in a different status.
func (r *orderRepository) execOne(ctx context.Context, id uuid.UUID, op, query string, args []any) error {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("order write failed", "op", op, "order_id", id, "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrStaleStatus
}

func (r *orderRepository) query(ctx context.Context, query string, args []any) ([]*entity.Order, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var scanned []orderRow
	if err := entsql.ScanSlice(&rows, &scanned); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	out := make([]*entity.Order, 0, len(scanned))
	for _, row := range scanned {
		o, err := row.order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// orderRow is one row of the orders table as stored.
type orderRow struct {
	ID             string  `sql:"id"`
	OrderNumber    string  `sql:"order_number"`
	NumericTail    int64   `sql:"numeric_tail"`
	DateTime       string  `sql:"date_time"`
	Price          float64 `sql:"price"`
	RestaurantName string  `sql:"restaurant_name"`
	PaymentMethod  string  `sql:"payment_method"`
	Items          string  `sql:"items"`
	Status         string  `sql:"status"`
	ReceiptImage   []byte  `sql:"receipt_image"`
	ProofImage     []byte  `sql:"proof_image"`
	CreatedAt      string  `sql:"created_at"`
	UpdatedAt      string  `sql:"updated_at"`
}

func (row orderRow) order() (*entity.Order, error) {
	o := &entity.Order{
		OrderNumber:    row.OrderNumber,
		NumericTail:    int(row.NumericTail),
		Price:          row.Price,
		RestaurantName: row.RestaurantName,
		PaymentMethod:  row.PaymentMethod,
		Status:         constants.VerificationStatus(row.Status),
		ReceiptImage:   row.ReceiptImage,
		ProofImage:     row.ProofImage,
	}
	var err error
	if o.ID, err = uuid.Parse(row.ID); err != nil {
		return nil, fmt.Errorf("%w: order id %q: %v", common.ErrDatabase, row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Items), &o.Items); err != nil {
		return nil, fmt.Errorf("%w: order items: %v", common.ErrDatabase, err)
	}
	if o.DateTime, err = parseTime(row.DateTime); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

func encodeItems(items []entity.LineItem) (string, error) {
	if items == nil {
		items = []entity.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(b), nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", common.ErrDatabase, s, err)
	}
	return t, nil
}

// nullBytes stores empty images as NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// IsNotFound reports whether err means the order does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
