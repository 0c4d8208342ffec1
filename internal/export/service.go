package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

const sheet = "Orders"

var headers = []string{
	"Order Number",
	"Date Time",
	"Restaurant",
	"Payment Method",
	"Items",
	"Total Price",
	"Status",
	"Proof Attached",
}

// Filter selects the orders written to the workbook.
// If only From is set -> From..today (inclusive).
// If only To is set   -> beginning..To (inclusive).
// Zero Status means every status.
type Filter struct {
	Status constants.VerificationStatus
	From   *time.Time
	To     *time.Time
}

// Service is a small façade over the order repository that produces XLSX bytes.
type Service struct {
	orders repository.OrderRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(orders repository.OrderRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, logger: logger, now: time.Now}
}

// OrdersXLSX returns a workbook (as bytes) of the orders matching f, in list order.
func (s *Service) OrdersXLSX(ctx context.Context, f Filter) ([]byte, error) {
	start := time.Now()

	all, err := s.orders.List(ctx, repository.ListFilter{Status: f.Status})
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	orders := s.inWindow(all, f.From, f.To)

	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()
	// rename the default sheet so the workbook has exactly one
	if err := wb.SetSheetName(wb.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}
	if style, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = wb.SetRowStyle(sheet, 1, 1, style)
	}

	for i, o := range orders {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}
		write(1, o.OrderNumber)
		write(2, o.DateTime.Format("2006-01-02 15:04"))
		write(3, o.RestaurantName)
		write(4, o.PaymentMethod)
		write(5, truncate(itemNames(o.Items), 140))
		write(6, o.Price)
		write(7, o.Status.Label())
		write(8, o.HasProof())
	}

	_ = wb.SetColWidth(sheet, "A", "A", 20) // order number
	_ = wb.SetColWidth(sheet, "B", "B", 18) // date
	_ = wb.SetColWidth(sheet, "C", "D", 24)
	_ = wb.SetColWidth(sheet, "E", "E", 60) // items
	_ = wb.SetColWidth(sheet, "F", "H", 14)

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"status", f.Status.Label(),
		"rows", len(orders),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// inWindow keeps orders whose DateTime falls on a day inside [from, to].
func (s *Service) inWindow(orders []*entity.Order, from, to *time.Time) []*entity.Order {
	if from == nil && to == nil {
		return orders
	}
	var lo, hi time.Time
	if from != nil {
		lo = dateOnly(*from)
	}
	if to != nil {
		hi = dateOnly(*to)
	} else {
		hi = dateOnly(s.now())
	}
	out := make([]*entity.Order, 0, len(orders))
	for _, o := range orders {
		d := dateOnly(o.DateTime)
		if d.Before(lo) || d.After(hi) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func itemNames(items []entity.LineItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
