package orders

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
)

// NumericTail returns the integer in the last non-empty '-' separated piece
// of an order number, e.g. POS-080425-110 and POS-110- -> 110. Anything
// unparsable is 0.
func NumericTail(orderNumber string) int {
	parts := strings.FieldsFunc(strings.TrimSpace(orderNumber), func(r rune) bool { return r == '-' })
	if len(parts) == 0 {
		return 0
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NewOrder promotes a validated draft to a pending order.
func NewOrder(d *entity.OrderDraft, receiptImage []byte, now time.Time) *entity.Order {
	o := &entity.Order{
		ID:           uuid.New(),
		Status:       constants.StatusPending,
		ReceiptImage: receiptImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyDraft(o, d)
	return o
}

func applyDraft(o *entity.Order, d *entity.OrderDraft) {
	o.OrderNumber = d.OrderNumber
	o.NumericTail = NumericTail(d.OrderNumber)
	o.DateTime = d.DateTime
	o.Price = d.Price
	o.RestaurantName = d.RestaurantName
	o.PaymentMethod = d.PaymentMethod
	o.Items = append([]entity.LineItem(nil), d.Items...)
}

// ManualEntry is an order typed in by hand. It goes through the same
// minimal-viable-order validation as an extracted draft.
type ManualEntry struct {
	OrderNumber    string
	DateTime       time.Time
	Price          float64
	RestaurantName string
	PaymentMethod  string
	Items          []entity.LineItem
	ReceiptImage   []byte
}

func (m ManualEntry) draft(now time.Time) *entity.OrderDraft {
	d := &entity.OrderDraft{
		OrderNumber:    strings.TrimSpace(m.OrderNumber),
		DateTime:       m.DateTime,
		DateParsed:     !m.DateTime.IsZero(),
		Price:          m.Price,
		RestaurantName: strings.TrimSpace(m.RestaurantName),
		PaymentMethod:  strings.TrimSpace(m.PaymentMethod),
	}
	if m.DateTime.IsZero() {
		d.DateTime = now
	}
	for _, it := range m.Items {
		if name := strings.TrimSpace(it.Name); name != "" {
			d.Items = append(d.Items, entity.LineItem{Name: name, Price: it.Price})
		}
	}
	return d
}
