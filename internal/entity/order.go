package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
)

// LineItem is one dish on a receipt.
type LineItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderDraft is the validated output of the extraction pipeline. It becomes
// an Order only when promoted by the orders service.
type OrderDraft struct {
	OrderNumber    string     `json:"order_number"`
	DateTime       time.Time  `json:"date_time"`
	DateParsed     bool       `json:"date_parsed"` // false when DateTime fell back to the scan time
	Price          float64    `json:"price"`
	RestaurantName string     `json:"restaurant_name,omitempty"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	Items          []LineItem `json:"items,omitempty"`
}

// Order represents a canteen order for data transfer between layers.
type Order struct {
	ID             uuid.UUID                    `json:"id"`
	OrderNumber    string                       `json:"order_number"`
	NumericTail    int                          `json:"numeric_tail"`
	DateTime       time.Time                    `json:"date_time"`
	Price          float64                      `json:"price"`
	RestaurantName string                       `json:"restaurant_name,omitempty"`
	PaymentMethod  string                       `json:"payment_method,omitempty"`
	Items          []LineItem                   `json:"items"`
	Status         constants.VerificationStatus `json:"status"`
	ReceiptImage   []byte                       `json:"-"`
	ProofImage     []byte                       `json:"-"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// HasProof reports whether a proof-of-payment image is attached.
func (o *Order) HasProof() bool {
	return len(o.ProofImage) > 0
}
