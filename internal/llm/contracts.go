package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completer is the single inference capability the extraction pipeline depends on.
// Every backend (on-device or hosted) returns the raw completion text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Named is implemented by completers that can report their backend name.
type Named interface {
	Name() string
}

// NameOf returns c's backend name, or "unknown".
func NameOf(c Completer) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// ErrEmptyResponse means the backend answered but produced no usable text.
var ErrEmptyResponse = errors.New("llm: empty response")

// BackendError describes a failed backend call (transport, HTTP status, API error or model failure).
type BackendError struct {
	Backend    string
	StatusCode int    // HTTP status; 0 when the request never completed
	Status     string // provider status, e.g. INVALID_ARGUMENT
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	msg := e.Backend + " backend failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Status != "" {
		msg += " " + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

// ReceiptFields is the JSON shape we ask every backend to produce.
// All fields are optional at decode time.
type ReceiptFields struct {
	OrderNumber    string       `json:"orderNumber,omitempty"`
	DateTime       string       `json:"dateTime,omitempty"`
	TotalPrice     float64      `json:"totalPrice,omitempty"`
	RestaurantName string       `json:"restaurantName,omitempty"`
	Items          []ItemFields `json:"items,omitempty"`
	PaymentMethod  string       `json:"paymentMethod,omitempty"`
}

// ItemFields is one line item on the receipt.
type ItemFields struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
