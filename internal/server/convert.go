package server

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
)

func itemsValue(items []entity.LineItem) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{"name": it.Name, "price": it.Price})
	}
	return out
}

func orderFields(o *entity.Order) map[string]any {
	return map[string]any{
		"id":              o.ID.String(),
		"order_number":    o.OrderNumber,
		"numeric_tail":    o.NumericTail,
		"date_time":       o.DateTime.Format(time.RFC3339),
		"price":           o.Price,
		"restaurant_name": o.RestaurantName,
		"payment_method":  o.PaymentMethod,
		"items":           itemsValue(o.Items),
		"status":          o.Status.Label(),
		"has_proof":       o.HasProof(),
		"created_at":      o.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":      o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toPBOrder(o *entity.Order) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(orderFields(o))
	if err != nil {
		return nil, common.InternalErrorf("encode order: %v", err)
	}
	return s, nil
}

func toPBDraft(d *entity.OrderDraft) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"order_number":    d.OrderNumber,
		"date_time":       d.DateTime.Format(time.RFC3339),
		"date_parsed":     d.DateParsed,
		"price":           d.Price,
		"restaurant_name": d.RestaurantName,
		"payment_method":  d.PaymentMethod,
		"items":           itemsValue(d.Items),
	})
	if err != nil {
		return nil, common.InternalErrorf("encode draft: %v", err)
	}
	return s, nil
}

func parseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, common.InvalidArgumentError("id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentError("id must be a UUID")
	}
	return id, nil
}

// fields wraps a request Struct with typed getters.
type fields map[string]*structpb.Value

func fieldsOf(s *structpb.Struct) fields {
	if s == nil {
		return fields{}
	}
	return s.GetFields()
}

func (f fields) str(key string) string {
	return strings.TrimSpace(f[key].GetStringValue())
}

func (f fields) num(key string) float64 {
	return f[key].GetNumberValue()
}

func (f fields) flag(key string) bool {
	return f[key].GetBoolValue()
}

// image reads a base64 encoded image field.
func (f fields) image(key string) ([]byte, error) {
	raw := f.str(key)
	if raw == "" {
		return nil, common.InvalidArgumentErrorf("%s is required", key)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("%s must be base64: %v", key, err)
	}
	return b, nil
}

// date reads an optional YYYY-MM-DD field.
func (f fields) date(key string) (*time.Time, error) {
	raw := f.str(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("%s invalid (YYYY-MM-DD): %v", key, err)
	}
	return &t, nil
}

func (f fields) items(key string) ([]entity.LineItem, error) {
	list := f[key].GetListValue()
	if list == nil {
		return nil, nil
	}
	out := make([]entity.LineItem, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		m := v.GetStructValue()
		if m == nil {
			return nil, common.InvalidArgumentError(fmt.Sprintf("%s[%d] must be an object", key, i))
		}
		item := fieldsOf(m)
		out = append(out, entity.LineItem{Name: item.str("name"), Price: item.num("price")})
	}
	return out, nil
}
