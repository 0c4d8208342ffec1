package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// Soft fields degrade to absent when they are malformed. Hard fields
// (orderNumber, totalPrice) are only trimmed; a wrong type there must fail schema validation.
var softStringFields = []string{"dateTime", "restaurantName", "paymentMethod"}

var allowedKeys = map[string]struct{}{
	"orderNumber": {}, "dateTime": {}, "totalPrice": {},
	"restaurantName": {}, "items": {}, "paymentMethod": {},
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (order_number -> orderNumber, dishes -> items, ...)
// - Drops null values, hard fields included: null means absent
// - Trims strings and drops malformed soft fields
// - Normalizes items: bare strings become {name}, empty names are dropped, prices coerced to numbers
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: decode: not an object")
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms
	renamed("order_number", "orderNumber")
	renamed("orderNo", "orderNumber")
	renamed("date_time", "dateTime")
	renamed("date", "dateTime")
	renamed("total_price", "totalPrice")
	renamed("total", "totalPrice")
	renamed("restaurant_name", "restaurantName")
	renamed("restaurant", "restaurantName")
	renamed("payment_method", "paymentMethod")
	renamed("dishes", "items")

	// 2) null means absent
	for k, v := range maps.Clone(m) {
		if v == nil {
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		}
	}

	// 3) hard string field: trim only
	if v, ok := m["orderNumber"].(string); ok {
		m["orderNumber"] = strings.TrimSpace(v)
	}

	// 4) soft strings
	for _, k := range softStringFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString {
			delete(m, k)
			dropped = append(dropped, k+"(type)")
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			delete(m, k)
			dropped = append(dropped, k+"(empty)")
		} else {
			m[k] = s
		}
	}

	// 5) items
	if v, ok := m["items"]; ok {
		list, isList := v.([]any)
		if !isList {
			delete(m, "items")
			dropped = append(dropped, "items(type)")
		} else {
			items := make([]any, 0, len(list))
			for _, raw := range list {
				if item, ok := sanitizeItem(raw); ok {
					items = append(items, item)
				} else {
					dropped = append(dropped, "items[](invalid)")
				}
			}
			m["items"] = items
		}
	}

	// 6) remove unknown keys
	for k := range maps.Clone(m) {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeItem(raw any) (map[string]any, bool) {
	switch t := raw.(type) {
	case string:
		name := strings.TrimSpace(t)
		if name == "" {
			return nil, false
		}
		return map[string]any{"name": name, "price": 0.0}, true
	case map[string]any:
		name, _ := t["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, false
		}
		return map[string]any{"name": name, "price": coercePrice(t["price"])}, true
	default:
		return nil, false
	}
}

// coercePrice accepts numbers and numeric strings ("15,000", "Rp 15.000" are not numeric); anything else is 0.
func coercePrice(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}
