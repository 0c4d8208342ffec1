package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReceiptJSONSchema returns the JSON-Schema (draft 2020-12 subset) for ReceiptFields.
// Nothing is required here: presence of the hard fields is a domain rule checked after decoding.
func BuildReceiptJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"price": map[string]any{"type": "number"},
		},
	}
	props := map[string]any{
		"orderNumber":    map[string]any{"type": "string"},
		"dateTime":       map[string]any{"type": "string"},
		"totalPrice":     map[string]any{"type": "number"},
		"restaurantName": map[string]any{"type": "string"},
		"items":          map[string]any{"type": "array", "items": item},
		"paymentMethod":  map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

var receiptSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(BuildReceiptJSONSchema())
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateReceiptJSON validates data against the receipt schema, compiled once per process.
func ValidateReceiptJSON(data []byte) error {
	schema, err := receiptSchema()
	if err != nil {
		return err
	}
	return validate(schema, data)
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	return validate(schema, data)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
