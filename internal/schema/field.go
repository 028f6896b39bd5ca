package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldType is the closed set of value types a program field can take.
// Switches over FieldType must handle every constant; new types are a
// compile-visible change here plus the switch arms.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeCurrency FieldType = "currency"
)

// Valid reports whether the field type is one of the known constants.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeCurrency:
		return true
	}
	return false
}

// Numeric reports whether values of this type participate in sums.
func (t FieldType) Numeric() bool {
	return t == TypeNumber || t == TypeCurrency
}

// FieldDefinition describes one column of a program's dynamic schema.
type FieldDefinition struct {
	Key     string      `json:"key"`
	Label   string      `json:"label"`
	Type    FieldType   `json:"type"`
	Default interface{} `json:"default,omitempty"`
}

// FieldSchema is the per-program-type schema stored as a JSONB column.
type FieldSchema struct {
	Fields       []FieldDefinition `json:"fields"`
	Aggregations []string          `json:"aggregations,omitempty"`
	ShowContact  bool              `json:"show_contact,omitempty"`
	ShowEntity   bool              `json:"show_entity,omitempty"`
}

// FieldByKey returns the definition for the given key, if declared.
func (s FieldSchema) FieldByKey(key string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Validate checks the schema's internal consistency: field keys are
// unique with known types, and aggregations reference numeric fields.
func (s FieldSchema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Key == "" {
			return fmt.Errorf("field key must not be empty")
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("duplicate field key %q", f.Key)
		}
		seen[f.Key] = struct{}{}
		if !f.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q", f.Key, f.Type)
		}
	}
	for _, key := range s.Aggregations {
		def, ok := s.FieldByKey(key)
		if !ok {
			return fmt.Errorf("aggregation %q does not match any field", key)
		}
		if !def.Type.Numeric() {
			return fmt.Errorf("aggregation %q references non-numeric field of type %q", key, def.Type)
		}
	}
	return nil
}

// Value implements driver.Valuer so the schema persists as JSONB.
func (s FieldSchema) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB columns.
func (s *FieldSchema) Scan(src interface{}) error {
	if src == nil {
		*s = FieldSchema{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported field schema type %T", src)
	}
}

// FieldValues is a field key to value mapping persisted as JSONB. Values
// carry the loose typing of decoded JSON (string, float64, bool, nil).
type FieldValues map[string]interface{}

// Value implements driver.Valuer.
func (v FieldValues) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal(FieldValues{})
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner.
func (v *FieldValues) Scan(src interface{}) error {
	if src == nil {
		*v = FieldValues{}
		return nil
	}
	switch raw := src.(type) {
	case []byte:
		return json.Unmarshal(raw, v)
	case string:
		return json.Unmarshal([]byte(raw), v)
	default:
		return fmt.Errorf("unsupported field values type %T", src)
	}
}
