package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placeholder is rendered for unset cell values.
const Placeholder = "—"

// FormatCell renders a single value for tabular display according to its
// field type. Unset values render as the placeholder dash regardless of type.
func FormatCell(fieldType FieldType, value interface{}) string {
	if value == nil {
		return Placeholder
	}
	switch fieldType {
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
		return Placeholder
	case TypeCurrency:
		return fmt.Sprintf("$%.2f", NumericValue(value))
	case TypeNumber:
		// Cells show the stored value as-is. Grouping applies only to
		// aggregate totals.
		return fmt.Sprintf("%v", value)
	case TypeText:
		return fmt.Sprintf("%v", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// CoerceInput normalizes a submitted form value to the canonical stored
// representation for its field type. Empty numeric inputs become nil, not
// zero, so absent and zero stay distinguishable.
func CoerceInput(fieldType FieldType, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch fieldType {
	case TypeNumber, TypeCurrency:
		switch v := raw.(type) {
		case float64:
			if !isFinite(v) {
				return nil, fmt.Errorf("value %v is not a finite number", v)
			}
			return v, nil
		case int:
			return float64(v), nil
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil || !isFinite(f) {
				return nil, fmt.Errorf("value %q is not numeric", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("value of type %T is not numeric", raw)
		}
	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("value of type %T is not boolean", raw)
		}
		return b, nil
	case TypeText:
		return fmt.Sprintf("%v", raw), nil
	default:
		return fmt.Sprintf("%v", raw), nil
	}
}

// NumericValue converts a loosely typed value to a float64 contribution
// for aggregation. Anything non-numeric or non-finite contributes zero,
// so one bad value cannot poison a total.
func NumericValue(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		if !isFinite(v) {
			return 0
		}
		return v
	case float32:
		return NumericValue(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || !isFinite(f) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Aggregate sums every declared aggregation key across the given rows.
// Rows missing a key contribute zero. Every declared key appears in the
// result even when no row carries it.
func Aggregate(s FieldSchema, rows []FieldValues) map[string]float64 {
	totals := make(map[string]float64, len(s.Aggregations))
	for _, key := range s.Aggregations {
		totals[key] = 0
	}
	for _, row := range rows {
		for _, key := range s.Aggregations {
			totals[key] += NumericValue(row[key])
		}
	}
	return totals
}

// FormatAggregate renders a computed total using the declared field type,
// so currency totals carry the symbol and two decimals.
func FormatAggregate(s FieldSchema, key string, total float64) string {
	if def, ok := s.FieldByKey(key); ok && def.Type == TypeCurrency {
		return fmt.Sprintf("$%.2f", total)
	}
	return formatGrouped(total)
}

// DisplayFields returns the schema fields visible for the given source.
// Booking-sourced views hide boolean fields.
func DisplayFields(s FieldSchema, bookingSourced bool) []FieldDefinition {
	if !bookingSourced {
		return s.Fields
	}
	visible := make([]FieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Type == TypeBoolean {
			continue
		}
		visible = append(visible, f)
	}
	return visible
}

// formatGrouped renders a float with thousands separators, dropping the
// fractional part when it is a whole number.
func formatGrouped(v float64) string {
	var digits string
	if v == float64(int64(v)) {
		digits = strconv.FormatInt(int64(v), 10)
	} else {
		digits = strconv.FormatFloat(v, 'f', -1, 64)
	}
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	intPart := digits
	fracPart := ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart = digits[:i]
		fracPart = digits[i:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	out := intPart + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
