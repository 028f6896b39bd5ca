package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() FieldSchema {
	return FieldSchema{
		Fields: []FieldDefinition{
			{Key: "children_count", Label: "Children", Type: TypeNumber},
			{Key: "amount", Label: "Amount", Type: TypeCurrency},
			{Key: "deposit_paid", Label: "Deposit Paid", Type: TypeBoolean},
			{Key: "notes", Label: "Notes", Type: TypeText},
		},
		Aggregations: []string{"children_count", "amount"},
	}
}

func TestAggregateSumsDeclaredKeys(t *testing.T) {
	rows := []FieldValues{
		{"children_count": float64(5)},
		{"children_count": float64(3)},
		{"children_count": float64(0)},
	}
	totals := Aggregate(testSchema(), rows)
	assert.Equal(t, 8.0, totals["children_count"])
	assert.Equal(t, 0.0, totals["amount"])
}

func TestAggregateMissingKeysContributeZero(t *testing.T) {
	rows := []FieldValues{
		{"children_count": float64(4)},
		{"notes": "no count recorded"},
		{},
	}
	totals := Aggregate(testSchema(), rows)
	assert.Equal(t, 4.0, totals["children_count"])
}

func TestAggregateIgnoresNonFiniteValues(t *testing.T) {
	rows := []FieldValues{
		{"children_count": float64(5)},
		{"children_count": "NaN"},
		{"children_count": "+Inf"},
	}
	totals := Aggregate(testSchema(), rows)
	assert.Equal(t, 5.0, totals["children_count"])
}

func TestAggregateCurrencyRendering(t *testing.T) {
	s := FieldSchema{
		Fields:       []FieldDefinition{{Key: "amount", Label: "Amount", Type: TypeCurrency}},
		Aggregations: []string{"amount"},
	}
	rows := []FieldValues{
		{"amount": 100.5},
		{"amount": 49.5},
	}
	totals := Aggregate(s, rows)
	require.Equal(t, 150.0, totals["amount"])
	assert.Equal(t, "$150.00", FormatAggregate(s, "amount", totals["amount"]))
}

func TestDisplayFieldsHidesBooleansForBookingSource(t *testing.T) {
	s := testSchema()

	entryFields := DisplayFields(s, false)
	require.Len(t, entryFields, 4)

	bookingFields := DisplayFields(s, true)
	require.Len(t, bookingFields, 3)
	for _, f := range bookingFields {
		assert.NotEqual(t, TypeBoolean, f.Type)
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name      string
		fieldType FieldType
		value     interface{}
		want      string
	}{
		{"nil renders placeholder", TypeNumber, nil, Placeholder},
		{"boolean true", TypeBoolean, true, "Yes"},
		{"boolean false", TypeBoolean, false, "No"},
		{"currency two decimals", TypeCurrency, 99.9, "$99.90"},
		{"number whole", TypeNumber, float64(12), "12"},
		{"number fractional stays literal", TypeNumber, 1234.5, "1234.5"},
		{"number keeps non-numeric text", TypeNumber, "abc", "abc"},
		{"text literal", TypeText, "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCell(tt.fieldType, tt.value))
		})
	}
}

func TestCoerceInput(t *testing.T) {
	t.Run("empty numeric becomes nil", func(t *testing.T) {
		got, err := CoerceInput(TypeNumber, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("numeric string parses", func(t *testing.T) {
		got, err := CoerceInput(TypeCurrency, "49.5")
		require.NoError(t, err)
		assert.Equal(t, 49.5, got)
	})

	t.Run("non-numeric string rejected", func(t *testing.T) {
		_, err := CoerceInput(TypeNumber, "abc")
		require.Error(t, err)
	})

	t.Run("non-finite values rejected", func(t *testing.T) {
		_, err := CoerceInput(TypeNumber, "NaN")
		require.Error(t, err)

		_, err = CoerceInput(TypeNumber, "Inf")
		require.Error(t, err)

		_, err = CoerceInput(TypeCurrency, math.NaN())
		require.Error(t, err)
	})

	t.Run("boolean requires bool", func(t *testing.T) {
		got, err := CoerceInput(TypeBoolean, true)
		require.NoError(t, err)
		assert.Equal(t, true, got)

		_, err = CoerceInput(TypeBoolean, "true")
		require.Error(t, err)
	})

	t.Run("text stays a string", func(t *testing.T) {
		got, err := CoerceInput(TypeText, "plain")
		require.NoError(t, err)
		assert.Equal(t, "plain", got)
	})
}

func TestFieldSchemaValidate(t *testing.T) {
	t.Run("valid schema", func(t *testing.T) {
		require.NoError(t, testSchema().Validate())
	})

	t.Run("duplicate key", func(t *testing.T) {
		s := FieldSchema{Fields: []FieldDefinition{
			{Key: "a", Type: TypeText},
			{Key: "a", Type: TypeNumber},
		}}
		require.Error(t, s.Validate())
	})

	t.Run("aggregation on boolean field", func(t *testing.T) {
		s := FieldSchema{
			Fields:       []FieldDefinition{{Key: "flag", Type: TypeBoolean}},
			Aggregations: []string{"flag"},
		}
		require.Error(t, s.Validate())
	})

	t.Run("aggregation on unknown key", func(t *testing.T) {
		s := FieldSchema{
			Fields:       []FieldDefinition{{Key: "a", Type: TypeNumber}},
			Aggregations: []string{"b"},
		}
		require.Error(t, s.Validate())
	})
}

func TestFieldSchemaScanValue(t *testing.T) {
	original := testSchema()
	raw, err := original.Value()
	require.NoError(t, err)

	var decoded FieldSchema
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, original.Fields, decoded.Fields)
	assert.Equal(t, original.Aggregations, decoded.Aggregations)
}
