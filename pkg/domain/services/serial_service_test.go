package services

import (
	"reflect"
	"testing"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

func TestExtractSerials(t *testing.T) {
	tests := []struct {
		name     string
		item     entities.LineItem
		kind     SerialSourceKind
		expected []string
	}{
		{
			name:     "single_string",
			item:     entities.LineItem{SerialNumbers: entities.NewRawField("  SN001 ")},
			kind:     SourceString,
			expected: []string{"SN001"},
		},
		{
			name:     "array_trimmed_and_deduplicated",
			item:     entities.LineItem{SerialNumbers: entities.NewRawField([]any{"SN001", " SN002", "", "SN001", 4711})},
			kind:     SourceArray,
			expected: []string{"SN001", "SN002", "4711"},
		},
		{
			name: "custom_field_fallback",
			item: entities.LineItem{
				SerialNumbers: entities.NewRawField([]string{}),
				CustomFields:  rawJSON(`{"cf_lot":"L1","cf_Serial_No":"SN009","cf_serial_alt":"SN010"}`),
			},
			kind:     SourceCustomField,
			expected: []string{"SN009"},
		},
		{
			name: "custom_field_array",
			item: entities.LineItem{
				CustomFields: rawJSON(`{"serials":["A1","A2"]}`),
			},
			kind:     SourceCustomField,
			expected: []string{"A1", "A2"},
		},
		{
			name:     "blank_string",
			item:     entities.LineItem{SerialNumbers: entities.NewRawField("   ")},
			kind:     SourceNone,
			expected: nil,
		},
		{
			name:     "absent",
			item:     entities.LineItem{},
			kind:     SourceNone,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractSerials(tt.item)
			if result.Kind != tt.kind {
				t.Errorf("Expected kind %v, got %v", tt.kind, result.Kind)
			}
			if !reflect.DeepEqual(result.Serials, tt.expected) {
				t.Errorf("Expected serials %v, got %v", tt.expected, result.Serials)
			}
		})
	}
}

func TestExtractSerials_CustomFieldName(t *testing.T) {
	item := entities.LineItem{CustomFields: rawJSON(`{"cf_serial_number":"SN42"}`)}

	result := ExtractSerials(item)
	if result.Field != "cf_serial_number" {
		t.Errorf("Expected field cf_serial_number, got %q", result.Field)
	}
}

func TestSerialComparator_CompareSerials(t *testing.T) {
	sc := NewSerialComparator()

	tests := []struct {
		name     string
		serial1  string
		serial2  string
		expected int
	}{
		{"equal_serials", "SN001", "SN001", 0},
		{"first_less_than_second", "SN001", "SN002", -1},
		{"first_greater_than_second", "SN002", "SN001", 1},
		{"numeric_ordering", "SN9", "SN10", -1},
		{"larger_numbers", "SN100", "SN099", 1},
		{"different_prefixes", "SN001", "TN001", -1},
		{"dashed_serials", "2104-0099", "2104-0100", -1},
		{"invalid_format_fallback", "INVALID", "SN001", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sc.CompareSerials(tt.serial1, tt.serial2)
			if result != tt.expected {
				t.Errorf("CompareSerials(%s, %s) = %d, want %d",
					tt.serial1, tt.serial2, result, tt.expected)
			}
		})
	}
}

func TestSerialComparator_SortSerials(t *testing.T) {
	sc := NewSerialComparator()
	serials := []string{"SN10", "SN2", "SN1"}

	sc.SortSerials(serials)

	expected := []string{"SN1", "SN2", "SN10"}
	if !reflect.DeepEqual(serials, expected) {
		t.Errorf("Expected %v, got %v", expected, serials)
	}
}

func rawJSON(s string) entities.RawField {
	var f entities.RawField
	if err := f.UnmarshalJSON([]byte(s)); err != nil {
		panic(err)
	}
	return f
}
