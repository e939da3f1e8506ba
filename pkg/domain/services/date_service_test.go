package services

import (
	"testing"
	"time"
)

func TestParseFlexibleDate(t *testing.T) {
	jan5 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		expected time.Time
		ok       bool
	}{
		{"iso_date", "2024-01-05", jan5, true},
		{"iso_datetime", "2024-01-05T17:45:00-0500", jan5, true},
		{"iso_space_datetime", "2024-01-05 23:59:59", jan5, true},
		{"us_long_year", "01/05/2024", jan5, true},
		{"us_short_year", "1/5/24", jan5, true},
		{"month_name", "Jan 5, 2024", jan5, true},
		{"day_month_year", "05-Jan-2024", jan5, true},
		{"sentinel_not_shipped", "Not Shipped", time.Time{}, false},
		{"sentinel_na", " N/A ", time.Time{}, false},
		{"sentinel_none", "none", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ParseFlexibleDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestFirstParsedDate(t *testing.T) {
	date, source, ok := FirstParsedDate(
		DateCandidate{Source: "delivery", Value: "not recorded"},
		DateCandidate{Source: "shipment", Value: "garbled"},
		DateCandidate{Source: "order", Value: "2023-07-01"},
	)
	if !ok {
		t.Fatal("Expected a parsed date")
	}
	if source.Source != "order" {
		t.Errorf("Expected source order, got %s", source.Source)
	}
	if FormatDate(date) != "2023-07-01" {
		t.Errorf("Expected 2023-07-01, got %s", FormatDate(date))
	}

	if _, _, ok := FirstParsedDate(DateCandidate{Value: "n/a"}); ok {
		t.Error("Expected no date for sentinel-only candidates")
	}
}
