package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/vsinha/csatrack/pkg/domain/entities"
)

// SerialSourceKind records where a line item's serial numbers were found
type SerialSourceKind int

const (
	SourceNone SerialSourceKind = iota
	SourceString
	SourceArray
	SourceCustomField
)

// String method for SerialSourceKind enum
func (k SerialSourceKind) String() string {
	switch k {
	case SourceString:
		return "string"
	case SourceArray:
		return "array"
	case SourceCustomField:
		return "custom_field"
	default:
		return "none"
	}
}

// SerialExtraction is the normalized result of reading serials off a line item
type SerialExtraction struct {
	Kind    SerialSourceKind
	Field   string // custom field name when Kind is SourceCustomField
	Serials []string
}

// ExtractSerials normalizes the serial_numbers field (string or array), falling back to the
// first custom field whose name contains "serial". Serials are trimmed, deduplicated, non-empty.
func ExtractSerials(item entities.LineItem) SerialExtraction {
	if kind, serials := normalizeSerialValue(item.SerialNumbers.Result()); len(serials) > 0 {
		return SerialExtraction{Kind: kind, Serials: serials}
	}

	fields := item.CustomFields.Result()
	if !fields.IsObject() {
		return SerialExtraction{Kind: SourceNone}
	}

	var extraction SerialExtraction
	fields.ForEach(func(key, value gjson.Result) bool {
		if !strings.Contains(strings.ToLower(key.String()), "serial") {
			return true
		}
		_, serials := normalizeSerialValue(value)
		extraction = SerialExtraction{Kind: SourceCustomField, Field: key.String(), Serials: serials}
		return false
	})
	if len(extraction.Serials) == 0 {
		return SerialExtraction{Kind: SourceNone}
	}
	return extraction
}

func normalizeSerialValue(value gjson.Result) (SerialSourceKind, []string) {
	switch {
	case value.IsArray():
		var serials []string
		seen := make(map[string]struct{})
		value.ForEach(func(_, element gjson.Result) bool {
			if sn := scalarString(element); sn != "" {
				if _, dup := seen[sn]; !dup {
					seen[sn] = struct{}{}
					serials = append(serials, sn)
				}
			}
			return true
		})
		return SourceArray, serials
	case value.Type == gjson.String || value.Type == gjson.Number:
		if sn := scalarString(value); sn != "" {
			return SourceString, []string{sn}
		}
	}
	return SourceNone, nil
}

func scalarString(value gjson.Result) string {
	if value.Type != gjson.String && value.Type != gjson.Number {
		return ""
	}
	return strings.TrimSpace(value.String())
}

// SerialComparator orders serial numbers with numeric suffix awareness
type SerialComparator struct {
	serialPattern *regexp.Regexp
}

// NewSerialComparator creates a new serial comparator with the default pattern
func NewSerialComparator() *SerialComparator {
	// Pattern matches serials like SN001, 2104-0187, HF12345
	pattern := regexp.MustCompile(`^(.*?)(\d+)$`)
	return &SerialComparator{
		serialPattern: pattern,
	}
}

// CompareSerials compares two serial numbers with numeric sorting
// Returns: -1 if serial1 < serial2, 0 if equal, 1 if serial1 > serial2
func (sc *SerialComparator) CompareSerials(serial1, serial2 string) int {
	if serial1 == serial2 {
		return 0
	}

	prefix1, num1, err1 := sc.parseSerial(serial1)
	prefix2, num2, err2 := sc.parseSerial(serial2)

	// If either parsing fails, fall back to string comparison
	if err1 != nil || err2 != nil {
		return strings.Compare(serial1, serial2)
	}

	if prefix1 != prefix2 {
		return strings.Compare(prefix1, prefix2)
	}

	if num1 < num2 {
		return -1
	} else if num1 > num2 {
		return 1
	}
	return strings.Compare(serial1, serial2)
}

// SortSerials sorts serials in place using CompareSerials
func (sc *SerialComparator) SortSerials(serials []string) {
	sort.SliceStable(serials, func(i, j int) bool {
		return sc.CompareSerials(serials[i], serials[j]) < 0
	})
}

// parseSerial extracts the prefix and numeric suffix from a serial number
func (sc *SerialComparator) parseSerial(serial string) (string, uint64, error) {
	matches := sc.serialPattern.FindStringSubmatch(serial)
	if len(matches) != 3 {
		return "", 0, fmt.Errorf("invalid serial format: %s", serial)
	}

	num, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid numeric portion in serial %s: %v", serial, err)
	}

	return matches[1], num, nil
}
