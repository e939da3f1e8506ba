package services

import (
	"strings"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

var (
	csaSKUMarkers   = []string{"hifcsa-1yr", "hifcsa-2yr"}
	csaNameKeywords = []string{"csa", "prepaid"}
)

// IsCSALineItem reports whether a line item signals a service agreement: the SKU carries a
// plan marker, or the name contains every generic keyword.
func IsCSALineItem(sku, name string) bool {
	sku = strings.ToLower(sku)
	name = strings.ToLower(name)

	for _, marker := range csaSKUMarkers {
		if strings.Contains(sku, marker) {
			return true
		}
	}
	for _, keyword := range csaNameKeywords {
		if !strings.Contains(name, keyword) {
			return false
		}
	}
	return true
}

// LineItemLength reads the plan length signalled by one line item
func LineItemLength(sku, name string) entities.CSALength {
	sku = strings.ToLower(sku)
	name = strings.ToLower(name)

	switch {
	case strings.Contains(name, "2 year") || strings.Contains(sku, "2yr"):
		return entities.TwoYear
	case strings.Contains(name, "1 year") || strings.Contains(sku, "1yr"):
		return entities.OneYear
	default:
		return entities.LengthUnknown
	}
}

// ClassifyOrder reports whether any line item qualifies the order as a CSA order and the
// resulting plan length. A 2-year signal anywhere wins over 1-year.
func ClassifyOrder(items []entities.LineItem) (bool, entities.CSALength) {
	qualifies := false
	length := entities.LengthUnknown

	for _, item := range items {
		if !IsCSALineItem(item.SKU, item.Name) {
			continue
		}
		qualifies = true
		if l := LineItemLength(item.SKU, item.Name); l > length {
			length = l
		}
	}
	return qualifies, length
}
