package entities

import (
	"fmt"
	"time"
)

const (
	// ReplacementMultiplier is the number of replacements each originally shipped unit entitles
	ReplacementMultiplier = 4
	// WarningLeadDays is how long before expiry a cohort enters its warning window
	WarningLeadDays = 60
)

// CSALength is the plan length of a service agreement
type CSALength int

const (
	LengthUnknown CSALength = iota
	OneYear
	TwoYear
)

// String method for CSALength enum
func (l CSALength) String() string {
	switch l {
	case OneYear:
		return "1 year"
	case TwoYear:
		return "2 year"
	default:
		return "Unknown"
	}
}

// Years returns the plan length in years, 0 when unknown
func (l CSALength) Years() int {
	switch l {
	case OneYear:
		return 1
	case TwoYear:
		return 2
	default:
		return 0
	}
}

// Cohort is the set of units originally shipped under one CSA order for one SKU
type Cohort struct {
	ID            string
	OrderID       string
	SKU           SKU
	CustomerID    string
	Length        CSALength
	StartDate     time.Time
	EndDate       time.Time
	WarningDate   time.Time
	TotalCapacity int
	Members       []InstanceKey
}

// CohortID returns the order id, or orderId#sku when the order ships several tracked SKUs
func CohortID(orderID string, sku SKU, multiSKU bool) string {
	if multiSKU {
		return orderID + "#" + string(sku)
	}
	return orderID
}

// NewCohort creates a validated Cohort and derives its end date, warning date and capacity
func NewCohort(id, orderID string, sku SKU, customerID string, length CSALength, startDate time.Time, members []InstanceKey) (*Cohort, error) {
	if id == "" {
		return nil, fmt.Errorf("cohort id cannot be empty")
	}
	if orderID == "" {
		return nil, fmt.Errorf("order id cannot be empty for cohort %s", id)
	}
	if sku == "" {
		return nil, fmt.Errorf("sku cannot be empty for cohort %s", id)
	}

	c := &Cohort{
		ID:            id,
		OrderID:       orderID,
		SKU:           sku,
		CustomerID:    customerID,
		Length:        length,
		StartDate:     startDate,
		TotalCapacity: len(members) * ReplacementMultiplier,
		Members:       append([]InstanceKey(nil), members...),
	}
	if !startDate.IsZero() && length != LengthUnknown {
		c.EndDate = startDate.AddDate(length.Years(), 0, 0)
		c.WarningDate = c.EndDate.AddDate(0, 0, -WarningLeadDays)
	}
	return c, nil
}

// HasEndDate reports whether the plan length and start date allowed an end date
func (c *Cohort) HasEndDate() bool {
	return !c.EndDate.IsZero()
}

// DaysUntilExpiry returns whole days from now to the end date, rounded up
func (c *Cohort) DaysUntilExpiry(now time.Time) (int, bool) {
	if !c.HasEndDate() {
		return 0, false
	}
	hours := c.EndDate.Sub(now).Hours()
	days := int(hours / 24)
	if float64(days)*24 < hours {
		days++
	}
	return days, true
}
