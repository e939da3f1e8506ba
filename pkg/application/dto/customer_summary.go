package dto

import "github.com/shopspring/decimal"

// HandoffRecord is the serialized form of one replacement edge
type HandoffRecord struct {
	ReturnedSerial      string `json:"returned_serial"`
	ReturnDate          string `json:"return_date,omitempty"`
	ReplacementSerial   string `json:"replacement_serial"`
	ReplacementShipDate string `json:"replacement_ship_date,omitempty"`
}

// ChainRecord is the serialized form of a replacement chain
type ChainRecord struct {
	Kind             string          `json:"kind"`
	SKU              string          `json:"sku"`
	Serials          []string        `json:"serials"`
	InstanceKeys     []string        `json:"instance_keys"`
	Handoffs         []HandoffRecord `json:"handoffs"`
	FinalStatus      string          `json:"final_status"`
	FinalStatusLabel string          `json:"final_status_description"`
	StartSerial      string          `json:"start_serial"`
	FinalSerial      string          `json:"final_serial"`
	InitialShipDate  string          `json:"initial_ship_date,omitempty"`
	AssignedCohort   string          `json:"assigned_cohort,omitempty"`
	AssignmentReason string          `json:"assignment_reason,omitempty"`
}

// UnitRecord is one serial's row in a cohort view
type UnitRecord struct {
	Serial          string `json:"serial"`
	Model           string `json:"model"`
	Status          string `json:"status"`
	ReplacementDate string `json:"replacement_date,omitempty"`
	ChainType       string `json:"chain_type"`
	ChainPosition   int    `json:"chain_position"`
	ChainLength     int    `json:"chain_length"`
	IsLastInChain   bool   `json:"is_last_in_chain"`
}

// CohortSummary is the display projection of one cohort at a given date
type CohortSummary struct {
	ID                   string         `json:"id"`
	OrderID              string         `json:"order_id"`
	SKU                  string         `json:"sku"`
	CustomerID           string         `json:"customer_id,omitempty"`
	CSALength            string         `json:"csa_length"`
	StartDate            string         `json:"start_date,omitempty"`
	EndDate              string         `json:"end_date,omitempty"`
	WarningDate          string         `json:"warning_date,omitempty"`
	DaysUntilExpiry      *int           `json:"days_until_expiry,omitempty"`
	Status               string         `json:"status"`
	IsExpired            bool           `json:"is_expired"`
	ViewStatus           string         `json:"view_status"`
	InitialUnits         int            `json:"initial_units"`
	TotalCapacity        int            `json:"total_capacity"`
	ReplacementsUsed     int            `json:"replacements_used"`
	RemainingCapacity    int            `json:"remaining_capacity"`
	InFieldCount         int            `json:"in_field_count"`
	ActiveSerialNumbers  []string       `json:"active_serial_numbers"`
	SKUBreakdown         map[string]int `json:"sku_breakdown"`
	ValidatedChains      []ChainRecord  `json:"validated_chains"`
	AssignedOrphanChains []ChainRecord  `json:"assigned_orphan_chains"`
	Units                []UnitRecord   `json:"units"`
}

// ClinicTotals are the headline counts of a customer page
type ClinicTotals struct {
	TotalActiveGreen          int `json:"total_active_green"`
	TotalExpiredRed           int `json:"total_expired_red"`
	InFieldGlobalOrphansCount int `json:"in_field_global_orphans_count"`
	TotalInPossession         int `json:"total_in_possession"`
	TotalScopesUnderCSA       int `json:"total_scopes_under_csa"`
}

// PerformanceMetrics quantifies how hard a customer is on equipment
type PerformanceMetrics struct {
	AccruedYears    decimal.Decimal `json:"accrued_years"`
	TotalReturns    int             `json:"total_returns"`
	BreakRate       decimal.Decimal `json:"break_rate"`
	Savings         decimal.Decimal `json:"savings"`
	ExtensionCost   decimal.Decimal `json:"extension_cost"`
	AverageCSAPrice decimal.Decimal `json:"average_csa_price"`
	CSAQuantity     decimal.Decimal `json:"csa_quantity"`
}

// CustomerSummary is the full display projection handed to the presentation layer
type CustomerSummary struct {
	CustomerID     string             `json:"customer_id,omitempty"`
	CustomerName   string             `json:"customer_name"`
	ClinicName     string             `json:"clinic_name,omitempty"`
	AsOf           string             `json:"as_of"`
	Cohorts        []CohortSummary    `json:"cohorts"`
	GlobalOrphans  []ChainRecord      `json:"global_orphans"`
	Totals         ClinicTotals       `json:"totals"`
	InFieldSerials []string           `json:"in_field_serials"`
	Metrics        PerformanceMetrics `json:"metrics"`
}
