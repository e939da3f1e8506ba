package projection

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

// Cohort display statuses
const (
	StatusActive  = "active"
	StatusWarning = "warning"
	StatusExpired = "expired"
	StatusMaxed   = "maxed"
)

// Unit statuses within a cohort view
const (
	UnitActive   = "active"
	UnitReplaced = "replaced"
	UnitRetired  = "retired"
)

// Options carries inputs the projection needs beyond the reconciliation result
type Options struct {
	// ClinicName is the raw clinic group key, e.g. "northside_pulmonary"
	ClinicName string
	// Orders are the payload's sales orders; they feed CSA quantity and price metrics
	Orders []entities.SalesOrder
}

// Project renders a reconciliation result as of now. This is the only step that depends on the
// clock, so callers pass now explicitly.
func Project(result *dto.ReconciliationResult, now time.Time, opts Options) *dto.CustomerSummary {
	clinic := opts.ClinicName
	if clinic == "" {
		clinic = result.CustomerName
	}

	summary := &dto.CustomerSummary{
		CustomerID:   result.CustomerID,
		CustomerName: result.CustomerName,
		ClinicName:   FormatClinicName(clinic),
		AsOf:         services.FormatDate(now),
	}

	cohorts := append([]*entities.Cohort(nil), result.Cohorts...)
	sort.SliceStable(cohorts, func(i, j int) bool {
		a, b := cohorts[i].StartDate, cohorts[j].StartDate
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})

	summary.Cohorts = make([]dto.CohortSummary, 0, len(cohorts))
	for _, cohort := range cohorts {
		view := projectCohort(result, cohort, now)
		if view.IsExpired {
			summary.Totals.TotalExpiredRed += view.InFieldCount
		} else {
			summary.Totals.TotalActiveGreen += view.InFieldCount
		}
		summary.Totals.TotalScopesUnderCSA += view.InFieldCount
		summary.Cohorts = append(summary.Cohorts, view)
	}

	summary.GlobalOrphans = make([]dto.ChainRecord, 0)
	for _, a := range result.UnassignedOrphans() {
		summary.GlobalOrphans = append(summary.GlobalOrphans, ChainRecordOf(a.Chain, a))
		if a.Chain.Status.IsInField() {
			summary.Totals.InFieldGlobalOrphansCount++
		}
	}
	summary.Totals.TotalInPossession = summary.Totals.TotalActiveGreen + summary.Totals.TotalExpiredRed + len(summary.GlobalOrphans)

	summary.InFieldSerials = InFieldSerials(result)
	summary.Metrics = ComputeMetrics(result, opts.Orders, now)
	return summary
}

func projectCohort(result *dto.ReconciliationResult, cohort *entities.Cohort, now time.Time) dto.CohortSummary {
	used := result.Ledger[cohort.ID]
	view := dto.CohortSummary{
		ID:                   cohort.ID,
		OrderID:              cohort.OrderID,
		SKU:                  string(cohort.SKU),
		CustomerID:           cohort.CustomerID,
		CSALength:            cohort.Length.String(),
		StartDate:            services.FormatDate(cohort.StartDate),
		EndDate:              services.FormatDate(cohort.EndDate),
		WarningDate:          services.FormatDate(cohort.WarningDate),
		InitialUnits:         len(cohort.Members),
		TotalCapacity:        cohort.TotalCapacity,
		ReplacementsUsed:     used,
		RemainingCapacity:    max(cohort.TotalCapacity-used, 0),
		ActiveSerialNumbers:  make([]string, 0),
		SKUBreakdown:         make(map[string]int),
		ValidatedChains:      make([]dto.ChainRecord, 0),
		AssignedOrphanChains: make([]dto.ChainRecord, 0),
		Units:                make([]dto.UnitRecord, 0),
		Status:               StatusActive,
	}

	if days, ok := cohort.DaysUntilExpiry(now); ok {
		view.DaysUntilExpiry = &days
		switch {
		case days < 0:
			view.Status = StatusExpired
			view.IsExpired = true
		case days <= entities.WarningLeadDays:
			view.Status = StatusWarning
		}
	}

	switch {
	case view.RemainingCapacity <= 0:
		view.ViewStatus = StatusMaxed
	case cohort.HasEndDate() && now.After(cohort.EndDate):
		view.ViewStatus = StatusExpired
	default:
		view.ViewStatus = StatusActive
	}

	add := func(chain *entities.ReplacementChain) {
		if chain.Status.IsInField() {
			view.InFieldCount++
			view.ActiveSerialNumbers = append(view.ActiveSerialNumbers, chain.FinalSerial())
		}
		view.SKUBreakdown[string(chain.SKU)]++
		view.Units = append(view.Units, UnitRecords(chain)...)
	}

	for _, chain := range result.ChainsForCohort(cohort.ID) {
		view.ValidatedChains = append(view.ValidatedChains, ChainRecordOf(chain, entities.OrphanAssignment{}))
		add(chain)
	}
	for _, a := range result.AssignedOrphans(cohort.ID) {
		view.AssignedOrphanChains = append(view.AssignedOrphanChains, ChainRecordOf(a.Chain, a))
		add(a.Chain)
	}
	return view
}

// ChainRecordOf serializes a chain. assignment is the zero value for validated chains.
func ChainRecordOf(chain *entities.ReplacementChain, assignment entities.OrphanAssignment) dto.ChainRecord {
	record := dto.ChainRecord{
		Kind:             chain.Kind.String(),
		SKU:              string(chain.SKU),
		Serials:          chain.Serials(),
		InstanceKeys:     make([]string, len(chain.Keys)),
		Handoffs:         make([]dto.HandoffRecord, len(chain.Handoffs)),
		FinalStatus:      string(chain.Status),
		FinalStatusLabel: chain.Status.Label(),
		StartSerial:      chain.StartSerial(),
		FinalSerial:      chain.FinalSerial(),
		InitialShipDate:  services.FormatDate(chain.InitialShipDate),
		AssignedCohort:   assignment.CohortID,
		AssignmentReason: assignment.Reason,
	}
	for i, k := range chain.Keys {
		record.InstanceKeys[i] = k.String()
	}
	for i, h := range chain.Handoffs {
		record.Handoffs[i] = dto.HandoffRecord{
			ReturnedSerial:      h.ReturnedSerial,
			ReturnDate:          services.FormatDate(h.ReturnDate),
			ReplacementSerial:   h.ReplacementSerial,
			ReplacementShipDate: services.FormatDate(h.ReplacementShipDate),
		}
	}
	return record
}

// UnitRecords lists a chain's serials: every unit but the last was replaced, and the last is
// active while in field, otherwise retired.
func UnitRecords(chain *entities.ReplacementChain) []dto.UnitRecord {
	units := make([]dto.UnitRecord, 0, chain.Len())
	for i, k := range chain.Keys {
		unit := dto.UnitRecord{
			Serial:        k.Serial,
			Model:         string(chain.SKU),
			ChainType:     chain.Kind.String(),
			ChainPosition: i + 1,
			ChainLength:   chain.Len(),
			IsLastInChain: i == chain.Len()-1,
		}
		switch {
		case !unit.IsLastInChain:
			unit.Status = UnitReplaced
			unit.ReplacementDate = services.FormatDate(chain.Handoffs[i].ReplacementShipDate)
		case chain.Status.IsInField():
			unit.Status = UnitActive
		default:
			unit.Status = UnitRetired
		}
		units = append(units, unit)
	}
	return units
}

// InFieldSerials returns the final serial of every in-field chain, unique and naturally sorted.
// These are the join keys for per-serial enrichment.
func InFieldSerials(result *dto.ReconciliationResult) []string {
	seen := make(map[string]struct{})
	serials := make([]string, 0)
	add := func(chain *entities.ReplacementChain) {
		if !chain.Status.IsInField() {
			return
		}
		serial := chain.FinalSerial()
		if _, ok := seen[serial]; ok {
			return
		}
		seen[serial] = struct{}{}
		serials = append(serials, serial)
	}

	for _, chain := range result.ValidatedChains {
		add(chain)
	}
	for _, a := range result.OrphanAssignments {
		add(a.Chain)
	}
	services.NewSerialComparator().SortSerials(serials)
	return serials
}

// FormatClinicName turns a clinic group key like "northside_pulmonary" into "Northside Pulmonary"
func FormatClinicName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}
