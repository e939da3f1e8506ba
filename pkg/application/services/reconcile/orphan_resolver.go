package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

// CapacityLedger tracks replacement slots consumed per cohort
type CapacityLedger map[string]int

// NewCapacityLedger counts the slots consumed by validated chains: one per replacement
func NewCapacityLedger(validated []*entities.ReplacementChain) CapacityLedger {
	ledger := make(CapacityLedger)
	for _, chain := range validated {
		if chain.CohortID == "" {
			continue
		}
		ledger[chain.CohortID] += chain.Replacements()
	}
	return ledger
}

// Remaining returns the cohort's unused replacement slots
func (l CapacityLedger) Remaining(cohort *entities.Cohort) int {
	return cohort.TotalCapacity - l[cohort.ID]
}

// OrphanResolver speculatively places orphan chains into cohorts with spare capacity
type OrphanResolver struct {
	logger *zap.Logger
}

// NewOrphanResolver creates a new orphan resolver
func NewOrphanResolver(logger *zap.Logger) *OrphanResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanResolver{logger: logger}
}

// Resolve assigns each orphan chain, in order, to a cohort of the same customer and SKU with
// a free slot for every unit of the chain. Among those, the latest cohort started on or before the orphan's initial
// ship date is preferred, then the earliest cohort. Every unit of an assigned orphan chain
// consumes one slot. The ledger is updated in place; cohorts are never mutated.
func (r *OrphanResolver) Resolve(cohorts []*entities.Cohort, orphans []*entities.ReplacementChain, ledger CapacityLedger) []entities.OrphanAssignment {
	assignments := make([]entities.OrphanAssignment, 0, len(orphans))

	for _, chain := range orphans {
		var candidates []*entities.Cohort
		for _, cohort := range cohorts {
			if cohort.CustomerID == chain.CustomerID && cohort.SKU == chain.SKU && ledger.Remaining(cohort) >= chain.Len() {
				candidates = append(candidates, cohort)
			}
		}

		if len(candidates) == 0 {
			assignments = append(assignments, entities.OrphanAssignment{
				Chain:  chain,
				Reason: fmt.Sprintf("No cohort with SKU %s has remaining replacement capacity", chain.SKU),
			})
			r.logger.Debug("orphan unassigned", zap.String("start", chain.StartSerial()), zap.String("sku", string(chain.SKU)))
			continue
		}

		target, reason := pickCohort(candidates, chain, ledger)
		ledger[target.ID] += chain.Len()
		assignments = append(assignments, entities.OrphanAssignment{
			Chain:    chain,
			CohortID: target.ID,
			Reason:   reason,
		})
		r.logger.Debug("orphan assigned",
			zap.String("start", chain.StartSerial()),
			zap.String("cohort", target.ID))
	}
	return assignments
}

// pickCohort expects candidates in cohort order (start date ascending, undated last)
func pickCohort(candidates []*entities.Cohort, chain *entities.ReplacementChain, ledger CapacityLedger) (*entities.Cohort, string) {
	if !chain.InitialShipDate.IsZero() {
		for i := len(candidates) - 1; i >= 0; i-- {
			cohort := candidates[i]
			if cohort.StartDate.IsZero() || cohort.StartDate.After(chain.InitialShipDate) {
				continue
			}
			return cohort, fmt.Sprintf("Initial ship date %s is on or after cohort %s start date %s; %d of %d replacement slots remaining",
				services.FormatDate(chain.InitialShipDate), cohort.ID, services.FormatDate(cohort.StartDate),
				ledger.Remaining(cohort), cohort.TotalCapacity)
		}
	}

	cohort := candidates[0]
	return cohort, fmt.Sprintf("Matched SKU %s to cohort %s; %d of %d replacement slots remaining",
		chain.SKU, cohort.ID, ledger.Remaining(cohort), cohort.TotalCapacity)
}
