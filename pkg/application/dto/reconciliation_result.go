package dto

import (
	"github.com/vsinha/csatrack/pkg/domain/entities"
)

// RunStats counts what one reconciliation run saw
type RunStats struct {
	SalesOrders      int
	SalesReturns     int
	ShipmentEvents   int
	Instances        int
	RejectedEvents   int
	ReturnEvents     int
	UnknownReturns   int
	RepeatReturns    int
	UndatedReceipts  int
	ReplacementLinks int
}

// ReconciliationResult contains the complete output of a reconciliation run
type ReconciliationResult struct {
	CustomerID        string
	CustomerName      string
	TargetSKUs        []entities.SKU
	Cohorts           []*entities.Cohort
	ValidatedChains   []*entities.ReplacementChain
	OrphanAssignments []entities.OrphanAssignment
	Instances         []entities.Instance
	Ledger            map[string]int
	Stats             RunStats
}

// AssignedOrphans returns the orphan assignments placed in a cohort
func (r *ReconciliationResult) AssignedOrphans(cohortID string) []entities.OrphanAssignment {
	var result []entities.OrphanAssignment
	for _, a := range r.OrphanAssignments {
		if a.CohortID == cohortID {
			result = append(result, a)
		}
	}
	return result
}

// UnassignedOrphans returns the globally unassigned orphan chains
func (r *ReconciliationResult) UnassignedOrphans() []entities.OrphanAssignment {
	var result []entities.OrphanAssignment
	for _, a := range r.OrphanAssignments {
		if !a.Assigned() {
			result = append(result, a)
		}
	}
	return result
}

// ChainsForCohort returns the validated chains of a cohort in build order
func (r *ReconciliationResult) ChainsForCohort(cohortID string) []*entities.ReplacementChain {
	var result []*entities.ReplacementChain
	for _, c := range r.ValidatedChains {
		if c.CohortID == cohortID {
			result = append(result, c)
		}
	}
	return result
}

// Instance returns the snapshot of an instance by key
func (r *ReconciliationResult) Instance(key entities.InstanceKey) (entities.Instance, bool) {
	for _, inst := range r.Instances {
		if inst.Key == key {
			return inst, true
		}
	}
	return entities.Instance{}, false
}
