package reconcile

import (
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
)

// ChainSet holds the chains of one run
type ChainSet struct {
	Validated []*entities.ReplacementChain
	Orphans   []*entities.ReplacementChain
}

// ChainBuilder walks replacement edges into chains
type ChainBuilder struct {
	logger *zap.Logger
}

// NewChainBuilder creates a new chain builder
func NewChainBuilder(logger *zap.Logger) *ChainBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainBuilder{logger: logger}
}

// traversal carries the visited set and the per-cohort slot usage of one Build call
type traversal struct {
	registry repositories.InstanceRepository
	visited  map[entities.InstanceKey]struct{}
	detached map[entities.InstanceKey]struct{}
	used     map[string]int
}

// Build runs the validated pass over cohort members and then the orphan pass over every
// remaining chain start. Each registered instance ends up in exactly one chain.
func (b *ChainBuilder) Build(cohorts []*entities.Cohort, registry repositories.InstanceRepository) ChainSet {
	t := &traversal{
		registry: registry,
		visited:  make(map[entities.InstanceKey]struct{}, registry.Len()),
		detached: make(map[entities.InstanceKey]struct{}),
		used:     make(map[string]int, len(cohorts)),
	}
	var set ChainSet

	for _, cohort := range cohorts {
		for _, key := range cohort.Members {
			start, ok := registry.Get(key)
			if !ok || t.isVisited(key) || !start.IsChainStart() {
				continue
			}
			chain := t.walk(start, entities.ValidatedChain, cohort)
			set.Validated = append(set.Validated, chain)
		}
	}

	covered := make(map[string]struct{}, len(cohorts))
	for _, cohort := range cohorts {
		covered[cohort.ID] = struct{}{}
	}

	for _, instance := range registry.All() {
		if t.isVisited(instance.Key) || !t.isStart(instance) {
			continue
		}
		if _, ok := covered[instance.CohortID]; instance.CohortID != "" && !ok {
			continue
		}
		set.Orphans = append(set.Orphans, t.walk(instance, entities.OrphanChain, nil))
	}

	// Instances only reachable through a cycle.
	for _, instance := range registry.All() {
		if t.isVisited(instance.Key) {
			continue
		}
		b.logger.Warn("instance unreachable from any chain start", zap.String("instance", instance.Key.String()))
		set.Orphans = append(set.Orphans, t.walk(instance, entities.OrphanChain, nil))
	}

	b.logger.Debug("chains built",
		zap.Int("validated", len(set.Validated)),
		zap.Int("orphans", len(set.Orphans)))
	return set
}

func (t *traversal) isVisited(key entities.InstanceKey) bool {
	_, ok := t.visited[key]
	return ok
}

func (t *traversal) isStart(instance *entities.Instance) bool {
	if instance.IsChainStart() {
		return true
	}
	_, ok := t.detached[instance.Key]
	return ok
}

// walk follows replacedBy edges from start. For validated chains every hop consumes one
// replacement slot of the cohort; once capacity is spent the chain ends and the successor is
// detached to start its own orphan chain.
func (t *traversal) walk(start *entities.Instance, kind entities.ChainKind, cohort *entities.Cohort) *entities.ReplacementChain {
	chain := &entities.ReplacementChain{
		Kind:            kind,
		CohortID:        start.CohortID,
		SKU:             start.SKU,
		CustomerID:      start.CustomerID,
		Keys:            []entities.InstanceKey{start.Key},
		InitialShipDate: start.ShipDate,
	}
	if cohort != nil {
		chain.CohortID = cohort.ID
		chain.CustomerID = cohort.CustomerID
	}
	t.visited[start.Key] = struct{}{}

	current := start
	capped := false
	for current.ReplacedBy != nil {
		next, ok := t.registry.Get(*current.ReplacedBy)
		if !ok || t.isVisited(next.Key) {
			break
		}
		if cohort != nil && t.used[cohort.ID] >= cohort.TotalCapacity {
			t.detached[next.Key] = struct{}{}
			capped = true
			break
		}
		if cohort != nil {
			t.used[cohort.ID]++
		}

		chain.Keys = append(chain.Keys, next.Key)
		chain.Handoffs = append(chain.Handoffs, entities.Handoff{
			ReturnedSerial:      current.Key.Serial,
			ReturnDate:          current.RMADate,
			ReplacementSerial:   next.Key.Serial,
			ReplacementShipDate: next.ShipDate,
		})
		t.visited[next.Key] = struct{}{}
		current = next
	}

	switch {
	case current.Status == entities.InField:
		chain.Status = entities.StatusInField
	case capped:
		chain.Status = entities.StatusNoReplacementAvailable
	case current.ReplacedBy != nil:
		// the successor already closed another chain
		chain.Status = entities.StatusReturnedReplaced
	default:
		chain.Status = entities.StatusNoReplacementFound
	}
	return chain
}
