package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

func testCohort(t *testing.T, id string, startDay int, members int) *entities.Cohort {
	t.Helper()
	keys := make([]entities.InstanceKey, members)
	for i := range keys {
		keys[i] = key(id+"-S"+string(rune('A'+i)), id, id+"-P1")
	}
	var start time.Time
	if startDay >= 0 {
		start = at(startDay)
	}
	cohort, err := entities.NewCohort(id, id, scopeSKU, testCustomer, entities.OneYear, start, keys)
	require.NoError(t, err)
	return cohort
}

func orphanChain(serial string, shipDay int) *entities.ReplacementChain {
	return &entities.ReplacementChain{
		Kind:            entities.OrphanChain,
		SKU:             scopeSKU,
		CustomerID:      testCustomer,
		Keys:            []entities.InstanceKey{key(serial, "SO-X", "SO-X-P1")},
		Status:          entities.StatusInField,
		InitialShipDate: at(shipDay),
	}
}

func TestOrphanResolver_PrefersLatestCohortStartedBeforeShipment(t *testing.T) {
	cohorts := []*entities.Cohort{
		testCohort(t, "SO-1", 0, 1),
		testCohort(t, "SO-2", 100, 1),
		testCohort(t, "SO-3", 300, 1),
	}
	ledger := NewCapacityLedger(nil)

	assignments := NewOrphanResolver(nil).Resolve(cohorts, []*entities.ReplacementChain{
		orphanChain("X1", 150),
		orphanChain("X2", -10),
	}, ledger)

	require.Len(t, assignments, 2)
	assert.Equal(t, "SO-2", assignments[0].CohortID)
	assert.Contains(t, assignments[0].Reason, "SO-2")
	assert.Equal(t, "SO-1", assignments[1].CohortID)
	assert.Equal(t, 1, ledger["SO-1"])
	assert.Equal(t, 1, ledger["SO-2"])
}

func TestOrphanResolver_SkipsExhaustedAndForeignCohorts(t *testing.T) {
	full := testCohort(t, "SO-1", 0, 1)
	foreign := testCohort(t, "SO-2", 0, 1)
	foreign.CustomerID = "C-999"
	otherModel := testCohort(t, "SO-3", 0, 1)
	otherModel.SKU = otherSKU

	ledger := CapacityLedger{"SO-1": full.TotalCapacity}
	assignments := NewOrphanResolver(nil).Resolve(
		[]*entities.Cohort{full, foreign, otherModel},
		[]*entities.ReplacementChain{orphanChain("X1", 10)},
		ledger,
	)

	require.Len(t, assignments, 1)
	assert.False(t, assignments[0].Assigned())
	assert.Equal(t, entities.UnassignedBucket, assignments[0].Bucket())
	assert.Equal(t, full.TotalCapacity, ledger["SO-1"])
}

func TestOrphanResolver_ConsumesOneSlotPerUnit(t *testing.T) {
	cohort := testCohort(t, "SO-1", 0, 1)
	chain := orphanChain("X1", 10)
	chain.Keys = append(chain.Keys, key("X2", "SO-Y", "SO-Y-P1"), key("X3", "SO-Z", "SO-Z-P1"))

	ledger := NewCapacityLedger(nil)
	assignments := NewOrphanResolver(nil).Resolve([]*entities.Cohort{cohort}, []*entities.ReplacementChain{chain, orphanChain("X4", 20), orphanChain("X5", 30)}, ledger)

	require.Len(t, assignments, 3)
	assert.True(t, assignments[0].Assigned())
	assert.True(t, assignments[1].Assigned())
	assert.False(t, assignments[2].Assigned())
	assert.Equal(t, 4, ledger["SO-1"])
	assert.Equal(t, 0, ledger.Remaining(cohort))
}

func TestOrphanResolver_ChainMustFitRemainingCapacity(t *testing.T) {
	cohort := testCohort(t, "SO-1", 0, 1)
	long := orphanChain("X1", 10)
	long.Keys = append(long.Keys, key("X2", "SO-Y", "SO-Y-P1"), key("X3", "SO-Z", "SO-Z-P1"))

	ledger := CapacityLedger{"SO-1": 2}
	assignments := NewOrphanResolver(nil).Resolve([]*entities.Cohort{cohort}, []*entities.ReplacementChain{long, orphanChain("X4", 20)}, ledger)

	require.Len(t, assignments, 2)
	assert.False(t, assignments[0].Assigned())
	assert.True(t, assignments[1].Assigned())
	assert.Equal(t, 3, ledger["SO-1"])
	assert.Equal(t, 1, ledger.Remaining(cohort))
}

func TestNewCapacityLedger(t *testing.T) {
	ledger := NewCapacityLedger([]*entities.ReplacementChain{
		{CohortID: "SO-1", Handoffs: make([]entities.Handoff, 2)},
		{CohortID: "SO-1", Handoffs: make([]entities.Handoff, 1)},
		{CohortID: "SO-2"},
		{Handoffs: make([]entities.Handoff, 3)},
	})

	assert.Equal(t, CapacityLedger{"SO-1": 3, "SO-2": 0}, ledger)
}
