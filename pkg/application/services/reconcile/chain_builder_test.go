package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/memory"
)

func link(t *testing.T, registry *memory.InstanceRegistry, from, to entities.InstanceKey, returnDay int) {
	t.Helper()
	prev, ok := registry.Get(from)
	require.True(t, ok)
	next, ok := registry.Get(to)
	require.True(t, ok)
	if prev.Status == entities.InField {
		require.NoError(t, prev.MarkReturned(at(returnDay)))
	}
	require.NoError(t, prev.LinkReplacement(next))
}

func TestChainBuilder_ValidatedChain(t *testing.T) {
	registry := registryOf(t, shipment("S1", "SO-1", 0), shipment("S2", "SO-2", 20))
	a, b := key("S1", "SO-1", "SO-1-P1"), key("S2", "SO-2", "SO-2-P1")
	link(t, registry, a, b, 10)

	cohort, err := entities.NewCohort("SO-1", "SO-1", scopeSKU, testCustomer, entities.OneYear, at(0), []entities.InstanceKey{a})
	require.NoError(t, err)

	set := NewChainBuilder(zaptest.NewLogger(t)).Build([]*entities.Cohort{cohort}, registry)
	require.Len(t, set.Validated, 1)
	assert.Empty(t, set.Orphans)

	chain := set.Validated[0]
	assert.Equal(t, []entities.InstanceKey{a, b}, chain.Keys)
	assert.Equal(t, entities.StatusInField, chain.Status)
	require.Len(t, chain.Handoffs, 1)
	assert.Equal(t, at(10), chain.Handoffs[0].ReturnDate)
	assert.Equal(t, at(20), chain.Handoffs[0].ReplacementShipDate)
}

func TestChainBuilder_ReturnedWithoutReplacement(t *testing.T) {
	registry := registryOf(t, shipment("S9", "SO-9", 0))
	s9 := key("S9", "SO-9", "SO-9-P1")
	instance, _ := registry.Get(s9)
	require.NoError(t, instance.MarkReturned(at(5)))

	set := NewChainBuilder(nil).Build(nil, registry)
	require.Len(t, set.Orphans, 1)
	assert.Equal(t, entities.OrphanChain, set.Orphans[0].Kind)
	assert.Equal(t, entities.StatusNoReplacementFound, set.Orphans[0].Status)
}

func TestChainBuilder_CycleEndsReturnedReplaced(t *testing.T) {
	registry := registryOf(t, shipment("S1", "SO-1", 0), shipment("S2", "SO-2", 20))
	a, b := key("S1", "SO-1", "SO-1-P1"), key("S2", "SO-2", "SO-2-P1")
	link(t, registry, a, b, 10)
	link(t, registry, b, a, 30)

	set := NewChainBuilder(zaptest.NewLogger(t)).Build(nil, registry)
	require.Len(t, set.Orphans, 1)

	chain := set.Orphans[0]
	assert.Equal(t, []entities.InstanceKey{a, b}, chain.Keys)
	assert.Equal(t, entities.StatusReturnedReplaced, chain.Status)
	assert.Equal(t, "Returned & Replaced", chain.Status.Label())
}
