package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/infrastructure/events"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	engine, err := NewEngine(EngineConfig{TargetSKUs: []entities.SKU{scopeSKU, otherSKU}}, opts...)
	require.NoError(t, err)
	return engine
}

func reconcile(t *testing.T, p *entities.CustomerPayload) *dto.ReconciliationResult {
	t.Helper()
	result, err := newTestEngine(t).Reconcile(context.Background(), p)
	require.NoError(t, err)
	return result
}

func TestNewEngine_RequiresTargetSKUs(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{TargetSKUs: []entities.SKU{""}})
	assert.Error(t, err)
}

func TestReconcile_SimpleValidatedChain(t *testing.T) {
	order := salesOrder("SO-1", day(0),
		[]entities.LineItem{csaLine("HIFCSA-1YR", "Scope CSA 1 Year")},
		shipped("PKG-1", day(0), scopeLine(scopeSKU, "S1")),
		shipped("PKG-2", day(40), scopeLine(scopeSKU, "S2")),
	)
	result := reconcile(t, payload([]entities.SalesOrder{order}, salesReturn("RMA-1", 30, "S1")))

	require.Len(t, result.Cohorts, 1)
	cohort := result.Cohorts[0]
	assert.Equal(t, "SO-1", cohort.ID)
	assert.Equal(t, entities.OneYear, cohort.Length)
	assert.Equal(t, at(0), cohort.StartDate)
	assert.Equal(t, at(0).AddDate(1, 0, 0), cohort.EndDate)
	assert.Equal(t, at(0).AddDate(1, 0, -60), cohort.WarningDate)

	require.Len(t, result.ValidatedChains, 1)
	chain := result.ValidatedChains[0]
	assert.Equal(t, []string{"S1", "S2"}, chain.Serials())
	assert.Equal(t, []entities.InstanceKey{key("S1", "SO-1", "PKG-1"), key("S2", "SO-1", "PKG-2")}, chain.Keys)
	assert.Equal(t, entities.StatusInField, chain.Status)
	assert.Equal(t, "In Field", chain.Status.Label())
	require.Len(t, chain.Handoffs, 1)
	assert.Equal(t, entities.Handoff{
		ReturnedSerial:      "S1",
		ReturnDate:          at(30),
		ReplacementSerial:   "S2",
		ReplacementShipDate: at(40),
	}, chain.Handoffs[0])

	assert.Empty(t, result.OrphanAssignments)
	assert.Equal(t, 1, result.Ledger["SO-1"])
	assert.Equal(t, 1, result.Stats.ReplacementLinks)
}

func TestReconcile_OrphanWithNoHome(t *testing.T) {
	result := reconcile(t, payload(
		[]entities.SalesOrder{plainOrder("SO-9", 0, "S9")},
		salesReturn("RMA-9", 30, "S9"),
	))

	assert.Empty(t, result.Cohorts)
	assert.Empty(t, result.ValidatedChains)
	require.Len(t, result.OrphanAssignments, 1)

	orphan := result.OrphanAssignments[0]
	assert.False(t, orphan.Assigned())
	assert.Equal(t, entities.UnassignedBucket, orphan.Bucket())
	assert.Equal(t, []string{"S9"}, orphan.Chain.Serials())
	assert.Equal(t, entities.StatusNoReplacementFound, orphan.Chain.Status)
	assert.Equal(t, "Returned (No Replacement Found)", orphan.Chain.Status.Label())
	assert.Equal(t, at(0), orphan.Chain.InitialShipDate)
	assert.Len(t, result.UnassignedOrphans(), 1)
}

// exhaustedPayload builds a one-unit cohort whose four replacement slots are all used
func exhaustedPayload(extra ...entities.SalesOrder) *entities.CustomerPayload {
	orders := []entities.SalesOrder{
		csaOrder("SO-1", 0, "S1"),
		plainOrder("SO-2", 40, "R1"),
		plainOrder("SO-3", 80, "R2"),
		plainOrder("SO-4", 120, "R3"),
		plainOrder("SO-5", 160, "R4"),
		plainOrder("SO-6", -100, "X1"),
	}
	return payload(append(orders, extra...),
		salesReturn("RMA-1", 30, "S1"),
		salesReturn("RMA-2", 70, "R1"),
		salesReturn("RMA-3", 110, "R2"),
		salesReturn("RMA-4", 150, "R3"),
	)
}

func TestReconcile_CapacityExhaustion(t *testing.T) {
	result := reconcile(t, exhaustedPayload())

	require.Len(t, result.Cohorts, 1)
	assert.Equal(t, 4, result.Cohorts[0].TotalCapacity)

	require.Len(t, result.ValidatedChains, 1)
	chain := result.ValidatedChains[0]
	assert.Equal(t, []string{"S1", "R1", "R2", "R3", "R4"}, chain.Serials())
	assert.Equal(t, 4, chain.Replacements())
	assert.Equal(t, entities.StatusInField, chain.Status)
	assert.Equal(t, 4, result.Ledger["SO-1"])

	require.Len(t, result.OrphanAssignments, 1)
	orphan := result.OrphanAssignments[0]
	assert.Equal(t, []string{"X1"}, orphan.Chain.Serials())
	assert.False(t, orphan.Assigned())
	assert.Equal(t, entities.UnassignedBucket, orphan.Bucket())
}

func TestReconcile_CapacityCapDetachesSuccessor(t *testing.T) {
	p := exhaustedPayload(plainOrder("SO-7", 200, "R5"))
	p.SalesReturns = append(p.SalesReturns, salesReturn("RMA-5", 190, "R4"))

	result := reconcile(t, p)

	require.Len(t, result.ValidatedChains, 1)
	chain := result.ValidatedChains[0]
	assert.Equal(t, []string{"S1", "R1", "R2", "R3", "R4"}, chain.Serials())
	assert.Equal(t, entities.StatusNoReplacementAvailable, chain.Status)

	var serials [][]string
	for _, a := range result.OrphanAssignments {
		serials = append(serials, a.Chain.Serials())
		assert.False(t, a.Assigned())
	}
	assert.ElementsMatch(t, [][]string{{"X1"}, {"R5"}}, serials)
}

func TestReconcile_OrphanAssignedToCohortWithCapacity(t *testing.T) {
	result := reconcile(t, payload([]entities.SalesOrder{
		csaOrder("SO-1", 0, "S1", "S2"),
		plainOrder("SO-2", 10, "X1"),
	}))

	require.Len(t, result.OrphanAssignments, 1)
	orphan := result.OrphanAssignments[0]
	assert.True(t, orphan.Assigned())
	assert.Equal(t, "SO-1", orphan.CohortID)
	assert.NotEmpty(t, orphan.Reason)
	assert.Equal(t, 1, result.Ledger["SO-1"])
	assert.Len(t, result.AssignedOrphans("SO-1"), 1)
	assert.Empty(t, result.UnassignedOrphans())
}

func TestReconcile_CSANameRequiresEveryKeyword(t *testing.T) {
	tests := []struct {
		name       string
		itemName   string
		wantCohort bool
	}{
		{"missing prepaid", "CSA Annual", false},
		{"all keywords", "Prepaid CSA Plan", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := salesOrder("SO-1", day(0),
				[]entities.LineItem{csaLine("SVC-001", tt.itemName)},
				shipped("PKG-1", day(0), scopeLine(scopeSKU, "S1")))
			result := reconcile(t, payload([]entities.SalesOrder{order}))

			if !tt.wantCohort {
				assert.Empty(t, result.Cohorts)
				require.Len(t, result.OrphanAssignments, 1)
				return
			}
			require.Len(t, result.Cohorts, 1)
			assert.Equal(t, entities.LengthUnknown, result.Cohorts[0].Length)
			assert.False(t, result.Cohorts[0].HasEndDate())
			assert.Len(t, result.ValidatedChains, 1)
		})
	}
}

func TestReconcile_ReplacementWindowIsExclusive(t *testing.T) {
	tests := []struct {
		name        string
		replacement int
		wantLinked  bool
	}{
		{"same day as return", 10, false},
		{"day after return", 11, true},
		{"89 days after return", 99, true},
		{"exactly 90 days after return", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := reconcile(t, payload(
				[]entities.SalesOrder{csaOrder("SO-1", 0, "S1"), plainOrder("SO-2", tt.replacement, "S2")},
				salesReturn("RMA-1", 10, "S1"),
			))

			returned, ok := result.Instance(key("S1", "SO-1", "SO-1-P1"))
			require.True(t, ok)
			assert.Equal(t, entities.Returned, returned.Status)
			assert.Equal(t, tt.wantLinked, returned.ReplacedBy != nil)
		})
	}
}

func TestReconcile_EarliestReplacementWins(t *testing.T) {
	result := reconcile(t, payload(
		[]entities.SalesOrder{
			csaOrder("SO-1", 0, "S1"),
			plainOrder("SO-2", 60, "LATE"),
			plainOrder("SO-3", 45, "EARLY"),
		},
		salesReturn("RMA-1", 30, "S1"),
	))

	require.Len(t, result.ValidatedChains, 1)
	assert.Equal(t, []string{"S1", "EARLY"}, result.ValidatedChains[0].Serials())
	require.Len(t, result.OrphanAssignments, 1)
	assert.Equal(t, []string{"LATE"}, result.OrphanAssignments[0].Chain.Serials())
}

func TestReconcile_EmptyPayload(t *testing.T) {
	result := reconcile(t, payload(nil))

	assert.Empty(t, result.Cohorts)
	assert.Empty(t, result.ValidatedChains)
	assert.Empty(t, result.OrphanAssignments)
	assert.Empty(t, result.Instances)
}

func TestReconcile_InvalidInputShape(t *testing.T) {
	_, err := newTestEngine(t).Reconcile(context.Background(), nil)
	assert.ErrorIs(t, err, entities.ErrInvalidInputShape)

	var p entities.CustomerPayload
	err = json.Unmarshal([]byte(`{"customer_id":"C-1","sales_orders":{"salesorder_number":"SO-1"}}`), &p)
	assert.ErrorIs(t, err, entities.ErrInvalidInputShape)
}

func TestReconcile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t).Reconcile(ctx, payload(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcile_PublishesAuditTrail(t *testing.T) {
	store := events.NewMemoryStore(0, zaptest.NewLogger(t))
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, WithEventStore(store, func() time.Time { return stamp }))

	_, err := engine.Reconcile(context.Background(), payload(
		[]entities.SalesOrder{csaOrder("SO-1", 0, "S1"), plainOrder("SO-2", 40, "S2"), plainOrder("SO-3", 0, "S3")},
		salesReturn("RMA-1", 30, "S1"),
		salesReturn("RMA-2", 35, "S3"),
	))
	require.NoError(t, err)

	recorded := store.Read(testCustomer, 1)
	require.NotEmpty(t, recorded)

	counts := events.CountByType(recorded)
	assert.Equal(t, 1, counts[events.ReconciliationStartedEvent])
	assert.Equal(t, 1, counts[events.ReconciliationCompletedEvent])
	assert.Equal(t, 1, counts[events.CohortIdentifiedEvent])
	assert.Equal(t, 1, counts[events.ReturnMatchedEvent])
	assert.Equal(t, 1, counts[events.ReturnUnmatchedEvent])
	assert.Equal(t, 1, counts[events.OrphanAssignedEvent])

	assert.Equal(t, events.ReconciliationStartedEvent, recorded[0].Type)
	assert.Equal(t, events.ReconciliationCompletedEvent, recorded[len(recorded)-1].Type)
	for _, e := range recorded {
		assert.Equal(t, stamp, e.At)
		if e.Type != events.ReturnMatchedEvent {
			continue
		}
		matched, ok := e.Data.(events.ReturnMatched)
		require.True(t, ok)
		assert.Equal(t, key("S1", "SO-1", "SO-1-P1").String(), matched.ReturnedKey)
		assert.Equal(t, key("S2", "SO-2", "SO-2-P1").String(), matched.ReplacementKey)
		assert.Equal(t, day(30), matched.ReturnDate)
		assert.Equal(t, day(40), matched.ShipDate)
	}
}
