package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
	"github.com/vsinha/csatrack/pkg/infrastructure/events"
	"github.com/vsinha/csatrack/pkg/infrastructure/repositories/memory"
)

// EngineConfig holds configuration for the reconciliation engine
type EngineConfig struct {
	// TargetSKUs are the equipment SKUs whose serials are tracked
	TargetSKUs []entities.SKU
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventStore records an audit trail of every run. clock stamps the events.
func WithEventStore(store events.Store, clock func() time.Time) Option {
	return func(e *Engine) {
		e.events = store
		e.clock = clock
	}
}

// Engine rebuilds cohorts, chains and orphan assignments from a raw customer payload.
// Runs share no mutable state, so one Engine may serve concurrent calls.
type Engine struct {
	config EngineConfig
	logger *zap.Logger
	tracer trace.Tracer
	events events.Store
	clock  func() time.Time
}

// NewEngine creates a new reconciliation engine
func NewEngine(config EngineConfig, opts ...Option) (*Engine, error) {
	if len(config.TargetSKUs) == 0 {
		return nil, fmt.Errorf("at least one target SKU is required")
	}
	for _, sku := range config.TargetSKUs {
		if sku == "" {
			return nil, fmt.Errorf("target SKU cannot be empty")
		}
	}

	e := &Engine{
		config: config,
		logger: zap.NewNop(),
		tracer: otel.Tracer("csatrack/reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reconcile runs the full pipeline over one customer's payload. The result depends only on
// the payload: no wall-clock reads happen here.
func (e *Engine) Reconcile(ctx context.Context, payload *entities.CustomerPayload) (*dto.ReconciliationResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is nil", entities.ErrInvalidInputShape)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "reconcile.run",
		trace.WithAttributes(
			attribute.String("customer.id", payload.CustomerID),
			attribute.Int("sales_orders", len(payload.SalesOrders)),
			attribute.Int("sales_returns", len(payload.SalesReturns)),
		),
	)
	defer span.End()

	stream := payload.CustomerID
	if stream == "" {
		stream = payload.CustomerName
	}
	e.publish(stream, events.ReconciliationStartedEvent, events.ReconciliationStarted{
		CustomerID:   payload.CustomerID,
		TargetSKUs:   skuStrings(e.config.TargetSKUs),
		SalesOrders:  len(payload.SalesOrders),
		SalesReturns: len(payload.SalesReturns),
	})

	stats := dto.RunStats{SalesOrders: len(payload.SalesOrders), SalesReturns: len(payload.SalesReturns)}

	extractor := NewShipmentExtractor(e.config.TargetSKUs, e.logger)
	shipments := extractor.Extract(payload.SalesOrders)
	stats.ShipmentEvents = len(shipments)

	registry := memory.NewInstanceRegistry(len(shipments))
	for _, shipment := range shipments {
		if _, _, err := registry.Add(shipment); err != nil {
			stats.RejectedEvents++
			e.logger.Debug("shipment event rejected", zap.Error(err))
		}
	}
	stats.Instances = registry.Len()

	matcher := NewReturnMatcher(e.logger)
	returnEvents, extractStats := matcher.ExtractReturns(payload.SalesReturns, registry)
	matchStats := matcher.Match(returnEvents, registry)
	stats.ReturnEvents = extractStats.ReturnEvents
	stats.UnknownReturns = extractStats.UnknownSerials
	stats.RepeatReturns = extractStats.RepeatReturns
	stats.UndatedReceipts = extractStats.UndatedReceipts
	stats.ReplacementLinks = matchStats.ReplacementLinks
	span.AddEvent("returns matched", trace.WithAttributes(attribute.Int("links", matchStats.ReplacementLinks)))

	cohorts, err := NewCohortIdentifier(extractor, e.logger).Identify(payload.SalesOrders, registry)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("identifying cohorts: %w", err)
	}

	chains := NewChainBuilder(e.logger).Build(cohorts, registry)
	ledger := NewCapacityLedger(chains.Validated)
	assignments := NewOrphanResolver(e.logger).Resolve(cohorts, chains.Orphans, ledger)

	result := &dto.ReconciliationResult{
		CustomerID:        payload.CustomerID,
		CustomerName:      payload.CustomerName,
		TargetSKUs:        append([]entities.SKU(nil), e.config.TargetSKUs...),
		Cohorts:           cohorts,
		ValidatedChains:   chains.Validated,
		OrphanAssignments: assignments,
		Instances:         snapshot(registry.All()),
		Ledger:            ledger,
		Stats:             stats,
	}

	e.publishResult(stream, result)
	unassigned := len(result.UnassignedOrphans())
	span.SetAttributes(
		attribute.Int("cohorts", len(cohorts)),
		attribute.Int("chains.validated", len(chains.Validated)),
		attribute.Int("chains.orphan", len(chains.Orphans)),
		attribute.Int("orphans.unassigned", unassigned),
	)
	e.logger.Info("reconciliation complete",
		zap.String("customer", stream),
		zap.Int("instances", stats.Instances),
		zap.Int("cohorts", len(cohorts)),
		zap.Int("validated_chains", len(chains.Validated)),
		zap.Int("orphan_chains", len(chains.Orphans)),
		zap.Int("unassigned", unassigned))
	return result, nil
}

func (e *Engine) publish(stream, eventType string, data interface{}) {
	if e.events == nil || stream == "" {
		return
	}
	var at time.Time
	if e.clock != nil {
		at = e.clock()
	}
	if _, err := e.events.Append(stream, eventType, data, at); err != nil {
		e.logger.Warn("audit event dropped", zap.String("type", eventType), zap.Error(err))
	}
}

func (e *Engine) publishResult(stream string, result *dto.ReconciliationResult) {
	if e.events == nil {
		return
	}

	shipDates := make(map[entities.InstanceKey]time.Time, len(result.Instances))
	for _, inst := range result.Instances {
		shipDates[inst.Key] = inst.ShipDate
	}

	for _, inst := range result.Instances {
		if inst.Status != entities.Returned {
			continue
		}
		if inst.ReplacedBy == nil {
			e.publish(stream, events.ReturnUnmatchedEvent, events.ReturnUnmatched{
				ReturnedKey: inst.Key.String(),
				ReturnDate:  services.FormatDate(inst.RMADate),
			})
			continue
		}
		e.publish(stream, events.ReturnMatchedEvent, events.ReturnMatched{
			ReturnedKey:    inst.Key.String(),
			ReplacementKey: inst.ReplacedBy.String(),
			ReturnDate:     services.FormatDate(inst.RMADate),
			ShipDate:       services.FormatDate(shipDates[*inst.ReplacedBy]),
		})
	}

	for _, cohort := range result.Cohorts {
		e.publish(stream, events.CohortIdentifiedEvent, events.CohortIdentified{
			CohortID:      cohort.ID,
			SKU:           string(cohort.SKU),
			CSALength:     cohort.Length.String(),
			StartDate:     services.FormatDate(cohort.StartDate),
			Members:       len(cohort.Members),
			TotalCapacity: cohort.TotalCapacity,
		})
	}

	for _, chain := range result.ValidatedChains {
		e.publish(stream, events.ChainBuiltEvent, chainBuilt(chain))
	}
	for _, a := range result.OrphanAssignments {
		e.publish(stream, events.ChainBuiltEvent, chainBuilt(a.Chain))
		if a.Assigned() {
			e.publish(stream, events.OrphanAssignedEvent, events.OrphanAssigned{
				StartSerial: a.Chain.StartSerial(),
				CohortID:    a.CohortID,
				Reason:      a.Reason,
			})
			continue
		}
		e.publish(stream, events.OrphanUnassignedEvent, events.OrphanUnassigned{
			StartSerial: a.Chain.StartSerial(),
			SKU:         string(a.Chain.SKU),
			Reason:      a.Reason,
		})
	}

	e.publish(stream, events.ReconciliationCompletedEvent, events.ReconciliationCompleted{
		CustomerID:      result.CustomerID,
		Instances:       len(result.Instances),
		Cohorts:         len(result.Cohorts),
		ValidatedChains: len(result.ValidatedChains),
		OrphanChains:    len(result.OrphanAssignments),
		Unassigned:      len(result.UnassignedOrphans()),
	})
}

func chainBuilt(chain *entities.ReplacementChain) events.ChainBuilt {
	return events.ChainBuilt{
		Kind:        chain.Kind.String(),
		CohortID:    chain.CohortID,
		Serials:     chain.Serials(),
		FinalStatus: string(chain.Status),
	}
}

func snapshot(instances []*entities.Instance) []entities.Instance {
	result := make([]entities.Instance, len(instances))
	for i, inst := range instances {
		result[i] = *inst
	}
	return result
}

func skuStrings(skus []entities.SKU) []string {
	result := make([]string, len(skus))
	for i, sku := range skus {
		result[i] = string(sku)
	}
	return result
}
