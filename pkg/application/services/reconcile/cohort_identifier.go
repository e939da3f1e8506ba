package reconcile

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

// CohortIdentifier finds CSA orders and assigns their shipped units to cohorts
type CohortIdentifier struct {
	extractor *ShipmentExtractor
	logger    *zap.Logger
}

// NewCohortIdentifier creates a cohort identifier sharing the extractor's SKU targets
func NewCohortIdentifier(extractor *ShipmentExtractor, logger *zap.Logger) *CohortIdentifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortIdentifier{extractor: extractor, logger: logger}
}

// Identify creates one cohort per tracked SKU on every CSA-qualifying order, stamps the
// cohort id on member instances and returns cohorts sorted by start date (undated last).
func (ci *CohortIdentifier) Identify(orders []entities.SalesOrder, registry repositories.InstanceRepository) ([]*entities.Cohort, error) {
	var cohorts []*entities.Cohort

	for _, order := range orders {
		isCSA, length := services.ClassifyOrder(order.LineItems)
		if !isCSA {
			continue
		}

		skus := ci.extractor.TargetSKUs(order)
		if len(skus) == 0 {
			ci.logger.Debug("CSA order ships no tracked SKU", zap.String("order", order.SalesOrderNumber))
			continue
		}
		if order.SalesOrderNumber == "" {
			ci.logger.Warn("CSA order without order number skipped")
			continue
		}

		shipments := ci.extractor.OrderShipments(order)
		for _, sku := range skus {
			cohort, err := ci.buildCohort(order, sku, len(skus) > 1, length, shipments, registry)
			if err != nil {
				return nil, err
			}
			cohorts = append(cohorts, cohort)
			ci.logger.Debug("cohort identified",
				zap.String("cohort", cohort.ID),
				zap.String("length", cohort.Length.String()),
				zap.Int("members", len(cohort.Members)),
				zap.String("start", services.FormatDate(cohort.StartDate)))
		}
	}

	SortCohorts(cohorts)
	return cohorts, nil
}

func (ci *CohortIdentifier) buildCohort(order entities.SalesOrder, sku entities.SKU, multiSKU bool, length entities.CSALength, shipments []entities.ShipmentEvent, registry repositories.InstanceRepository) (*entities.Cohort, error) {
	id := entities.CohortID(order.SalesOrderNumber, sku, multiSKU)

	var members []*entities.Instance
	var start time.Time
	seen := make(map[entities.InstanceKey]struct{})
	for _, shipment := range shipments {
		if shipment.SKU != sku {
			continue
		}
		key, err := entities.NewInstanceKey(shipment.Serial, shipment.OrderID, shipment.PackageID)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		instance, ok := registry.Get(key)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		members = append(members, instance)
		if instance.HasShipDate() && (start.IsZero() || instance.ShipDate.Before(start)) {
			start = instance.ShipDate
		}
	}
	if start.IsZero() {
		start, _ = services.ParseFlexibleDate(order.Date)
	}

	keys := make([]entities.InstanceKey, 0, len(members))
	for _, instance := range members {
		if err := instance.AssignCohort(id); err != nil {
			ci.logger.Warn("cohort assignment skipped", zap.String("cohort", id), zap.Error(err))
			continue
		}
		keys = append(keys, instance.Key)
	}

	return entities.NewCohort(id, order.SalesOrderNumber, sku, order.CustomerID, length, start, keys)
}

// SortCohorts orders cohorts by start date, undated cohorts last, keeping input order on ties
func SortCohorts(cohorts []*entities.Cohort) {
	sort.SliceStable(cohorts, func(i, j int) bool {
		a, b := cohorts[i].StartDate, cohorts[j].StartDate
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
}
