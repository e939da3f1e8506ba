package reconcile

import (
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

// ShipmentExtractor finds serials of the tracked SKUs in sales orders
type ShipmentExtractor struct {
	targets map[entities.SKU]struct{}
	logger  *zap.Logger
}

// NewShipmentExtractor creates an extractor for the given target SKUs
func NewShipmentExtractor(targetSKUs []entities.SKU, logger *zap.Logger) *ShipmentExtractor {
	targets := make(map[entities.SKU]struct{}, len(targetSKUs))
	for _, sku := range targetSKUs {
		targets[sku] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShipmentExtractor{targets: targets, logger: logger}
}

// IsTarget reports whether sku is tracked
func (e *ShipmentExtractor) IsTarget(sku string) bool {
	_, ok := e.targets[entities.SKU(sku)]
	return ok
}

// Extract returns shipment events for every order in input order
func (e *ShipmentExtractor) Extract(orders []entities.SalesOrder) []entities.ShipmentEvent {
	var events []entities.ShipmentEvent
	for _, order := range orders {
		events = append(events, e.OrderShipments(order)...)
	}
	return events
}

// OrderShipments returns the shipment events of a single order. Package lines come first, then
// order lines keyed by NoPackage and dated by the order date. A serial listed both in a package and
// on the order yields one event for each.
func (e *ShipmentExtractor) OrderShipments(order entities.SalesOrder) []entities.ShipmentEvent {
	var events []entities.ShipmentEvent

	for _, pkg := range order.Packages {
		packageID := PackageID(pkg)
		date, source, _ := PackageDate(order, pkg)

		for _, line := range pkg.Items() {
			if !e.IsTarget(line.SKU) {
				continue
			}
			for _, serial := range services.ExtractSerials(line).Serials {
				events = append(events, entities.ShipmentEvent{
					Serial:     serial,
					OrderID:    order.SalesOrderNumber,
					PackageID:  packageID,
					SKU:        entities.SKU(line.SKU),
					CustomerID: order.CustomerID,
					Date:       date,
					RawDate:    source.Value,
					DateSource: source.Source,
				})
			}
		}
	}

	orderDate, _ := services.ParseFlexibleDate(order.Date)
	for _, line := range order.LineItems {
		if !e.IsTarget(line.SKU) {
			continue
		}
		extraction := services.ExtractSerials(line)
		for _, serial := range extraction.Serials {
			events = append(events, entities.ShipmentEvent{
				Serial:     serial,
				OrderID:    order.SalesOrderNumber,
				PackageID:  entities.NoPackage,
				SKU:        entities.SKU(line.SKU),
				CustomerID: order.CustomerID,
				Date:       orderDate,
				RawDate:    order.Date,
				DateSource: "salesorder.date",
			})
		}
		if extraction.Kind == services.SourceCustomField {
			e.logger.Debug("serials read from custom field",
				zap.String("order", order.SalesOrderNumber),
				zap.String("field", extraction.Field),
				zap.Int("count", len(extraction.Serials)))
		}
	}
	return events
}

// TargetSKUs returns the tracked SKUs present on an order, in first-seen order
func (e *ShipmentExtractor) TargetSKUs(order entities.SalesOrder) []entities.SKU {
	var skus []entities.SKU
	seen := make(map[entities.SKU]struct{})
	add := func(sku string) {
		if !e.IsTarget(sku) {
			return
		}
		if _, ok := seen[entities.SKU(sku)]; ok {
			return
		}
		seen[entities.SKU(sku)] = struct{}{}
		skus = append(skus, entities.SKU(sku))
	}

	for _, pkg := range order.Packages {
		for _, line := range pkg.Items() {
			add(line.SKU)
		}
	}
	for _, line := range order.LineItems {
		add(line.SKU)
	}
	return skus
}

// PackageID returns the package number, the shipment number, or NoPackage
func PackageID(pkg entities.Package) string {
	if pkg.PackageNumber != "" {
		return pkg.PackageNumber
	}
	if pkg.ShipmentOrder != nil && pkg.ShipmentOrder.ShipmentNumber != "" {
		return pkg.ShipmentOrder.ShipmentNumber
	}
	return entities.NoPackage
}

// PackageDate resolves a package's date: shipment-order delivery, package delivery,
// shipment-order ship, package ship, then order date.
func PackageDate(order entities.SalesOrder, pkg entities.Package) (time.Time, services.DateCandidate, bool) {
	var shipment entities.ShipmentOrder
	if pkg.ShipmentOrder != nil {
		shipment = *pkg.ShipmentOrder
	}
	return services.FirstParsedDate(
		services.DateCandidate{Source: "shipment_order.delivery_date", Value: shipment.DeliveryDate},
		services.DateCandidate{Source: "package.delivery_date", Value: pkg.DeliveryDate},
		services.DateCandidate{Source: "shipment_order.shipment_date", Value: shipment.ShipmentDate},
		services.DateCandidate{Source: "package.shipment_date", Value: pkg.ShipmentDate},
		services.DateCandidate{Source: "salesorder.date", Value: order.Date},
	)
}
