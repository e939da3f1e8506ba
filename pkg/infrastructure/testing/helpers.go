package testing

import (
	"fmt"
	"time"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

// ScopeSKU is the scope model the scenarios ship
const ScopeSKU = "EB-1990i"

// Epoch is day zero of every scenario
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Day formats the date n days after Epoch the way order exports do
func Day(n int) string {
	return Epoch.AddDate(0, 0, n).Format("2006-01-02")
}

// ScopeLine is a package line shipping the given serials of sku
func ScopeLine(sku string, serials ...string) entities.LineItem {
	return entities.LineItem{
		SKU:           sku,
		Name:          "Video Bronchoscope " + sku,
		Quantity:      float64(len(serials)),
		SerialNumbers: entities.NewRawField(serials),
	}
}

// CSAOrder ships serials of ScopeSKU on shipDay under a one-year agreement
func CSAOrder(customerID, number string, shipDay int, serials ...string) entities.SalesOrder {
	return entities.SalesOrder{
		SalesOrderNumber: number,
		CustomerID:       customerID,
		Date:             Day(shipDay),
		LineItems:        []entities.LineItem{{SKU: "HIFCSA-1YR", Name: "Scope CSA 1 Year", Quantity: 1, Rate: 4800}},
		Packages: []entities.Package{{
			PackageNumber:     number + "-P1",
			ShipmentDate:      Day(shipDay),
			DetailedLineItems: []entities.LineItem{ScopeLine(ScopeSKU, serials...)},
		}},
	}
}

// Return receives serials of ScopeSKU on receivedDay
func Return(number string, receivedDay int, serials ...string) entities.SalesReturn {
	return entities.SalesReturn{
		SalesReturnNumber: number,
		Receipts: []entities.ReturnReceipt{{
			ReceiveNumber: number + "-R1",
			Date:          Day(receivedDay),
			LineItems:     []entities.LineItem{ScopeLine(ScopeSKU, serials...)},
		}},
	}
}

// BuildReplacementScenario builds one agreement whose first scope is returned on day 30
// and replaced by a second package from the same order on day 40
func BuildReplacementScenario(customerID string) *entities.CustomerPayload {
	order := CSAOrder(customerID, "SO-1", 0, "S1")
	order.Packages = append(order.Packages, entities.Package{
		PackageNumber:     "SO-1-P2",
		ShipmentDate:      Day(40),
		DetailedLineItems: []entities.LineItem{ScopeLine(ScopeSKU, "S2")},
	})

	return &entities.CustomerPayload{
		CustomerID:   customerID,
		SalesOrders:  []entities.SalesOrder{order},
		SalesReturns: []entities.SalesReturn{Return("RMA-1", 30, "S1")},
	}
}

// BuildClinicPayload builds one single-scope agreement per contact, shipping serial "S-<contact>"
func BuildClinicPayload(contactIDs ...string) *entities.CustomerPayload {
	payload := &entities.CustomerPayload{}
	if len(contactIDs) > 0 {
		payload.CustomerID = contactIDs[0]
	}
	for i, id := range contactIDs {
		payload.SalesOrders = append(payload.SalesOrders, CSAOrder(id, fmt.Sprintf("SO-%s-%d", id, i), 4, "S-"+id))
	}
	return payload
}
