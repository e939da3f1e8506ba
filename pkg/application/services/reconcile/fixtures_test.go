package reconcile

import (
	"time"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

const (
	testCustomer = "C-100"
	scopeSKU     = "EB-1990i"
	otherSKU     = "EG-2990i"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) string {
	return epoch.AddDate(0, 0, n).Format("2006-01-02")
}

func at(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func scopeLine(sku string, serials ...string) entities.LineItem {
	return entities.LineItem{
		SKU:           sku,
		Name:          "Video Bronchoscope " + sku,
		Quantity:      float64(len(serials)),
		SerialNumbers: entities.NewRawField(serials),
	}
}

func csaLine(sku, name string) entities.LineItem {
	return entities.LineItem{SKU: sku, Name: name, Quantity: 1, Rate: 4800}
}

func shipped(number, date string, lines ...entities.LineItem) entities.Package {
	return entities.Package{PackageNumber: number, ShipmentDate: date, DetailedLineItems: lines}
}

func salesOrder(number, date string, lines []entities.LineItem, pkgs ...entities.Package) entities.SalesOrder {
	return entities.SalesOrder{
		SalesOrderNumber: number,
		CustomerID:       testCustomer,
		Date:             date,
		LineItems:        lines,
		Packages:         pkgs,
	}
}

// csaOrder ships serials of scopeSKU under a one-year agreement
func csaOrder(number string, shipDay int, serials ...string) entities.SalesOrder {
	return salesOrder(number, day(shipDay),
		[]entities.LineItem{csaLine("HIFCSA-1YR", "Scope CSA 1 Year")},
		shipped(number+"-P1", day(shipDay), scopeLine(scopeSKU, serials...)))
}

// plainOrder ships serials of scopeSKU without any agreement
func plainOrder(number string, shipDay int, serials ...string) entities.SalesOrder {
	return salesOrder(number, day(shipDay), nil,
		shipped(number+"-P1", day(shipDay), scopeLine(scopeSKU, serials...)))
}

func salesReturn(number string, receivedDay int, serials ...string) entities.SalesReturn {
	return entities.SalesReturn{
		SalesReturnNumber: number,
		Receipts: []entities.ReturnReceipt{{
			ReceiveNumber: number + "-R1",
			Date:          day(receivedDay),
			LineItems:     []entities.LineItem{scopeLine(scopeSKU, serials...)},
		}},
	}
}

func payload(orders []entities.SalesOrder, returns ...entities.SalesReturn) *entities.CustomerPayload {
	return &entities.CustomerPayload{
		CustomerID:   testCustomer,
		CustomerName: "northside_pulmonary",
		SalesOrders:  orders,
		SalesReturns: returns,
	}
}

func key(serial, order, pkg string) entities.InstanceKey {
	return entities.InstanceKey{Serial: serial, OrderID: order, PackageID: pkg}
}
