package entities

import "time"

// ShipmentEvent is one serial observed in one package (or order line) of a sales order
type ShipmentEvent struct {
	Serial     string
	OrderID    string
	PackageID  string
	SKU        SKU
	CustomerID string
	Date       time.Time
	RawDate    string
	DateSource string
}

// ReturnEvent is the first receipt of a tracked serial on a sales return
type ReturnEvent struct {
	Serial        string
	RMANumber     string
	ReceiptNumber string
	Date          time.Time
}
