package entities

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidInputShape is returned when a required container is present but not a JSON array
	ErrInvalidInputShape = errors.New("invalid input shape")
	// ErrJobNotFound is returned for unknown reconciliation job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrResultNotFound is returned for unknown result keys
	ErrResultNotFound = errors.New("result not found")
)

var (
	salesOrderAliases  = []string{"sales_orders", "salesorders"}
	salesReturnAliases = []string{"sales_returns", "salesreturns"}
	receiptAliases     = []string{"salesreturnreceives", "return_receipts", "receipts"}
)

// CustomerPayload is the raw data fetched for one customer or clinic group
type CustomerPayload struct {
	CustomerID   string        `json:"customer_id,omitempty"`
	CustomerName string        `json:"customer_name,omitempty"`
	ContactIDs   []string      `json:"contact_ids_processed,omitempty"`
	SalesOrders  []SalesOrder  `json:"sales_orders"`
	SalesReturns []SalesReturn `json:"sales_returns"`
}

type payloadHeader struct {
	CustomerID   string   `json:"customer_id"`
	CustomerName string   `json:"customer_name"`
	ContactIDs   []string `json:"contact_ids_processed"`
}

// UnmarshalJSON accepts the known aliases for the order and return collections
func (p *CustomerPayload) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidInputShape)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("%w: payload must be an object", ErrInvalidInputShape)
	}

	var header payloadHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputShape, err)
	}
	p.CustomerID = header.CustomerID
	p.CustomerName = header.CustomerName
	p.ContactIDs = header.ContactIDs

	orders, err := arrayField(root, salesOrderAliases)
	if err != nil {
		return err
	}
	p.SalesOrders = nil
	if orders.Exists() {
		if err := json.Unmarshal([]byte(orders.Raw), &p.SalesOrders); err != nil {
			return fmt.Errorf("decoding sales orders: %w", err)
		}
	}

	returns, err := arrayField(root, salesReturnAliases)
	if err != nil {
		return err
	}
	p.SalesReturns = nil
	if returns.Exists() {
		if err := json.Unmarshal([]byte(returns.Raw), &p.SalesReturns); err != nil {
			return fmt.Errorf("decoding sales returns: %w", err)
		}
	}
	return nil
}

// arrayField returns the first alias present. A present non-array, non-null value is a shape error.
func arrayField(obj gjson.Result, aliases []string) (gjson.Result, error) {
	for _, alias := range aliases {
		field := obj.Get(alias)
		if !field.Exists() || field.Type == gjson.Null {
			continue
		}
		if !field.IsArray() {
			return gjson.Result{}, fmt.Errorf("%w: %q must be an array, got %s", ErrInvalidInputShape, alias, field.Type)
		}
		return field, nil
	}
	return gjson.Result{}, nil
}

// SalesOrder is a raw sales order with nested line items and packages
type SalesOrder struct {
	SalesOrderID     string     `json:"salesorder_id,omitempty"`
	SalesOrderNumber string     `json:"salesorder_number"`
	CustomerID       string     `json:"customer_id,omitempty"`
	CustomerName     string     `json:"customer_name,omitempty"`
	Date             string     `json:"date"`
	Total            float64    `json:"total,omitempty"`
	LineItems        []LineItem `json:"line_items"`
	Packages         []Package  `json:"packages"`
}

// Package is a shipment package inside a sales order
type Package struct {
	PackageID         string         `json:"package_id,omitempty"`
	PackageNumber     string         `json:"package_number"`
	Date              string         `json:"date,omitempty"`
	DeliveryDate      string         `json:"delivery_date,omitempty"`
	ShipmentDate      string         `json:"shipment_date,omitempty"`
	ShipmentOrder     *ShipmentOrder `json:"shipment_order,omitempty"`
	DetailedLineItems []LineItem     `json:"detailed_line_items,omitempty"`
	LineItems         []LineItem     `json:"line_items,omitempty"`
}

// Items returns the package's detailed line items, falling back to plain line items
func (p Package) Items() []LineItem {
	if len(p.DetailedLineItems) > 0 {
		return p.DetailedLineItems
	}
	return p.LineItems
}

// ShipmentOrder carries carrier metadata for a package
type ShipmentOrder struct {
	ShipmentID     string `json:"shipment_id,omitempty"`
	ShipmentNumber string `json:"shipment_number,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
	ShipmentDate   string `json:"shipment_date,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// LineItem is an order, package or receipt line
type LineItem struct {
	LineItemID    string   `json:"line_item_id,omitempty"`
	ItemID        string   `json:"item_id,omitempty"`
	SKU           string   `json:"sku"`
	Name          string   `json:"name"`
	Quantity      float64  `json:"quantity,omitempty"`
	Rate          float64  `json:"rate,omitempty"`
	SerialNumbers RawField `json:"serial_numbers,omitempty"`
	CustomFields  RawField `json:"custom_field_hash,omitempty"`
}

// SalesReturn is a raw sales return (RMA) with its receipts
type SalesReturn struct {
	SalesReturnID     string          `json:"salesreturn_id,omitempty"`
	SalesReturnNumber string          `json:"salesreturn_number"`
	CustomerID        string          `json:"customer_id,omitempty"`
	Date              string          `json:"date,omitempty"`
	Receipts          []ReturnReceipt `json:"salesreturnreceives,omitempty"`
}

type salesReturnHeader struct {
	SalesReturnID     string `json:"salesreturn_id"`
	SalesReturnNumber string `json:"salesreturn_number"`
	CustomerID        string `json:"customer_id"`
	Date              string `json:"date"`
}

// UnmarshalJSON takes receipts from the first alias present that holds an array
func (r *SalesReturn) UnmarshalJSON(data []byte) error {
	var header salesReturnHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	r.SalesReturnID = header.SalesReturnID
	r.SalesReturnNumber = header.SalesReturnNumber
	r.CustomerID = header.CustomerID
	r.Date = header.Date
	r.Receipts = nil

	obj := gjson.ParseBytes(data)
	for _, alias := range receiptAliases {
		field := obj.Get(alias)
		if !field.IsArray() {
			continue
		}
		if err := json.Unmarshal([]byte(field.Raw), &r.Receipts); err != nil {
			return fmt.Errorf("decoding %s of return %s: %w", alias, header.SalesReturnNumber, err)
		}
		break
	}
	return nil
}

// ReturnReceipt is one receive event on a sales return
type ReturnReceipt struct {
	ReceiveNumber string     `json:"receive_number,omitempty"`
	Date          string     `json:"date"`
	LineItems     []LineItem `json:"line_items"`
}

// RawField keeps a duck-typed JSON value verbatim so extraction can inspect its shape
type RawField struct {
	raw json.RawMessage
}

// NewRawField wraps an arbitrary value; it panics on values encoding/json cannot marshal
func NewRawField(v any) RawField {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("raw field: %v", err))
	}
	return RawField{raw: data}
}

// UnmarshalJSON stores the value as-is
func (f *RawField) UnmarshalJSON(data []byte) error {
	f.raw = append(f.raw[:0], data...)
	return nil
}

// MarshalJSON writes the stored value back out
func (f RawField) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

// Result exposes the value for gjson inspection
func (f RawField) Result() gjson.Result {
	if len(f.raw) == 0 {
		return gjson.Result{}
	}
	return gjson.ParseBytes(f.raw)
}

// IsEmpty reports whether the field was absent or null
func (f RawField) IsEmpty() bool {
	r := f.Result()
	return !r.Exists() || r.Type == gjson.Null
}
