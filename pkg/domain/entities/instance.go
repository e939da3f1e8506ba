package entities

import (
	"fmt"
	"time"
)

// NoPackage is the package id recorded for serials found on order line items
// rather than inside a package. It is a valid, distinct key component.
const NoPackage = "NO_PACKAGE"

// SKU identifies a tracked equipment model
type SKU string

// InstanceKey identifies one physical unit's presence in one shipment
type InstanceKey struct {
	Serial    string
	OrderID   string
	PackageID string
}

// NewInstanceKey creates a validated InstanceKey. An empty package id becomes NoPackage.
func NewInstanceKey(serial, orderID, packageID string) (InstanceKey, error) {
	if serial == "" {
		return InstanceKey{}, fmt.Errorf("serial cannot be empty")
	}
	if orderID == "" {
		return InstanceKey{}, fmt.Errorf("order id cannot be empty for serial %s", serial)
	}
	if packageID == "" {
		packageID = NoPackage
	}
	return InstanceKey{Serial: serial, OrderID: orderID, PackageID: packageID}, nil
}

// String renders the key in the serial|||order|||package form used in reports
func (k InstanceKey) String() string {
	return k.Serial + "|||" + k.OrderID + "|||" + k.PackageID
}

// InstanceStatus represents whether a unit is still deployed
type InstanceStatus int

const (
	InField InstanceStatus = iota
	Returned
)

// String method for InstanceStatus enum
func (s InstanceStatus) String() string {
	switch s {
	case InField:
		return "In Field"
	case Returned:
		return "Returned"
	default:
		return "Unknown"
	}
}

// Instance is the mutable reconciliation record for one shipped unit.
// Only Status, RMADate, CohortID and the two edges change after construction.
type Instance struct {
	Key        InstanceKey
	SKU        SKU
	CustomerID string
	ShipDate   time.Time // zero when no date could be resolved
	RawDate    string
	Status     InstanceStatus
	CohortID   string
	RMADate    time.Time
	ReplacedBy *InstanceKey
	Replaces   *InstanceKey
}

// NewInstance creates an in-field Instance from a shipment event
func NewInstance(event ShipmentEvent) (*Instance, error) {
	key, err := NewInstanceKey(event.Serial, event.OrderID, event.PackageID)
	if err != nil {
		return nil, err
	}
	if event.SKU == "" {
		return nil, fmt.Errorf("sku cannot be empty for serial %s", event.Serial)
	}

	return &Instance{
		Key:        key,
		SKU:        event.SKU,
		CustomerID: event.CustomerID,
		ShipDate:   event.Date,
		RawDate:    event.RawDate,
		Status:     InField,
	}, nil
}

// Serial returns the unit's serial number
func (i *Instance) Serial() string {
	return i.Key.Serial
}

// HasShipDate reports whether a ship date was resolved
func (i *Instance) HasShipDate() bool {
	return !i.ShipDate.IsZero()
}

// IsChainStart reports whether nothing links into this instance
func (i *Instance) IsChainStart() bool {
	return i.Replaces == nil
}

// MarkReturned transitions an in-field instance to Returned
func (i *Instance) MarkReturned(date time.Time) error {
	if i.Status != InField {
		return fmt.Errorf("instance %s is already %s", i.Key, i.Status)
	}
	i.Status = Returned
	i.RMADate = date
	return nil
}

// LinkReplacement records next as the replacement for i. Existing edges are never overwritten.
func (i *Instance) LinkReplacement(next *Instance) error {
	if i.ReplacedBy != nil {
		return fmt.Errorf("instance %s already replaced by %s", i.Key, *i.ReplacedBy)
	}
	if next.Replaces != nil {
		return fmt.Errorf("instance %s already replaces %s", next.Key, *next.Replaces)
	}
	if next.Key == i.Key {
		return fmt.Errorf("instance %s cannot replace itself", i.Key)
	}

	nextKey := next.Key
	prevKey := i.Key
	i.ReplacedBy = &nextKey
	next.Replaces = &prevKey
	return nil
}

// AssignCohort sets the cohort back-reference once
func (i *Instance) AssignCohort(cohortID string) error {
	if cohortID == "" {
		return fmt.Errorf("cohort id cannot be empty")
	}
	if i.CohortID != "" && i.CohortID != cohortID {
		return fmt.Errorf("instance %s already belongs to cohort %s", i.Key, i.CohortID)
	}
	i.CohortID = cohortID
	return nil
}
