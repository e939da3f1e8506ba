package entities

import "time"

// ChainKind distinguishes chains rooted at cohort members from orphan chains
type ChainKind int

const (
	ValidatedChain ChainKind = iota
	OrphanChain
)

// String method for ChainKind enum
func (k ChainKind) String() string {
	switch k {
	case ValidatedChain:
		return "validated"
	case OrphanChain:
		return "orphan"
	default:
		return "unknown"
	}
}

// ChainStatus is the status code of a chain's terminal unit
type ChainStatus string

const (
	StatusInField                ChainStatus = "inField"
	StatusReturnedReplaced       ChainStatus = "returned_replaced"
	StatusNoReplacementFound     ChainStatus = "returned_no_replacement_found"
	StatusNoReplacementAvailable ChainStatus = "returned_no_replacement_available"
)

// Label returns the human-readable description of a status code
func (s ChainStatus) Label() string {
	switch s {
	case StatusInField:
		return "In Field"
	case StatusReturnedReplaced:
		return "Returned & Replaced"
	case StatusNoReplacementFound:
		return "Returned (No Replacement Found)"
	case StatusNoReplacementAvailable:
		return "Returned (No Replacements Left)"
	default:
		return string(s)
	}
}

// IsInField reports whether the chain's terminal unit is still deployed
func (s ChainStatus) IsInField() bool {
	return s == StatusInField
}

// Handoff records one replacement edge traversed while building a chain
type Handoff struct {
	ReturnedSerial      string
	ReturnDate          time.Time
	ReplacementSerial   string
	ReplacementShipDate time.Time
}

// ReplacementChain is the ordered sequence of units linked by replacement edges
type ReplacementChain struct {
	Kind            ChainKind
	CohortID        string
	SKU             SKU
	CustomerID      string
	Keys            []InstanceKey
	Handoffs        []Handoff
	Status          ChainStatus
	InitialShipDate time.Time
}

// Len returns the number of units in the chain
func (c *ReplacementChain) Len() int {
	return len(c.Keys)
}

// Replacements returns the number of replacement edges in the chain
func (c *ReplacementChain) Replacements() int {
	return len(c.Handoffs)
}

// Serials returns the chain's serial numbers in order
func (c *ReplacementChain) Serials() []string {
	serials := make([]string, len(c.Keys))
	for i, key := range c.Keys {
		serials[i] = key.Serial
	}
	return serials
}

// StartSerial returns the serial that started the chain
func (c *ReplacementChain) StartSerial() string {
	if len(c.Keys) == 0 {
		return ""
	}
	return c.Keys[0].Serial
}

// FinalSerial returns the serial at the end of the chain
func (c *ReplacementChain) FinalSerial() string {
	if len(c.Keys) == 0 {
		return ""
	}
	return c.Keys[len(c.Keys)-1].Serial
}

// UnassignedBucket names the bucket for orphan chains no cohort could absorb
const UnassignedBucket = "No Suitable Cohort Found (Capacity)"

// OrphanAssignment pairs an orphan chain with the cohort it was speculatively placed in
type OrphanAssignment struct {
	Chain    *ReplacementChain
	CohortID string
	Reason   string
}

// Assigned reports whether a cohort was found
func (a OrphanAssignment) Assigned() bool {
	return a.CohortID != ""
}

// Bucket returns the cohort id, or UnassignedBucket
func (a OrphanAssignment) Bucket() string {
	if a.Assigned() {
		return a.CohortID
	}
	return UnassignedBucket
}
