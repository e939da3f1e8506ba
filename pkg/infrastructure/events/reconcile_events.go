package events

const (
	ReconciliationStartedEvent   = "reconciliation.started"
	ReconciliationCompletedEvent = "reconciliation.completed"

	ReturnMatchedEvent    = "return.matched"
	ReturnUnmatchedEvent  = "return.unmatched"
	CohortIdentifiedEvent = "cohort.identified"

	ChainBuiltEvent = "chain.built"

	OrphanAssignedEvent   = "orphan.assigned"
	OrphanUnassignedEvent = "orphan.unassigned"
)

type ReconciliationStarted struct {
	CustomerID   string   `json:"customer_id"`
	TargetSKUs   []string `json:"target_skus"`
	SalesOrders  int      `json:"sales_orders"`
	SalesReturns int      `json:"sales_returns"`
}

type ReconciliationCompleted struct {
	CustomerID      string `json:"customer_id"`
	Instances       int    `json:"instances"`
	Cohorts         int    `json:"cohorts"`
	ValidatedChains int    `json:"validated_chains"`
	OrphanChains    int    `json:"orphan_chains"`
	Unassigned      int    `json:"unassigned"`
}

type ReturnMatched struct {
	ReturnedKey    string `json:"returned_key"`
	ReplacementKey string `json:"replacement_key"`
	ReturnDate     string `json:"return_date"`
	ShipDate       string `json:"ship_date"`
}

type ReturnUnmatched struct {
	ReturnedKey string `json:"returned_key"`
	ReturnDate  string `json:"return_date"`
}

type CohortIdentified struct {
	CohortID      string `json:"cohort_id"`
	SKU           string `json:"sku"`
	CSALength     string `json:"csa_length"`
	StartDate     string `json:"start_date"`
	Members       int    `json:"members"`
	TotalCapacity int    `json:"total_capacity"`
}

type ChainBuilt struct {
	Kind        string   `json:"kind"`
	CohortID    string   `json:"cohort_id,omitempty"`
	Serials     []string `json:"serials"`
	FinalStatus string   `json:"final_status"`
}

type OrphanAssigned struct {
	StartSerial string `json:"start_serial"`
	CohortID    string `json:"cohort_id"`
	Reason      string `json:"reason"`
}

type OrphanUnassigned struct {
	StartSerial string `json:"start_serial"`
	SKU         string `json:"sku"`
	Reason      string `json:"reason"`
}
