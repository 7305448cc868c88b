package domain

// Reconciliation describes an order placement whose rollback did not
// complete. Product and Customer are the documents as they were before the
// placement started; the Applied flags tell which of them were overwritten.
type Reconciliation struct {
	OrderID         string   `json:"orderId"`
	Product         Product  `json:"product"`
	Customer        Customer `json:"customer"`
	ProductApplied  bool     `json:"productApplied"`
	CustomerApplied bool     `json:"customerApplied"`
	Reason          string   `json:"reason"`
}
