package domain

// StockCheckItem is one line submitted to the inventory service for
// checkout-time validation.
type StockCheckItem struct {
	SetID    int64 `json:"set_id"`
	Quantity int   `json:"quantity"`
}

// InsufficientPart details a part shortage behind a failed line.
type InsufficientPart struct {
	PartID    int64  `json:"part_id"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockCheckResult is the per-line outcome of checkout-time validation.
type StockCheckResult struct {
	SetID             int64              `json:"set_id"`
	Valid             bool               `json:"valid"`
	Error             string             `json:"error,omitempty"`
	InsufficientParts []InsufficientPart `json:"insufficient_parts,omitempty"`
}

// StockSummary aggregates the validation outcome.
type StockSummary struct {
	TotalItems   int `json:"total_items"`
	ValidItems   int `json:"valid_items"`
	InvalidItems int `json:"invalid_items"`
}

// StockValidation is the inventory service's verdict, returned to the caller
// verbatim.
type StockValidation struct {
	Valid   bool               `json:"valid"`
	Results []StockCheckResult `json:"results,omitempty"`
	Summary StockSummary       `json:"summary"`
}

// StockCheckItems projects the cart's real lines into the validation
// request shape. The handling fee is not stock-tracked and is skipped.
func (c *Cart) StockCheckItems() []StockCheckItem {
	var items []StockCheckItem
	for i := range c.Items {
		if c.Items[i].IsHandlingFee() {
			continue
		}
		items = append(items, StockCheckItem{
			SetID:    c.Items[i].SetID,
			Quantity: c.Items[i].Quantity,
		})
	}
	return items
}
