package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HandlingFeeSetID is the reserved set ID for the synthetic shipping and
// handling line. It is never a real catalog set.
const HandlingFeeSetID int64 = -1

// Fixed metadata for the handling-fee line.
const (
	handlingFeeName        = "Shipping & Handling"
	handlingFeeDescription = "All items ship together in a single shipment"
	handlingFeeCategory    = "service"
)

// CartItem is a single line in the cart. Descriptive fields are a snapshot
// taken at add time, not a live reference to the catalog.
type CartItem struct {
	SetID       int64  `json:"set_id"`
	Quantity    int    `json:"quantity"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	AgeRange    string `json:"age_range,omitempty"`
	Duration    string `json:"duration,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`

	// ProviderID is nil when the set is sold by the platform itself.
	ProviderID      *int64 `json:"provider_id"`
	ProviderCompany string `json:"provider_company,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	ProviderCode    string `json:"provider_code,omitempty"`

	// AvailableQuantity is the stock level seen at add time. Informational
	// only; the inventory service is authoritative at validation time.
	AvailableQuantity int `json:"available_quantity,omitempty"`
}

// IsHandlingFee reports whether this line is the synthetic handling-fee item.
func (i *CartItem) IsHandlingFee() bool {
	return i.SetID == HandlingFeeSetID
}

// RecalculateTotal recomputes the line total from quantity and unit price.
// Persisted totals are never trusted; this runs on every mutation and load.
func (i *CartItem) RecalculateTotal() {
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the per-user cart aggregate. Items are unique by SetID; all real
// (non-fee) items must belong to a single provider.
type Cart struct {
	UserID       string          `json:"user_id"`
	Items        []CartItem      `json:"items"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountCode *string         `json:"discount_code"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// TotalItems returns the sum of quantities across all lines, the handling fee
// included.
func (c *Cart) TotalItems() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// TotalPrice recomputes the cart total as the sum of quantity times unit
// price over all lines. Stored line totals are deliberately ignored.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// FindItemIndex returns the index of the line with the given set ID, or -1.
func (c *Cart) FindItemIndex(setID int64) int {
	for i := range c.Items {
		if c.Items[i].SetID == setID {
			return i
		}
	}
	return -1
}

// Item returns the line with the given set ID.
func (c *Cart) Item(setID int64) (*CartItem, bool) {
	if i := c.FindItemIndex(setID); i >= 0 {
		return &c.Items[i], true
	}
	return nil, false
}

// Contains reports whether a line with the given set ID exists.
func (c *Cart) Contains(setID int64) bool {
	return c.FindItemIndex(setID) >= 0
}

// RealItemCount returns the number of lines excluding the handling fee.
func (c *Cart) RealItemCount() int {
	var n int
	for i := range c.Items {
		if !c.Items[i].IsHandlingFee() {
			n++
		}
	}
	return n
}

// FirstRealItem returns the first non-fee line, if any.
func (c *Cart) FirstRealItem() (*CartItem, bool) {
	for i := range c.Items {
		if !c.Items[i].IsHandlingFee() {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// IsExpired reports whether the cart has passed its expiry deadline.
func (c *Cart) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ValidateSingleProvider checks that every real line shares one provider,
// treating nil (platform) as a provider identity of its own. A cart loaded
// from storage that fails this check is discarded as corrupt.
func (c *Cart) ValidateSingleProvider() bool {
	var ref *CartItem
	for i := range c.Items {
		if c.Items[i].IsHandlingFee() {
			continue
		}
		if ref == nil {
			ref = &c.Items[i]
			continue
		}
		if !SameProvider(ref.ProviderID, c.Items[i].ProviderID) {
			return false
		}
	}
	return true
}

// RecalculateHandlingFee upserts or strips the handling-fee line: present,
// once, and priced at shippingCost iff at least one real line exists.
func (c *Cart) RecalculateHandlingFee(shippingCost decimal.Decimal) {
	// Drop any existing fee lines first so duplicates can never accumulate.
	items := c.Items[:0]
	for _, item := range c.Items {
		if !item.IsHandlingFee() {
			items = append(items, item)
		}
	}
	c.Items = items

	if len(c.Items) == 0 {
		return
	}

	fee := CartItem{
		SetID:       HandlingFeeSetID,
		Quantity:    1,
		Name:        handlingFeeName,
		Description: handlingFeeDescription,
		Category:    handlingFeeCategory,
		UnitPrice:   shippingCost,
	}
	fee.RecalculateTotal()
	c.Items = append(c.Items, fee)
}

// ShippingInfo describes the shipping cost attached to the cart.
type ShippingInfo struct {
	Cost        decimal.Decimal `json:"cost"`
	Description string          `json:"description"`
}

// ShippingInfo returns the cached shipping cost and the single-shipment
// description when the cart holds any real item, and a zero result otherwise.
func (c *Cart) ShippingInfo(shippingCost decimal.Decimal) ShippingInfo {
	if _, ok := c.FirstRealItem(); !ok {
		return ShippingInfo{Cost: decimal.Zero}
	}
	return ShippingInfo{
		Cost:        shippingCost,
		Description: handlingFeeDescription,
	}
}
