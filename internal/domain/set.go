package domain

import "github.com/shopspring/decimal"

// SetPart is one component of a set's bill of materials.
type SetPart struct {
	PartID     int64  `json:"part_id"`
	Name       string `json:"name"`
	PartNumber string `json:"part_number,omitempty"`
	Quantity   int    `json:"quantity"`
	IsRequired bool   `json:"is_required"`
}

// Set is the catalog descriptor consumed when adding to the cart. Price
// fields are pointers because the catalog may omit any of them.
type Set struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	AgeRange    string `json:"age_range,omitempty"`
	Duration    string `json:"duration,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	DisplayPrice *decimal.Decimal `json:"display_price,omitempty"`
	ListPrice    *decimal.Decimal `json:"list_price,omitempty"`
	BasePrice    *decimal.Decimal `json:"base_price,omitempty"`

	ProviderID      *int64 `json:"provider_id"`
	ProviderCompany string `json:"provider_company,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	ProviderCode    string `json:"provider_code,omitempty"`

	AvailableQuantity int       `json:"available_quantity,omitempty"`
	Parts             []SetPart `json:"parts,omitempty"`
}

// EffectivePrice resolves the price to charge: display price first, then
// list, then base, then zero.
func (s *Set) EffectivePrice() decimal.Decimal {
	switch {
	case s.DisplayPrice != nil:
		return *s.DisplayPrice
	case s.ListPrice != nil:
		return *s.ListPrice
	case s.BasePrice != nil:
		return *s.BasePrice
	default:
		return decimal.Zero
	}
}

// RequiredParts returns only the parts flagged as required.
func (s *Set) RequiredParts() []SetPart {
	var req []SetPart
	for _, p := range s.Parts {
		if p.IsRequired {
			req = append(req, p)
		}
	}
	return req
}

// NewCartItem builds a cart line from the set descriptor, snapshotting the
// descriptive fields and resolving the effective price.
func (s *Set) NewCartItem(quantity int) CartItem {
	item := CartItem{
		SetID:             s.ID,
		Quantity:          quantity,
		Name:              s.Name,
		Description:       s.Description,
		Category:          s.Category,
		Difficulty:        s.Difficulty,
		AgeRange:          s.AgeRange,
		Duration:          s.Duration,
		ImageURL:          s.ImageURL,
		UnitPrice:         s.EffectivePrice(),
		ProviderID:        s.ProviderID,
		ProviderCompany:   s.ProviderCompany,
		ProviderName:      s.ProviderName,
		ProviderCode:      s.ProviderCode,
		AvailableQuantity: s.AvailableQuantity,
	}
	item.RecalculateTotal()
	return item
}
