package domain

// UnknownProviderName is shown when a provider item carries no usable
// descriptive field.
const UnknownProviderName = "Unknown Provider"

// PlatformProviderName is the display name used for items sold by the
// platform itself rather than a third-party provider.
const PlatformProviderName = "Maker Set Shop"

// ProviderInfo is the cart-level provider summary derived from the items.
type ProviderInfo struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

// SameProvider compares two provider identities where nil means the platform
// itself. Two nils are the same provider; nil never equals a concrete ID.
func SameProvider(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ResolveProviderName picks a display name for a provider item, preferring
// the short code, then the company, then the contact name.
func ResolveProviderName(item *CartItem) string {
	if item.ProviderID == nil {
		return ""
	}
	switch {
	case item.ProviderCode != "":
		return item.ProviderCode
	case item.ProviderCompany != "":
		return item.ProviderCompany
	case item.ProviderName != "":
		return item.ProviderName
	default:
		return UnknownProviderName
	}
}

// Provider returns the cart's single provider identity, derived from the
// first real item. A nil ID with ok=true means a platform-only cart; ok=false
// means the cart has no real items.
func (c *Cart) Provider() (ProviderInfo, bool) {
	item, ok := c.FirstRealItem()
	if !ok {
		return ProviderInfo{}, false
	}
	if item.ProviderID == nil {
		return ProviderInfo{Name: PlatformProviderName}, true
	}
	return ProviderInfo{ID: item.ProviderID, Name: ResolveProviderName(item)}, true
}
