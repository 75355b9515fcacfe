package domain

// Product is a catalog entry as presented by the storefront. The commerce API
// owns the catalog; this is a flattened read model of its default variant.
type Product struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SKU          string `json:"sku,omitempty"`
	VariantID    string `json:"variantId"`
	PriceCents   int64  `json:"priceCents"`
	CurrencyCode string `json:"currencyCode"`
	ImageURL     string `json:"imageUrl,omitempty"`
}
