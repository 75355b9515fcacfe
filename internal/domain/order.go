package domain

import "time"

// Order states as reported by the commerce API.
const (
	OrderStateAddingItems       = "AddingItems"
	OrderStateArrangingPayment  = "ArrangingPayment"
	OrderStatePaymentAuthorized = "PaymentAuthorized"
)

// Order is the server-authoritative cart/checkout aggregate. The storefront
// only ever holds a cached, possibly stale copy; it is mutated exclusively
// through commerce API calls.
type Order struct {
	ID            string      `json:"id"`
	Code          string      `json:"code"`
	State         string      `json:"state"`
	CurrencyCode  string      `json:"currencyCode"`
	SubTotalCents int64       `json:"subTotalCents"`
	ShippingCents int64       `json:"shippingCents"`
	TotalCents    int64       `json:"totalCents"`
	Promotions    []Promotion `json:"promotions,omitempty"`
	Lines         []LineItem  `json:"lines"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// LineItem is one product-variant entry within an Order. Prorated prices are
// the per-unit and per-line amounts after promotions have been applied.
type LineItem struct {
	ID                     string `json:"id"`
	ProductVariantID       string `json:"productVariantId"`
	Name                   string `json:"name"`
	SKU                    string `json:"sku,omitempty"`
	Quantity               int    `json:"quantity"`
	UnitPriceCents         int64  `json:"unitPriceCents"`
	ProratedUnitPriceCents int64  `json:"proratedUnitPriceCents"`
	ProratedLinePriceCents int64  `json:"proratedLinePriceCents"`
}

// Promotion is an applied discount, carried through for display only.
type Promotion struct {
	CouponCode  string `json:"couponCode,omitempty"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
}

// Line returns the line with the given id, or nil if the order has no such line.
func (o *Order) Line(id string) *LineItem {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i]
		}
	}
	return nil
}

// TotalQuantity sums the quantities across all lines.
func (o *Order) TotalQuantity() int {
	total := 0
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}
