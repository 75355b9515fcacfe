package commerce

import (
	"fmt"
	"time"

	"storefront/internal/domain"
)

// Error codes the commerce API returns inside otherwise-successful mutation
// responses. Only the ones the storefront maps to user-facing messages are
// named; anything else falls through the generic handling.
const (
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK_ERROR"
	ErrCodeOrderModification = "ORDER_MODIFICATION_ERROR"
	ErrCodeOrderLimit        = "ORDER_LIMIT_ERROR"
	ErrCodeNegativeQuantity  = "NEGATIVE_QUANTITY_ERROR"
	ErrCodeOrderTransition   = "ORDER_STATE_TRANSITION_ERROR"
)

// DomainError is a business-rule rejection embedded in a 200 response. It is
// distinct from transport failures: the call reached the API and was refused.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("commerce: %s: %s", e.Code, e.Message)
}

// graphqlRequest is the POST body for every shop-api call.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphqlError is a top-level GraphQL error (treated as a transport failure).
type graphqlError struct {
	Message string `json:"message"`
}

type wireDiscount struct {
	CouponCode    string `json:"couponCode"`
	Description   string `json:"description"`
	AmountWithTax int64  `json:"amountWithTax"`
}

type wireVariant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type wireLine struct {
	ID                       string      `json:"id"`
	Quantity                 int         `json:"quantity"`
	UnitPriceWithTax         int64       `json:"unitPriceWithTax"`
	ProratedUnitPriceWithTax int64       `json:"proratedUnitPriceWithTax"`
	ProratedLinePriceWithTax int64       `json:"proratedLinePriceWithTax"`
	ProductVariant           wireVariant `json:"productVariant"`
}

type wireOrder struct {
	ID              string         `json:"id"`
	Code            string         `json:"code"`
	State           string         `json:"state"`
	CurrencyCode    string         `json:"currencyCode"`
	SubTotalWithTax int64          `json:"subTotalWithTax"`
	ShippingWithTax int64          `json:"shippingWithTax"`
	TotalWithTax    int64          `json:"totalWithTax"`
	Discounts       []wireDiscount `json:"discounts"`
	Lines           []wireLine     `json:"lines"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// orderResult decodes mutation payloads that are a union of Order and
// ErrorResult. A non-empty ErrorCode marks the error branch.
type orderResult struct {
	wireOrder
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (r *orderResult) domainError() *DomainError {
	if r.ErrorCode == "" {
		return nil
	}
	return &DomainError{Code: r.ErrorCode, Message: r.Message}
}

func (o *wireOrder) toDomain() *domain.Order {
	if o.ID == "" {
		return nil
	}
	out := &domain.Order{
		ID:            o.ID,
		Code:          o.Code,
		State:         o.State,
		CurrencyCode:  o.CurrencyCode,
		SubTotalCents: o.SubTotalWithTax,
		ShippingCents: o.ShippingWithTax,
		TotalCents:    o.TotalWithTax,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, d := range o.Discounts {
		out.Promotions = append(out.Promotions, domain.Promotion{
			CouponCode:  d.CouponCode,
			Description: d.Description,
			AmountCents: d.AmountWithTax,
		})
	}
	out.Lines = make([]domain.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, domain.LineItem{
			ID:                     l.ID,
			ProductVariantID:       l.ProductVariant.ID,
			Name:                   l.ProductVariant.Name,
			SKU:                    l.ProductVariant.SKU,
			Quantity:               l.Quantity,
			UnitPriceCents:         l.UnitPriceWithTax,
			ProratedUnitPriceCents: l.ProratedUnitPriceWithTax,
			ProratedLinePriceCents: l.ProratedLinePriceWithTax,
		})
	}
	return out
}

type wireAsset struct {
	Preview string `json:"preview"`
}

type wireProductVariant struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	PriceWithTax int64  `json:"priceWithTax"`
	CurrencyCode string `json:"currencyCode"`
}

type wireProduct struct {
	ID            string               `json:"id"`
	Slug          string               `json:"slug"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	FeaturedAsset *wireAsset           `json:"featuredAsset"`
	Variants      []wireProductVariant `json:"variants"`
}

func (p *wireProduct) toDomain() *domain.Product {
	out := &domain.Product{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
	}
	if p.FeaturedAsset != nil {
		out.ImageURL = p.FeaturedAsset.Preview
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		out.VariantID = v.ID
		out.SKU = v.SKU
		out.PriceCents = v.PriceWithTax
		out.CurrencyCode = v.CurrencyCode
	}
	return out
}
