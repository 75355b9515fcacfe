package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

// maxResponseSize caps how much of a commerce API response is read (10MB).
const maxResponseSize = 10 * 1024 * 1024

// authTokenHeader carries the session token the commerce API assigns when a
// request without one creates a new session.
const authTokenHeader = "vendure-auth-token"

const channelTokenHeader = "vendure-token"

const orderFragment = `
fragment StorefrontOrder on Order {
  id
  code
  state
  currencyCode
  subTotalWithTax
  shippingWithTax
  totalWithTax
  updatedAt
  discounts { couponCode description amountWithTax }
  lines {
    id
    quantity
    unitPriceWithTax
    proratedUnitPriceWithTax
    proratedLinePriceWithTax
    productVariant { id name sku }
  }
}`

const errorResultFields = `... on ErrorResult { errorCode message }`

// Client talks to the commerce platform's GraphQL shop API. It is safe for
// concurrent use; per-customer state lives in SessionClient.
type Client struct {
	baseURL      string
	channelToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

// New builds a Client for the shop API at baseURL.
func New(baseURL, channelToken string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		channelToken: channelToken,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// WithToken binds the client to a commerce session token. The zero token is
// valid: the first mutation creates a session and Token() then reports the
// assigned one.
func (c *Client) WithToken(token string) *SessionClient {
	return &SessionClient{client: c, token: token}
}

// SessionClient executes shop-api calls on behalf of one customer session.
// It is safe for concurrent use: the API may assign or rotate the session
// token on any response, and concurrent order mutations would otherwise race
// on it.
type SessionClient struct {
	client *Client

	mu    sync.Mutex
	token string
}

// Token returns the current commerce session token, which may have been
// assigned by the API during a previous call.
func (s *SessionClient) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *SessionClient) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *SessionClient) execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("commerce: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if s.client.channelToken != "" {
		req.Header.Set(channelTokenHeader, s.client.channelToken)
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.client.logger.Warn("commerce request failed", zap.Error(err))
		return fmt.Errorf("commerce: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("commerce: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commerce: unexpected status %d", resp.StatusCode)
	}

	if token := resp.Header.Get(authTokenHeader); token != "" {
		s.setToken(token)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("commerce: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("commerce: api error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("commerce: decode data: %w", err)
		}
	}
	return nil
}

// ActiveOrder fetches the session's current order, or domain.ErrNoActiveOrder
// if the customer has not started one.
func (s *SessionClient) ActiveOrder(ctx context.Context) (*domain.Order, error) {
	const query = `query ActiveOrder { activeOrder { ...StorefrontOrder } }` + orderFragment

	var data struct {
		ActiveOrder *wireOrder `json:"activeOrder"`
	}
	if err := s.execute(ctx, query, nil, &data); err != nil {
		return nil, err
	}
	if data.ActiveOrder == nil {
		return nil, domain.ErrNoActiveOrder
	}
	return data.ActiveOrder.toDomain(), nil
}

// AddItem adds quantity of a product variant to the active order, creating the
// order if needed.
func (s *SessionClient) AddItem(ctx context.Context, variantID string, quantity int) (*domain.Order, error) {
	const query = `mutation AddItem($variantId: ID!, $quantity: Int!) {
  addItemToOrder(productVariantId: $variantId, quantity: $quantity) {
    ...StorefrontOrder
    ` + errorResultFields + `
  }
}` + orderFragment

	var data struct {
		AddItemToOrder orderResult `json:"addItemToOrder"`
	}
	err := s.execute(ctx, query, map[string]interface{}{"variantId": variantID, "quantity": quantity}, &data)
	if err != nil {
		return nil, err
	}
	if derr := data.AddItemToOrder.domainError(); derr != nil {
		return nil, derr
	}
	return data.AddItemToOrder.toDomain(), nil
}

// AdjustLine sets an order line to the given quantity. Quantity must be
// positive; removal has its own mutation.
func (s *SessionClient) AdjustLine(ctx context.Context, lineID string, quantity int) error {
	const query = `mutation AdjustLine($lineId: ID!, $quantity: Int!) {
  adjustOrderLine(orderLineId: $lineId, quantity: $quantity) {
    ... on Order { id }
    ` + errorResultFields + `
  }
}`

	var data struct {
		AdjustOrderLine orderResult `json:"adjustOrderLine"`
	}
	err := s.execute(ctx, query, map[string]interface{}{"lineId": lineID, "quantity": quantity}, &data)
	if err != nil {
		return err
	}
	if derr := data.AdjustOrderLine.domainError(); derr != nil {
		return derr
	}
	return nil
}

// RemoveLine deletes an order line.
func (s *SessionClient) RemoveLine(ctx context.Context, lineID string) error {
	const query = `mutation RemoveLine($lineId: ID!) {
  removeOrderLine(orderLineId: $lineId) {
    ... on Order { id }
    ` + errorResultFields + `
  }
}`

	var data struct {
		RemoveOrderLine orderResult `json:"removeOrderLine"`
	}
	err := s.execute(ctx, query, map[string]interface{}{"lineId": lineID}, &data)
	if err != nil {
		return err
	}
	if derr := data.RemoveOrderLine.domainError(); derr != nil {
		return derr
	}
	return nil
}

// TransitionToPayment moves the active order into the ArrangingPayment state.
func (s *SessionClient) TransitionToPayment(ctx context.Context) (*domain.Order, error) {
	const query = `mutation TransitionToPayment {
  transitionOrderToState(state: "ArrangingPayment") {
    ...StorefrontOrder
    ` + errorResultFields + `
  }
}` + orderFragment

	var data struct {
		TransitionOrderToState orderResult `json:"transitionOrderToState"`
	}
	if err := s.execute(ctx, query, nil, &data); err != nil {
		return nil, err
	}
	if derr := data.TransitionOrderToState.domainError(); derr != nil {
		return nil, derr
	}
	return data.TransitionOrderToState.toDomain(), nil
}

// Products lists catalog products.
func (s *SessionClient) Products(ctx context.Context, take, skip int) ([]domain.Product, error) {
	const query = `query Products($take: Int!, $skip: Int!) {
  products(options: { take: $take, skip: $skip }) {
    items {
      id slug name description
      featuredAsset { preview }
      variants { id sku priceWithTax currencyCode }
    }
  }
}`

	var data struct {
		Products struct {
			Items []wireProduct `json:"items"`
		} `json:"products"`
	}
	if err := s.execute(ctx, query, map[string]interface{}{"take": take, "skip": skip}, &data); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(data.Products.Items))
	for i := range data.Products.Items {
		out = append(out, *data.Products.Items[i].toDomain())
	}
	return out, nil
}

// ProductBySlug fetches one catalog product, or domain.ErrNotFound.
func (s *SessionClient) ProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	const query = `query ProductBySlug($slug: String!) {
  product(slug: $slug) {
    id slug name description
    featuredAsset { preview }
    variants { id sku priceWithTax currencyCode }
  }
}`

	var data struct {
		Product *wireProduct `json:"product"`
	}
	if err := s.execute(ctx, query, map[string]interface{}{"slug": slug}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, domain.ErrNotFound
	}
	return data.Product.toDomain(), nil
}
