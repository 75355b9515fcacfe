package commerce

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type capturedRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
	AuthToken string                 `json:"-"`
}

func newTestServer(t *testing.T, respond func(req capturedRequest) (int, string)) (*Client, *[]capturedRequest) {
	t.Helper()
	var requests []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		req.AuthToken = r.Header.Get("Authorization")
		requests = append(requests, req)

		status, body := respond(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, "", 5*time.Second, zap.NewNop()), &requests
}

const activeOrderBody = `{"data":{"activeOrder":{
  "id":"42","code":"ABC123","state":"AddingItems","currencyCode":"USD",
  "subTotalWithTax":3000,"shippingWithTax":500,"totalWithTax":3500,
  "discounts":[{"couponCode":"SAVE10","description":"10% off","amountWithTax":-300}],
  "lines":[{
    "id":"l1","quantity":2,"unitPriceWithTax":1500,
    "proratedUnitPriceWithTax":1350,"proratedLinePriceWithTax":2700,
    "productVariant":{"id":"v1","name":"Mug","sku":"MUG-01"}
  }]
}}}`

func TestActiveOrder_MapsWirePayload(t *testing.T) {
	client, requests := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, activeOrderBody
	})

	sc := client.WithToken("tok-1")
	order, err := sc.ActiveOrder(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "42", order.ID)
	assert.Equal(t, "ABC123", order.Code)
	assert.Equal(t, int64(3500), order.TotalCents)
	assert.Equal(t, int64(500), order.ShippingCents)
	require.Len(t, order.Lines, 1)
	line := order.Lines[0]
	assert.Equal(t, "l1", line.ID)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, int64(1500), line.UnitPriceCents)
	assert.Equal(t, int64(1350), line.ProratedUnitPriceCents)
	assert.Equal(t, int64(2700), line.ProratedLinePriceCents)
	require.Len(t, order.Promotions, 1)
	assert.Equal(t, "SAVE10", order.Promotions[0].CouponCode)

	require.Len(t, *requests, 1)
	assert.Equal(t, "Bearer tok-1", (*requests)[0].AuthToken)
}

func TestActiveOrder_NoOrder(t *testing.T) {
	client, _ := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"activeOrder":null}}`
	})

	_, err := client.WithToken("").ActiveOrder(t.Context())
	assert.ErrorIs(t, err, domain.ErrNoActiveOrder)
}

func TestAdjustLine_DomainError(t *testing.T) {
	client, requests := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"adjustOrderLine":{
			"errorCode":"INSUFFICIENT_STOCK_ERROR","message":"Only 1 available"}}}`
	})

	err := client.WithToken("tok").AdjustLine(t.Context(), "l1", 5)
	require.Error(t, err)

	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ErrCodeInsufficientStock, derr.Code)
	assert.Equal(t, "Only 1 available", derr.Message)

	require.Len(t, *requests, 1)
	assert.Equal(t, "l1", (*requests)[0].Variables["lineId"])
	assert.Equal(t, float64(5), (*requests)[0].Variables["quantity"])
}

func TestRemoveLine_Success(t *testing.T) {
	client, requests := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"removeOrderLine":{"id":"42"}}}`
	})

	require.NoError(t, client.WithToken("tok").RemoveLine(t.Context(), "l9"))
	require.Len(t, *requests, 1)
	assert.Equal(t, "l9", (*requests)[0].Variables["lineId"])
}

func TestExecute_TransportFailures(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		client, _ := newTestServer(t, func(capturedRequest) (int, string) {
			return http.StatusBadGateway, `upstream down`
		})
		err := client.WithToken("").RemoveLine(t.Context(), "l1")
		require.Error(t, err)
		var derr *DomainError
		assert.False(t, errors.As(err, &derr), "transport failures are not domain errors")
	})

	t.Run("top-level graphql errors", func(t *testing.T) {
		client, _ := newTestServer(t, func(capturedRequest) (int, string) {
			return http.StatusOK, `{"data":null,"errors":[{"message":"invalid query"}]}`
		})
		err := client.WithToken("").RemoveLine(t.Context(), "l1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid query")
	})
}

func TestSessionClient_CapturesAssignedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(authTokenHeader, "fresh-token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"addItemToOrder":{"id":"42","code":"X","state":"AddingItems","currencyCode":"USD","subTotalWithTax":0,"shippingWithTax":0,"totalWithTax":0,"lines":[]}}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, "", 5*time.Second, zap.NewNop())
	sc := client.WithToken("")
	order, err := sc.AddItem(t.Context(), "v1", 1)
	require.NoError(t, err)
	assert.Equal(t, "42", order.ID)
	assert.Equal(t, "fresh-token", sc.Token())
}

func TestSessionClient_ConcurrentMutations(t *testing.T) {
	// The API re-sends the session token header on every response; concurrent
	// line mutations must not race on capturing it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(authTokenHeader, "assigned-token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"removeOrderLine":{"id":"42"}}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, "", 5*time.Second, zap.NewNop())
	sc := client.WithToken("")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sc.RemoveLine(t.Context(), "l1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, "assigned-token", sc.Token())
}

func TestProductBySlug_NotFound(t *testing.T) {
	client, _ := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"product":null}}`
	})
	_, err := client.WithToken("").ProductBySlug(t.Context(), "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProducts_MapsVariants(t *testing.T) {
	client, _ := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"products":{"items":[{
			"id":"p1","slug":"mug","name":"Mug","description":"A mug",
			"featuredAsset":{"preview":"https://cdn/img.jpg"},
			"variants":[{"id":"v1","sku":"MUG-01","priceWithTax":1500,"currencyCode":"USD"}]
		}]}}}`
	})

	products, err := client.WithToken("").Products(t.Context(), 10, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "v1", products[0].VariantID)
	assert.Equal(t, int64(1500), products[0].PriceCents)
	assert.Equal(t, "https://cdn/img.jpg", products[0].ImageURL)
}
