package httpserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/reconcile"
	"storefront/internal/session"
)

// cartPayload is the body of PUT /api/cart and POST /api/checkout: the
// user-edited quantity per line id. Values arrive untrusted from form input,
// so they are decoded loosely and coerced; anything that is not a positive
// number counts as a removal.
type cartPayload struct {
	Lines map[string]interface{} `json:"lines"`
}

func (p cartPayload) desired() reconcile.DesiredState {
	desired := make(reconcile.DesiredState, len(p.Lines))
	for lineID, raw := range p.Lines {
		desired[lineID] = coerceQuantity(raw)
	}
	return desired
}

// coerceQuantity turns arbitrary JSON input into a quantity. Anything that is
// not an integer maps to 0, which the planner treats as removal; a fractional
// count is as meaningless as a non-numeric one.
func coerceQuantity(raw interface{}) int {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

type addLineRequest struct {
	ProductVariantID string `json:"productVariantId"`
	Quantity         int    `json:"quantity"`
}

// getCart returns the session's active order, read through the cache.
func (h *handlers) getCart(c *gin.Context) {
	sess := currentSession(c)
	sc := h.deps.Commerce(sess.CommerceToken)

	order, err := h.loadOrder(c.Request.Context(), sess, sc)
	if errors.Is(err, domain.ErrNoActiveOrder) {
		c.JSON(http.StatusOK, gin.H{"order": nil})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": msgCartUnavailable})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// updateCart reconciles the server-held order against the submitted desired
// quantities and returns the refetched order on success. On failure, the
// order is left in an unknown, possibly partially-updated state; the response
// carries one aggregated message and the client keeps its edits for a retry.
func (h *handlers) updateCart(c *gin.Context) {
	var payload cartPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	sess := currentSession(c)
	sc := h.deps.Commerce(sess.CommerceToken)
	ctx := c.Request.Context()

	order, err := h.loadOrder(ctx, sess, sc)
	if errors.Is(err, domain.ErrNoActiveOrder) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": msgNoActiveOrder})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "message": msgCartUnavailable})
		return
	}

	if err := h.deps.Reconciler.Reconcile(ctx, sc, order, payload.desired()); err != nil {
		status, message := reconcileFailure(err)
		c.JSON(status, gin.H{"ok": false, "message": message})
		return
	}

	fresh, err := h.loadOrder(ctx, sess, sc)
	if err != nil && !errors.Is(err, domain.ErrNoActiveOrder) {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "message": msgCartUnavailable})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": fresh})
}

// addCartLine adds a product variant to the active order, creating the order
// (and its commerce session) as needed.
func (h *handlers) addCartLine(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if req.ProductVariantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "productVariantId required"})
		return
	}
	if req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity must be at least 1"})
		return
	}

	sess := currentSession(c)
	sc := h.deps.Commerce(sess.CommerceToken)
	ctx := c.Request.Context()

	order, err := sc.AddItem(ctx, req.ProductVariantID, req.Quantity)
	if err != nil {
		status, message := commerceFailure(err)
		c.JSON(status, gin.H{"message": message})
		return
	}

	h.storeOrder(ctx, sess, sc, order)
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// loadOrder is the cache-aside read path: cached copy if present, otherwise
// the commerce API's active order, which is then cached and bound to the
// session.
func (h *handlers) loadOrder(ctx context.Context, sess *session.Session, sc CommerceSession) (*domain.Order, error) {
	if sess.ActiveOrderID != nil {
		if order, err := h.deps.Orders.Get(ctx, *sess.ActiveOrderID); err == nil {
			return order, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("order cache read failed", zap.Error(err))
		}
	}

	order, err := sc.ActiveOrder(ctx)
	if err != nil {
		return nil, err
	}
	h.storeOrder(ctx, sess, sc, order)
	return order, nil
}

// storeOrder caches the fetched order and records any commerce token or order
// id the API assigned during the call. Failures here are logged, not
// surfaced: the response the user sees is already correct.
func (h *handlers) storeOrder(ctx context.Context, sess *session.Session, sc CommerceSession, order *domain.Order) {
	if order == nil {
		return
	}
	if err := h.deps.Orders.Set(ctx, order); err != nil {
		h.logger.Warn("order cache write failed", zap.Error(err))
	}
	if err := h.deps.Sessions.Bind(ctx, sess, sc.Token(), order.ID); err != nil {
		h.logger.Warn("session bind failed", zap.Error(err))
	}
}
