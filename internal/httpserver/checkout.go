package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

// checkout reconciles the cart against the checkout form's final quantities,
// then moves the order into payment arrangement. Payment itself is handled by
// the commerce platform and is not part of this service.
func (h *handlers) checkout(c *gin.Context) {
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

	placed, err := sc.TransitionToPayment(ctx)
	if err != nil {
		status, message := commerceFailure(err)
		if status == http.StatusBadGateway {
			message = msgCheckout
		}
		c.JSON(status, gin.H{"ok": false, "message": message})
		return
	}

	h.storeOrder(ctx, sess, sc, placed)
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": placed})
}
