package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/commerce"
	"storefront/internal/reconcile"
)

const (
	msgCartUnavailable = "Your cart is temporarily unavailable. Please try again."
	msgCartUpdate      = "We couldn't update your cart. Please try again."
	msgNoActiveOrder   = "There is no active cart for this session."
	msgCheckout        = "We couldn't complete checkout. Please review your cart and try again."
)

// userMessages maps commerce error codes to the copy shown to shoppers.
// Unknown codes fall back to the remote-provided message.
var userMessages = map[string]string{
	commerce.ErrCodeInsufficientStock: "One of the items is no longer available in the requested quantity.",
	commerce.ErrCodeOrderModification: "This order can no longer be changed.",
	commerce.ErrCodeOrderLimit:        "Your cart has reached the maximum order size.",
	commerce.ErrCodeNegativeQuantity:  "Quantities must be positive.",
	commerce.ErrCodeOrderTransition:   "Your order is not ready for checkout yet.",
}

func messageForCode(code, remote string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	if remote != "" {
		return remote
	}
	return msgCartUpdate
}

// reconcileFailure turns a failed reconciliation into an HTTP status and a
// single aggregated user-facing message. Domain rejections are 409s the user
// can act on; everything else is a 502 behind a generic message.
func reconcileFailure(err error) (int, string) {
	var rerr *reconcile.Error
	if !errors.As(err, &rerr) {
		return http.StatusBadGateway, msgCartUpdate
	}

	domainFailures := rerr.DomainFailures()
	if len(domainFailures) == 0 {
		return http.StatusBadGateway, msgCartUpdate
	}

	seen := make(map[string]bool)
	var parts []string
	for _, f := range domainFailures {
		msg := messageForCode(f.Code, f.Message)
		if !seen[msg] {
			seen[msg] = true
			parts = append(parts, msg)
		}
	}
	return http.StatusConflict, strings.Join(parts, " ")
}

// commerceFailure maps a single commerce call's error for non-reconcile
// handlers (add to cart, checkout transition).
func commerceFailure(err error) (int, string) {
	var derr *commerce.DomainError
	if errors.As(err, &derr) {
		return http.StatusConflict, messageForCode(derr.Code, derr.Message)
	}
	return http.StatusBadGateway, msgCartUnavailable
}
