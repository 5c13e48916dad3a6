package services

import (
	"errors"

	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/tags"
)

// ErrSessionRequired means the shop has no stored offline session; the
// merchant must go through the install flow again. Never retried.
var ErrSessionRequired = errors.New("shop has no offline session")

// ErrInvalidOAuthState means an OAuth callback carried a state nonce
// this app never issued, or one issued for a different shop.
var ErrInvalidOAuthState = errors.New("oauth state is invalid or expired")

// failureReason buckets an order history error for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionRequired):
		return "session_required"
	case tags.IsResolutionError(err):
		return "vendor_resolution"
	case errors.Is(err, shopify.ErrCursorRequired):
		return "cursor_precondition"
	case errors.Is(err, shopify.ErrCustomerNotFound):
		return "customer_not_found"
	case shopify.IsUpstreamError(err):
		return "upstream"
	default:
		return "internal"
	}
}
