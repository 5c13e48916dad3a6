package shopify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCursorRequired is returned when a backward order search is
// attempted without a cursor to page back from.
var ErrCursorRequired = errors.New("backward pagination requires a cursor")

// ErrCustomerNotFound is returned when the customer id in a request
// does not resolve to a customer on the shop.
var ErrCustomerNotFound = errors.New("customer not found")

// UpstreamError is a failed call to the Admin API: a transport error,
// a non-2xx status, or GraphQL-level errors in an otherwise successful
// response.
type UpstreamError struct {
	Surface  string // "graphql" or "rest"
	Status   int
	Messages []string
	Err      error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shopify %s call failed", e.Surface)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err originated from an Admin API
// call rather than from this app's own validation.
func IsUpstreamError(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
