// Package tags resolves structured data out of Shopify tag lists: the
// vendor identity carried on a customer and the delivery date carried
// on an order.
package tags

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	vendorMarker    = "VendorName"
	vendorSeparator = "-"
)

var (
	ErrVendorTagMissing   = errors.New("no vendor tag on customer")
	ErrVendorTagAmbiguous = errors.New("more than one vendor tag on customer")
	ErrVendorTagMalformed = errors.New("vendor tag is malformed")
)

// Vendor returns the vendor name encoded in a customer's tags as
// "VendorName-<name>". Exactly one tag containing the marker must be
// present and it must split into the marker prefix and a non-empty
// name, otherwise resolution fails.
func Vendor(tagList []string) (string, error) {
	var marked []string
	for _, tag := range tagList {
		if strings.Contains(tag, vendorMarker) {
			marked = append(marked, tag)
		}
	}

	switch len(marked) {
	case 0:
		return "", ErrVendorTagMissing
	case 1:
	default:
		return "", fmt.Errorf("%w: found %d", ErrVendorTagAmbiguous, len(marked))
	}

	prefix, name, found := strings.Cut(marked[0], vendorSeparator)
	if !found || prefix != vendorMarker || name == "" {
		return "", fmt.Errorf("%w: %q", ErrVendorTagMalformed, marked[0])
	}

	return name, nil
}

// IsResolutionError reports whether err is one of the vendor
// resolution failures returned by Vendor.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrVendorTagMissing) ||
		errors.Is(err, ErrVendorTagAmbiguous) ||
		errors.Is(err, ErrVendorTagMalformed)
}

// deliveryDateLayout matches tags like "Fri 12 May 2023". The "2" day
// verb also accepts zero-padded days.
const deliveryDateLayout = "Mon 2 Jan 2006"

var weekdayPrefixes = []string{"Mon ", "Tue ", "Wed ", "Thu ", "Fri ", "Sat ", "Sun "}

// DeliveryDate returns the delivery date from the first order tag that
// starts with a three-letter weekday abbreviation and parses as a
// date. Orders without such a tag carry no delivery date; that is not
// an error.
func DeliveryDate(tagList []string) (time.Time, bool) {
	for _, tag := range tagList {
		if !hasWeekdayPrefix(tag) {
			continue
		}
		if date, err := time.Parse(deliveryDateLayout, tag); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

func hasWeekdayPrefix(tag string) bool {
	for _, prefix := range weekdayPrefixes {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}
