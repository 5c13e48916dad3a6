package shopify

import "regexp"

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// IsShopDomain reports whether value is a well-formed myshopify.com
// shop domain. Everything keyed by shop (sessions, OAuth state,
// outbound Admin API hosts) goes through this check first.
func IsShopDomain(value string) bool {
	return shopDomainPattern.MatchString(value)
}
