package services

import (
	"strconv"

	"github.com/chappapp/chapp/internal/shopify"
)

// mergeStatusURLs joins enrichment records onto order edges by legacy
// resource id and returns a new edge slice; the input is never
// mutated. Edges without a matching record keep an unset status URL.
func mergeStatusURLs(edges []shopify.OrderEdge, statuses []shopify.OrderStatus) []shopify.OrderEdge {
	urlByID := make(map[string]string, len(statuses))
	for _, status := range statuses {
		urlByID[strconv.FormatInt(status.ID, 10)] = status.OrderStatusURL
	}

	merged := make([]shopify.OrderEdge, len(edges))
	copy(merged, edges)
	for i := range merged {
		if url, ok := urlByID[merged[i].Node.LegacyResourceID]; ok {
			merged[i].Node.OrderStatusURL = url
		}
	}
	return merged
}
