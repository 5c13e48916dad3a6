package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// OrderStatus is one record from the REST order lookup: the numeric
// order id and its status-tracking URL.
type OrderStatus struct {
	ID             int64  `json:"id"`
	OrderStatusURL string `json:"order_status_url"`
}

// OrderStatusBatch is the raw payload of one batched lookup, returned
// to the widget unchanged as the orderData field.
type OrderStatusBatch struct {
	Orders []OrderStatus `json:"orders"`
}

// OrderStatusURLs fetches tracking URLs for a batch of legacy order
// ids in a single REST call. Callers must not invoke it with an empty
// batch; pages without edges skip enrichment entirely.
func (c *Client) OrderStatusURLs(ctx context.Context, legacyResourceIDs []string) (*OrderStatusBatch, error) {
	if len(legacyResourceIDs) == 0 {
		return nil, fmt.Errorf("order status lookup requires at least one id")
	}

	params := url.Values{
		"ids":    []string{strings.Join(legacyResourceIDs, ",")},
		"fields": []string{"id,order_status_url"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminURL("orders.json")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build order status request: %w", err)
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Surface: "rest", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Surface: "rest", Status: resp.StatusCode, Messages: []string{strings.TrimSpace(string(body))}}
	}

	var batch OrderStatusBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, &UpstreamError{Surface: "rest", Status: resp.StatusCode, Err: err}
	}

	return &batch, nil
}
