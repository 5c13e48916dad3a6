// Package shopify provides clients for the two Admin API surfaces the
// app talks to: the GraphQL order/customer queries and the REST order
// status lookup. It also holds the request authenticity checks for
// traffic arriving from Shopify (app proxy signatures, OAuth callback
// HMACs, webhook digests and session tokens).
package shopify

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chappapp/chapp/internal/observability"
)

const (
	userAgent      = "chapp-order-history"
	requestTimeout = 15 * time.Second
)

// Client is an Admin API client bound to a single shop and offline
// access token.
type Client struct {
	shop       string
	token      string
	apiVersion string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(shop, accessToken, apiVersion string, logger *slog.Logger) *Client {
	return &Client{
		shop:       shop,
		token:      accessToken,
		apiVersion: apiVersion,
		baseURL:    "https://" + shop,
		httpClient: observability.NewHTTPClient(requestTimeout),
		logger:     logger,
	}
}

// WithBaseURL returns a copy of the client that sends requests to the
// given base URL instead of the shop's domain. Used by tests to point
// the client at a stub server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	clone.httpClient = &http.Client{Timeout: requestTimeout}
	return &clone
}

func (c *Client) adminURL(resource string) string {
	return c.baseURL + "/admin/api/" + c.apiVersion + "/" + resource
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("User-Agent", userAgent)
}
