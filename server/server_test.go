package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chappapp/chapp/internal/cache"
	"github.com/chappapp/chapp/internal/config"
	"github.com/chappapp/chapp/internal/handlers"
	"github.com/chappapp/chapp/internal/pager"
	"github.com/chappapp/chapp/internal/services"
	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/shopsession"
)

const (
	testShop      = "demo.myshopify.com"
	testAPISecret = "api-secret"
)

// fakeAdminAPI stands in for a shop's Admin API: the GraphQL endpoint
// serving customer tags and order searches, and the REST endpoint
// serving order status URLs.
type fakeAdminAPI struct {
	t *testing.T

	mu        sync.Mutex
	calls     int
	cursors   []string
	backwards []bool

	customerTags []string
	pages        map[string]ordersPage
	failGraphQL  bool
}

type ordersPage struct {
	hasNext bool
	hasPrev bool
	edges   []map[string]any
}

func orderEdge(cursor, legacyID, name string, tags ...string) map[string]any {
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"cursor": cursor,
		"node": map[string]any{
			"id":                       "gid://shopify/Order/" + legacyID,
			"legacyResourceId":         legacyID,
			"name":                     name,
			"createdAt":                "2023-05-10T03:00:00Z",
			"tags":                     tags,
			"displayFinancialStatus":   "PAID",
			"displayFulfillmentStatus": "FULFILLED",
			"shippingAddress": map[string]any{
				"address1":      "1 Flour St",
				"address2":      "2",
				"formattedArea": "Sydney NSW",
			},
			"totalRefundedSet": map[string]any{"shopMoney": map[string]any{"amount": "0.00"}},
			"totalPriceSet":    map[string]any{"shopMoney": map[string]any{"amount": "52.50"}},
			"note":             "",
		},
	}
}

func (f *fakeAdminAPI) upstreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdminAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/api/2023-04/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		if f.failGraphQL {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("graphql request did not decode: %v", err)
		}

		switch {
		case strings.Contains(req.Query, "customer(id:"):
			f.writeData(w, map[string]any{
				"customer": map[string]any{
					"id":   "gid://shopify/Customer/6543210",
					"tags": f.customerTags,
				},
			})
		case strings.Contains(req.Query, "orders("):
			cursor, _ := req.Variables["cursor"].(string)
			backward := strings.Contains(req.Query, "last:")

			f.mu.Lock()
			f.cursors = append(f.cursors, cursor)
			f.backwards = append(f.backwards, backward)
			f.mu.Unlock()

			key := fmt.Sprintf("%s|%t", cursor, backward)
			page, ok := f.pages[key]
			if !ok {
				f.t.Errorf("no fake page for cursor %q backward=%t", cursor, backward)
			}
			f.writeData(w, map[string]any{
				"orders": map[string]any{
					"pageInfo": map[string]any{
						"hasNextPage":     page.hasNext,
						"hasPreviousPage": page.hasPrev,
					},
					"edges": page.edges,
				},
			})
		default:
			f.t.Errorf("unexpected graphql query: %s", req.Query)
		}
	})

	mux.HandleFunc("GET /admin/api/2023-04/orders.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		statuses := []map[string]any{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id == "" {
				continue
			}
			statuses = append(statuses, map[string]any{
				"id":               jsonNumber(id),
				"order_status_url": "https://" + testShop + "/orders/" + id,
			})
		}
		if err := json.NewEncoder(w).Encode(map[string]any{"orders": statuses}); err != nil {
			f.t.Errorf("failed to encode status batch: %v", err)
		}
	})

	return mux
}

func jsonNumber(raw string) json.Number {
	return json.Number(raw)
}

func (f *fakeAdminAPI) writeData(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		f.t.Errorf("failed to encode graphql response: %v", err)
	}
}

// newTestServer wires the real router, handlers and services against
// the fake Admin API.
func newTestServer(t *testing.T, fake *fakeAdminAPI) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(fake.handler())
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		ShopifyAPIKey:     "api-key",
		ShopifyAPISecret:  testAPISecret,
		ShopifyScopes:     "read_orders,read_customers",
		ShopifyAPIVersion: "2023-04",
		BaseURL:           "https://chapp.example.com",
		Port:              "0",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := shopsession.NewMemoryStore()
	err := sessions.Save(context.Background(), &shopsession.Session{
		Shop:        testShop,
		AccessToken: "offline-token",
		InstalledAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	states, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() unexpected error: %v", err)
	}

	newClient := func(shop, accessToken string) *shopify.Client {
		return shopify.NewClient(shop, accessToken, cfg.ShopifyAPIVersion, logger).WithBaseURL(upstream.URL)
	}

	historyService := services.NewHistoryService(sessions, func(shop, accessToken string) services.OrderAPI {
		return newClient(shop, accessToken)
	}, logger)
	installService := services.NewInstallService(cfg, sessions, states, func(shop, accessToken string) services.WebhookRegistrar {
		return newClient(shop, accessToken)
	}, logger)

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		HistoryService: historyService,
		InstallService: installService,
		CacheProvider:  states,
		Sessions:       sessions,
		ForwarderFactory: func(shop, accessToken string) handlers.GraphQLForwarder {
			return newClient(shop, accessToken)
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("handlers.New() unexpected error: %v", err)
	}

	srv, err := New(cfg, logger, h)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	testServer := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(testServer.Close)
	return testServer
}

func signedOrdersURL(t *testing.T, base string) string {
	t.Helper()

	values := url.Values{
		"shop":                  []string{testShop},
		"logged_in_customer_id": []string{"6543210"},
		"timestamp":             []string{"1684000000"},
	}
	values.Set("signature", shopify.SignProxyQuery(values, testAPISecret))
	return base + "/customer-orders?" + values.Encode()
}

func postOrders(t *testing.T, serverURL string, body map[string]any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}
	resp, err := http.Post(signedOrdersURL(t, serverURL), "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if len(raw) > 0 && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("response did not decode: %v; body: %s", err, raw)
		}
	}
	return resp, decoded
}

func TestOrderHistory_EndToEnd(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{
		t:            t,
		customerTags: []string{"VendorName-Acme", "wholesale"},
		pages: map[string]ordersPage{
			"|false": {
				hasNext: true,
				edges:   []map[string]any{orderEdge("cur-a", "111", "#1001", "Fri 12 May 2023")},
			},
		},
	}
	serverURL := newTestServer(t, fake).URL

	resp, body := postOrders(t, serverURL, map[string]any{
		"customerId":   "6543210",
		"toNextPage":   true,
		"deliveryDate": "Fri 12 May 2023",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var tags []string
	if err := json.Unmarshal(body["tags"], &tags); err != nil || len(tags) != 2 {
		t.Errorf("tags = %s", body["tags"])
	}

	var orders shopify.OrderPage
	if err := json.Unmarshal(body["orders"], &orders); err != nil {
		t.Fatalf("orders did not decode: %v", err)
	}
	if len(orders.Edges) != 1 {
		t.Fatalf("edges = %+v", orders.Edges)
	}
	node := orders.Edges[0].Node
	if node.OrderStatusURL != "https://demo.myshopify.com/orders/111" {
		t.Errorf("order status url = %q", node.OrderStatusURL)
	}
	if node.DeliveryDate != "2023-05-12" {
		t.Errorf("delivery date = %q", node.DeliveryDate)
	}
	if node.TotalPrice.String() != "52.50" {
		t.Errorf("total price = %q", node.TotalPrice)
	}

	if _, present := body["orderData"]; !present {
		t.Error("orderData missing from enriched response")
	}
}

func TestOrderHistory_EmptyPageOmitsOrderData(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{
		t:            t,
		customerTags: []string{"VendorName-Acme"},
		pages: map[string]ordersPage{
			"|false": {edges: []map[string]any{}},
		},
	}
	serverURL := newTestServer(t, fake).URL

	resp, body := postOrders(t, serverURL, map[string]any{
		"customerId":   "6543210",
		"toNextPage":   true,
		"deliveryDate": "Fri 12 May 2023",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, present := body["orderData"]; present {
		t.Error("orderData must be omitted for an empty page")
	}
}

func TestOrderHistory_UnsignedRequestNeverReachesUpstream(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{t: t, customerTags: []string{"VendorName-Acme"}}
	serverURL := newTestServer(t, fake).URL

	resp, err := http.Post(
		serverURL+"/customer-orders?shop="+testShop,
		"application/json",
		strings.NewReader(`{"customerId":"6543210","toNextPage":true,"deliveryDate":"Fri 12 May 2023"}`),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if calls := fake.upstreamCalls(); calls != 0 {
		t.Errorf("unsigned request reached upstream %d times", calls)
	}
}

func TestOrderHistory_UpstreamFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{t: t, failGraphQL: true}
	serverURL := newTestServer(t, fake).URL

	resp, _ := postOrders(t, serverURL, map[string]any{
		"customerId":   "6543210",
		"toNextPage":   true,
		"deliveryDate": "Fri 12 May 2023",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

// TestOrderHistory_PagedRoundTrip drives the widget's pagination state
// machine through a forward and backward walk over three pages.
func TestOrderHistory_PagedRoundTrip(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{
		t:            t,
		customerTags: []string{"VendorName-Acme"},
		pages: map[string]ordersPage{
			// Fresh date: page one, more ahead.
			"|false": {
				hasNext: true,
				edges: []map[string]any{
					orderEdge("cur-a", "111", "#1001", "Fri 12 May 2023"),
					orderEdge("cur-b", "222", "#1002", "Fri 12 May 2023"),
				},
			},
			// Forward from cur-b: page two.
			"cur-b|false": {
				hasPrev: true,
				edges: []map[string]any{
					orderEdge("cur-c", "333", "#1003", "Fri 12 May 2023"),
				},
			},
			// Backward from cur-c: page one again.
			"cur-c|true": {
				hasNext: true,
				edges: []map[string]any{
					orderEdge("cur-a", "111", "#1001", "Fri 12 May 2023"),
					orderEdge("cur-b", "222", "#1002", "Fri 12 May 2023"),
				},
			},
		},
	}
	serverURL := newTestServer(t, fake).URL

	state := pager.State{}
	runFetch := func(fetch pager.Fetch) pager.PageResult {
		t.Helper()

		resp, body := postOrders(t, serverURL, map[string]any{
			"customerId":   "6543210",
			"toNextPage":   fetch.ToNextPage,
			"cursor":       fetch.Cursor,
			"deliveryDate": fetch.DeliveryDate,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		var orders shopify.OrderPage
		if err := json.Unmarshal(body["orders"], &orders); err != nil {
			t.Fatalf("orders did not decode: %v", err)
		}

		result := pager.PageResult{
			Size:            len(orders.Edges),
			HasNextPage:     orders.PageInfo.HasNextPage,
			HasPreviousPage: orders.PageInfo.HasPreviousPage,
		}
		if result.Size > 0 {
			result.FirstCursor = orders.Edges[0].Cursor
			result.LastCursor = orders.Edges[len(orders.Edges)-1].Cursor
		}
		return result
	}

	// Pick a date.
	state, fetch, err := state.SubmitDate("Fri 12 May 2023")
	if err != nil {
		t.Fatalf("SubmitDate() unexpected error: %v", err)
	}
	state = state.Resolve(runFetch(fetch))
	if state.Phase != pager.Loaded || state.NextDisabled() {
		t.Fatalf("after page one: %+v", state)
	}

	// Walk forward.
	state, fetch, err = state.Next()
	if err != nil {
		t.Fatalf("Next() unexpected error: %v", err)
	}
	state = state.Resolve(runFetch(fetch))
	if state.Phase != pager.Loaded || state.PreviousDisabled() || !state.NextDisabled() {
		t.Fatalf("after page two: %+v", state)
	}

	// Walk back.
	state, fetch, err = state.Previous()
	if err != nil {
		t.Fatalf("Previous() unexpected error: %v", err)
	}
	state = state.Resolve(runFetch(fetch))
	if state.Phase != pager.Loaded || state.FirstCursor != "cur-a" {
		t.Fatalf("after walking back: %+v", state)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	wantCursors := []string{"", "cur-b", "cur-c"}
	wantBackwards := []bool{false, false, true}
	for i := range wantCursors {
		// Every order search is preceded by a customer tag query, so
		// only the order-search recordings are compared.
		if fake.cursors[i] != wantCursors[i] || fake.backwards[i] != wantBackwards[i] {
			t.Errorf("search %d = (%q, backward=%t), want (%q, backward=%t)",
				i, fake.cursors[i], fake.backwards[i], wantCursors[i], wantBackwards[i])
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{t: t}
	serverURL := newTestServer(t, fake).URL

	resp, err := http.Get(serverURL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestWidgetAssetIsServed(t *testing.T) {
	t.Parallel()

	fake := &fakeAdminAPI{t: t}
	serverURL := newTestServer(t, fake).URL

	resp, err := http.Get(serverURL + "/assets/js/customer-orders.js")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read asset: %v", err)
	}
	if !strings.Contains(string(body), "customer-orders") {
		t.Error("served asset does not look like the widget script")
	}
}
