// Package services holds the app's business flows: serving a
// customer's order history to the storefront widget and managing the
// install lifecycle that makes those lookups possible.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/chappapp/chapp/internal/logging"
	"github.com/chappapp/chapp/internal/observability"
	"github.com/chappapp/chapp/internal/shopify"
	"github.com/chappapp/chapp/internal/shopsession"
	"github.com/chappapp/chapp/internal/tags"
)

// OrderAPI is the slice of the Admin API the history flow depends on.
type OrderAPI interface {
	CustomerTags(ctx context.Context, customerID string) ([]string, error)
	SearchOrders(ctx context.Context, search shopify.OrderSearch) (*shopify.OrderPage, error)
	OrderStatusURLs(ctx context.Context, legacyResourceIDs []string) (*shopify.OrderStatusBatch, error)
}

// OrderAPIFactory builds an Admin API client for a shop from its
// stored offline token.
type OrderAPIFactory func(shop, accessToken string) OrderAPI

type HistoryService struct {
	sessions shopsession.Store
	newAPI   OrderAPIFactory
	logger   *slog.Logger
}

func NewHistoryService(sessions shopsession.Store, newAPI OrderAPIFactory, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		sessions: sessions,
		newAPI:   newAPI,
		logger:   logger,
	}
}

func (s *HistoryService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// HistoryRequest is one page request from the widget. Cursor is empty
// on the first page of a date; ToNextPage false walks backward and
// then requires a cursor.
type HistoryRequest struct {
	Shop         string
	CustomerID   string
	DeliveryDate string
	Cursor       string
	ToNextPage   bool
}

// HistoryResult is the widget response body. OrderData is omitted when
// the page has no orders to enrich.
type HistoryResult struct {
	Tags      []string                  `json:"tags"`
	Orders    *shopify.OrderPage        `json:"orders"`
	OrderData *shopify.OrderStatusBatch `json:"orderData,omitempty"`
}

// CustomerOrders resolves the customer's vendor identity from their
// tags, fetches one page of the vendor's orders for the requested
// delivery date, and enriches the page with order status URLs.
func (s *HistoryService) CustomerOrders(ctx context.Context, req HistoryRequest) (_ *HistoryResult, err error) {
	span := sentry.StartSpan(
		ctx,
		"service.history.customer_orders",
		sentry.WithOpName("service.history"),
		sentry.WithDescription("CustomerOrders"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	direction := shopify.Forward
	if !req.ToNextPage {
		direction = shopify.Backward
	}

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("direction", direction.String()))
	meter.Count("order_history.requested", 1)
	span.SetData("shopify.shop", req.Shop)
	defer func() {
		if err != nil {
			meter.Count("order_history.failed", 1, sentry.WithAttributes(
				attribute.String("reason", failureReason(err)),
			))
			span.Status = sentry.SpanStatusInternalError
			return
		}
		meter.Count("order_history.served", 1)
		span.Status = sentry.SpanStatusOK
	}()

	logger := s.loggerFromContext(ctx)

	session, err := s.sessions.Load(ctx, req.Shop)
	if err != nil {
		if errors.Is(err, shopsession.ErrNotFound) {
			return nil, ErrSessionRequired
		}
		return nil, fmt.Errorf("failed to load shop session: %w", err)
	}

	api := s.newAPI(req.Shop, session.AccessToken)

	tagList, err := api.CustomerTags(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer tags: %w", err)
	}

	vendorName, err := tags.Vendor(tagList)
	if err != nil {
		return nil, err
	}

	page, err := api.SearchOrders(ctx, shopify.OrderSearch{
		VendorName:   vendorName,
		DeliveryDate: req.DeliveryDate,
		Cursor:       req.Cursor,
		Direction:    direction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}

	result := &HistoryResult{Tags: tagList, Orders: page}
	if len(page.Edges) == 0 {
		logger.Info("served empty order history page",
			"shop", req.Shop,
			"vendor", vendorName,
			"delivery_date", req.DeliveryDate)
		return result, nil
	}

	ids, err := legacyResourceIDs(page.Edges)
	if err != nil {
		return nil, err
	}

	statuses, err := api.OrderStatusURLs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order status urls: %w", err)
	}

	edges := mergeStatusURLs(page.Edges, statuses.Orders)
	attachDeliveryDates(edges)

	result.Orders = &shopify.OrderPage{PageInfo: page.PageInfo, Edges: edges}
	result.OrderData = statuses

	logger.Info("served order history page",
		"shop", req.Shop,
		"vendor", vendorName,
		"delivery_date", req.DeliveryDate,
		"direction", direction.String(),
		"orders", len(edges))
	return result, nil
}

// legacyResourceIDs collects the REST ids of a page's orders. A
// duplicate id would make the status merge ambiguous, so it is
// rejected rather than silently resolved.
func legacyResourceIDs(edges []shopify.OrderEdge) ([]string, error) {
	ids := make([]string, 0, len(edges))
	seen := make(map[string]struct{}, len(edges))
	for _, edge := range edges {
		id := edge.Node.LegacyResourceID
		if id == "" {
			return nil, fmt.Errorf("order %s has no legacy resource id", edge.Node.ID)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("order page contains duplicate legacy resource id %s", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// attachDeliveryDates sets each order's delivery date from its own
// tags, normalized to an ISO calendar date. Orders without a parseable
// date tag are left without one.
func attachDeliveryDates(edges []shopify.OrderEdge) {
	for i := range edges {
		if date, ok := tags.DeliveryDate(edges[i].Node.Tags); ok {
			edges[i].Node.DeliveryDate = date.Format("2006-01-02")
		}
	}
}
