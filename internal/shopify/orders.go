package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// orderPageSize is how many orders a single history page carries.
const orderPageSize = 10

// Direction selects which way an order search pages through results.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// PageInfo mirrors the GraphQL connection page info.
type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

type ShippingAddress struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
	Area  string `json:"area"`
}

// Order is one order record as served to the storefront widget.
// OrderStatusURL is only set after enrichment; DeliveryDate is derived
// from the order's tags during response shaping and may be absent.
type Order struct {
	ID                string          `json:"id"`
	LegacyResourceID  string          `json:"legacyResourceId"`
	Name              string          `json:"name"`
	CreatedAt         time.Time       `json:"createdAt"`
	Tags              []string        `json:"tags"`
	FinancialStatus   string          `json:"financialStatus"`
	FulfillmentStatus string          `json:"fulfillmentStatus"`
	ShippingAddress   ShippingAddress `json:"shippingAddress"`
	TotalRefunded     decimal.Decimal `json:"totalRefunded"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	Note              string          `json:"note"`
	OrderStatusURL    string          `json:"orderStatusUrl,omitempty"`
	DeliveryDate      string          `json:"deliveryDate,omitempty"`
}

type OrderEdge struct {
	Cursor string `json:"cursor"`
	Node   Order  `json:"node"`
}

type OrderPage struct {
	PageInfo PageInfo    `json:"pageInfo"`
	Edges    []OrderEdge `json:"edges"`
}

// OrderSearch describes one page request against the order search
// endpoint. Cursor is optional for forward searches and mandatory for
// backward ones.
type OrderSearch struct {
	VendorName   string
	DeliveryDate string
	Cursor       string
	Direction    Direction
}

const orderEdgeFields = `
      pageInfo {
        hasNextPage
        hasPreviousPage
      }
      edges {
        cursor
        node {
          id
          legacyResourceId
          name
          createdAt
          tags
          displayFinancialStatus
          displayFulfillmentStatus
          shippingAddress {
            address1
            address2
            formattedArea
          }
          totalRefundedSet {
            shopMoney {
              amount
            }
          }
          totalPriceSet {
            shopMoney {
              amount
            }
          }
          note
        }
      }`

var (
	nextOrderHistoryQuery = fmt.Sprintf(`query CustomerOrderHistory($query: String!, $cursor: String) {
    orders(first: %d, query: $query, after: $cursor) {%s
    }
  }`, orderPageSize, orderEdgeFields)

	previousOrderHistoryQuery = fmt.Sprintf(`query CustomerOrderHistory($query: String!, $cursor: String) {
    orders(last: %d, query: $query, before: $cursor) {%s
    }
  }`, orderPageSize, orderEdgeFields)
)

// Wire shapes for the Admin API response; converted to the storefront
// model before leaving this package.

type moneyBag struct {
	ShopMoney struct {
		Amount decimal.Decimal `json:"amount"`
	} `json:"shopMoney"`
}

type orderNode struct {
	ID                       string    `json:"id"`
	LegacyResourceID         string    `json:"legacyResourceId"`
	Name                     string    `json:"name"`
	CreatedAt                time.Time `json:"createdAt"`
	Tags                     []string  `json:"tags"`
	DisplayFinancialStatus   string    `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus string    `json:"displayFulfillmentStatus"`
	ShippingAddress          struct {
		Address1      string `json:"address1"`
		Address2      string `json:"address2"`
		FormattedArea string `json:"formattedArea"`
	} `json:"shippingAddress"`
	TotalRefundedSet moneyBag `json:"totalRefundedSet"`
	TotalPriceSet    moneyBag `json:"totalPriceSet"`
	Note             string   `json:"note"`
}

type orderSearchData struct {
	Orders struct {
		PageInfo PageInfo `json:"pageInfo"`
		Edges    []struct {
			Cursor string    `json:"cursor"`
			Node   orderNode `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

// SearchOrders runs one cursor-paginated search against the order
// search endpoint. Edges come back in the server's ascending order for
// both directions; callers must not assume backward pages are
// pre-reversed.
func (c *Client) SearchOrders(ctx context.Context, search OrderSearch) (*OrderPage, error) {
	query := nextOrderHistoryQuery
	if search.Direction == Backward {
		if search.Cursor == "" {
			return nil, ErrCursorRequired
		}
		query = previousOrderHistoryQuery
	}

	variables := map[string]any{
		"query": searchFilter(search.VendorName, search.DeliveryDate),
	}
	if search.Cursor != "" {
		variables["cursor"] = search.Cursor
	}

	var data orderSearchData
	if err := c.graphql(ctx, query, variables, &data); err != nil {
		return nil, err
	}

	page := &OrderPage{
		PageInfo: data.Orders.PageInfo,
		Edges:    make([]OrderEdge, 0, len(data.Orders.Edges)),
	}
	for _, edge := range data.Orders.Edges {
		page.Edges = append(page.Edges, OrderEdge{
			Cursor: edge.Cursor,
			Node: Order{
				ID:                edge.Node.ID,
				LegacyResourceID:  edge.Node.LegacyResourceID,
				Name:              edge.Node.Name,
				CreatedAt:         edge.Node.CreatedAt,
				Tags:              edge.Node.Tags,
				FinancialStatus:   edge.Node.DisplayFinancialStatus,
				FulfillmentStatus: edge.Node.DisplayFulfillmentStatus,
				ShippingAddress: ShippingAddress{
					Line1: edge.Node.ShippingAddress.Address1,
					Line2: edge.Node.ShippingAddress.Address2,
					Area:  edge.Node.ShippingAddress.FormattedArea,
				},
				TotalRefunded: edge.Node.TotalRefundedSet.ShopMoney.Amount,
				TotalPrice:    edge.Node.TotalPriceSet.ShopMoney.Amount,
				Note:          edge.Node.Note,
			},
		})
	}

	return page, nil
}

// searchFilter builds the order search expression combining the vendor
// tag predicate with the delivery date tag.
func searchFilter(vendorName, deliveryDate string) string {
	return fmt.Sprintf("tag:'%s' AND '%s'", escapeFilterValue(vendorName), escapeFilterValue(deliveryDate))
}

// escapeFilterValue backslash-escapes the quote characters the search
// syntax reserves, so vendor names like "O'Brien" cannot break out of
// the quoted predicate.
func escapeFilterValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return value
}
