package shopify

import "context"

const customerTagsQuery = `query GetCustomerTags($customerId: ID!) {
    customer(id: $customerId) {
      id
      tags
    }
  }`

type customerTagsData struct {
	Customer *struct {
		ID   string   `json:"id"`
		Tags []string `json:"tags"`
	} `json:"customer"`
}

// CustomerTags returns the tag list for a customer given its numeric
// storefront id.
func (c *Client) CustomerTags(ctx context.Context, customerID string) ([]string, error) {
	variables := map[string]any{
		"customerId": "gid://shopify/Customer/" + customerID,
	}

	var data customerTagsData
	if err := c.graphql(ctx, customerTagsQuery, variables, &data); err != nil {
		return nil, err
	}

	if data.Customer == nil {
		return nil, ErrCustomerNotFound
	}
	return data.Customer.Tags, nil
}
