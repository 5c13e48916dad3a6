package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// ForwardGraphQL relays a raw GraphQL payload from the embedded admin
// UI to the shop's Admin API and returns the upstream status and body
// untouched. Transport failures are the only errors; non-200 statuses
// are the caller's to pass through.
func (c *Client) ForwardGraphQL(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL("graphql.json"), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build graphql request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &UpstreamError{Surface: "graphql", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Err: err}
	}

	return resp.StatusCode, body, nil
}

// graphql executes a single Admin GraphQL query and unmarshals the
// data payload into out. GraphQL-level errors are surfaced as an
// UpstreamError rather than being folded into a partial result.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL("graphql.json"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Surface: "graphql", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Messages: []string{string(bytes.TrimSpace(body))}}
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Err: err}
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, gqlErr := range envelope.Errors {
			messages = append(messages, gqlErr.Message)
		}
		return &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Messages: messages}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &UpstreamError{Surface: "graphql", Status: resp.StatusCode, Err: fmt.Errorf("failed to decode data: %w", err)}
	}

	return nil
}
