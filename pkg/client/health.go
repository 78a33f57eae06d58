package client

import "context"

// Health reports the API's liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doRequest(ctx, "GET", "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready reports whether the API can reach its database.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doRequest(ctx, "GET", "/readyz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
