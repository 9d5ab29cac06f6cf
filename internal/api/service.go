package api

import (
	"context"
	"net/http"
)

// Info returns service metadata.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	return executeObject[Info](ctx, c, http.MethodGet, "/api/info", nil, nil)
}

// EULA returns the raw text of the current terms of service.
func (c *Client) EULA(ctx context.Context) ([]byte, error) {
	return c.Execute(ctx, http.MethodGet, "/api/eula", nil, nil)
}

// GetUserConfig returns the caller's settings.
func (c *Client) GetUserConfig(ctx context.Context) (*UserConfig, error) {
	return executeObject[UserConfig](ctx, c, http.MethodGet, "/api/users", nil, nil)
}

// UpdateUserConfig replaces the caller's settings.
func (c *Client) UpdateUserConfig(ctx context.Context, cfg UserConfig) (bool, error) {
	return ExecuteJSON[bool](ctx, c, http.MethodPost, "/api/users", nil, cfg)
}
