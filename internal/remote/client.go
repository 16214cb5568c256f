// Package remote talks to the system-of-record over Odoo-style JSON-RPC.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"

	"catalog-mirror/internal/config"
	"catalog-mirror/internal/domain"

	"go.uber.org/zap"
)

// Client issues execute_kw calls against the remote catalog.
type Client struct {
	cfg    config.RemoteConfig
	http   *http.Client
	logger *zap.Logger
	nextID atomic.Int64
}

// New creates a client. Configuration is validated per call so that a
// missing option surfaces as ConfigError where the sync is triggered.
func New(cfg config.RemoteConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

// Call runs model.method with positional args and keyword args and returns
// the raw result.
func (c *Client) Call(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: rpcParams{
			Service: "object",
			Method:  "execute_kw",
			Args:    []interface{}{c.cfg.Tenant, c.cfg.Principal, c.cfg.APIKey, model, method, args, kwargs},
		},
		ID: c.nextID.Add(1),
	})
	if err != nil {
		return nil, &domain.RemoteError{Model: model, Method: method, Message: "failed to encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.RemoteError{Model: model, Method: method, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Remote call failed",
			zap.String("model", model),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, &domain.RemoteError{
			Model:     model,
			Method:    method,
			Message:   transportMessage(ctx, err),
			Temporary: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Model: model, Method: method, Message: "failed to read response", Temporary: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RemoteError{
			Model:     model,
			Method:    method,
			Message:   fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200)),
			Temporary: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &domain.RemoteError{Model: model, Method: method, Message: "undecodable response", Err: err}
	}

	if decoded.Error != nil {
		msg := decoded.Error.Message
		if decoded.Error.Data.Message != "" {
			msg = decoded.Error.Data.Message
		}
		return nil, &domain.RemoteError{Model: model, Method: method, Message: msg}
	}

	return decoded.Result, nil
}

func transportMessage(ctx context.Context, err error) string {
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timed out"
	default:
		return "transport failure"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// CheckConfig reports a ConfigError when the remote cannot be called.
func (c *Client) CheckConfig() error {
	return c.cfg.Validate()
}
