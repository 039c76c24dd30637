package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
)

// Error is a JSON-RPC error payload returned under a successful HTTP
// status. It is a deterministic rejection and is never retried.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Config holds transport settings for the ledger RPC client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Backoff  BackoffConfig
}

// Client issues JSON-RPC calls to a Solana node with exponential-backoff
// retry on transport failures.
type Client struct {
	endpoint   string
	httpClient *http.Client
	backoff    BackoffConfig
	log        *slog.Logger
}

// NewClient creates a ledger RPC client.
func NewClient(cfg Config, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.Backoff
	if backoff.InitialDelay == 0 {
		backoff = DefaultBackoff
	}
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff: backoff,
		log:     log.With("component", "rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Call makes a JSON-RPC call, retrying transport failures under the
// backoff policy. A JSON-RPC error object is surfaced without retry.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage

	err := WithBackoff(ctx, c.backoff, c.log, method, func() error {
		metrics.RPCCallsTotal.WithLabelValues(method).Inc()

		r, err := c.callOnce(ctx, method, params)
		if err != nil {
			metrics.RPCErrorsTotal.WithLabelValues(method).Inc()
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return result, nil
}

func (c *Client) callOnce(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
