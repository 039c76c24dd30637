package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
)

// BackoffConfig defines the retry policy for transport calls: the delay
// starts at InitialDelay and doubles per attempt; the call fails once the
// delay that would be slept exceeds MaxDelay. The cap bounds delay
// magnitude, not attempt count, but with doubling it bounds attempts in
// practice (5s initial and a 5m cap allow at most 7 attempts).
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBackoff matches the production retry policy.
var DefaultBackoff = BackoffConfig{
	InitialDelay: 5 * time.Second,
	MaxDelay:     5 * time.Minute,
}

// WithBackoff runs fn until it succeeds, returns a permanent error, or the
// next retry delay would exceed the cap. Deterministic rejections (JSON-RPC
// error payloads under HTTP 200) are never retried.
func WithBackoff(ctx context.Context, cfg BackoffConfig, log *slog.Logger, op string, fn func() error) error {
	delay := cfg.InitialDelay

	for {
		err := fn()
		if err == nil {
			return nil
		}

		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return err
		}

		if delay > cfg.MaxDelay {
			log.Error("request failed, retry delay cap exceeded", "op", op, "error", err)
			return err
		}

		metrics.RPCRetriesTotal.WithLabelValues(op).Inc()
		log.Debug("request failed, retrying", "op", op, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
