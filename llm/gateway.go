package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var errNoChoices = errors.New("response contained no choices")

// Gateway wraps a backend with bounded retry for transient transport
// failures. Malformed model output is deterministic for a given prompt
// and fails immediately.
type Gateway struct {
	backend    Provider
	maxRetries int
	backoff    time.Duration
}

func NewGateway(backend Provider, maxRetries int) *Gateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Gateway{
		backend:    backend,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

func (g *Gateway) Name() string { return g.backend.Name() }

func (g *Gateway) GenerateStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	var result json.RawMessage
	err := g.retry(ctx, "structured", func() error {
		var err error
		result, err = g.backend.GenerateStructured(ctx, prompt)
		return err
	})
	return result, err
}

func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	var result string
	err := g.retry(ctx, "generate", func() error {
		var err error
		result, err = g.backend.Generate(ctx, prompt)
		return err
	})
	return result, err
}

func (g *Gateway) retry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying model call",
				"provider", g.backend.Name(),
				"op", op,
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(time.Duration(attempt) * g.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
