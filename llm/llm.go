// Package llm abstracts the pluggable model backends used by the review
// pipeline. A backend either returns syntactically valid JSON for
// structured requests or a typed error; truncated or non-JSON model
// output is never passed through as a partial result.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaodingfeng/contract-review/config"
)

// Provider is a single model backend.
type Provider interface {
	// GenerateStructured sends the prompt and returns the model's reply
	// as validated JSON.
	GenerateStructured(ctx context.Context, prompt string) (json.RawMessage, error)
	// Generate sends the prompt and returns the raw text reply.
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Error is a failure talking to or parsing from a model backend.
// Transient errors (network, timeout) are safe to retry; malformed
// output is deterministic for a given prompt and is not.
type Error struct {
	Provider  string
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// extractJSON trims markdown fences some models wrap around JSON replies
// and validates the remainder.
func extractJSON(provider, content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if !json.Valid([]byte(content)) {
		return nil, &Error{
			Provider: provider,
			Op:       "parse response",
			Err:      fmt.Errorf("model returned invalid JSON (%d bytes)", len(content)),
		}
	}
	return json.RawMessage(content), nil
}

// New builds the configured backend. Selection happens once at process
// start; config.Load has already rejected unknown provider names.
func New(cfg *config.AIConfig) (Provider, error) {
	var backend Provider
	switch cfg.Provider {
	case "ollama":
		backend = NewOllamaProvider(&cfg.Ollama, cfg.TimeoutSeconds)
	case "siliconflow":
		backend = NewSiliconFlowProvider(&cfg.SiliconFlow, cfg.TimeoutSeconds)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
	return NewGateway(backend, cfg.MaxRetries), nil
}
