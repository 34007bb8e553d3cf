package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xiaodingfeng/contract-review/config"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOllamaProvider(&config.OllamaConfig{URL: server.URL, Model: "test-model"}, 5)
}

func TestOllamaGenerateStructured(t *testing.T) {
	provider := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}

		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("Expected format json, got %q", req.Format)
		}
		if req.Stream {
			t.Error("Expected stream false")
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model test-model, got %s", req.Model)
		}

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"contract_type":"NDA"}`},
			Done:    true,
		})
	})

	raw, err := provider.GenerateStructured(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	if string(raw) != `{"contract_type":"NDA"}` {
		t.Errorf("Unexpected result: %s", raw)
	}
}

func TestOllamaGenerateStructuredNonJSON(t *testing.T) {
	provider := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "I cannot answer in JSON."},
		})
	})

	_, err := provider.GenerateStructured(context.Background(), "classify this")
	if err == nil {
		t.Fatal("Expected error for non-JSON output")
	}
	if IsTransient(err) {
		t.Error("Malformed output must not be retried")
	}
}

func TestOllamaGenerate(t *testing.T) {
	provider := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected /api/generate, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "合同通常包含违约条款。"})
	})

	answer, err := provider.Generate(context.Background(), "什么是违约条款？")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "合同通常包含违约条款。" {
		t.Errorf("Unexpected answer: %s", answer)
	}
}

func TestOllamaServerError(t *testing.T) {
	provider := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := provider.GenerateStructured(context.Background(), "classify this")
	if err == nil {
		t.Fatal("Expected error for 503 response")
	}
	if !IsTransient(err) {
		t.Error("5xx responses should be transient")
	}
}

func TestOllamaUnreachable(t *testing.T) {
	provider := NewOllamaProvider(&config.OllamaConfig{
		URL:   "http://127.0.0.1:1", // nothing listens here
		Model: "test-model",
	}, 1)

	_, err := provider.GenerateStructured(context.Background(), "classify this")
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}
	if !IsTransient(err) {
		t.Error("Connection failures should be transient")
	}
}
