package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xiaodingfeng/contract-review/config"
)

// OllamaProvider talks to a local ollama server over its JSON HTTP API.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaProvider(cfg *config.OllamaConfig, timeoutSeconds int) *OllamaProvider {
	return &OllamaProvider{
		baseURL: cfg.URL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// GenerateStructured asks ollama for a JSON-constrained chat completion.
func (p *OllamaProvider) GenerateStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	reqBody := ollamaChatRequest{
		Model:    p.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   "json",
	}

	var resp ollamaChatResponse
	if err := p.post(ctx, "/api/chat", reqBody, &resp); err != nil {
		return nil, err
	}

	return extractJSON(p.Name(), resp.Message.Content)
}

// Generate asks ollama for a plain text completion.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
	}

	var resp ollamaGenerateResponse
	if err := p.post(ctx, "/api/generate", reqBody, &resp); err != nil {
		return "", err
	}

	return resp.Response, nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return &Error{Provider: p.Name(), Op: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Provider: p.Name(), Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &Error{Provider: p.Name(), Op: "send request", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{
			Provider:  p.Name(),
			Op:        "send request",
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, raw),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Provider: p.Name(), Op: "decode response", Err: err}
	}
	return nil
}
