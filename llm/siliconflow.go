package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaodingfeng/contract-review/config"
)

// SiliconFlowProvider uses SiliconFlow's OpenAI-compatible chat API.
type SiliconFlowProvider struct {
	client *openai.Client
	model  string
}

func NewSiliconFlowProvider(cfg *config.SiliconFlowConfig, timeoutSeconds int) *SiliconFlowProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}

	return &SiliconFlowProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (p *SiliconFlowProvider) Name() string { return "siliconflow" }

// GenerateStructured requests a json_object completion and validates the
// reply before returning it.
func (p *SiliconFlowProvider) GenerateStructured(ctx context.Context, prompt string) (json.RawMessage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, p.wrapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: p.Name(), Op: "chat completion", Err: errNoChoices}
	}

	return extractJSON(p.Name(), resp.Choices[0].Message.Content)
}

// Generate requests a plain completion.
func (p *SiliconFlowProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", p.wrapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Provider: p.Name(), Op: "chat completion", Err: errNoChoices}
	}

	return resp.Choices[0].Message.Content, nil
}

// wrapAPIError classifies go-openai errors: HTTP 5xx and transport
// failures are transient, 4xx are not.
func (p *SiliconFlowProvider) wrapAPIError(err error) error {
	transient := true
	if apiErr, ok := err.(*openai.APIError); ok {
		transient = apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	if reqErr, ok := err.(*openai.RequestError); ok {
		transient = reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0
	}
	return &Error{Provider: p.Name(), Op: "chat completion", Transient: transient, Err: err}
}
