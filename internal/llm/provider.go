// Package llm is the seam between the pipeline and text-generation backends:
// system and user text in, raw text out. Callers expect strict JSON responses
// and run ExtractJSON before parsing.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/skyfield-labs/terralens/config"
	"github.com/skyfield-labs/terralens/internal/httpx"
)

// Usage reports token consumption and the dollar cost of one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Provider generates text from a system and user message pair.
type Provider interface {
	// Generate generates text using the given model
	Generate(ctx context.Context, system, user, model string) (string, error)

	// GenerateWithUsage generates text and returns token usage and cost
	GenerateWithUsage(ctx context.Context, system, user, model string) (string, Usage, error)

	// AvailableModels returns configured model keys
	AvailableModels() []string
}

// NewProvider creates a new LLM provider based on configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai":
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}

	return nil, fmt.Errorf("no valid LLM providers found")
}

// OpenAIProvider implements Provider against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIProvider struct {
	config config.LLMProvider
	models map[string]config.LLMModel
	http   *httpx.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.LLMProvider) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		config: cfg,
		models: cfg.Models,
		http:   httpx.New(timeout, cfg.MaxRetries, 300*time.Millisecond),
	}
}

// Generate generates text using the given model
func (p *OpenAIProvider) Generate(ctx context.Context, system, user, model string) (string, error) {
	out, _, err := p.GenerateWithUsage(ctx, system, user, model)
	return out, err
}

// GenerateWithUsage generates text and returns token usage and cost
func (p *OpenAIProvider) GenerateWithUsage(ctx context.Context, system, user, model string) (string, Usage, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", Usage{}, fmt.Errorf("OpenAI API key not configured")
	}

	m, ok := p.models[model]
	if !ok {
		return "", Usage{}, fmt.Errorf("model %s not configured", model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	err := p.http.DoJSON(ctx, http.MethodPost, baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + apiKey},
		chatReq{
			Model: apiModel,
			Messages: []chatMsg{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
		}, &out)
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices")
	}

	usage := Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}
	usage.Cost = CalculateCost(m, usage.InputTokens, usage.OutputTokens)
	return out.Choices[0].Message.Content, usage, nil
}

// AvailableModels returns configured model keys
func (p *OpenAIProvider) AvailableModels() []string {
	var models []string
	for name := range p.models {
		models = append(models, name)
	}
	return models
}

// CalculateCost prices a call from the model's per-1K token rates.
func CalculateCost(m config.LLMModel, inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * m.CostPer1K
	outputCost := float64(outputTokens) / 1000.0 * m.CostPer1KOutput
	return inputCost + outputCost
}
