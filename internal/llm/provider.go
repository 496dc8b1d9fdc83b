// Package llm adapts a set of remote and local LLM providers behind one
// Provider interface, for use by the cascade (internal/cascade) and the
// semantic-similarity embedder (internal/ann).
package llm

import (
	"context"
	"fmt"
)

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Chat sends a chat completion request and returns the model's answer.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures a single LLM provider/model entry in a cascade tier.
type Config struct {
	Provider string `yaml:"provider" json:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini
	Model    string `yaml:"model" json:"model"`
	Tier     string `yaml:"tier" json:"tier"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	// Local marks a provider as a local-inference fallback. Cascade
	// serializes calls into local providers with a process-wide mutex
	// regardless of worker count (see internal/cascade).
	Local bool `yaml:"local" json:"local"`
	// RPM, RPD and TPM are Strategy A rate-limit budgets; zero means
	// unconstrained (appropriate for Local providers).
	RPM int `yaml:"rpm" json:"rpm"`
	RPD int `yaml:"rpd" json:"rpd"`
	TPM int `yaml:"tpm" json:"tpm"`
}

// compatProvider serves every OpenAI-compatible endpoint. What varies
// between them is captured in endpointDefaults: the default base URL,
// the API path prefix (Gemini's OpenAI-compatible surface carries no
// /v1), and whether the endpoint is local inference.
type compatProvider struct {
	base openAICompatClient
}

func (p *compatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *compatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

type endpointDefaults struct {
	baseURL    string
	pathPrefix string
	local      bool
}

var endpoints = map[string]endpointDefaults{
	"openai":     {baseURL: "https://api.openai.com", pathPrefix: "/v1"},
	"groq":       {baseURL: "https://api.groq.com/openai", pathPrefix: "/v1"},
	"xai":        {baseURL: "https://api.x.ai", pathPrefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", pathPrefix: "/v1"},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"lmstudio":   {baseURL: "http://localhost:1234", pathPrefix: "/v1", local: true},
}

// NewProvider creates an LLM provider from configuration. Ollama gets its
// own adapter (its native embedding API batches better than its
// OpenAI-compatible one); every other supported provider differs only by
// endpoint defaults.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm: provider not specified")
	}
	if cfg.Provider == "ollama" {
		return NewOllama(cfg), nil
	}
	ep, ok := endpoints[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ep.baseURL
	}
	if ep.local {
		cfg.Local = true
	}
	return &compatProvider{base: newOpenAICompatClientPrefix(cfg, ep.pathPrefix)}, nil
}
