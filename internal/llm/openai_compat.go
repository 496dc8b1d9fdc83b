package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// openAICompatClient is the shared base for all OpenAI-compatible providers.
// It makes exactly one HTTP attempt per call and never sleeps internally:
// deciding whether to retry, wait, or cascade to the next model is the
// cascade's job (internal/cascade), not the transport's.
type openAICompatClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string // API path prefix, defaults to "/v1"
}

func newOpenAICompatClient(cfg Config) openAICompatClient {
	return newOpenAICompatClientPrefix(cfg, "/v1")
}

func newOpenAICompatClientPrefix(cfg Config, prefix string) openAICompatClient {
	// An outer transport bound above the per-call context timeouts the
	// cascade applies (30s remote, 90s local).
	timeout := 60 * time.Second
	if cfg.Local {
		timeout = 120 * time.Second
	}
	return openAICompatClient{
		cfg:        cfg,
		pathPrefix: prefix,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// RateLimitError is returned when a provider responds 429. RetryAfter and
// DailyReset are hints for Strategy A's block_until. This client fills
// only RetryAfter (see parseRateLimitError); it never sets DailyReset, so
// a daily-quota 429 is reported as a plain retry delay.
type RateLimitError struct {
	Model      string
	RetryAfter time.Duration
	DailyReset time.Time
	Raw        string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm: %s rate limited: %s", e.Model, e.Raw)
}

// TransientError wraps a non-2xx response that is likely to succeed on a
// different provider (502/503/504, or a network-level failure). The cascade
// advances to the next model on a TransientError without retrying the same
// model.
type TransientError struct {
	Model      string
	StatusCode int
	Raw        string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("llm: %s transient error (status %d): %s", e.Model, e.StatusCode, e.Raw)
}

// --- shared implementation ---

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       json.RawMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAICompatClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat == "json_object" {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	respBody, err := c.doPost(ctx, c.pathPrefix+"/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &ChatResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *openAICompatClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := embeddingRequest{
		Model: c.cfg.Model,
		Input: texts,
	}

	respBody, err := c.doPost(ctx, c.pathPrefix+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

// retryableStatusCode reports whether a status code is a transient failure
// likely to succeed against a different model.
func retryableStatusCode(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *openAICompatClient) doPost(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Model: c.cfg.Model, StatusCode: 0, Raw: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Model: c.cfg.Model, StatusCode: resp.StatusCode, Raw: err.Error()}
	}

	if resp.StatusCode == http.StatusOK {
		return respBody, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRateLimitError(c.cfg.Model, resp, respBody)
	}

	if retryableStatusCode(resp.StatusCode) {
		return nil, &TransientError{Model: c.cfg.Model, StatusCode: resp.StatusCode, Raw: string(respBody)}
	}

	return nil, fmt.Errorf("llm: %s API error %d: %s", c.cfg.Model, resp.StatusCode, string(respBody))
}

// parseRateLimitError turns a 429 response into a RateLimitError whose
// RetryAfter comes from, in order: a "retryDelay" field in the body, a
// Retry-After header in seconds, an X-RateLimit-Reset unix timestamp, or
// else a conservative 30s default. DailyReset is left zero.
func parseRateLimitError(model string, resp *http.Response, body []byte) *RateLimitError {
	const defaultRetryAfter = 30 * time.Second

	retryAfter := defaultRetryAfter
	if d, ok := parseRetryDelayField(body); ok {
		retryAfter = d
	} else if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			retryAfter = time.Duration(seconds) * time.Second
		}
	} else if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if ts, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if d := time.Until(time.Unix(ts, 0)); d > 0 {
				retryAfter = d
			}
		}
	}

	return &RateLimitError{
		Model:      model,
		RetryAfter: retryAfter,
		Raw:        string(body),
	}
}

// parseRetryDelayField scans for a `"retryDelay":"30s"`-shaped substring,
// the form Gemini's 429 error body embeds, without a full JSON unmarshal
// (the surrounding error envelope shape varies by provider).
func parseRetryDelayField(body []byte) (time.Duration, bool) {
	s := string(body)
	idx := strings.Index(s, `"retryDelay"`)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(`"retryDelay"`):]
	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return 0, false
	}
	rest = rest[start+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return 0, false
	}
	val := strings.TrimSuffix(rest[:end], "s")
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
