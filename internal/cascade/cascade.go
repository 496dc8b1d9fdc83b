// Package cascade dispatches structured LLM calls across an ordered list
// of models, behind one of two pluggable admission strategies (Strategy A:
// rate-limit-driven, Strategy B: error-driven), parsing and validating
// each response against an internal/schema.Schema, retrying validation
// failures on the same model and advancing past transient errors.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/schema"
)

// Model is one entry in a cascade: a named, configured provider.
type Model struct {
	Name     string // e.g. "groq/llama-3.3-70b-versatile"
	Tier     string
	Provider llm.Provider
	Config   llm.Config
}

// Strategy decides which model to try next and records the outcome of
// each attempt. Strategy A and Strategy B implement this identically from
// the cascade's point of view; only their internal bookkeeping differs.
type Strategy interface {
	// NextModel returns the model to try for the next attempt, or an error
	// if every model is exhausted (no more admissible options).
	NextModel(ctx context.Context) (*Model, error)
	// RecordSuccess notes that model's attempt succeeded (Strategy B moves
	// it to the front of its active list; Strategy A, whose order is
	// static, counts the call against its limiter).
	RecordSuccess(model string)
	// RecordFailure notes that model failed this attempt with err (which
	// may be a *llm.RateLimitError, carrying the retry hint Strategy A
	// feeds into its limiter's BlockUntil).
	RecordFailure(model string, err error)
}

// ErrCascadeExhausted is returned when no model in the cascade is
// currently admissible.
var ErrCascadeExhausted = errors.New("cascade: exhausted")

// TokenGater is implemented by strategies that enforce a tokens-per-minute
// budget (currently only StrategyA, since Strategy B has no rate-limit
// concept at all). Cascade checks for this optionally so Strategy B
// callers pay no TPM overhead.
type TokenGater interface {
	WaitTokens(ctx context.Context, model string, tokens int) error
}

// estimateTokens approximates a prompt's token count with a word-count
// heuristic, good enough to size TPM gating without a real tokenizer
// dependency.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words)*1.3) + 1
}

// maxSameModelRetries is N in the common contract: the number of
// same-model retries attempted after a validation failure before
// cascading to the next model.
const maxSameModelRetries = 2

// Cascade dispatches Generate calls across Strategy's model ordering,
// sharing one Stats tracker and serializing calls into any Local model
// with a single process-wide mutex (local inference is one shared
// resource regardless of worker count).
type Cascade struct {
	strategy Strategy
	stats    *Stats
	localMu  *sync.Mutex
}

// New creates a Cascade. localMu may be shared across multiple Cascade
// instances in the same process so that every stage serializes on the
// same local-inference resource.
func New(strategy Strategy, stats *Stats, localMu *sync.Mutex) *Cascade {
	if localMu == nil {
		localMu = &sync.Mutex{}
	}
	return &Cascade{strategy: strategy, stats: stats, localMu: localMu}
}

// Stats returns the cascade's shared statistics tracker.
func (c *Cascade) Stats() *Stats { return c.stats }

// Result is a successful Generate outcome.
type Result struct {
	Data      map[string]any
	ModelUsed string
}

// Generate renders schema's hint into prompt, dispatches it across the
// cascade's models, and returns the first schema-valid parsed response.
// ctx governs the whole call sequence; each individual model attempt is
// bounded further by callTimeout.
func (c *Cascade) Generate(ctx context.Context, prompt string, sch *schema.Schema, callTimeout time.Duration) (*Result, error) {
	fullPrompt := prompt + "\n\n" + sch.Hint()

	for {
		model, err := c.strategy.NextModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("cascade: %w", err)
		}

		result, err := c.attemptModel(ctx, model, fullPrompt, sch, callTimeout)
		if err == nil {
			c.strategy.RecordSuccess(model.Name)
			return result, nil
		}

		slog.Warn("cascade: model attempt failed", "model", model.Name, "error", err)
		c.strategy.RecordFailure(model.Name, err)
	}
}

// attemptModel runs the same-model retry loop (up to maxSameModelRetries
// validation-failure retries) for one model. A transient/429 error returns
// immediately with no same-model retry, per the common contract.
func (c *Cascade) attemptModel(ctx context.Context, model *Model, prompt string, sch *schema.Schema, timeout time.Duration) (*Result, error) {
	for attempt := 0; attempt <= maxSameModelRetries; attempt++ {
		c.stats.RecordCall(model.Name, model.Tier, "")

		if gater, ok := c.strategy.(TokenGater); ok {
			if err := gater.WaitTokens(ctx, model.Name, estimateTokens(prompt)); err != nil {
				c.stats.RecordFailure(model.Name)
				return nil, err
			}
		}

		if model.Config.Local {
			c.localMu.Lock()
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := model.Provider.Chat(callCtx, llm.ChatRequest{
			Model:          model.Config.Model,
			Messages:       []llm.Message{{Role: "user", Content: prompt}},
			ResponseFormat: "json_object",
		})
		cancel()
		if model.Config.Local {
			c.localMu.Unlock()
		}

		if err != nil {
			c.stats.RecordFailure(model.Name)
			return nil, err
		}

		parsed, perr := salvageParse(resp.Content, sch)
		if perr != nil {
			if attempt < maxSameModelRetries {
				continue
			}
			c.stats.RecordFailure(model.Name)
			return nil, perr
		}

		if verrs := schema.Validate(sch, parsed); len(verrs) > 0 {
			if attempt < maxSameModelRetries {
				slog.Debug("cascade: validation failed, retrying same model",
					"model", model.Name, "attempt", attempt, "errors", verrs)
				continue
			}
			c.stats.RecordFailure(model.Name)
			raw := resp.Content
			if len(raw) > 500 {
				raw = raw[:500]
			}
			slog.Warn("cascade: response failed validation after retries",
				"model", model.Name,
				"missing", missingFields(sch, parsed),
				"extra", extraFields(sch, parsed),
				"raw", raw)
			return nil, fmt.Errorf("cascade: validation failed after %d attempts: %v", attempt+1, verrs)
		}

		c.stats.RecordSuccess(model.Name)
		return &Result{Data: parsed, ModelUsed: model.Name}, nil
	}
	return nil, fmt.Errorf("cascade: exhausted same-model retries for %s", model.Name)
}

func missingFields(s *schema.Schema, raw map[string]any) []string {
	var out []string
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if _, ok := raw[f.Name]; !ok {
			out = append(out, f.Name)
		}
	}
	return out
}

func extraFields(s *schema.Schema, raw map[string]any) []string {
	declared := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = true
	}
	var out []string
	for k := range raw {
		if !declared[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
