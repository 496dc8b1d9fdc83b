package cascade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bbiangul/legalpipe/internal/llm"
	"github.com/bbiangul/legalpipe/internal/ratelimit"
	"github.com/bbiangul/legalpipe/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []func() (*llm.ChatResponse, error)
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx]()
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func ok(content string) func() (*llm.ChatResponse, error) {
	return func() (*llm.ChatResponse, error) { return &llm.ChatResponse{Content: content}, nil }
}

func transientErr() func() (*llm.ChatResponse, error) {
	return func() (*llm.ChatResponse, error) {
		return nil, &llm.TransientError{Model: "x", StatusCode: 503, Raw: "unavailable"}
	}
}

func TestCascadeGenerateSucceedsOnFirstModel(t *testing.T) {
	sch, err := schema.Compile("obligation", `phrase!: string`)
	require.NoError(t, err)

	modelA := &Model{Name: "a", Tier: "t", Provider: &scriptedProvider{responses: []func() (*llm.ChatResponse, error){
		ok(`{"phrase":"hello"}`),
	}}}

	sb := NewStrategyB([]*Model{modelA})
	c := New(sb, NewStats(), nil)

	res, err := c.Generate(context.Background(), "extract", sch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", res.ModelUsed)
	assert.Equal(t, "hello", res.Data["phrase"])
}

func TestCascadeAdvancesToNextModelOnTransientError(t *testing.T) {
	sch, err := schema.Compile("obligation", `phrase!: string`)
	require.NoError(t, err)

	modelA := &Model{Name: "a", Tier: "t", Provider: &scriptedProvider{responses: []func() (*llm.ChatResponse, error){
		transientErr(),
	}}}
	modelB := &Model{Name: "b", Tier: "t", Provider: &scriptedProvider{responses: []func() (*llm.ChatResponse, error){
		ok(`{"phrase":"from b"}`),
	}}}

	sb := NewStrategyB([]*Model{modelA, modelB})
	c := New(sb, NewStats(), nil)

	res, err := c.Generate(context.Background(), "extract", sch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", res.ModelUsed)
}

func TestCascadeRetriesSameModelOnValidationFailureThenSucceeds(t *testing.T) {
	sch, err := schema.Compile("obligation", `category!: "deadline" | "penalty"`)
	require.NoError(t, err)

	modelA := &Model{Name: "a", Tier: "t", Provider: &scriptedProvider{responses: []func() (*llm.ChatResponse, error){
		ok(`{"category":"not-valid"}`),
		ok(`{"category":"deadline"}`),
	}}}

	sb := NewStrategyB([]*Model{modelA})
	c := New(sb, NewStats(), nil)

	res, err := c.Generate(context.Background(), "extract", sch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "deadline", res.Data["category"])
}

func TestCascadeSerializesCallsToLocalModel(t *testing.T) {
	sch, err := schema.Compile("obligation", `phrase!: string`)
	require.NoError(t, err)

	var inFlight int32
	var maxObserved int32
	var mu sync.Mutex

	local := &Model{
		Name:   "ollama/phi4",
		Tier:   "local",
		Config: llm.Config{Local: true},
		Provider: providerFunc(func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxObserved {
				maxObserved = inFlight
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &llm.ChatResponse{Content: `{"phrase":"ok"}`}, nil
		}),
	}

	localMu := &sync.Mutex{}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		sb := NewStrategyB([]*Model{local})
		c := New(sb, NewStats(), localMu)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Generate(context.Background(), "extract", sch, time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxObserved, "local provider calls must be serialized across concurrent cascades")
}

type providerFunc func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)

func (f providerFunc) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return f(ctx, req)
}

func (f providerFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func TestCascadeBlocksRateLimitedModelsAndLandsOnFourth(t *testing.T) {
	sch, err := schema.Compile("obligation", `phrase!: string`)
	require.NoError(t, err)

	rateLimited := func(name string) *Model {
		return &Model{
			Name: name,
			Tier: "remote",
			Provider: providerFunc(func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
				return nil, &llm.RateLimitError{Model: name, RetryAfter: 30 * time.Second, Raw: "429"}
			}),
		}
	}

	limiter := ratelimit.New()
	models := []*Model{
		rateLimited("a"),
		rateLimited("b"),
		rateLimited("c"),
		{Name: "d", Tier: "remote", Provider: &scriptedProvider{responses: []func() (*llm.ChatResponse, error){
			ok(`{"phrase":"from d"}`),
		}}},
	}

	sa := NewStrategyA(models, limiter)
	c := New(sa, NewStats(), nil)

	res, err := c.Generate(context.Background(), "extract", sch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "d", res.ModelUsed)

	for _, name := range []string{"a", "b", "c"} {
		outcome, _ := limiter.Admit(name, ratelimit.Budget{}, false)
		assert.Equal(t, ratelimit.Blocked, outcome, "model %s should be blocked until its retry window passes", name)
	}
	outcome, _ := limiter.Admit("d", ratelimit.Budget{}, false)
	assert.Equal(t, ratelimit.Admitted, outcome)
}
