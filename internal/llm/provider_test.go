package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRejectsUnknownAndEmpty(t *testing.T) {
	_, err := NewProvider(Config{})
	require.Error(t, err)

	_, err = NewProvider(Config{Provider: "acme-llm"})
	require.Error(t, err)
}

func TestNewProviderAppliesEndpointDefaults(t *testing.T) {
	p, err := NewProvider(Config{Provider: "groq", Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)
	cp, ok := p.(*compatProvider)
	require.True(t, ok)
	assert.Equal(t, "https://api.groq.com/openai", cp.base.cfg.BaseURL)
	assert.Equal(t, "/v1", cp.base.pathPrefix)

	p, err = NewProvider(Config{Provider: "gemini", Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	cp = p.(*compatProvider)
	assert.Empty(t, cp.base.pathPrefix, "gemini's OpenAI-compatible surface carries no /v1")
}

func TestNewProviderKeepsExplicitBaseURL(t *testing.T) {
	p, err := NewProvider(Config{Provider: "openai", Model: "gpt-4o-mini", BaseURL: "http://proxy.internal:8443"})
	require.NoError(t, err)
	cp := p.(*compatProvider)
	assert.Equal(t, "http://proxy.internal:8443", cp.base.cfg.BaseURL)
}

func TestNewProviderMarksLocalEndpoints(t *testing.T) {
	p, err := NewProvider(Config{Provider: "lmstudio", Model: "phi-4"})
	require.NoError(t, err)
	cp := p.(*compatProvider)
	assert.True(t, cp.base.cfg.Local)

	p, err = NewProvider(Config{Provider: "ollama", Model: "llama3.1:8b"})
	require.NoError(t, err)
	_, isOllama := p.(*ollamaProvider)
	assert.True(t, isOllama)
}
