package cascade

import (
	"testing"

	"github.com/bbiangul/legalpipe/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchema(t *testing.T, name, src string) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(name, src)
	require.NoError(t, err)
	return s
}

func TestSalvageParseDirect(t *testing.T) {
	s := mustSchema(t, "x", `phrase!: string`)
	m, err := salvageParse(`{"phrase":"hello"}`, s)
	require.NoError(t, err)
	assert.Equal(t, "hello", m["phrase"])
}

func TestSalvageParseFencedBlock(t *testing.T) {
	s := mustSchema(t, "x", `phrase!: string`)
	raw := "Here is the answer:\n```json\n{\"phrase\": \"hello\"}\n```\nThanks."
	m, err := salvageParse(raw, s)
	require.NoError(t, err)
	assert.Equal(t, "hello", m["phrase"])
}

func TestSalvageParseBalancedBraceSpan(t *testing.T) {
	s := mustSchema(t, "x", `phrase!: string`)
	raw := `Sure, here's the JSON: {"phrase": "a {nested} value"} -- hope that helps!`
	m, err := salvageParse(raw, s)
	require.NoError(t, err)
	assert.Equal(t, "a {nested} value", m["phrase"])
}

func TestSalvageParseBareListWrap(t *testing.T) {
	s := mustSchema(t, "x", `items!: [...string]`)
	m, err := salvageParse(`["a","b","c"]`, s)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, m["items"])
}

func TestSalvageParseFailsWhenNothingRecoverable(t *testing.T) {
	s := mustSchema(t, "x", `phrase!: string`)
	_, err := salvageParse("not json at all", s)
	assert.Error(t, err)
}
