package cascade

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bbiangul/legalpipe/internal/schema"
)

// codeBlockRe strips a markdown ```json fence from a chatty LLM response.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// salvageParse tries, in order, the response-parsing strategies named in
// the cascade's common contract: a direct parse of the trimmed body, a
// fenced ```json block, the first balanced {...} span, and finally (when
// the schema names exactly one list field) wrapping a bare top-level JSON
// list. It returns the first strategy that produces syntactically valid
// JSON; schema validation happens separately.
func salvageParse(raw string, s *schema.Schema) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)

	if m, ok := tryObject(trimmed); ok {
		return m, nil
	}

	if fence := codeBlockRe.FindStringSubmatch(raw); len(fence) > 1 {
		if m, ok := tryObject(strings.TrimSpace(fence[1])); ok {
			return m, nil
		}
	}

	if span, ok := balancedBraceSpan(raw); ok {
		if m, ok := tryObject(span); ok {
			return m, nil
		}
	}

	if m, ok := tryRepair(trimmed, s); ok {
		return m, nil
	}
	if fence := codeBlockRe.FindStringSubmatch(raw); len(fence) > 1 {
		if m, ok := tryRepair(strings.TrimSpace(fence[1]), s); ok {
			return m, nil
		}
	}

	return nil, fmt.Errorf("cascade: no JSON object recoverable from response")
}

func tryObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

func tryRepair(s string, sch *schema.Schema) (map[string]any, bool) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	return schema.Repair(sch, raw)
}

// balancedBraceSpan returns the first top-level balanced {...} span in raw,
// scanning past nested braces and string literals so an embedded quoted
// brace doesn't terminate the span early.
func balancedBraceSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
