// Package schema declares the expected shape of an LLM's structured
// response (field names, kinds, enumerations, numeric ranges) as a CUE
// definition, compiles it with the CUE Go API, and validates parsed
// JSON responses against it. Numeric range bounds are carried in a
// `@validate(min=,max=)` field attribute convention this package owns and
// parses itself (see parseBounds).
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Kind is the declared type of a schema field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
	KindObject
)

// Field is one declared field of a Schema.
type Field struct {
	Name     string
	Required bool
	Kind     Kind
	// Enum holds the allowed string values when the field is a string
	// disjunction (e.g. `category: "deadline" | "constraint"`).
	Enum []string
	// Min and Max are numeric bounds recovered from the field's
	// `@validate(min=...,max=...)` attribute, if present.
	Min, Max *float64
}

// Schema is a compiled response-shape declaration for one LLM-producing
// stage.
type Schema struct {
	Name   string
	Fields []Field
}

// SingleListField returns the name of the one field whose Kind is KindList,
// if the schema has exactly one field overall and it is a list. This is
// the post-validation repair hook: a bare top-level JSON list is wrapped
// into {field: list} when the schema names exactly one such field.
func (s *Schema) SingleListField() (string, bool) {
	if len(s.Fields) != 1 {
		return "", false
	}
	if s.Fields[0].Kind != KindList {
		return "", false
	}
	return s.Fields[0].Name, true
}

func (s *Schema) field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Hint renders a short textual description of the schema suitable for
// appending to a prompt, so the model sees the exact field set it must
// return.
func (s *Schema) Hint() string {
	var b strings.Builder
	b.WriteString("Respond with a JSON object with exactly these fields:\n")
	for _, f := range s.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  - %s (%s, %s)", f.Name, kindName(f.Kind), req)
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " one of: %s", strings.Join(f.Enum, ", "))
		}
		if f.Min != nil || f.Max != nil {
			fmt.Fprintf(&b, " range [%v, %v]", numOrNil(f.Min), numOrNil(f.Max))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func numOrNil(f *float64) string {
	if f == nil {
		return "-inf"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func kindName(k Kind) string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Compile parses a CUE struct definition (fields at the top level, with
// `?` suffix for optional fields per CUE convention) into a Schema.
//
//	Compile("obligation", `
//	  category!: "deadline" | "constraint" | "allocation" | "penalty"
//	  phrase!: string
//	  value?: number @validate(min=0)
//	  unit?: string
//	`)
func Compile(name, src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString("{\n" + src + "\n}")
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("schema: compiling %s: %w", name, err)
	}

	s := &Schema{Name: name}
	boundsByField := parseBounds(src)

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("schema: iterating fields of %s: %w", name, err)
	}
	for iter.Next() {
		fv := iter.Value()
		field := Field{
			Name:     iter.Selector().String(),
			Required: !iter.IsOptional(),
		}

		field.Kind, field.Enum = classify(fv)
		if b, ok := boundsByField[field.Name]; ok {
			field.Min, field.Max = b[0], b[1]
		}

		s.Fields = append(s.Fields, field)
	}

	return s, nil
}

func classify(v cue.Value) (Kind, []string) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		if enum, ok := stringEnum(v); ok {
			return KindString, enum
		}
		return KindString, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return KindNumber, nil
	case cue.BoolKind:
		return KindBool, nil
	case cue.ListKind:
		return KindList, nil
	case cue.StructKind:
		return KindObject, nil
	default:
		return KindString, nil
	}
}

// stringEnum recovers the literal alternatives of a string disjunction
// such as `"a" | "b" | "c"`.
func stringEnum(v cue.Value) ([]string, bool) {
	op, vals := v.Expr()
	if op != cue.OrOp {
		return nil, false
	}
	var enum []string
	for _, val := range vals {
		s, err := val.String()
		if err != nil {
			return nil, false
		}
		enum = append(enum, s)
	}
	return enum, len(enum) > 0
}

// validateAttrRe matches a `fieldName: ... @validate(min=N,max=N)` line.
// Numeric bounds are recovered from the raw CUE source rather than CUE's
// compiled attribute API, keeping this package's only custom convention
// (there is no built-in CUE validation-range attribute) on a code path this
// package owns outright rather than one more corner of the CUE API surface.
var validateAttrRe = regexp.MustCompile(`(?m)^\s*(\w+)[!?]?\s*:.*@validate\(([^)]*)\)`)

func parseBounds(src string) map[string][2]*float64 {
	out := map[string][2]*float64{}
	for _, m := range validateAttrRe.FindAllStringSubmatch(src, -1) {
		name, args := m[1], m[2]
		var bounds [2]*float64
		for _, part := range strings.Split(args, ",") {
			kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(kv) != 2 {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
			if err != nil {
				continue
			}
			switch strings.TrimSpace(kv[0]) {
			case "min":
				bounds[0] = &f
			case "max":
				bounds[1] = &f
			}
		}
		out[name] = bounds
	}
	return out
}
