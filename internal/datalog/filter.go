package datalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over records. The expression sees
// ts_ms, size, text (payload as a string), json (payload parsed as JSON, null
// when it is not JSON) and now_ms. The zero Filter matches everything.
type Filter struct {
	prog cel.Program
	now  func() time.Time
}

// CompileFilter compiles expr. A blank expression yields a match-all filter.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	switch got := ast.OutputType().String(); got {
	case "bool", "dyn":
	default:
		return Filter{}, &filterTypeError{got: got}
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, now: time.Now}, nil
}

type filterTypeError struct{ got string }

func (e *filterTypeError) Error() string {
	return "filter must evaluate to bool, got " + e.got
}

// Enabled reports whether the filter was built from a non-blank expression.
func (f Filter) Enabled() bool { return f.prog != nil }

// Match evaluates the filter against r. Evaluation errors count as a miss.
func (f Filter) Match(r Record) bool {
	if f.prog == nil {
		return true
	}
	var doc any
	_ = json.Unmarshal(r.Payload, &doc)
	out, _, err := f.prog.Eval(map[string]any{
		"ts_ms":  r.Timestamp,
		"size":   int64(len(r.Payload)),
		"text":   string(r.Payload),
		"json":   doc,
		"now_ms": f.now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the records of recs that match, preserving order.
func (f Filter) Apply(recs []Record) []Record {
	if f.prog == nil {
		return recs
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
