package policy

import (
	"context"
	"fmt"
	"path"

	"github.com/PaesslerAG/gval"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/scanrun"
)

// predicateLanguage is the shared gval expression language both the
// declarative rule engine (one predicate per Rule) and the advanced
// scripted engine (one expression covering the whole ruleset) evaluate
// against. It generalizes the boolean-expression language
// konveyor-analyzer-lsp's label selector builds over gval.NewLanguage,
// adding BazBOM's own Finding-field identifiers and comparison operators in
// place of the label matcher's key=value selectors.
var predicateLanguage = gval.NewLanguage(
	gval.Ident(),
	gval.Parentheses(),
	gval.Constant("true", true),
	gval.Constant("false", false),
	// Severity names resolve to their rank so "severity >= high" compares
	// numerically rather than lexicographically (which would put
	// "critical" before "high" alphabetically).
	gval.Constant("critical", 4),
	gval.Constant("high", 3),
	gval.Constant("medium", 2),
	gval.Constant("low", 1),
	gval.Constant("none", 0),
	gval.PrefixOperator("!", func(_ context.Context, v interface{}) (interface{}, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("policy: !%v: not a boolean", v)
		}
		return !b, nil
	}),
	gval.InfixShortCircuit("&&", func(a interface{}) (interface{}, bool) { return false, a == false }),
	gval.InfixBoolOperator("&&", func(a, b bool) (interface{}, error) { return a && b, nil }),
	gval.InfixShortCircuit("||", func(a interface{}) (interface{}, bool) { return true, a == true }),
	gval.InfixBoolOperator("||", func(a, b bool) (interface{}, error) { return a || b, nil }),
	gval.InfixOperator(">=", cmpGE),
	gval.InfixOperator(">", cmpGT),
	gval.InfixOperator("<=", cmpLE),
	gval.InfixOperator("<", cmpLT),
	gval.InfixOperator("==", cmpEQ),
	gval.InfixOperator("!=", cmpNE),
	gval.Function("glob", globFn),
)

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func cmpGE(a, b interface{}) (interface{}, error) {
	if af, bf, ok := bothFloat(a, b); ok {
		return af >= bf, nil
	}
	if as, bs, ok := bothString(a, b); ok {
		return as >= bs, nil
	}
	return nil, fmt.Errorf("policy: cannot compare %v >= %v", a, b)
}

func cmpGT(a, b interface{}) (interface{}, error) {
	if af, bf, ok := bothFloat(a, b); ok {
		return af > bf, nil
	}
	if as, bs, ok := bothString(a, b); ok {
		return as > bs, nil
	}
	return nil, fmt.Errorf("policy: cannot compare %v > %v", a, b)
}

func cmpLE(a, b interface{}) (interface{}, error) {
	if af, bf, ok := bothFloat(a, b); ok {
		return af <= bf, nil
	}
	if as, bs, ok := bothString(a, b); ok {
		return as <= bs, nil
	}
	return nil, fmt.Errorf("policy: cannot compare %v <= %v", a, b)
}

func cmpLT(a, b interface{}) (interface{}, error) {
	if af, bf, ok := bothFloat(a, b); ok {
		return af < bf, nil
	}
	if as, bs, ok := bothString(a, b); ok {
		return as < bs, nil
	}
	return nil, fmt.Errorf("policy: cannot compare %v < %v", a, b)
}

func cmpEQ(a, b interface{}) (interface{}, error) { return a == b, nil }
func cmpNE(a, b interface{}) (interface{}, error) { return a != b, nil }

func bothFloat(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func bothString(a, b interface{}) (string, string, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	return as, bs, aok && bok
}

// globFn implements the "glob(value, pattern)" predicate function, used for
// package-name matching (spec.md §4.D "package-name glob"). Shell-style
// globbing via path.Match follows the teacher's own preference for stdlib
// pattern matching over a dedicated glob library elsewhere in the pack.
func globFn(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("policy: glob() takes exactly 2 arguments, got %d", len(args))
	}
	value, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("policy: glob() first argument must be a string")
	}
	pattern, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("policy: glob() second argument must be a string")
	}
	matched, err := path.Match(pattern, value)
	if err != nil {
		return nil, fmt.Errorf("policy: invalid glob pattern %q: %w", pattern, err)
	}
	return matched, nil
}

// findingParams builds the parameter map a predicate expression resolves
// its Finding-field identifiers against.
func findingParams(f scanrun.Finding) map[string]interface{} {
	return map[string]interface{}{
		"severity":    severityRank(f.Severity()),
		"kev":         f.KEVListed(),
		"epss":        f.EPSSScore(),
		"reachable":   f.Reachable(),
		"purl":        f.Package.MustPURL(),
		"age_days":    float64(f.AgeDays),
		"advisory_id": f.Advisory.ID,
	}
}

func severityRank(sev advisory.Severity) int {
	switch sev {
	case advisory.SeverityCritical:
		return 4
	case advisory.SeverityHigh:
		return 3
	case advisory.SeverityMedium:
		return 2
	case advisory.SeverityLow:
		return 1
	default:
		return 0
	}
}

// EvaluatePredicate runs a single boolean expression against f, returning
// the result. Used by the declarative engine for each Rule.Predicate and
// directly exposed so the advanced engine can reuse it for scripted
// per-Finding conditions.
func EvaluatePredicate(ctx context.Context, predicate string, f scanrun.Finding) (bool, error) {
	val, err := predicateLanguage.Evaluate(predicate, findingParams(f))
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("policy: predicate %q did not evaluate to a boolean (got %T)", predicate, val)
	}
	return b, nil
}
