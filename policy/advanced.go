package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/bazbom/bazbom/scanrun"
)

// AdvancedPolicy is the "general-purpose policy language" form spec.md
// §4.D describes: rather than Policy's ordered, first-match-wins
// declarative Rule list, one gval script is evaluated once per Finding. It
// shares the same Finding-field identifiers every declarative Rule.Predicate
// sees (severity, kev, epss, reachable, purl, age_days), plus a running
// count of each Action assigned so far in the same evaluation pass, so a
// script can express cross-finding conditions ("block once this is the 3rd
// critical finding") that a strictly per-Finding declarative rule cannot.
// The script must evaluate to one of the four Action string literals or to
// a boolean (true blocks, false allows).
type AdvancedPolicy struct {
	Name       string
	Script     string
	FailOn     Action
	Exceptions []Exception
}

// Evaluate implements Evaluator for an AdvancedPolicy.
func (a AdvancedPolicy) Evaluate(ctx context.Context, findings []scanrun.Finding) (AggregateResult, error) {
	now := time.Now()
	result := AggregateResult{}
	seen := map[Action]int{}

	for _, f := range findings {
		params := findingParams(f)
		params["block_count"] = float64(seen[ActionBlock])
		params["warn_count"] = float64(seen[ActionWarn])
		params["info_count"] = float64(seen[ActionInfo])
		params["allow_count"] = float64(seen[ActionAllow])

		val, err := predicateLanguage.Evaluate(a.Script, params)
		if err != nil {
			return AggregateResult{}, fmt.Errorf("policy %q (advanced): %w", a.Name, err)
		}
		action, err := parseScriptAction(val)
		if err != nil {
			return AggregateResult{}, fmt.Errorf("policy %q (advanced): %w", a.Name, err)
		}

		v := Verdict{Finding: f, Action: action, RuleName: a.Name}
		exc, audit := activeException(Policy{Exceptions: a.Exceptions}, f.Advisory.ID, now)
		if exc != nil {
			v.Suppressed = exc
			v.Action = ActionInfo
			v.Message = fmt.Sprintf("suppressed by exception (%s, approved by %s): %s", exc.ID, exc.ApprovedBy, exc.Reason)
		}
		if audit != nil {
			result.AuditRecords = append(result.AuditRecords, *audit)
		}

		seen[v.Action]++
		result.Verdicts = append(result.Verdicts, v)
	}

	result.ExitAction = aggregateExitAction(result.Verdicts, a.FailOn)
	return result, nil
}

// parseScriptAction converts an AdvancedPolicy script's return value into an
// Action, accepting either the bare string form or a boolean (true ->
// block, false -> allow) for scripts that only need a binary verdict.
func parseScriptAction(val interface{}) (Action, error) {
	switch v := val.(type) {
	case string:
		switch Action(v) {
		case ActionBlock, ActionWarn, ActionInfo, ActionAllow:
			return Action(v), nil
		}
		return "", fmt.Errorf("script returned unrecognized action %q", v)
	case bool:
		if v {
			return ActionBlock, nil
		}
		return ActionAllow, nil
	default:
		return "", fmt.Errorf("script must evaluate to an action string or boolean, got %T", val)
	}
}
