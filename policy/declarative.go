package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/bazbom/bazbom/scanrun"
)

// Evaluate implements Evaluator for a declarative Policy: for each Finding,
// rules are tried in order and the first whose predicate matches wins
// (spec.md §4.D "rules (ordered; first match wins)"); a Finding matching no
// rule defaults to ActionAllow. An active Exception for the Finding's
// advisory id overrides whatever the matched rule said.
func (p Policy) Evaluate(ctx context.Context, findings []scanrun.Finding) (AggregateResult, error) {
	now := time.Now()
	result := AggregateResult{}
	for _, f := range findings {
		v, audit, err := p.evaluateOne(ctx, f, now)
		if err != nil {
			return AggregateResult{}, err
		}
		result.Verdicts = append(result.Verdicts, v)
		if audit != nil {
			result.AuditRecords = append(result.AuditRecords, *audit)
		}
	}
	result.ExitAction = aggregateExitAction(result.Verdicts, p.FailOn)
	return result, nil
}

func (p Policy) evaluateOne(ctx context.Context, f scanrun.Finding, now time.Time) (Verdict, *AuditRecord, error) {
	v := Verdict{Finding: f, Action: ActionAllow}
	for _, rule := range p.Rules {
		matched, err := EvaluatePredicate(ctx, rule.Predicate, f)
		if err != nil {
			return Verdict{}, nil, fmt.Errorf("policy %q: rule %q: %w", p.Name, rule.Name, err)
		}
		if !matched {
			continue
		}
		v.Action = rule.Action
		v.RuleName = rule.Name
		v.Message = rule.Message
		break
	}

	exc, audit := activeException(p, f.Advisory.ID, now)
	if exc != nil {
		v.Suppressed = exc
		v.Action = ActionInfo
		v.Message = fmt.Sprintf("suppressed by exception (%s, approved by %s): %s", exc.ID, exc.ApprovedBy, exc.Reason)
	}
	return v, audit, nil
}
