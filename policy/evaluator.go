package policy

import (
	"context"

	"github.com/bazbom/bazbom/scanrun"
)

// Verdict is the per-Finding outcome of policy evaluation.
type Verdict struct {
	Finding scanrun.Finding
	Action  Action
	// RuleName is the name of the rule that matched, or "" for the
	// engine's implicit default (ActionAllow when nothing matches).
	RuleName string
	Message string
	// Suppressed is non-nil when an Exception overrode the matched rule's
	// action; the Verdict's Action still reflects what the exception
	// reduces it to (spec.md §4.D: "Finding reverts to the underlying
	// rule's action" once the exception itself expires, so an active
	// exception's effective action is recorded here, not silently dropped).
	Suppressed *Exception
}

// AggregateResult is the whole-run outcome of policy evaluation: every
// per-Finding Verdict plus the single most severe Action observed, capped
// by the policy's declared FailOn threshold.
type AggregateResult struct {
	Verdicts   []Verdict
	ExitAction Action
	// AuditRecords logs every exception that was consulted during this
	// evaluation, whether it suppressed a verdict or had already expired
	// (spec.md §4.D "an audit record emitted").
	AuditRecords []AuditRecord
}

// AuditRecord is emitted whenever an Exception is consulted during
// evaluation, active or expired.
type AuditRecord struct {
	AdvisoryID string
	Expired    bool
	Exception  Exception
}

// Evaluator renders a PolicyVerdict for a Finding set; Policy (declarative)
// and the advanced gval-scripted engine both implement it, so the
// orchestrator can treat them identically (spec.md §4.D: "whether a policy
// is declarative or scripted is opaque to the orchestrator").
type Evaluator interface {
	Evaluate(ctx context.Context, findings []scanrun.Finding) (AggregateResult, error)
}

// capAction returns observed capped at the policy's FailOn, i.e. the less
// severe of the two; an empty FailOn means no cap is applied.
func capAction(observed, failOn Action) Action {
	if failOn == "" {
		return observed
	}
	if observed.moreSevereThan(failOn) {
		return failOn
	}
	return observed
}

// aggregateExitAction computes the most severe Action across verdicts,
// capped by failOn.
func aggregateExitAction(verdicts []Verdict, failOn Action) Action {
	worst := ActionAllow
	for _, v := range verdicts {
		if v.Action.moreSevereThan(worst) {
			worst = v.Action
		}
	}
	return capAction(worst, failOn)
}
