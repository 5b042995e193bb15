package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/policy"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/scanrun"
)

func TestPolicyEvaluateFirstMatchWins(t *testing.T) {
	p := policy.Policy{
		Name: "test",
		Rules: []policy.Rule{
			{Name: "block-kev", Predicate: `kev`, Action: policy.ActionBlock},
			{Name: "warn-high", Predicate: `severity >= high`, Action: policy.ActionWarn},
		},
		FailOn: policy.ActionBlock,
	}
	f := criticalReachableFinding(t) // kev=true, severity=critical

	result, err := p.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Verdicts) != 1 {
		t.Fatalf("expected 1 verdict, got %d", len(result.Verdicts))
	}
	v := result.Verdicts[0]
	if v.RuleName != "block-kev" || v.Action != policy.ActionBlock {
		t.Fatalf("expected the first matching rule (block-kev) to win, got %+v", v)
	}
	if result.ExitAction != policy.ActionBlock {
		t.Fatalf("expected aggregate exit action to be block, got %v", result.ExitAction)
	}
}

func TestPolicyEvaluateDefaultsToAllowWhenNoRuleMatches(t *testing.T) {
	p := policy.Policy{
		Name:  "test",
		Rules: []policy.Rule{{Name: "block-kev", Predicate: `kev`, Action: policy.ActionBlock}},
	}
	f := scanrun.Finding{Advisory: advisory.Advisory{ID: "CVE-none", Severity: advisory.SeverityLow}}
	ref := mustMavenRef(t, "com.example:benign", "1.0.0")
	f.Package = ref

	result, err := p.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdicts[0].Action != policy.ActionAllow {
		t.Fatalf("expected ActionAllow default, got %v", result.Verdicts[0].Action)
	}
}

func TestPolicyEvaluateActiveExceptionSuppressesVerdict(t *testing.T) {
	f := criticalReachableFinding(t)
	p := policy.Policy{
		Name:  "test",
		Rules: []policy.Rule{{Name: "block-kev", Predicate: `kev`, Action: policy.ActionBlock}},
		Exceptions: []policy.Exception{
			{ID: f.Advisory.ID, Reason: "false positive, vendor confirmed unreachable code path", ApprovedBy: "secteam", Expires: time.Now().Add(30 * 24 * time.Hour)},
		},
	}
	result, err := p.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	v := result.Verdicts[0]
	if v.Action != policy.ActionInfo || v.Suppressed == nil {
		t.Fatalf("expected the exception to suppress the block verdict, got %+v", v)
	}
	if len(result.AuditRecords) != 1 || result.AuditRecords[0].Expired {
		t.Fatalf("expected one non-expired audit record, got %+v", result.AuditRecords)
	}
}

func TestPolicyEvaluateExpiredExceptionRevertsToRuleAction(t *testing.T) {
	f := criticalReachableFinding(t)
	p := policy.Policy{
		Name:  "test",
		Rules: []policy.Rule{{Name: "block-kev", Predicate: `kev`, Action: policy.ActionBlock}},
		Exceptions: []policy.Exception{
			{ID: f.Advisory.ID, Reason: "stale exception", ApprovedBy: "secteam", Expires: time.Now().Add(-24 * time.Hour)},
		},
	}
	result, err := p.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	v := result.Verdicts[0]
	if v.Action != policy.ActionBlock || v.Suppressed != nil {
		t.Fatalf("expected the expired exception to leave the block verdict in place, got %+v", v)
	}
	if len(result.AuditRecords) != 1 || !result.AuditRecords[0].Expired {
		t.Fatalf("expected one expired audit record, got %+v", result.AuditRecords)
	}
}

func TestPolicyEvaluateFailOnCapsExitAction(t *testing.T) {
	f := criticalReachableFinding(t)
	p := policy.Policy{
		Name:   "test",
		Rules:  []policy.Rule{{Name: "block-kev", Predicate: `kev`, Action: policy.ActionBlock}},
		FailOn: policy.ActionWarn,
	}
	result, err := p.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.ExitAction != policy.ActionWarn {
		t.Fatalf("expected FailOn to cap the aggregate exit action at warn, got %v", result.ExitAction)
	}
	if result.Verdicts[0].Action != policy.ActionBlock {
		t.Fatalf("expected the per-finding verdict to still report block, got %v", result.Verdicts[0].Action)
	}
}

func TestCheckLicenseDenyBeatsEverything(t *testing.T) {
	p := policy.Policy{Licenses: policy.LicensePolicy{Deny: []string{"GPL-3.0"}, Allow: []string{"GPL-3.0"}}}
	v := policy.CheckLicense(p, "GPL-3.0")
	if v.Action != policy.ActionBlock {
		t.Fatalf("expected deny to win over allow, got %v", v.Action)
	}
}

func TestCheckLicenseCompatibilityMatrix(t *testing.T) {
	p := policy.Policy{Licenses: policy.LicensePolicy{
		ProjectLicense: "Apache-2.0",
		Compatibility:  map[string][]string{"Apache-2.0": {"MIT", "BSD-3-Clause"}},
	}}
	if v := policy.CheckLicense(p, "MIT"); v.Action != policy.ActionAllow {
		t.Fatalf("expected MIT to be allowed under Apache-2.0 compatibility, got %v", v.Action)
	}
	if v := policy.CheckLicense(p, "AGPL-3.0"); v.Action != policy.ActionWarn {
		t.Fatalf("expected AGPL-3.0 to warn as incompatible, got %v", v.Action)
	}
}

func TestAdvancedPolicyEvaluateTracksRunningBlockCount(t *testing.T) {
	mkFinding := func(id string) scanrun.Finding {
		return scanrun.Finding{
			Package:  mustMavenRef(t, "com.example:dep", "1.0.0"),
			Advisory: advisory.Advisory{ID: id, Severity: advisory.SeverityHigh},
		}
	}
	// Blocks only the first finding in the batch (block_count starts at 0);
	// every subsequent finding sees a nonzero block_count and is allowed.
	a := policy.AdvancedPolicy{Name: "first-only", Script: `block_count == 0`}

	result, err := a.Evaluate(context.Background(), []scanrun.Finding{mkFinding("CVE-1"), mkFinding("CVE-2")})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdicts[0].Action != policy.ActionBlock {
		t.Fatalf("expected the first finding to block, got %v", result.Verdicts[0].Action)
	}
	if result.Verdicts[1].Action != policy.ActionAllow {
		t.Fatalf("expected the second finding to see block_count=1 and allow, got %v", result.Verdicts[1].Action)
	}
}

func TestAdvancedPolicyEvaluateBooleanScript(t *testing.T) {
	f := criticalReachableFinding(t)
	a := policy.AdvancedPolicy{Name: "simple", Script: `kev && reachable`}
	result, err := a.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdicts[0].Action != policy.ActionBlock {
		t.Fatalf("expected a true boolean script result to map to ActionBlock, got %v", result.Verdicts[0].Action)
	}
}

func TestAdvancedPolicyEvaluateStringActionScript(t *testing.T) {
	f := criticalReachableFinding(t)
	a := policy.AdvancedPolicy{Name: "literal", Script: `"warn"`}
	result, err := a.Evaluate(context.Background(), []scanrun.Finding{f})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdicts[0].Action != policy.ActionWarn {
		t.Fatalf("expected the literal warn action, got %v", result.Verdicts[0].Action)
	}
}

func TestReachabilityStatusIsUsableAsAPredicateInput(t *testing.T) {
	f := criticalReachableFinding(t)
	f.Reachability = reachability.StatusUnreachable
	ok, err := policy.EvaluatePredicate(context.Background(), `reachable`, f)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if ok {
		t.Fatalf("expected reachable to be false for StatusUnreachable")
	}
}
