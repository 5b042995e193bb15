package policy_test

import (
	"context"
	"testing"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/pkgref"
	"github.com/bazbom/bazbom/policy"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/scanrun"
)

func mustMavenRef(t *testing.T, coord, version string) pkgref.Ref {
	t.Helper()
	ref, err := pkgref.NewMaven(coord, version)
	if err != nil {
		t.Fatalf("NewMaven: %v", err)
	}
	return ref
}

func criticalReachableFinding(t *testing.T) scanrun.Finding {
	return scanrun.Finding{
		Package:      mustMavenRef(t, "org.apache.logging.log4j:log4j-core", "2.14.1"),
		Advisory:     advisory.Advisory{ID: "CVE-2021-44228", Severity: advisory.SeverityCritical, KEVListed: true, EPSSScore: 0.97},
		Reachability: reachability.StatusReachable,
	}
}

func TestEvaluatePredicateSeverityAndReachability(t *testing.T) {
	f := criticalReachableFinding(t)
	ok, err := policy.EvaluatePredicate(context.Background(), `severity >= critical && reachable`, f)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if !ok {
		t.Fatalf("expected predicate to match a critical, reachable finding")
	}
}

func TestEvaluatePredicateGlob(t *testing.T) {
	f := criticalReachableFinding(t)
	ok, err := policy.EvaluatePredicate(context.Background(), `glob(purl, "pkg:maven/org.apache.logging.log4j/*")`, f)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if !ok {
		t.Fatalf("expected glob to match the log4j purl")
	}
}

func TestEvaluatePredicateKEVAndEPSSBound(t *testing.T) {
	f := criticalReachableFinding(t)
	ok, err := policy.EvaluatePredicate(context.Background(), `kev && epss >= 0.9`, f)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if !ok {
		t.Fatalf("expected kev && epss>=0.9 to match")
	}
}

func TestEvaluatePredicateRejectsNonBooleanResult(t *testing.T) {
	f := criticalReachableFinding(t)
	if _, err := policy.EvaluatePredicate(context.Background(), `epss`, f); err == nil {
		t.Fatalf("expected an error for a non-boolean predicate result")
	}
}

func TestEvaluatePredicateAgeDays(t *testing.T) {
	f := criticalReachableFinding(t)
	f.AgeDays = 400
	ok, err := policy.EvaluatePredicate(context.Background(), `age_days >= 365`, f)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if !ok {
		t.Fatalf("expected age_days >= 365 to match a 400-day-old dependency")
	}
}
