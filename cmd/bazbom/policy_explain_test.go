package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/pkgref"
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

func writeFindingsFixture(t *testing.T) string {
	t.Helper()
	run := &scanrun.ScanRun{
		GeneratedAt: time.Unix(0, 0).UTC(),
		WorkspaceID: "test-workspace",
		Findings: []scanrun.Finding{
			{
				Package:      mustMavenRef(t, "org.apache.logging.log4j:log4j-core", "2.14.1"),
				Advisory:     advisory.Advisory{ID: "CVE-2021-44228", Severity: advisory.SeverityCritical, KEVListed: true, EPSSScore: 0.97},
				Reachability: reachability.StatusReachable,
				Evidence:     []string{"com.example.App.main", "org.apache.logging.log4j.core.Logger.error"},
			},
			{
				Package:      mustMavenRef(t, "com.example:benign", "1.0.0"),
				Advisory:     advisory.Advisory{ID: "CVE-none", Severity: advisory.SeverityLow},
				Reachability: reachability.StatusUnreachable,
			},
		},
	}
	path := filepath.Join(t.TempDir(), "findings.json")
	if err := scanrun.WriteFindingsFile(path, run); err != nil {
		t.Fatalf("WriteFindingsFile: %v", err)
	}
	return path
}

func TestRunExplainMatchesByAdvisoryID(t *testing.T) {
	path := writeFindingsFixture(t)
	if got := runExplain([]string{"--findings", path, "CVE-2021-44228"}); got != bzerr.ExitSuccess {
		t.Fatalf("runExplain = %d, want %d", got, bzerr.ExitSuccess)
	}
}

func TestRunExplainMatchesByPURL(t *testing.T) {
	path := writeFindingsFixture(t)
	ref := mustMavenRef(t, "com.example:benign", "1.0.0")
	if got := runExplain([]string{"--findings", path, ref.MustPURL()}); got != bzerr.ExitSuccess {
		t.Fatalf("runExplain = %d, want %d", got, bzerr.ExitSuccess)
	}
}

func TestRunExplainNoMatch(t *testing.T) {
	path := writeFindingsFixture(t)
	if got := runExplain([]string{"--findings", path, "CVE-does-not-exist"}); got != bzerr.ExitConfigError {
		t.Fatalf("runExplain = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunExplainMissingArgs(t *testing.T) {
	if got := runExplain(nil); got != bzerr.ExitConfigError {
		t.Fatalf("runExplain(nil) = %d, want %d", got, bzerr.ExitConfigError)
	}
	path := writeFindingsFixture(t)
	if got := runExplain([]string{"--findings", path}); got != bzerr.ExitConfigError {
		t.Fatalf("runExplain with no id = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunPolicyCheckBlocksOnKEV(t *testing.T) {
	path := writeFindingsFixture(t)
	templatePath := filepath.Join(t.TempDir(), "policy.yaml")
	if got := runPolicyInit([]string{"--template", "default", "--out", templatePath}); got != bzerr.ExitSuccess {
		t.Fatalf("runPolicyInit = %d, want %d", got, bzerr.ExitSuccess)
	}
	got := runPolicyCheck([]string{"--findings", path, "--policy-file", templatePath})
	if got != bzerr.ExitPolicyBlock {
		t.Fatalf("runPolicyCheck = %d, want %d (default template blocks reachable KEV findings)", got, bzerr.ExitPolicyBlock)
	}
}

func TestRunPolicyCheckMissingFindingsFlag(t *testing.T) {
	if got := runPolicyCheck(nil); got != bzerr.ExitConfigError {
		t.Fatalf("runPolicyCheck(nil) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunPolicyInitUnknownTemplate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "policy.yaml")
	if got := runPolicyInit([]string{"--template", "nonexistent", "--out", out}); got != bzerr.ExitConfigError {
		t.Fatalf("runPolicyInit(nonexistent) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunPolicyInitWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "policy.yaml")
	if got := runPolicyInit([]string{"--template", "strict", "--out", out}); got != bzerr.ExitSuccess {
		t.Fatalf("runPolicyInit(strict) = %d, want %d", got, bzerr.ExitSuccess)
	}
}
