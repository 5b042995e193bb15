package scanrun_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bazbom/bazbom/advisory"
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

func TestSortFindingsOrdersBySeverityThenAdvisoryThenPURL(t *testing.T) {
	run := &scanrun.ScanRun{
		Findings: []scanrun.Finding{
			{Package: mustMavenRef(t, "com.example:low-sev", "1.0.0"), Advisory: advisory.Advisory{ID: "GHSA-zzzz", Severity: advisory.SeverityLow}},
			{Package: mustMavenRef(t, "com.example:critical-b", "1.0.0"), Advisory: advisory.Advisory{ID: "CVE-2024-0002", Severity: advisory.SeverityCritical}},
			{Package: mustMavenRef(t, "com.example:critical-a", "1.0.0"), Advisory: advisory.Advisory{ID: "CVE-2024-0001", Severity: advisory.SeverityCritical}},
			{Package: mustMavenRef(t, "com.example:medium", "1.0.0"), Advisory: advisory.Advisory{ID: "CVE-2024-0003", Severity: advisory.SeverityMedium}},
		},
	}
	run.SortFindings()

	wantIDs := []string{"CVE-2024-0001", "CVE-2024-0002", "CVE-2024-0003", "GHSA-zzzz"}
	for i, want := range wantIDs {
		if run.Findings[i].Advisory.ID != want {
			t.Fatalf("position %d: got %s, want %s", i, run.Findings[i].Advisory.ID, want)
		}
	}
}

func TestNewIDReturnsDistinctNonEmptyValues(t *testing.T) {
	a := scanrun.NewID()
	b := scanrun.NewID()
	if a == "" || b == "" {
		t.Fatal("expected NewID to return a non-empty value")
	}
	if a == b {
		t.Fatal("expected two calls to NewID to return distinct values")
	}
}

func TestWriteThenReadFindingsFileRoundTrips(t *testing.T) {
	run := &scanrun.ScanRun{
		ID:          scanrun.NewID(),
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WorkspaceID: "ws-1",
		Degraded:    true,
		Findings: []scanrun.Finding{
			{
				Package:      mustMavenRef(t, "org.apache.logging.log4j:log4j-core", "2.14.1"),
				Advisory:     advisory.Advisory{ID: "CVE-2021-44228", Severity: advisory.SeverityCritical},
				Reachability: reachability.StatusReachable,
				Evidence:     []string{"com/example/App.main", "org/apache/logging/log4j/core/Logger.log"},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "findings.json")
	if err := scanrun.WriteFindingsFile(path, run); err != nil {
		t.Fatalf("WriteFindingsFile: %v", err)
	}

	got, err := scanrun.ReadFindingsFile(path)
	if err != nil {
		t.Fatalf("ReadFindingsFile: %v", err)
	}
	if got.WorkspaceID != run.WorkspaceID {
		t.Errorf("WorkspaceID = %q, want %q", got.WorkspaceID, run.WorkspaceID)
	}
	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
	if !got.Degraded {
		t.Error("expected Degraded to round-trip as true")
	}
	if len(got.Findings) != 1 || got.Findings[0].Advisory.ID != "CVE-2021-44228" {
		t.Fatalf("unexpected findings after round trip: %+v", got.Findings)
	}
	if len(got.Findings[0].Evidence) != 2 {
		t.Errorf("want 2 evidence hops, got %d", len(got.Findings[0].Evidence))
	}
}
