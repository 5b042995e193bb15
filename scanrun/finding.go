// Package scanrun defines the shared result types that flow between the
// advisory matcher, the reachability analyzer, the policy engine, and the
// serializers: a Finding pairs one DependencyGraph node with one matched
// Advisory, and a ScanRun collects every Finding plus the graph it was
// computed against, per spec.md §3 and §4.F.
package scanrun

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/pkgref"
	"github.com/bazbom/bazbom/reachability"
)

// Finding is one (dependency node, matched advisory) pair, enriched with
// reachability evidence once the reachability analyzer has run.
type Finding struct {
	NodeID       graph.NodeID
	Package      pkgref.Ref
	Advisory     advisory.Advisory
	Reachability reachability.Status
	Evidence     []string // stringified callgraph.MethodKey chain, newest-hop-last.
	// AgeDays is how long this exact (package, version) has been resolvable
	// in the workspace's lockfile history; 0 when unknown (spec §4.D's
	// "dependency age days" predicate).
	AgeDays int
}

// NewID mints a fresh run identifier for ScanRun.ID.
func NewID() string { return uuid.New().String() }

// Severity mirrors the matched advisory's severity, the field policy rules
// threshold against.
func (f Finding) Severity() advisory.Severity { return f.Advisory.Severity }

// KEVListed reports whether the matched advisory is CISA KEV-listed.
func (f Finding) KEVListed() bool { return f.Advisory.KEVListed }

// EPSSScore reports the matched advisory's EPSS probability, or 0 if none
// was ever applied.
func (f Finding) EPSSScore() float64 { return f.Advisory.EPSSScore }

// Reachable reports whether this Finding's reachability status is exactly
// reachability.StatusReachable (as opposed to unreachable, unknown, or
// direct-usage-only, all of which are non-reachable for policy purposes
// unless a rule explicitly asks for direct-usage-only).
func (f Finding) Reachable() bool { return f.Reachability == reachability.StatusReachable }

// ScanRun is the full output of one scan: the resolved dependency graph plus
// every Finding derived from it, ready for policy evaluation and
// serialization.
type ScanRun struct {
	// ID uniquely identifies this invocation, distinct from WorkspaceID
	// (which names the workspace, not the run) and from the deterministic
	// content hashes serialize/spdx and serialize/cyclonedx derive from a
	// ref's PURL; two scans of an unchanged workspace produce byte-identical
	// Findings but always a fresh ID, so log lines and cache diagnostics can
	// be correlated back to one specific `scan` invocation.
	ID          string
	GeneratedAt time.Time
	WorkspaceID string
	Graph       *graph.Graph
	Findings    []Finding
	// Aborted marks a run that was cancelled mid-flight (spec §5
	// "cancellation produces a partial ScanRun marked aborted=true"); an
	// aborted run is never written to the cache.
	Aborted bool
	// Degraded marks a run where at least one component fell back to a
	// weaker mode (a node's reachability came back unknown because no call
	// graph was available or the reachability budget ran out, or a module's
	// extractor failed with a non-fatal error and the module was skipped)
	// rather than failing outright.
	Degraded bool
}

// bySeverityThenAdvisoryThenPURL implements spec §5's deterministic output
// ordering: "(advisory.severity descending, advisory.id ascending,
// node.purl ascending)".
type bySeverityThenAdvisoryThenPURL []Finding

func (s bySeverityThenAdvisoryThenPURL) Len() int      { return len(s) }
func (s bySeverityThenAdvisoryThenPURL) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s bySeverityThenAdvisoryThenPURL) Less(i, j int) bool {
	si, sj := severityRank(s[i].Advisory.Severity), severityRank(s[j].Advisory.Severity)
	if si != sj {
		return si > sj // descending.
	}
	if s[i].Advisory.ID != s[j].Advisory.ID {
		return s[i].Advisory.ID < s[j].Advisory.ID
	}
	return s[i].Package.MustPURL() < s[j].Package.MustPURL()
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

// SortFindings orders r.Findings in place per spec §5's deterministic
// ordering, so repeated scans of unchanged inputs serialize byte-identical
// output.
func (r *ScanRun) SortFindings() {
	sort.Stable(bySeverityThenAdvisoryThenPURL(r.Findings))
}

// findingsFile is the on-disk shape `scan` writes and `policy check`/
// `explain` read back; it carries just enough of a ScanRun to re-run
// policy evaluation or print one Finding's detail without needing the
// whole dependency graph.
type findingsFile struct {
	ID          string    `json:"id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	WorkspaceID string    `json:"workspace_id"`
	Findings    []Finding `json:"findings"`
	Degraded    bool      `json:"degraded"`
}

// WriteFindingsFile writes r's findings to path as indented JSON, for
// `policy check`/`explain` to consume in a later, separate process
// invocation.
func WriteFindingsFile(path string, r *ScanRun) error {
	data, err := json.MarshalIndent(findingsFile{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt,
		WorkspaceID: r.WorkspaceID,
		Findings:    r.Findings,
		Degraded:    r.Degraded,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("scanrun: encoding findings file: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scanrun: writing findings file %q: %w", path, err)
	}
	return nil
}

// ReadFindingsFile reads a findings file written by WriteFindingsFile back
// into a ScanRun (with a nil Graph, since the file never carried one).
func ReadFindingsFile(path string) (*ScanRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scanrun: reading findings file %q: %w", path, err)
	}
	var ff findingsFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("scanrun: decoding findings file %q: %w", path, err)
	}
	return &ScanRun{
		ID:          ff.ID,
		GeneratedAt: ff.GeneratedAt,
		WorkspaceID: ff.WorkspaceID,
		Findings:    ff.Findings,
		Degraded:    ff.Degraded,
	}, nil
}
