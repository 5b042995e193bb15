// Package bazel extracts dependency graphs from Bazel workspaces. Target
// selection supports the three modes spec §4.A requires (explicit target
// list, a `bazel query` expression, or an "affected-by-files" rdeps query);
// dependency coordinates themselves come from the rules_jvm_external
// maven_install.json pin file, which is the structured, tool-produced
// source of truth for resolved JVM artifact versions under Bazel — the
// same "parse structured output, don't re-resolve" contract spec §4.A
// applies to Maven/Gradle lockfiles, grounded on the teacher's
// gradlelockfile and gradleverificationmetadataxml extractors.
package bazel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// TargetSelection configures which of the three modes from spec §4.A to use
// when computing the set of targets a scan should consider. Exactly one of
// Targets, Query or AffectedByFiles should be set; if none are, Extract
// falls back to "//..." (every target).
type TargetSelection struct {
	Targets         []string
	Query           string
	AffectedByFiles []string
}

// Expression renders the selection as a single bazel query expression.
func (s TargetSelection) Expression() string {
	switch {
	case len(s.AffectedByFiles) > 0:
		files := make([]string, len(s.AffectedByFiles))
		for i, f := range s.AffectedByFiles {
			files[i] = fmt.Sprintf("%q", f)
		}
		return fmt.Sprintf("rdeps(//..., set(%s))", strings.Join(files, " "))
	case s.Query != "":
		return s.Query
	case len(s.Targets) > 0:
		return strings.Join(s.Targets, " union ")
	default:
		return "//..."
	}
}

// Extractor implements buildsystem.Extractor for Bazel.
type Extractor struct {
	Selection TargetSelection
	// Tool overrides the binary invoked, defaulting to "bazel".
	Tool string
}

// New returns a Bazel extractor configured with the given target selection.
func New(sel TargetSelection) *Extractor { return &Extractor{Selection: sel, Tool: "bazel"} }

// System identifies this extractor.
func (Extractor) System() buildsystem.System { return buildsystem.Bazel }

// SelectedTargets runs `bazel query` with the configured selection
// expression and returns the matching target labels. Extract only logs how
// many targets it selected; the filtering of pinned artifacts to the
// selection is done separately by affectedArtifacts.
func (e Extractor) SelectedTargets(ctx context.Context, projectRoot string) ([]string, error) {
	tool := e.Tool
	if tool == "" {
		tool = "bazel"
	}
	stdout, err := buildsystem.RunReadOnly(ctx, projectRoot, projectRoot, tool, "query", e.Selection.Expression(), "--output=label")
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, line := range buildsystem.StripToolDiagnostics(stdout) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "@") {
			labels = append(labels, line)
		}
	}
	return labels, nil
}

// mavenInstallLock is the subset of rules_jvm_external's maven_install.json
// schema bazbom needs.
type mavenInstallLock struct {
	ArtifactsField map[string]struct {
		Version string `json:"version"`
	} `json:"artifacts"`
}

// mavenArtifactLabelPrefix is the repository rules_jvm_external generates
// one target per pinned artifact under.
const mavenArtifactLabelPrefix = "@maven//:"

// coordToLabelReplacer mirrors rules_jvm_external's own escaping of a Maven
// coordinate into the Starlark-legal target name it pins each artifact
// under: every '.', ':' and '-' becomes '_'.
var coordToLabelReplacer = strings.NewReplacer(".", "_", ":", "_", "-", "_")

// affectedArtifacts runs a bazel query restricted to e.Selection and
// returns the set of "group:artifact" coordinates (drawn from coords)
// transitively reachable from it. A nil, nil result means the selection is
// the default "//..." (every target, hence every pinned artifact, is in
// scope) so no filtering is needed.
func (e Extractor) affectedArtifacts(ctx context.Context, projectRoot string, coords []string) (map[string]bool, error) {
	if len(e.Selection.Targets) == 0 && e.Selection.Query == "" && len(e.Selection.AffectedByFiles) == 0 {
		return nil, nil
	}
	tool := e.Tool
	if tool == "" {
		tool = "bazel"
	}
	expr := fmt.Sprintf(`filter("^%s", deps(%s))`, mavenArtifactLabelPrefix, e.Selection.Expression())
	stdout, err := buildsystem.RunReadOnly(ctx, projectRoot, projectRoot, tool, "query", expr, "--output=label")
	if err != nil {
		return nil, err
	}

	labelToCoord := make(map[string]string, len(coords))
	for _, c := range coords {
		labelToCoord[coordToLabelReplacer.Replace(c)] = c
	}

	affected := make(map[string]bool)
	for _, line := range buildsystem.StripToolDiagnostics(stdout) {
		line = strings.TrimSpace(line)
		label := strings.TrimPrefix(line, mavenArtifactLabelPrefix)
		if label == line {
			continue
		}
		if coord, ok := labelToCoord[label]; ok {
			affected[coord] = true
		}
	}
	return affected, nil
}

// Extract resolves e.Selection to the set of pinned artifacts it actually
// reaches and parses maven_install.json for their coordinates, appending
// one DependencyNode per affected pinned artifact to g. When Selection is
// the default ("//...", every target), every pinned artifact is extracted.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	if selected, err := e.SelectedTargets(ctx, projectRoot); err != nil {
		// Target selection failing doesn't necessarily mean lockfile-based
		// extraction can't proceed (e.g. a query typo); surface it as a
		// diagnostic rather than aborting the whole module, since the lockfile
		// is still authoritative for versions.
		g.Diagnostics = append(g.Diagnostics, graph.Diagnostic{
			Category: "bazel-query",
			Message:  err.Error(),
		})
	} else {
		log.Debugf("bazel: %d targets selected by %q", len(selected), e.Selection.Expression())
	}

	lockPath := filepath.Join(projectRoot, "maven_install.json")
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		log.Warnf("bazel: no maven_install.json found under %s; no JVM dependencies extracted", projectRoot)
		return nil, nil
	}
	if err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, err)
	}
	var lock mavenInstallLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, fmt.Errorf("parse maven_install.json: %w", err))
	}

	coords := make([]string, 0, len(lock.ArtifactsField))
	for coord := range lock.ArtifactsField {
		coords = append(coords, coord)
	}
	affected, err := e.affectedArtifacts(ctx, projectRoot, coords)
	if err != nil {
		// The incremental filter itself failed (e.g. the query syntax was
		// rejected); fall back to extracting every pinned artifact rather
		// than silently under-reporting, and surface why.
		g.Diagnostics = append(g.Diagnostics, graph.Diagnostic{
			Category: "bazel-affected-artifacts",
			Message:  err.Error(),
		})
		affected = nil
	}

	var roots []graph.NodeID
	for coord, meta := range lock.ArtifactsField {
		if !strings.Contains(coord, ":") {
			continue
		}
		if affected != nil && !affected[coord] {
			continue
		}
		ref, err := pkgref.NewMaven(coord, meta.Version)
		if err != nil {
			g.RecordMissingVersion(coord)
			continue
		}
		id := g.AddNode(parent, ref, graph.ScopeCompile, nil,
			graph.Origin{BuildSystem: string(buildsystem.Bazel)},
			graph.Evidence{ManifestPath: "maven_install.json"})
		roots = append(roots, id)
	}
	log.Debugf("bazel: extracted %d pinned artifacts from %s", len(roots), lockPath)
	return roots, nil
}

var _ buildsystem.Extractor = Extractor{}
