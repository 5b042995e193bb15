// Package sbt extracts dependency graphs from sbt projects by invoking
// `sbt -batch dependencyTree` in read-only batch mode (no plugin resolution
// side effects beyond what sbt itself caches) and parsing its indented
// coordinate tree, per spec §4.A.
package sbt

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// Extractor implements buildsystem.Extractor for sbt.
type Extractor struct {
	// Tool overrides the binary invoked, defaulting to "sbt".
	Tool string
}

// New returns an sbt extractor.
func New(tool string) *Extractor {
	if tool == "" {
		tool = "sbt"
	}
	return &Extractor{Tool: tool}
}

// System identifies this extractor.
func (Extractor) System() buildsystem.System { return buildsystem.Sbt }

// depLine matches one line of sbt's "dependencyTree" output, e.g.:
//
//	  +-org.typelevel:cats-core_2.13:2.9.0
//	  | +-org.typelevel:cats-kernel_2.13:2.9.0 [test]
var depLine = regexp.MustCompile(`[+\\|` + "`" + ` -]*\+-([^:\s]+):([^:\s]+):([^:\s\[]+)(?:\s*\[([a-zA-Z]+)\])?`)

// Extract runs `<tool> -batch dependencyTree` against anchor's module
// directory and parses every resolved coordinate into g.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	dir := filepath.Join(projectRoot, anchor.Dir)
	stdout, err := buildsystem.RunReadOnly(ctx, anchor.Dir, dir, e.Tool, "-batch", "dependencyTree")
	if err != nil {
		return nil, err
	}

	lines := buildsystem.StripToolDiagnostics(stdout)
	seen := map[string]bool{}
	var roots []graph.NodeID
	for _, line := range lines {
		m := depLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		org, artifact, version, conf := m[1], m[2], m[3], m[4]
		coord := org + ":" + artifact
		key := coord + "@" + version
		if seen[key] {
			continue
		}
		seen[key] = true

		ref, err := pkgref.NewMaven(coord, version)
		if err != nil {
			return nil, bzerr.ParseFailure(anchor.Dir, err)
		}
		scope := graph.ScopeCompile
		if conf == "test" {
			scope = graph.ScopeTest
		}
		id := g.AddNode(parent, ref, scope, nil,
			graph.Origin{BuildSystem: string(buildsystem.Sbt)},
			graph.Evidence{ManifestPath: anchor.Dir})
		roots = append(roots, id)
	}
	log.Debugf("sbt: extracted %d dependencies from %s", len(roots), dir)
	return roots, nil
}

var _ buildsystem.Extractor = Extractor{}
