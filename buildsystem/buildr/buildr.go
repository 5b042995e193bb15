// Package buildr extracts dependency graphs from Apache Buildr projects by
// invoking `buildr dependencies` in read-only mode and parsing Buildr's
// Maven-style "group:id:type:version" artifact specs, per spec §4.A.
package buildr

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

// Extractor implements buildsystem.Extractor for Buildr.
type Extractor struct {
	// Tool overrides the binary invoked, defaulting to "buildr".
	Tool string
}

// New returns a Buildr extractor.
func New(tool string) *Extractor {
	if tool == "" {
		tool = "buildr"
	}
	return &Extractor{Tool: tool}
}

// System identifies this extractor.
func (Extractor) System() buildsystem.System { return buildsystem.Buildr }

// artifactSpec matches Buildr's artifact spec syntax: group:id:type:version,
// optionally prefixed by "test." when listed under a test-scoped group.
var artifactSpec = regexp.MustCompile(`(test\.)?([^\s:]+):([^\s:]+):(jar|war|pom):([^\s:]+)`)

// Extract runs `<tool> dependencies` against anchor's module directory and
// parses every artifact spec it prints into g.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	dir := filepath.Join(projectRoot, anchor.Dir)
	stdout, err := buildsystem.RunReadOnly(ctx, anchor.Dir, dir, e.Tool, "dependencies")
	if err != nil {
		return nil, err
	}

	lines := buildsystem.StripToolDiagnostics(stdout)
	seen := map[string]bool{}
	var roots []graph.NodeID
	for _, line := range lines {
		for _, m := range artifactSpec.FindAllStringSubmatch(line, -1) {
			testPrefix, group, artifact, _, version := m[1], m[2], m[3], m[4], m[5]
			coord := group + ":" + artifact
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
			if testPrefix != "" {
				scope = graph.ScopeTest
			}
			id := g.AddNode(parent, ref, scope, nil,
				graph.Origin{BuildSystem: string(buildsystem.Buildr)},
				graph.Evidence{ManifestPath: anchor.Dir})
			roots = append(roots, id)
		}
	}
	log.Debugf("buildr: extracted %d dependencies from %s", len(roots), dir)
	return roots, nil
}

var _ buildsystem.Extractor = Extractor{}
