// Package gradle extracts dependency graphs from Gradle projects (Groovy or
// Kotlin DSL) by invoking `gradle :dependencies` in read-only mode and
// parsing its tree-formatted stdout, per spec §4.A.
package gradle

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// Extractor implements buildsystem.Extractor for Gradle.
type Extractor struct {
	// Tool overrides the binary invoked, defaulting to "gradle". Projects
	// with a wrapper typically want "./gradlew" instead.
	Tool string
}

// New returns a Gradle extractor invoking the given tool ("gradle" or
// "./gradlew").
func New(tool string) *Extractor {
	if tool == "" {
		tool = "gradle"
	}
	return &Extractor{Tool: tool}
}

// System identifies this extractor.
func (Extractor) System() buildsystem.System { return buildsystem.Gradle }

// depLine matches a single dependency line in Gradle's ASCII dependency
// tree, e.g.:
//
//	+--- org.apache.commons:commons-text:1.9
//	\--- org.springframework:spring-core:5.3.20 -> 5.3.21
//	+--- com.example:app:1.0 (*)
var depLine = regexp.MustCompile(`^[ |\\+-]*[\\+]?---\s+([^\s:]+):([^\s:]+):([^\s:(]+)(?:\s*->\s*([^\s(]+))?`)

// Extract runs `<tool> :dependencies` against anchor's module directory and
// parses every resolved coordinate it prints into g.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	dir := filepath.Join(projectRoot, anchor.Dir)
	stdout, err := buildsystem.RunReadOnly(ctx, anchor.Dir, dir, e.Tool, ":dependencies", "--configuration", "compileClasspath")
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
		group, artifact, declared, resolved := m[1], m[2], m[3], m[4]
		version := declared
		if resolved != "" {
			version = resolved
		}
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
		if strings.Contains(line, "testCompile") {
			scope = graph.ScopeTest
		}
		id := g.AddNode(parent, ref, scope, nil,
			graph.Origin{BuildSystem: string(buildsystem.Gradle)},
			graph.Evidence{ManifestPath: anchor.Dir})
		roots = append(roots, id)
	}
	log.Debugf("gradle: extracted %d dependencies from %s", len(roots), dir)
	return roots, nil
}

var _ buildsystem.Extractor = Extractor{}
