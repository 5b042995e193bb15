package buildsystem

import (
	"bufio"
	"context"
	"strings"

	"github.com/bazbom/bazbom/graph"
)

// Extractor is the per-build-system extraction contract from spec §4.A:
// given an anchor and the project root, produce the complete resolved
// dependency set with versions, scopes, and parent relationships where the
// build system exposes them.
type Extractor interface {
	// System names the build system this extractor handles.
	System() System
	// Extract runs against the given anchor (already validated to belong to
	// this extractor's System) and appends nodes to g under the given
	// parent, returning the new subgraph's own roots.
	Extract(ctx context.Context, projectRoot string, anchor Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error)
}

// toolDiagnosticPrefixes lists line prefixes that Maven/Gradle/sbt build
// tools emit ahead of the structured dependency data bazbom actually wants,
// e.g. Maven's "[INFO]"/"[WARNING]" framing (spec §4.A "Output of shell
// tools is parsed as lines prefixed with tool diagnostics... that the
// extractor strips").
var toolDiagnosticPrefixes = []string{"[INFO]", "[WARNING]", "[ERROR]", "[DEBUG]", "> Task", "Download "}

// StripToolDiagnostics filters stdout lines that are build-tool framing
// rather than structured dependency data, returning only the lines an
// extractor's line parser should consider.
func StripToolDiagnostics(stdout string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		skip := false
		for _, p := range toolDiagnosticPrefixes {
			if strings.HasPrefix(trimmed, p) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, line)
		}
	}
	return out
}
