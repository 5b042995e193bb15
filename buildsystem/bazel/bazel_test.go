package bazel_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/bazel"
	"github.com/bazbom/bazbom/graph"
)

// fakeBazelTool writes an executable shell script that ignores its query
// expression and always prints a fixed mix of target and @maven//: artifact
// labels, so a test can exercise SelectedTargets/affectedArtifacts without
// shelling out to a real Bazel installation.
func fakeBazelTool(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script tool not supported on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-bazel.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + output + "EOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeLock(t *testing.T, dir string) {
	t.Helper()
	lock := map[string]any{
		"artifacts": map[string]any{
			"com.google.guava:guava":        map[string]string{"version": "31.1-jre"},
			"org.apache.commons:commons-io": map[string]string{"version": "2.11.0"},
		},
	}
	data, err := json.Marshal(lock)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "maven_install.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpressionModes(t *testing.T) {
	cases := []struct {
		name string
		sel  bazel.TargetSelection
		want string
	}{
		{"default", bazel.TargetSelection{}, "//..."},
		{"explicit", bazel.TargetSelection{Targets: []string{"//foo:bar", "//baz:qux"}}, "//foo:bar union //baz:qux"},
		{"query", bazel.TargetSelection{Query: "kind(java_library, //...)"}, "kind(java_library, //...)"},
		{"affected", bazel.TargetSelection{AffectedByFiles: []string{"foo/Bar.java"}}, `rdeps(//..., set("foo/Bar.java"))`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.sel.Expression(); got != c.want {
				t.Errorf("Expression() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestExtractParsesMavenInstallLock(t *testing.T) {
	dir := t.TempDir()
	writeLock(t, dir)

	g := graph.New()
	ex := &bazel.Extractor{Tool: "/nonexistent/bazel-binary-for-test"}
	anchor := buildsystem.Anchor{System: buildsystem.Bazel, Dir: "", File: "MODULE.bazel"}
	roots, err := ex.Extract(t.Context(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 pinned artifacts, got %d", len(roots))
	}
	// Missing bazel binary should be recorded as a diagnostic, not fail the
	// whole extraction, since the lockfile is still authoritative.
	if len(g.Diagnostics) == 0 {
		t.Fatalf("expected a bazel-query diagnostic for the missing binary")
	}
}

func TestExtractFiltersToAffectedArtifactsWhenSelectionIsNotDefault(t *testing.T) {
	dir := t.TempDir()
	writeLock(t, dir)

	// Both SelectedTargets and affectedArtifacts invoke the same fake tool;
	// only the @maven//: line matters for filtering, and it names guava's
	// escaped label but not commons-io's.
	tool := fakeBazelTool(t, "//app:main\n@maven//:com_google_guava_guava\n")
	g := graph.New()
	ex := &bazel.Extractor{
		Tool:      tool,
		Selection: bazel.TargetSelection{Targets: []string{"//app:main"}},
	}
	anchor := buildsystem.Anchor{System: buildsystem.Bazel, Dir: "", File: "MODULE.bazel"}
	roots, err := ex.Extract(t.Context(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected only the affected guava artifact, got %d roots", len(roots))
	}
	if roots[0] == 0 {
		t.Fatal("expected a valid node id")
	}
	var sawGuava, sawCommonsIO bool
	for _, n := range g.Nodes() {
		switch n.Ref.Coordinate() {
		case "com.google.guava:guava":
			sawGuava = true
		case "org.apache.commons:commons-io":
			sawCommonsIO = true
		}
	}
	if !sawGuava {
		t.Fatal("expected guava to be extracted as an affected artifact")
	}
	if sawCommonsIO {
		t.Fatal("expected commons-io to be filtered out as unaffected")
	}
}

func TestExtractWithoutLockfileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	ex := &bazel.Extractor{Tool: "/nonexistent/bazel-binary-for-test"}
	anchor := buildsystem.Anchor{System: buildsystem.Bazel, Dir: "", File: "MODULE.bazel"}
	roots, err := ex.Extract(t.Context(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 0 {
		t.Fatalf("expected no roots without a lockfile, got %d", len(roots))
	}
}
