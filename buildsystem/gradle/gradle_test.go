package gradle_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/gradle"
	"github.com/bazbom/bazbom/graph"
)

const fakeDependenciesOutput = `
> Task :dependencies

compileClasspath - Compile classpath for source set 'main'.
+--- org.apache.commons:commons-text:1.9
+--- org.springframework:spring-core:5.3.20 -> 5.3.21
\--- com.google.guava:guava:31.1-jre (*)

[INFO] BUILD SUCCESSFUL
`

// fakeTool writes an executable shell script that ignores its arguments and
// prints canned dependency-tree output, so the test never shells out to a
// real Gradle installation.
func fakeTool(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script tool not supported on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-gradle.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + fakeDependenciesOutput + "EOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractParsesDependencyTree(t *testing.T) {
	tool := fakeTool(t)
	ex := gradle.New(tool)
	g := graph.New()
	anchor := buildsystem.Anchor{System: buildsystem.Gradle, Dir: "", File: "build.gradle.kts"}

	roots, err := ex.Extract(context.Background(), t.TempDir(), anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 3 {
		t.Fatalf("expected 3 dependencies, got %d", len(roots))
	}
	versions := map[string]string{}
	for _, n := range g.Nodes() {
		versions[n.Ref.Coordinate()] = n.Ref.Version
	}
	if versions["org.springframework:spring-core"] != "5.3.21" {
		t.Fatalf("expected resolved version override to win, got %q", versions["org.springframework:spring-core"])
	}
	if versions["org.apache.commons:commons-text"] != "1.9" {
		t.Fatalf("commons-text version = %q", versions["org.apache.commons:commons-text"])
	}
}
