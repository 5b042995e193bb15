package sbt_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/sbt"
	"github.com/bazbom/bazbom/graph"
)

const fakeTreeOutput = `
[info] someproject
[info]   +-org.typelevel:cats-core_2.13:2.9.0
[info]   | +-org.typelevel:cats-kernel_2.13:2.9.0
[info]   +-org.scalatest:scalatest_2.13:3.2.15 [test]
[success] Total time: 1 s
`

func fakeTool(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script tool not supported on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-sbt.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + fakeTreeOutput + "EOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractParsesDependencyTree(t *testing.T) {
	tool := fakeTool(t)
	ex := sbt.New(tool)
	g := graph.New()
	anchor := buildsystem.Anchor{System: buildsystem.Sbt, Dir: "", File: "build.sbt"}

	roots, err := ex.Extract(t.Context(), t.TempDir(), anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 3 {
		t.Fatalf("expected 3 dependencies, got %d", len(roots))
	}
	var sawTest bool
	for _, n := range g.Nodes() {
		if n.Ref.Name == "scalatest_2.13" {
			sawTest = n.Scope == graph.ScopeTest
		}
	}
	if !sawTest {
		t.Fatalf("expected scalatest dependency to carry test scope")
	}
}
