package ant_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/ant"
	"github.com/bazbom/bazbom/graph"
)

const sampleIvy = `<ivy-module version="2.0">
  <dependencies>
    <dependency org="commons-io" name="commons-io" rev="2.11.0" conf="default"/>
    <dependency org="junit" name="junit" rev="4.13.2" conf="test"/>
  </dependencies>
</ivy-module>`

func TestExtractParsesIvyDependencies(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ivy.xml"), []byte(sampleIvy), 0o644); err != nil {
		t.Fatal(err)
	}
	g := graph.New()
	ex := ant.New()
	anchor := buildsystem.Anchor{System: buildsystem.Ant, Dir: "", File: "build.xml"}
	roots, err := ex.Extract(t.Context(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(roots))
	}
	var sawTest bool
	for _, n := range g.Nodes() {
		if n.Ref.Name == "junit" {
			sawTest = n.Scope == graph.ScopeTest
		}
	}
	if !sawTest {
		t.Fatalf("expected junit dependency to carry test scope")
	}
}

func TestExtractWithoutIvyReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	ex := ant.New()
	anchor := buildsystem.Anchor{System: buildsystem.Ant, Dir: "", File: "build.xml"}
	roots, err := ex.Extract(t.Context(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 0 {
		t.Fatalf("expected no roots without ivy.xml, got %d", len(roots))
	}
}
