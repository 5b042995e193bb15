package maven_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/maven"
	"github.com/bazbom/bazbom/graph"
)

const samplePOM = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>vulnerable-app</artifactId>
  <version>1.0.0</version>
  <dependencies>
    <dependency>
      <groupId>org.apache.logging.log4j</groupId>
      <artifactId>log4j-core</artifactId>
      <version>2.14.1</version>
    </dependency>
    <dependency>
      <groupId>junit</groupId>
      <artifactId>junit</artifactId>
      <version>4.13.2</version>
      <scope>test</scope>
    </dependency>
  </dependencies>
</project>`

func TestExtractParsesDependenciesAndScopes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pom.xml"), []byte(samplePOM), 0o644); err != nil {
		t.Fatal(err)
	}

	g := graph.New()
	ex := maven.New()
	anchor := buildsystem.Anchor{System: buildsystem.Maven, Dir: "", File: "pom.xml"}
	roots, err := ex.Extract(context.Background(), dir, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 3 { // module root + 2 dependencies
		t.Fatalf("expected 3 node ids (module + 2 deps), got %d", len(roots))
	}

	var sawLog4j, sawJUnit bool
	for _, n := range g.Nodes() {
		switch n.Ref.Coordinate() {
		case "org.apache.logging.log4j:log4j-core":
			sawLog4j = true
			if n.Ref.Version != "2.14.1" {
				t.Errorf("log4j version = %q", n.Ref.Version)
			}
			if n.Scope != graph.ScopeCompile {
				t.Errorf("expected default compile scope, got %v", n.Scope)
			}
		case "junit:junit":
			sawJUnit = true
			if n.Scope != graph.ScopeTest {
				t.Errorf("expected test scope, got %v", n.Scope)
			}
		}
	}
	if !sawLog4j || !sawJUnit {
		t.Fatalf("missing expected dependencies: log4j=%v junit=%v", sawLog4j, sawJUnit)
	}
}

const parentPOM = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>parent-pom</artifactId>
  <version>1.0.0</version>
  <packaging>pom</packaging>
  <dependencyManagement>
    <dependencies>
      <dependency>
        <groupId>org.apache.logging.log4j</groupId>
        <artifactId>log4j-core</artifactId>
        <version>2.14.1</version>
      </dependency>
    </dependencies>
  </dependencyManagement>
</project>`

const childPOMWithoutVersion = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>com.example</groupId>
    <artifactId>parent-pom</artifactId>
    <version>1.0.0</version>
    <relativePath>../parent/pom.xml</relativePath>
  </parent>
  <groupId>com.example</groupId>
  <artifactId>vulnerable-app</artifactId>
  <version>1.0.0</version>
  <dependencies>
    <dependency>
      <groupId>org.apache.logging.log4j</groupId>
      <artifactId>log4j-core</artifactId>
    </dependency>
  </dependencies>
</project>`

func TestExtractInheritsVersionFromLocalParentDependencyManagement(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "parent"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "parent", "pom.xml"), []byte(parentPOM), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app", "pom.xml"), []byte(childPOMWithoutVersion), 0o644); err != nil {
		t.Fatal(err)
	}

	g := graph.New()
	ex := maven.New()
	anchor := buildsystem.Anchor{System: buildsystem.Maven, Dir: "app", File: "pom.xml"}
	roots, err := ex.Extract(context.Background(), root, anchor, g, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(roots) != 2 { // module root + the one dependency
		t.Fatalf("expected 2 node ids (module + 1 dep), got %d", len(roots))
	}

	var sawLog4j bool
	for _, n := range g.Nodes() {
		if n.Ref.Coordinate() == "org.apache.logging.log4j:log4j-core" {
			sawLog4j = true
			if n.Ref.Version != "2.14.1" {
				t.Errorf("expected version inherited from parent dependencyManagement, got %q", n.Ref.Version)
			}
		}
	}
	if !sawLog4j {
		t.Fatal("log4j-core dependency missing; version inherited from parent was not resolved")
	}
}

func TestExtractFailsOnMalformedXML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pom.xml"), []byte("<project><unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := graph.New()
	ex := maven.New()
	anchor := buildsystem.Anchor{System: buildsystem.Maven, Dir: "", File: "pom.xml"}
	if _, err := ex.Extract(context.Background(), dir, anchor, g, 0); err == nil {
		t.Fatal("expected a parse failure for malformed pom.xml")
	}
}
