// Package shade detects shaded (uber-) JARs: archives that bundle the
// class files of one or more dependencies under their own META-INF/maven
// coordinate metadata. Detected packages are added to the graph with
// Origin.Shaded set and a back-pointer to the uber-JAR's own node, so
// downstream reachability and policy evaluation can tell a bundled
// transitive apart from a directly declared one.
//
// Grounded on the teacher's archive.parsePomProps, which reads the very
// same META-INF/maven/<group>/<artifact>/pom.properties entries this
// package scans for — adapted here to detect shading rather than identify
// a single package.
package shade

import (
	"archive/zip"
	"bufio"
	"fmt"
	"strings"

	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// pomProperties is one META-INF/maven/<group>/<artifact>/pom.properties
// entry bundled inside a shaded archive.
type pomProperties struct {
	GroupID    string
	ArtifactID string
	Version    string
}

func (p pomProperties) valid() bool {
	return p.GroupID != "" && !strings.Contains(p.GroupID, " ") &&
		p.ArtifactID != "" && !strings.Contains(p.ArtifactID, " ") &&
		p.Version != "" && !strings.Contains(p.Version, " ")
}

func parsePomProperties(f *zip.File) (pomProperties, error) {
	var p pomProperties
	rc, err := f.Open()
	if err != nil {
		return p, fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer rc.Close()

	s := bufio.NewScanner(rc)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		parts := strings.SplitN(line, "=", 2)
		if len(parts) < 2 {
			continue
		}
		key, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch key {
		case "groupId":
			p.GroupID = value
		case "artifactId":
			p.ArtifactID = value
		case "version":
			p.Version = value
		}
	}
	if s.Err() != nil {
		return p, fmt.Errorf("scan %q: %w", f.Name, s.Err())
	}
	return p, nil
}

// DetectAndAdd opens jarPath and, for every bundled
// META-INF/maven/*/*/pom.properties entry, adds a shaded DependencyNode
// under uberJarNode. A JAR with at most one such entry (a normal, unshaded
// JAR, whose single entry describes its own coordinate) adds nothing and
// returns a nil slice with no error.
func DetectAndAdd(jarPath string, g *graph.Graph, uberJarNode graph.NodeID) ([]graph.NodeID, error) {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("open jar %q: %w", jarPath, err)
	}
	defer zr.Close()

	var bundled []pomProperties
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "META-INF/maven/") || !strings.HasSuffix(f.Name, "pom.properties") {
			continue
		}
		p, err := parsePomProperties(f)
		if err != nil {
			log.Warnf("shade: %v", err)
			continue
		}
		if p.valid() {
			bundled = append(bundled, p)
		}
	}

	if len(bundled) <= 1 {
		// A single pom.properties entry usually just describes the JAR's own
		// coordinate, not a bundled dependency; nothing shaded to report.
		return nil, nil
	}

	var ids []graph.NodeID
	for _, p := range bundled {
		ref := pkgref.Ref{Ecosystem: pkgref.Maven, Namespace: p.GroupID, Name: p.ArtifactID, Version: p.Version}
		if err := ref.Validate(); err != nil {
			continue
		}
		id := g.AddNode(uberJarNode, ref, graph.ScopeCompile, nil,
			graph.Origin{Shaded: true, ShadedFrom: uberJarNode},
			graph.Evidence{ManifestPath: jarPath})
		ids = append(ids, id)
	}
	log.Debugf("shade: %s bundles %d shaded packages", jarPath, len(ids))
	return ids, nil
}
