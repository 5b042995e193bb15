// Package ant extracts dependency graphs from Ant projects. Plain Ant has no
// native dependency model, so extraction only proceeds when an Ivy
// descriptor (ivy.xml) sits beside build.xml — the de facto dependency
// manager for Ant builds, per spec §4.A's "Ant (+ivy.xml if present)" note.
package ant

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// ivyModule mirrors the subset of Ivy's module descriptor schema bazbom
// needs: https://ant.apache.org/ivy/history/latest-milestone/ivyfile.html
type ivyModule struct {
	XMLName      xml.Name `xml:"ivy-module"`
	Dependencies struct {
		Dependency []ivyDependency `xml:"dependency"`
	} `xml:"dependencies"`
}

type ivyDependency struct {
	Org  string `xml:"org,attr"`
	Name string `xml:"name,attr"`
	Rev  string `xml:"rev,attr"`
	Conf string `xml:"conf,attr"`
}

// Extractor implements buildsystem.Extractor for Ant+Ivy projects.
type Extractor struct{}

// New returns an Ant extractor.
func New() *Extractor { return &Extractor{} }

// System identifies this extractor.
func (Extractor) System() buildsystem.System { return buildsystem.Ant }

func scopeForConf(conf string) graph.Scope {
	switch conf {
	case "", "default", "compile", "runtime":
		return graph.ScopeCompile
	case "test":
		return graph.ScopeTest
	case "provided":
		return graph.ScopeProvided
	default:
		return graph.ScopeCompile
	}
}

// Extract parses ivy.xml next to anchor's build.xml, if present, appending
// one node per declared dependency. Projects without an Ivy descriptor
// yield zero nodes and no error: a plain build.xml genuinely carries no
// resolvable dependency metadata.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	dir := filepath.Join(projectRoot, anchor.Dir)
	ivyPath := filepath.Join(dir, "ivy.xml")

	f, err := os.Open(ivyPath)
	if os.IsNotExist(err) {
		log.Debugf("ant: no ivy.xml beside %s; skipping dependency extraction", anchor.File)
		return nil, nil
	}
	if err != nil {
		return nil, bzerr.ToolMissing(anchor.Dir, "ivy.xml", err)
	}
	defer f.Close()

	var mod ivyModule
	if err := xml.NewDecoder(f).Decode(&mod); err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, err)
	}

	var roots []graph.NodeID
	for _, dep := range mod.Dependencies.Dependency {
		if dep.Rev == "" {
			g.RecordMissingVersion(dep.Org + ":" + dep.Name)
			continue
		}
		ref := pkgref.Ref{Ecosystem: pkgref.Maven, Namespace: dep.Org, Name: dep.Name, Version: dep.Rev}
		if err := ref.Validate(); err != nil {
			continue
		}
		id := g.AddNode(parent, ref, scopeForConf(dep.Conf), nil,
			graph.Origin{BuildSystem: string(buildsystem.Ant)},
			graph.Evidence{ManifestPath: filepath.Join(anchor.Dir, "ivy.xml")})
		roots = append(roots, id)
	}
	log.Debugf("ant: extracted %d dependencies from %s", len(roots), ivyPath)
	return roots, nil
}

var _ buildsystem.Extractor = Extractor{}
