// Package maven extracts dependency graphs from pom.xml files. It is
// grounded directly on the teacher's
// extractor/filesystem/language/java/pomxml(net) packages: pom.xml decoding
// and interpolation are delegated to deps.dev/util/maven, the same library
// the teacher decodes into. Parent-POM merging follows the shape of the
// teacher's internal/mavenutil.MergeParents, restricted to its
// allowLocal-only path: this extractor never fetches a parent.pom over the
// network (the teacher's loadParentRemote branch), matching spec §4.A's
// read-only, no-network extraction contract.
package maven

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"deps.dev/util/maven"

	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// maxParentDepth bounds the parent-POM walk, mirroring the teacher's
// mavenutil.MaxParent guard against a cyclic or runaway parent chain.
const maxParentDepth = 100

// versionRequirementReg extracts the resolved version out of a Maven version
// range/requirement expression, exactly as the teacher's pomxml extractor
// does.
var versionRequirementReg = regexp.MustCompile(`[[(]?(.*?)(?:,|[)\]]|$)`)

func parseResolvedVersion(version maven.String) string {
	results := versionRequirementReg.FindStringSubmatch(string(version))
	if results == nil || results[1] == "" {
		return ""
	}
	return results[1]
}

// mergeLocalParents walks project's <parent> chain, reading each ancestor
// pom.xml from disk relative to pomPath (or the parent's own relativePath)
// and folding its dependencyManagement and properties into project via
// MergeParent, exactly the allowLocal branch of the teacher's
// mavenutil.MergeParents. A parent that isn't found on disk (a multi-module
// reactor built from an artifact resolved out of a local or remote
// repository rather than a sibling directory) ends the walk without error:
// project is left with whatever its own pom.xml declared, the same
// degraded-but-not-fatal outcome the rest of this extractor uses for
// partial information.
func mergeLocalParents(project *maven.Project, pomPath string) error {
	current := project.Parent
	currentPath := pomPath
	visited := make(map[string]bool, maxParentDepth)

	for i := 0; i < maxParentDepth; i++ {
		if current.GroupID == "" || current.ArtifactID == "" || current.Version == "" {
			return nil
		}

		parentPath := parentPOMPath(currentPath, string(current.RelativePath))
		if parentPath == "" || visited[parentPath] {
			return nil
		}
		visited[parentPath] = true

		f, err := os.Open(parentPath)
		if err != nil {
			// No sibling pom.xml at the declared relative path: the parent
			// lives in a repository this extractor never fetches from.
			return nil
		}
		var parentProject maven.Project
		decodeErr := xml.NewDecoder(f).Decode(&parentProject)
		f.Close()
		if decodeErr != nil {
			return fmt.Errorf("decode parent pom.xml at %s: %w", parentPath, decodeErr)
		}

		project.MergeParent(parentProject)
		current = parentProject.Parent
		currentPath = parentPath
	}
	return fmt.Errorf("parent chain exceeded %d levels, likely a cycle", maxParentDepth)
}

// parentPOMPath resolves a <relativePath> (defaulting to "../pom.xml", as
// Maven itself does when the element is absent) against the directory
// containing currentPath, following the same directory-or-file fallback as
// the teacher's mavenutil.ParentPOMPath.
func parentPOMPath(currentPath, relativePath string) string {
	if relativePath == "" {
		relativePath = "../pom.xml"
	}
	path := filepath.Join(filepath.Dir(currentPath), relativePath)
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		return path
	}
	dirPOM := filepath.Join(path, "pom.xml")
	if _, err := os.Stat(dirPOM); err != nil {
		return ""
	}
	return dirPOM
}

// Extractor implements buildsystem.Extractor for Maven.
type Extractor struct{}

// New returns a Maven extractor.
func New() *Extractor { return &Extractor{} }

// System identifies this extractor to the orchestrator and to deterministic
// merge tie-breaking.
func (Extractor) System() buildsystem.System { return buildsystem.Maven }

// Extract decodes anchor's pom.xml, merges local parent POMs (walking
// <parent><relativePath> the way a Maven reactor build would, so a
// dependency's version inherited from a parent's <dependencyManagement>
// resolves instead of being dropped), resolves dependency management, and
// appends one DependencyNode per declared dependency to g.
func (e Extractor) Extract(ctx context.Context, projectRoot string, anchor buildsystem.Anchor, g *graph.Graph, parent graph.NodeID) ([]graph.NodeID, error) {
	pomPath := filepath.Join(projectRoot, anchor.Dir, anchor.File)
	f, err := os.Open(pomPath)
	if err != nil {
		return nil, bzerr.ToolMissing(anchor.Dir, "pom.xml reader", err)
	}
	defer f.Close()

	var project *maven.Project
	if err := xml.NewDecoder(f).Decode(&project); err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, fmt.Errorf("decode pom.xml: %w", err))
	}

	if err := mergeLocalParents(project, pomPath); err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, fmt.Errorf("merge parent pom.xml: %w", err))
	}

	if err := project.Interpolate(); err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, fmt.Errorf("interpolate pom.xml properties: %w", err))
	}

	// No network access: a <dependencyManagement><import> of another
	// project's BOM resolves only to whatever dependencyManagement is
	// already present on project (its own, plus whatever mergeLocalParents
	// folded in), matching spec §4.A's read-only-tool contract (no
	// arbitrary network or build-code execution).
	project.ProcessDependencies(func(groupID, artifactID, version maven.String) (maven.DependencyManagement, error) {
		return maven.DependencyManagement{}, nil
	})

	rootRef, err := pkgref.NewMaven(string(project.GroupID)+":"+string(project.ArtifactID), parseResolvedVersion(project.Version))
	if err != nil {
		return nil, bzerr.ParseFailure(anchor.Dir, err)
	}
	moduleRoot := g.AddNode(parent, rootRef, graph.ScopeCompile, nil,
		graph.Origin{BuildSystem: string(buildsystem.Maven)},
		graph.Evidence{ManifestPath: filepath.Join(anchor.Dir, anchor.File)})

	var roots []graph.NodeID
	for _, dep := range project.Dependencies {
		coord := dep.Name()
		if !strings.Contains(coord, ":") {
			return nil, bzerr.ParseFailure(anchor.Dir, fmt.Errorf("invalid dependency coordinate %q", coord))
		}
		version := parseResolvedVersion(dep.Version)
		if version == "" {
			g.RecordMissingVersion(coord)
			continue
		}
		ref, err := pkgref.NewMaven(coord, version)
		if err != nil {
			return nil, bzerr.ParseFailure(anchor.Dir, err)
		}
		scope := scopeFor(string(dep.Scope))
		if scope == "" {
			if s := strings.TrimSpace(string(dep.Scope)); s != "" {
				g.RecordUnknownScope(ref, s)
			}
			scope = graph.ScopeCompile
		}
		id := g.AddNode(moduleRoot, ref, scope, nil,
			graph.Origin{BuildSystem: string(buildsystem.Maven)},
			graph.Evidence{ManifestPath: filepath.Join(anchor.Dir, anchor.File)})
		roots = append(roots, id)
	}

	log.Debugf("maven: extracted %d dependencies from %s", len(roots), pomPath)
	return append([]graph.NodeID{moduleRoot}, roots...), nil
}

func scopeFor(raw string) graph.Scope {
	switch strings.TrimSpace(raw) {
	case "", "compile":
		return graph.ScopeCompile
	case "runtime":
		return graph.ScopeRuntime
	case "test":
		return graph.ScopeTest
	case "provided":
		return graph.ScopeProvided
	case "system":
		return graph.ScopeSystem
	default:
		return ""
	}
}

var _ buildsystem.Extractor = Extractor{}
