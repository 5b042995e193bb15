// Package buildsystem implements build-system detection and the common
// Extractor contract for turning an anchor file into a DependencyGraph
// (spec §4.A). Per-build-system extraction lives in the maven, gradle,
// bazel, ant, sbt and buildr subpackages; shading detection lives in
// shade.
package buildsystem

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// System names a JVM build system, used as graph.Origin.BuildSystem and in
// BuildSystemPriority tie-breaking.
type System string

// Supported build systems, spec §4.A.
const (
	Maven  System = "maven"
	Gradle System = "gradle"
	Bazel  System = "bazel"
	Ant    System = "ant"
	Sbt    System = "sbt"
	Buildr System = "buildr"
)

// anchorPatterns lists, per system and in detection priority order, the
// anchor file globs that mark a directory as a module root (spec §4.A
// table). Detection within one directory stops at the first system whose
// anchor matches; Maven > Gradle > Bazel > Ant > sbt > Buildr mirrors the
// merge tie-break order from spec §3.
var anchorPatterns = []struct {
	system System
	globs  []string
}{
	{Maven, []string{"pom.xml"}},
	{Gradle, []string{"build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"}},
	{Bazel, []string{"MODULE.bazel", "WORKSPACE", "WORKSPACE.bazel", "BUILD.bazel", "BUILD"}},
	{Ant, []string{"build.xml"}},
	{Sbt, []string{"build.sbt"}},
	{Buildr, []string{"buildfile"}},
}

// Anchor is one detected build-system module root.
type Anchor struct {
	System System
	Dir    string // slash-separated, relative to the scan root.
	File   string // the specific anchor file that matched, relative to Dir.
}

// Detect walks root looking for anchor files, returning one Anchor per
// directory for the first (highest-priority) matching system — "first match
// wins per directory, but multiple modules coexist in a monorepo" (spec
// §4.A). Buildr's Rakefile special case (a Rakefile containing "Buildr::" or
// "artifact(") is handled separately since it requires reading file
// contents, not just the name.
func Detect(root fs.FS) ([]Anchor, error) {
	byDir := map[string]Anchor{}
	err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Dir(path)
		if dir == "." {
			dir = ""
		}
		base := filepath.Base(path)
		var sys System
		for _, ap := range anchorPatterns {
			for _, g := range ap.globs {
				if base == g {
					sys = ap.system
				}
			}
			if sys != "" {
				break
			}
		}
		if sys == "" && base == "Rakefile" && isBuildrRakefile(root, path) {
			sys = Buildr
		}
		if sys == "" {
			return nil
		}
		if prev, already := byDir[dir]; already && Priority(prev.System) <= Priority(sys) {
			return nil
		}
		byDir[dir] = Anchor{System: sys, Dir: dir, File: base}
		return nil
	})
	if err != nil {
		return nil, err
	}
	anchors := make([]Anchor, 0, len(byDir))
	for _, a := range byDir {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].Dir != anchors[j].Dir {
			return anchors[i].Dir < anchors[j].Dir
		}
		return anchors[i].System < anchors[j].System
	})
	return anchors, nil
}

func isBuildrRakefile(root fs.FS, path string) bool {
	b, err := fs.ReadFile(root, path)
	if err != nil {
		return false
	}
	s := string(b)
	return strings.Contains(s, "Buildr::") || strings.Contains(s, "artifact(")
}

// Priority returns spec §3's deterministic merge tie-break rank for sys
// (lower sorts first / wins).
func Priority(sys System) int {
	switch sys {
	case Maven:
		return 0
	case Gradle:
		return 1
	case Bazel:
		return 2
	case Ant:
		return 3
	case Sbt:
		return 4
	case Buildr:
		return 5
	default:
		return 99
	}
}
