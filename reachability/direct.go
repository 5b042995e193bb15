// Package reachability ties together the callgraph/classfile packages and
// the degraded "direct usage" fallback spec.md §4.C requires when a full
// call-graph build can't run (budget exceeded, or class files aren't
// available at all, e.g. a manifest-only scan with no compiled output).
package reachability

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/reachability/callgraph"
	"github.com/bazbom/bazbom/reachability/classfile"
)

// Status reports the outcome of a reachability analysis for one node.
type Status string

// Statuses spec.md §3 names for a Finding's reachability field.
const (
	StatusReachable      Status = "reachable"
	StatusUnreachable    Status = "unreachable"
	StatusUnknown        Status = "unknown" // analysis degraded or didn't run.
	StatusDirectUsageOnly Status = "direct-usage-only"
)

// Result is one package's reachability verdict plus its evidence chain.
type Result struct {
	Status   Status
	Evidence []callgraph.MethodKey
}

// DirectImportScanner is a cheaper, weaker check than a resolved call
// chain: instead of resolving actual call sites, ScanJar reports which
// target package prefixes the this, super or interface class names of a
// JAR's class files start with. Field types, method references and the rest
// of the constant pool are not examined. Nothing in this module calls
// ScanJar, and AnalyzeNode never reports StatusDirectUsageOnly.
type DirectImportScanner struct {
	// TargetPrefixes maps a package's internal-form prefix (e.g.
	// "org/apache/commons/text") to the PURL it corresponds to, so a match
	// can be attributed back to a DependencyNode.
	TargetPrefixes map[string]string
}

// ScanJar opens jarPath and checks every .class entry's constant pool for a
// reference into any of s.TargetPrefixes, returning the set of matched
// prefixes.
func (s DirectImportScanner) ScanJar(jarPath string) (map[string]bool, error) {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("reachability: open jar %q: %w", jarPath, err)
	}
	defer zr.Close()

	found := map[string]bool{}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		c, err := classfile.Parse(bufio.NewReader(rc))
		rc.Close()
		if err != nil {
			continue
		}
		for _, ref := range allClassReferences(c) {
			for prefix := range s.TargetPrefixes {
				if strings.HasPrefix(ref, prefix) {
					found[prefix] = true
				}
			}
		}
	}
	return found, nil
}

// allClassReferences returns every class name this/super/interfaces of c
// mentions directly; a full constant-pool class-reference scan would catch
// more (field/local types, catch blocks), but this/super/interfaces already
// covers the dominant case of direct subclassing or interface
// implementation bazbom's degraded mode targets.
func allClassReferences(c *classfile.Class) []string {
	out := []string{c.ThisClass}
	if c.SuperClass != "" {
		out = append(out, c.SuperClass)
	}
	return append(out, c.Interfaces...)
}

// Budget bounds how long reachability analysis may run; once its deadline
// has passed, AnalyzeNode reports StatusUnknown, per spec.md §4.C's
// resource model.
type Budget struct {
	Deadline time.Time
}

// Exceeded reports whether the budget's deadline has passed.
func (b Budget) Exceeded() bool {
	return !b.Deadline.IsZero() && time.Now().After(b.Deadline)
}

// AnalyzeNode decides whether a dependency-graph node is reachable, given
// the set of MethodIDs the orchestrator has already determined belong to
// that node's package (built while loading class files, where the jar ->
// internal-class-name mapping is known), honoring ctx cancellation and the
// analysis budget as it goes.
func AnalyzeNode(ctx context.Context, n *graph.Node, nodeMethodIDs []callgraph.MethodID, g *callgraph.Graph, seeds []callgraph.MethodID, budget Budget) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, bzerr.BudgetExceeded("reachability", ctx.Err())
	default:
	}
	if budget.Exceeded() {
		log.Warnf("reachability: budget exceeded before analyzing %s; reporting unknown", n.Ref)
		return Result{Status: StatusUnknown}, nil
	}
	// A package with no methods loaded into the graph wasn't compiled into
	// anything analyzable (pure resource JAR, or a dependency whose class
	// files weren't on the classpath the scan inspected).
	if len(nodeMethodIDs) == 0 {
		return Result{Status: StatusUnknown}, nil
	}

	for _, id := range nodeMethodIDs {
		if path, ok := g.EvidencePath(seeds, id); ok {
			return Result{Status: StatusReachable, Evidence: path}, nil
		}
	}
	return Result{Status: StatusUnreachable}, nil
}
