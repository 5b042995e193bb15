// Package graph implements the DependencyGraph data model from spec §3 as
// an arena of integer-indexed nodes, per the design note in spec §9:
// "Model: tagged-variant node kind {resolved, cycle_placeholder}; graph
// traversals use first-seen to break cycles... Do not use shared-ownership
// reference cycles — an arena with integer indices eliminates this class of
// bugs." This mirrors the teacher's own avoidance of pointer-graph cycles
// in its inventory index (inventoryindex) and call-graph-shaped packages.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bazbom/bazbom/pkgref"
)

// Scope is the dependency scope a node was resolved under.
type Scope string

// Scopes named in spec §3.
const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeTest     Scope = "test"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
)

// Kind tags whether a node is a normal resolved dependency or a placeholder
// inserted to break a declared cycle.
type Kind int

// Kind values.
const (
	KindResolved Kind = iota
	KindCyclePlaceholder
)

// NodeID indexes into a Graph's node arena. The zero value is never a valid
// node (index 0 is reserved for "no parent"/"no node").
type NodeID int

// Origin records where a node's data came from, for the shading back-pointer
// and for multi-extractor provenance (spec §3 "every node keeps its
// origin").
type Origin struct {
	// BuildSystem is the name of the extractor that produced this node, e.g.
	// "maven", "gradle".
	BuildSystem string
	// Shaded is true if this node represents a package discovered embedded
	// inside another artifact under a renamed prefix (spec §4.A).
	Shaded bool
	// ShadedFrom points at the NodeID of the enclosing uber-JAR, valid only
	// when Shaded is true.
	ShadedFrom NodeID
}

// Node is one DependencyNode in the resolved graph.
type Node struct {
	ID       NodeID
	Kind     Kind
	Ref      pkgref.Ref
	Scope    Scope
	Parent   NodeID // 0 means root/no parent.
	Licenses []string
	Origin   Origin
	Evidence Evidence
}

// Evidence is the mapping from node to where it came from (spec §3
// "DependencyGraph... plus a mapping from node to evidence").
type Evidence struct {
	ManifestPath string
	Line         int
	ArtifactHash string // optional, e.g. sha256 of the resolved JAR.
}

// NoAssertionLicense is the SPDX sentinel used when a node declares no
// license information.
const NoAssertionLicense = "NOASSERTION"

// Diagnostic records a non-fatal issue surfaced during graph construction,
// e.g. a broken cycle or an unknown scope (spec §4.A "Resolver emits
// warnings... for cycles, unknown scopes, and missing transitive
// versions").
type Diagnostic struct {
	Category string // "cycle", "unknown-scope", "missing-version"
	Message  string
}

// Graph is the root + DAG of DependencyNodes for one detected build-system
// module, or the merged result of several (spec §3 "DependencyGraph").
type Graph struct {
	nodes       []Node // index 0 is an unused sentinel so NodeID 0 means "none".
	children    map[NodeID][]NodeID
	Diagnostics []Diagnostic
}

// New returns an empty Graph ready for node insertion.
func New() *Graph {
	return &Graph{
		nodes:    make([]Node, 1), // reserve index 0.
		children: map[NodeID][]NodeID{},
	}
}

// AddNode appends a node to the arena and links it under its parent. It
// returns the new node's ID. If adding the edge parent->new would close a
// cycle already present by ref equality in the parent chain, the node is
// instead added as a KindCyclePlaceholder and a "cycle" diagnostic is
// recorded (spec §3 "cycles... are broken by first-seen traversal and
// recorded as a diagnostic").
func (g *Graph) AddNode(parent NodeID, ref pkgref.Ref, scope Scope, licenses []string, origin Origin, ev Evidence) NodeID {
	id := NodeID(len(g.nodes))
	n := Node{
		ID:       id,
		Kind:     KindResolved,
		Ref:      ref,
		Scope:    scope,
		Parent:   parent,
		Licenses: licenses,
		Origin:   origin,
		Evidence: ev,
	}
	if parent != 0 && g.ancestorHasRef(parent, ref) {
		n.Kind = KindCyclePlaceholder
		g.Diagnostics = append(g.Diagnostics, Diagnostic{
			Category: "cycle",
			Message:  fmt.Sprintf("cycle detected: %s already appears in the ancestor chain of %s", ref, g.Node(parent).Ref),
		})
	}
	g.nodes = append(g.nodes, n)
	g.children[parent] = append(g.children[parent], id)
	return id
}

// ancestorHasRef walks up from start toward the root looking for ref,
// implementing first-seen cycle breaking without following the cycle edge.
func (g *Graph) ancestorHasRef(start NodeID, ref pkgref.Ref) bool {
	seen := map[NodeID]bool{}
	for cur := start; cur != 0; cur = g.nodes[cur].Parent {
		if seen[cur] {
			// Already-broken cycle in the arena itself; stop rather than loop.
			break
		}
		seen[cur] = true
		if g.nodes[cur].Ref.Equal(ref) {
			return true
		}
	}
	return false
}

// Node returns the node at id. Callers must not hold onto the returned
// pointer across further AddNode calls, since the backing arena may grow
// and reallocate.
func (g *Graph) Node(id NodeID) *Node {
	return &g.nodes[id]
}

// Children returns the direct children of id (0 for the graph's roots).
func (g *Graph) Children(id NodeID) []NodeID {
	return g.children[id]
}

// Nodes returns every resolved (non-sentinel) node in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes)-1)
	for i := 1; i < len(g.nodes); i++ {
		out = append(out, &g.nodes[i])
	}
	return out
}

// Walk performs a pre-order traversal from every root (children of node 0),
// calling visit once per node. Traversal never crosses a
// KindCyclePlaceholder edge, since that placeholder is the cycle break
// point.
func (g *Graph) Walk(visit func(*Node)) {
	var rec func(id NodeID)
	rec = func(id NodeID) {
		for _, cid := range g.children[id] {
			n := g.Node(cid)
			visit(n)
			if n.Kind != KindCyclePlaceholder {
				rec(cid)
			}
		}
	}
	rec(0)
}

// RecordUnknownScope appends an "unknown-scope" diagnostic, used by
// extractors that encounter a scope string outside spec §3's known set.
func (g *Graph) RecordUnknownScope(ref pkgref.Ref, scope string) {
	g.Diagnostics = append(g.Diagnostics, Diagnostic{
		Category: "unknown-scope",
		Message:  fmt.Sprintf("%s declares unrecognized scope %q", ref, scope),
	})
}

// RecordMissingVersion appends a "missing-version" diagnostic for a
// transitive dependency whose version couldn't be resolved.
func (g *Graph) RecordMissingVersion(coordinate string) {
	g.Diagnostics = append(g.Diagnostics, Diagnostic{
		Category: "missing-version",
		Message:  fmt.Sprintf("transitive dependency %q has no resolvable version", coordinate),
	})
}

// Merge combines other into g, used when multiple build-system extractors
// detect overlapping anchors in a monorepo (spec §3 "multiple extractors per
// project are merged with deterministic tie-breaking... but every node
// keeps its origin"). Other's root nodes are appended as new top-level
// roots of g and their descendants are re-added beneath them with the same
// parent links; origin is preserved so callers can still tell which
// extractor produced each node.
func (g *Graph) Merge(other *Graph) {
	idMap := map[NodeID]NodeID{0: 0}
	for _, n := range other.Nodes() {
		parent, ok := idMap[n.Parent]
		if !ok {
			parent = 0
		}
		newID := g.AddNode(parent, n.Ref, n.Scope, n.Licenses, n.Origin, n.Evidence)
		idMap[n.ID] = newID
	}
	g.Diagnostics = append(g.Diagnostics, other.Diagnostics...)
}

// BuildSystemPriority implements spec §3's deterministic tie-break order:
// "Maven > Gradle > Bazel > Ant > sbt > Buildr".
var BuildSystemPriority = map[string]int{
	"maven":  0,
	"gradle": 1,
	"bazel":  2,
	"ant":    3,
	"sbt":    4,
	"buildr": 5,
}

// CanonicalEncoding renders g as a sorted, newline-joined list of
// "purl scope parent-purl" triples, stable across repeated extraction of
// the same inputs regardless of the order extractors appended nodes in
// (insertion order can vary with filesystem directory iteration order,
// which Go's fs.WalkDir does not guarantee to be stable across runs). The
// orchestrator folds this string into the cache's content-addressed
// fingerprint, so a genuinely unchanged graph always hits the cache and any
// structural change always misses it.
func (g *Graph) CanonicalEncoding() (string, error) {
	lines := make([]string, 0, len(g.nodes)-1)
	for _, n := range g.Nodes() {
		purl, err := n.Ref.PURL()
		if err != nil {
			return "", fmt.Errorf("graph: encoding %s: %w", n.Ref, err)
		}
		parentPURL := ""
		if n.Parent != 0 {
			p, err := g.Node(n.Parent).Ref.PURL()
			if err != nil {
				return "", fmt.Errorf("graph: encoding parent of %s: %w", n.Ref, err)
			}
			parentPURL = p
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", purl, n.Scope, parentPURL))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
