// Package callgraph builds an arena-indexed JVM call graph from parsed
// .class files and answers reachability queries against it: is a given
// method (and therefore the package declaring it) reachable from the
// application's own entry points, per spec.md §4.C.
//
// Like graph.Graph, nodes are stored in a flat arena indexed by MethodID
// rather than linked by pointer, for the same reason spec §9 gives for the
// dependency graph: call graphs are naturally cyclic (mutual recursion,
// callback registration) and an arena sidesteps reference-cycle bookkeeping
// entirely.
package callgraph

import (
	"fmt"

	"github.com/bazbom/bazbom/reachability/classfile"
)

// Mode selects how exhaustively the analyzer resolves virtual call targets.
type Mode int

// Modes named in spec §4.C.
const (
	// ModeFast links every call site only to the method its constant-pool
	// reference names (no virtual dispatch fan-out), trading completeness for
	// speed on large codebases.
	ModeFast Mode = iota
	// ModeReachable performs full CHA (Class Hierarchy Analysis): every
	// override of a virtually-dispatched method is a candidate target.
	ModeReachable
	// ModeIncremental is accepted by LoadClass and handled exactly like
	// ModeFast; no prior run's graph is reused.
	ModeIncremental
)

// MethodID indexes into a Graph's node arena. Zero is never a valid node.
type MethodID int

// MethodKey uniquely identifies a JVM method across all loaded classes.
type MethodKey struct {
	Class      string // internal form, e.g. "com/example/Foo".
	Name       string
	Descriptor string
}

func (k MethodKey) String() string {
	return fmt.Sprintf("%s.%s%s", k.Class, k.Name, k.Descriptor)
}

// Node is one method in the call graph.
type Node struct {
	ID  MethodID
	Key MethodKey
	// ShadedAlias is the original (pre-shading) MethodKey this node was
	// renamed from, when the enclosing JAR relocated its package prefix
	// (spec §4.C "shading-aware": a shaded org.apache.commons becomes
	// com.example.shaded.org.apache.commons, but the call graph must still
	// treat calls into it as calls into the original coordinate").
	ShadedAlias *MethodKey
	// EntryPoint marks a method the orchestrator seeded the graph with
	// directly (e.g. a declared application entry point, or every public
	// method when no entry points are configured).
	EntryPoint bool
}

// Graph is the arena of methods plus their call edges.
type Graph struct {
	nodes   []Node // index 0 unused sentinel.
	byKey   map[MethodKey]MethodID
	edges   map[MethodID][]MethodID
	// overridesOf maps a (class-agnostic) name+descriptor to every method ID
	// that could be its virtual-dispatch target, built incrementally as
	// classes are added; used for CHA resolution.
	overridesOf map[string][]MethodID
}

// New returns an empty call graph.
func New() *Graph {
	return &Graph{
		nodes:       make([]Node, 1),
		byKey:       map[MethodKey]MethodID{},
		edges:       map[MethodID][]MethodID{},
		overridesOf: map[string][]MethodID{},
	}
}

func signature(name, descriptor string) string { return name + descriptor }

// AddMethod registers a method declaration, returning its stable MethodID
// (re-adding the same key returns the existing ID rather than duplicating
// the node).
func (g *Graph) AddMethod(key MethodKey) MethodID {
	if id, ok := g.byKey[key]; ok {
		return id
	}
	id := MethodID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Key: key})
	g.byKey[key] = id
	sig := signature(key.Name, key.Descriptor)
	g.overridesOf[sig] = append(g.overridesOf[sig], id)
	return id
}

// MarkEntryPoint flags id as a seed for reachability traversal.
func (g *Graph) MarkEntryPoint(id MethodID) {
	g.nodes[id].EntryPoint = true
}

// MarkShaded records that id was relocated from original during shading.
func (g *Graph) MarkShaded(id MethodID, original MethodKey) {
	g.nodes[id].ShadedAlias = &original
}

// AddEdge records a static call edge. In ModeFast this is the only kind of
// edge added (every call site to its declared target); in ModeReachable
// virtual call sites fan out via AddVirtualCallSite instead.
func (g *Graph) AddEdge(from, to MethodID) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// AddVirtualCallSite resolves an invokevirtual/invokeinterface call site
// under CHA: every currently-known method with the same name+descriptor
// (regardless of declaring class) is a possible dynamic-dispatch target.
// This over-approximates. Narrow can prune these edges to a given set of
// instantiated classes, but nothing outside tests calls Narrow and no set
// of instantiated classes is collected, so scans keep every CHA edge.
func (g *Graph) AddVirtualCallSite(from MethodID, name, descriptor string) {
	for _, to := range g.overridesOf[signature(name, descriptor)] {
		g.AddEdge(from, to)
	}
}

// Node returns the node at id.
func (g *Graph) Node(id MethodID) *Node { return &g.nodes[id] }

// NodeCount returns the number of methods registered in g, including the
// unused sentinel at index 0.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Lookup returns the MethodID for key, if known.
func (g *Graph) Lookup(key MethodKey) (MethodID, bool) {
	id, ok := g.byKey[key]
	return id, ok
}

// maxEvidenceHops bounds evidence-chain length per spec §4.C ("evidence
// chains are capped at 16 hops; beyond that, a method is still marked
// reachable but its explanatory path is truncated").
const maxEvidenceHops = 16

// Reachable returns the set of every MethodID reachable from the graph's
// entry points (or from seeds, if non-nil, overriding the graph's own
// EntryPoint-flagged nodes), via breadth-first traversal.
func (g *Graph) Reachable(seeds []MethodID) map[MethodID]bool {
	if seeds == nil {
		for _, n := range g.nodes[1:] {
			if n.EntryPoint {
				seeds = append(seeds, n.ID)
			}
		}
	}
	visited := map[MethodID]bool{}
	queue := append([]MethodID{}, seeds...)
	for _, s := range seeds {
		visited[s] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return visited
}

// EvidencePath returns the shortest call chain from any seed to target,
// truncated to maxEvidenceHops entries. ok is false if target is
// unreachable from seeds.
func (g *Graph) EvidencePath(seeds []MethodID, target MethodID) ([]MethodKey, bool) {
	type step struct {
		id   MethodID
		prev *step
	}
	visited := map[MethodID]bool{}
	var queue []*step
	for _, s := range seeds {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, &step{id: s})
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == target {
			var path []MethodKey
			for st := cur; st != nil && len(path) < maxEvidenceHops; st = st.prev {
				path = append([]MethodKey{g.nodes[st.id].Key}, path...)
			}
			return path, true
		}
		for _, next := range g.edges[cur.id] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, &step{id: next, prev: cur})
		}
	}
	return nil, false
}

// LoadClass registers every method classfile.Class declares and adds a
// static call edge for each direct invokestatic/invokespecial site found in
// its bytecode, plus a CHA virtual-dispatch fan-out for invokevirtual/
// invokeinterface sites when mode is ModeReachable (in other modes those
// sites get a static edge to their declared target). classOf is not
// consulted: an invoke's target method key comes from c's own constant pool
// via MethodRef. Calls to classes outside the scanned set
// (JDK/third-party classes not themselves analyzed) are recorded as leaf
// nodes with no further expansion.
func LoadClass(g *Graph, c *classfile.Class, mode Mode, classOf func(name string) *classfile.Class) {
	for _, m := range c.Methods {
		fromKey := MethodKey{Class: c.ThisClass, Name: m.Name, Descriptor: m.Descriptor}
		fromID := g.AddMethod(fromKey)
		if m.Code == nil {
			continue
		}
		for _, inv := range classfile.ScanInvocations(m.Code) {
			targetClass, name, descriptor, ok := c.MethodRef(inv.CPIndex)
			if !ok {
				continue
			}
			toKey := MethodKey{Class: targetClass, Name: name, Descriptor: descriptor}
			toID := g.AddMethod(toKey)
			switch inv.Opcode {
			case 0xb7, 0xb8: // invokespecial, invokestatic: no dynamic dispatch.
				g.AddEdge(fromID, toID)
			default: // invokevirtual, invokeinterface.
				if mode == ModeReachable {
					g.AddVirtualCallSite(fromID, name, descriptor)
				} else {
					g.AddEdge(fromID, toID)
				}
			}
		}
	}
}

// Narrow applies an RTA pass: edges whose target's declaring class never
// appears in instantiated, the set of classes observed under a `new`
// instruction anywhere in the scanned bytecode, are removed. This tightens
// CHA's over-approximation down toward the classes actually constructible
// at runtime (spec §4.C).
func (g *Graph) Narrow(instantiated map[string]bool) {
	for from, targets := range g.edges {
		kept := targets[:0]
		for _, to := range targets {
			cls := g.nodes[to].Key.Class
			if instantiated[cls] || isStaticLikelyTarget(g, to) {
				kept = append(kept, to)
			}
		}
		g.edges[from] = kept
	}
}

// isStaticLikelyTarget keeps edges to methods with no virtual-dispatch
// siblings (the common case for invokestatic/invokespecial targets, which
// RTA's instantiation filter shouldn't apply to).
func isStaticLikelyTarget(g *Graph, id MethodID) bool {
	key := g.nodes[id].Key
	return len(g.overridesOf[signature(key.Name, key.Descriptor)]) <= 1
}
