// Package orchestrator drives one full scan: build-system detection,
// per-module extraction, advisory matching, reachability analysis, policy
// evaluation, and the incremental-cache lookups that let an unchanged
// package skip the expensive reachability work on a repeat run.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/cache"
	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/policy"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/reachability/callgraph"
	"github.com/bazbom/bazbom/scanrun"
)

// Options bundles everything Run needs to take a workspace from raw build
// files to a fully matched, reachability-scored, policy-evaluated ScanRun.
type Options struct {
	Root        fs.FS
	ProjectRoot string
	WorkspaceID string
	Extractors  map[buildsystem.System]buildsystem.Extractor

	Store *advisory.Store
	Cache *cache.Cache
	// Incremental gates module-level extraction caching (spec §4.F
	// "Incremental scope" steps 1-2): when true and Cache is non-nil, an
	// anchor whose manifest bytes are byte-identical to a previous run's
	// reuses that run's cached sub-graph instead of re-invoking its
	// extractor. When false, every anchor is always re-extracted regardless
	// of what's cached.
	Incremental bool

	// CallGraph, NodeMethodIDs and Seeds are nil when class files weren't
	// available to build a call graph (manifest-only scan); every node then
	// resolves to reachability.StatusUnknown rather than failing the scan.
	CallGraph          *callgraph.Graph
	NodeMethodIDs      map[graph.NodeID][]callgraph.MethodID
	Seeds              []callgraph.MethodID
	ReachabilityBudget reachability.Budget

	Policy          policy.Evaluator
	AnalyzerVersion string
	// MaxWorkers bounds the matching/reachability fan-out; 0 defaults to
	// min(GOMAXPROCS, 16).
	MaxWorkers int
}

func (o Options) workerLimit() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	if n := runtime.GOMAXPROCS(0); n < 16 {
		return n
	}
	return 16
}

// Result is Run's output: the completed ScanRun plus the policy verdicts
// evaluated against it.
type Result struct {
	Run    *scanrun.ScanRun
	Policy policy.AggregateResult
	// SnapshotID is the advisory store snapshot this run matched against,
	// exposed so a caller can fold it into its own cache fingerprints (e.g.
	// cmd/bazbom caching its serialized findings document). Run itself uses
	// it in no cache key.
	SnapshotID string
}

// Run extracts every detected build-system module's dependency graph,
// matches each node against the advisory store, scores reachability, sorts
// findings into deterministic order, and evaluates policy against the
// result. Each stage runs in sequence and short-circuits on a context
// cancellation into a partial, Aborted ScanRun rather than silently
// returning a half-built result as complete; an aborted run is never handed
// to the cache.
func Run(ctx context.Context, opts Options) (Result, error) {
	anchors, err := buildsystem.Detect(opts.Root)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: detecting build systems: %w", err)
	}

	g := graph.New()
	extractDegraded := false
	for _, a := range anchors {
		if ctx.Err() != nil {
			return Result{Run: abortedRun(opts, g)}, nil
		}
		ext, ok := opts.Extractors[a.System]
		if !ok {
			log.Warnf("orchestrator: no extractor registered for %s, skipping %s", a.System, a.Dir)
			continue
		}
		sub, err := extractModule(ctx, opts, a, ext)
		if err != nil {
			var be *bzerr.Error
			if errors.As(err, &be) && !be.Fatal {
				log.Warnf("orchestrator: skipping %s at %s: %v", a.System, a.Dir, err)
				extractDegraded = true
				continue
			}
			return Result{}, fmt.Errorf("orchestrator: extracting %s at %s: %w", a.System, a.Dir, err)
		}
		g.Merge(sub)
	}

	if opts.CallGraph != nil && opts.NodeMethodIDs == nil {
		opts.NodeMethodIDs = mapMethodsByPackage(g, opts.CallGraph)
	}

	snapshotID, err := opts.Store.SnapshotID()
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: reading advisory snapshot id: %w", err)
	}

	findings, degraded, err := matchAndAnalyze(ctx, opts, g, snapshotID)
	if err != nil {
		return Result{}, err
	}
	degraded = degraded || extractDegraded
	if ctx.Err() != nil {
		run := abortedRun(opts, g)
		run.Findings = findings
		run.Degraded = degraded
		return Result{Run: run, SnapshotID: snapshotID}, nil
	}

	run := &scanrun.ScanRun{
		ID:          scanrun.NewID(),
		GeneratedAt: time.Now(),
		WorkspaceID: opts.WorkspaceID,
		Graph:       g,
		Findings:    findings,
		Degraded:    degraded,
	}
	run.SortFindings()

	verdicts, err := opts.Policy.Evaluate(ctx, run.Findings)
	if err != nil {
		return Result{Run: run, SnapshotID: snapshotID}, fmt.Errorf("orchestrator: evaluating policy: %w", err)
	}
	return Result{Run: run, Policy: verdicts, SnapshotID: snapshotID}, nil
}

// moduleSubgraph is the cached snapshot of one anchor's extracted
// sub-graph, stored under cache.KindSBOM since it's exactly the
// "resolved DependencyGraph serialized deterministically" spec §4.F names
// as the SBOM cache's fingerprint input — a module's sub-graph already is
// its SBOM-relevant component list, just not yet flattened into a
// serialize/spdx or serialize/cyclonedx document.
type moduleSubgraph struct {
	Nodes       []graph.Node      `json:"nodes"`
	Diagnostics []graph.Diagnostic `json:"diagnostics"`
}

// extractModule runs ext.Extract for anchor a into a fresh sub-graph,
// consulting the module cache first when opts.Incremental is set: an
// anchor whose manifest file is byte-identical to a previous run's is
// never handed to its extractor at all (no tool invocation, no re-parse),
// implementing spec §4.F's "for each still-cached unchanged target, loads
// the cached sub-result" without a git dependency — staleness is detected
// by content fingerprint rather than by diffing against a ref, so a
// caller never needs to supply a changed-file list for this to be correct
// (see DESIGN.md for why a git-ref-based --base was dropped instead of
// implemented here).
func extractModule(ctx context.Context, opts Options, a buildsystem.Anchor, ext buildsystem.Extractor) (*graph.Graph, error) {
	if !opts.Incremental || opts.Cache == nil {
		return runExtractor(ctx, opts, a, ext)
	}

	manifest, err := os.ReadFile(filepath.Join(opts.ProjectRoot, a.Dir, a.File))
	if err != nil {
		// No readable manifest to fingerprint (e.g. a virtual/in-memory
		// project root, or an anchor whose File isn't itself the source of
		// truth); always re-extract rather than guessing at a key.
		return runExtractor(ctx, opts, a, ext)
	}
	key, err := cache.Fingerprint(string(a.System), a.Dir, a.File, string(manifest))
	if err != nil {
		return nil, fmt.Errorf("fingerprinting module %s/%s: %w", a.Dir, a.File, err)
	}

	if data, ok, err := opts.Cache.Get(cache.KindSBOM, key, ".json"); err != nil {
		log.Warnf("orchestrator: reading module cache for %s/%s: %v", a.Dir, a.File, err)
	} else if ok {
		if sub, err := decodeModuleSubgraph(data); err != nil {
			log.Warnf("orchestrator: decoding cached module sub-result for %s/%s: %v", a.Dir, a.File, err)
		} else {
			log.Debugf("orchestrator: %s/%s unchanged, reusing cached sub-result", a.Dir, a.File)
			return sub, nil
		}
	}

	sub, err := runExtractor(ctx, opts, a, ext)
	if err != nil {
		return nil, err
	}
	if data, err := encodeModuleSubgraph(sub); err != nil {
		log.Warnf("orchestrator: encoding module sub-result for %s/%s: %v", a.Dir, a.File, err)
	} else if err := opts.Cache.Put(cache.KindSBOM, key, ".json", data); err != nil {
		log.Warnf("orchestrator: caching module sub-result for %s/%s: %v", a.Dir, a.File, err)
	}
	return sub, nil
}

func runExtractor(ctx context.Context, opts Options, a buildsystem.Anchor, ext buildsystem.Extractor) (*graph.Graph, error) {
	sub := graph.New()
	if _, err := ext.Extract(ctx, opts.ProjectRoot, a, sub, 0); err != nil {
		return nil, err
	}
	return sub, nil
}

func encodeModuleSubgraph(g *graph.Graph) ([]byte, error) {
	nodes := g.Nodes()
	ms := moduleSubgraph{Nodes: make([]graph.Node, len(nodes)), Diagnostics: g.Diagnostics}
	for i, n := range nodes {
		ms.Nodes[i] = *n
	}
	return json.Marshal(ms)
}

// decodeModuleSubgraph replays a cached node list through AddNode in
// original insertion order, which reproduces identical NodeIDs and cycle
// placeholders since every node's Parent always indexes an already-replayed
// node (AddNode never lets a caller reference a NodeID that doesn't exist
// yet).
func decodeModuleSubgraph(data []byte) (*graph.Graph, error) {
	var ms moduleSubgraph
	if err := json.Unmarshal(data, &ms); err != nil {
		return nil, err
	}
	g := graph.New()
	for _, n := range ms.Nodes {
		g.AddNode(n.Parent, n.Ref, n.Scope, n.Licenses, n.Origin, n.Evidence)
	}
	g.Diagnostics = ms.Diagnostics
	return g, nil
}

func abortedRun(opts Options, g *graph.Graph) *scanrun.ScanRun {
	return &scanrun.ScanRun{
		ID:          scanrun.NewID(),
		GeneratedAt: time.Now(),
		WorkspaceID: opts.WorkspaceID,
		Graph:       g,
		Aborted:     true,
	}
}

// nodeResult is the per-node outcome of matching plus reachability, kept
// indexed by the node's position in g.Nodes() so the fan-out can write
// results concurrently into a preallocated slice without a data race and
// without needing a lock-protected append.
type nodeResult struct {
	findings []scanrun.Finding
	degraded bool
}

// matchAndAnalyze matches every node against the advisory store and scores
// reachability for every match, bounded to opts.workerLimit() concurrent
// goroutines via errgroup. Reachability results are cached by package
// identity plus analyzer version plus the graph's canonical encoding
// (anything that can change the call graph the analyzer walks); advisory
// matches are not cached: every node is queried against the store on every
// run, so a `db sync` takes effect on the next scan.
func matchAndAnalyze(ctx context.Context, opts Options, g *graph.Graph, snapshotID string) ([]scanrun.Finding, bool, error) {
	nodes := g.Nodes()
	results := make([]nodeResult, len(nodes))

	graphEncoding, err := g.CanonicalEncoding()
	if err != nil {
		return nil, false, fmt.Errorf("orchestrator: encoding graph for cache fingerprint: %w", err)
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(opts.workerLimit())

	var degradedMu sync.Mutex
	var anyDegraded bool

	for i, n := range nodes {
		i, n := i, n
		grp.Go(func() error {
			findings, degraded, err := analyzeNode(gctx, opts, g, n, snapshotID, graphEncoding)
			if err != nil {
				return err
			}
			results[i] = nodeResult{findings: findings, degraded: degraded}
			if degraded {
				degradedMu.Lock()
				anyDegraded = true
				degradedMu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, false, err
	}

	var all []scanrun.Finding
	for _, r := range results {
		all = append(all, r.findings...)
	}
	return all, anyDegraded, nil
}

// analyzeNode matches one node against the advisory store and, for every
// match, resolves reachability (from cache when the fingerprint hits).
func analyzeNode(ctx context.Context, opts Options, g *graph.Graph, n *graph.Node, snapshotID, graphEncoding string) ([]scanrun.Finding, bool, error) {
	if ctx.Err() != nil {
		return nil, false, nil
	}

	purl, err := n.Ref.PURL()
	if err != nil {
		log.Warnf("orchestrator: skipping unresolvable ref %s: %v", n.Ref, err)
		return nil, false, nil
	}

	candidates, err := opts.Store.ByPackage(string(n.Ref.Ecosystem), n.Ref.Name)
	if err != nil {
		return nil, false, fmt.Errorf("orchestrator: querying advisories for %s: %w", purl, err)
	}
	matched := advisory.MatchAdvisories(n.Ref, candidates)
	if len(matched) == 0 {
		return nil, false, nil
	}

	status, evidence, degraded, err := reachabilityFor(ctx, opts, g, n, purl, graphEncoding)
	if err != nil {
		return nil, false, err
	}

	findings := make([]scanrun.Finding, 0, len(matched))
	for _, adv := range matched {
		findings = append(findings, scanrun.Finding{
			NodeID:       n.ID,
			Package:      n.Ref,
			Advisory:     adv,
			Reachability: status,
			Evidence:     evidence,
		})
	}
	return findings, degraded, nil
}

// reachabilityFor resolves one node's reachability status, consulting the
// cache before running the analyzer. A cache hit for a manifest-only scan
// (opts.CallGraph == nil) never occurs since nothing is ever written to the
// cache in that mode below.
func reachabilityFor(ctx context.Context, opts Options, g *graph.Graph, n *graph.Node, purl, graphEncoding string) (reachability.Status, []string, bool, error) {
	if opts.CallGraph == nil {
		return reachability.StatusUnknown, nil, true, nil
	}

	if opts.Cache != nil {
		key, err := cache.Fingerprint(purl, opts.AnalyzerVersion, graphEncoding)
		if err != nil {
			return "", nil, false, fmt.Errorf("orchestrator: fingerprinting reachability input for %s: %w", purl, err)
		}
		if data, ok, err := opts.Cache.Get(cache.KindReachability, key, ".json"); err != nil {
			return "", nil, false, fmt.Errorf("orchestrator: reading reachability cache for %s: %w", purl, err)
		} else if ok {
			return decodeCachedReachability(data)
		}
	}

	result, err := reachability.AnalyzeNode(ctx, n, opts.NodeMethodIDs[n.ID], opts.CallGraph, opts.Seeds, opts.ReachabilityBudget)
	if err != nil {
		return "", nil, false, fmt.Errorf("orchestrator: analyzing reachability for %s: %w", purl, err)
	}
	evidence := stringifyEvidence(result.Evidence)
	degraded := result.Status == reachability.StatusUnknown

	if opts.Cache != nil {
		key, err := cache.Fingerprint(purl, opts.AnalyzerVersion, graphEncoding)
		if err == nil {
			if data, err := encodeCachedReachability(result.Status, evidence); err == nil {
				if err := opts.Cache.Put(cache.KindReachability, key, ".json", data); err != nil {
					log.Warnf("orchestrator: caching reachability for %s: %v", purl, err)
				}
			}
		}
	}

	return result.Status, evidence, degraded, nil
}

func stringifyEvidence(chain []callgraph.MethodKey) []string {
	if len(chain) == 0 {
		return nil
	}
	out := make([]string, len(chain))
	for i, k := range chain {
		out[i] = k.String()
	}
	return out
}

// cachedReachability is the small JSON envelope reachabilityFor round-trips
// through the cache; it carries just enough to reconstruct a Finding's
// Reachability and Evidence fields without re-running the analyzer.
type cachedReachability struct {
	Status   reachability.Status `json:"status"`
	Evidence []string            `json:"evidence,omitempty"`
}

func encodeCachedReachability(status reachability.Status, evidence []string) ([]byte, error) {
	return json.Marshal(cachedReachability{Status: status, Evidence: evidence})
}

func decodeCachedReachability(data []byte) (reachability.Status, []string, bool, error) {
	var c cachedReachability
	if err := json.Unmarshal(data, &c); err != nil {
		return "", nil, false, fmt.Errorf("orchestrator: decoding cached reachability: %w", err)
	}
	return c.Status, c.Evidence, c.Status == reachability.StatusUnknown, nil
}

// mapMethodsByPackage assigns each call-graph method to every dependency
// graph node whose Maven groupId, slash-converted, is a prefix of the
// method's declaring class. Callers that already know precisely which
// jar backs which node (e.g. from a build tool's own dependency-to-file
// mapping) should populate Options.NodeMethodIDs directly instead of
// relying on this package-prefix heuristic, which Run only applies when
// NodeMethodIDs was left nil.
func mapMethodsByPackage(g *graph.Graph, cg *callgraph.Graph) map[graph.NodeID][]callgraph.MethodID {
	out := make(map[graph.NodeID][]callgraph.MethodID)
	for _, n := range g.Nodes() {
		prefix := strings.ReplaceAll(n.Ref.Namespace, ".", "/")
		if prefix == "" {
			continue
		}
		var ids []callgraph.MethodID
		for i := 1; i < cg.NodeCount(); i++ {
			id := callgraph.MethodID(i)
			if strings.HasPrefix(cg.Node(id).Key.Class, prefix) {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			out[n.ID] = ids
		}
	}
	return out
}
