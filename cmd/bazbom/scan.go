package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/buildsystem"
	"github.com/bazbom/bazbom/buildsystem/ant"
	"github.com/bazbom/bazbom/buildsystem/bazel"
	"github.com/bazbom/bazbom/buildsystem/buildr"
	"github.com/bazbom/bazbom/buildsystem/gradle"
	"github.com/bazbom/bazbom/buildsystem/maven"
	"github.com/bazbom/bazbom/buildsystem/sbt"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/cache"
	"github.com/bazbom/bazbom/config"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/orchestrator"
	"github.com/bazbom/bazbom/policy"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/scanrun"
	"github.com/bazbom/bazbom/serialize/cyclonedx"
	"github.com/bazbom/bazbom/serialize/sarif"
	"github.com/bazbom/bazbom/serialize/spdx"
	"github.com/bazbom/bazbom/serialize/vex"
)

// runScan implements `bazbom scan <path> [flags]`: detect every build-system
// module under path, resolve and match its dependency graph against the
// advisory store, score reachability where class files are available,
// evaluate policy, and serialize the result.
func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	format := fs.String("format", "", "SBOM output format: spdx or cyclonedx (default spdx)")
	outDir := fs.String("out-dir", ".", "directory to write scan output into")
	reach := fs.Bool("reachability", false, "score reachability using class files found under --classes-dir")
	fast := fs.Bool("fast", false, "alias for the inverse of --reachability; manifest-only, no bytecode analysis")
	offline := fs.Bool("offline-mode", false, "fail fast instead of treating a missing advisory snapshot as empty")
	dbPath := fs.String("db-path", "", "path to the advisory store (overrides config/profile/env)")
	cacheDir := fs.String("cache-dir", "", "path to the result cache (overrides config/profile/env)")
	classesDir := fs.String("classes-dir", "", "comma-separated directories to search for built .class/.jar files when --reachability is set")
	var bazelTargets stringListFlag
	fs.Var(&bazelTargets, "bazel-targets", "explicit Bazel target to scan (repeatable)")
	bazelQuery := fs.String("bazel-targets-query", "", "a `bazel query` expression selecting targets to scan")
	var bazelAffectedBy stringListFlag
	fs.Var(&bazelAffectedBy, "bazel-affected-by-files", "select Bazel targets transitively depending on this file (repeatable)")
	vexDir := fs.String("vex-dir", "", "directory to additionally write a CSAF VEX document into")
	policyFile := fs.String("policy-file", "", "policy document to evaluate findings against")
	profile := fs.String("profile", "", "YAML profile file layered between env and CLI flags")
	jsonOut := fs.Bool("json", false, "print the findings summary as JSON to stdout instead of a table")
	diff := fs.Bool("diff", false, "report findings new relative to --baseline instead of the full set")
	baseline := fs.String("baseline", "", "a findings file from a prior scan, used with --diff")
	incremental := fs.Bool("incremental", true, "skip re-extracting a build-system module whose manifest is unchanged since the cached run")
	warmCacheDir := fs.String("warm-cache-dir", "", "an existing cache directory to seed --cache-dir from before scanning (no git ref resolution: see DESIGN.md)")
	gradleTool := fs.String("gradle-tool", "", "binary invoked for Gradle modules (default \"gradle\")")
	sbtTool := fs.String("sbt-tool", "", "binary invoked for sbt modules (default \"sbt\")")
	buildrTool := fs.String("buildr-tool", "", "binary invoked for Buildr modules (default \"buildr\")")

	if err := fs.Parse(args); err != nil {
		return bzerr.ExitConfigError
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: bazbom scan <path> [flags]")
		return bzerr.ExitConfigError
	}
	projectRoot := fs.Arg(0)

	overrides := config.Overrides{}
	if *dbPath != "" {
		overrides.DBPath = dbPath
	}
	if *cacheDir != "" {
		overrides.CacheDir = cacheDir
	}
	if *format != "" {
		overrides.Format = format
	}
	if *offline {
		overrides.Offline = offline
	}
	if *policyFile != "" {
		overrides.PolicyFile = policyFile
	}

	layers := []config.Overrides{}
	envLayer, err := config.Env(os.Getenv)
	if err != nil {
		log.Errorf("scan: %v", err)
		return bzerr.ExitConfigError
	}
	layers = append(layers, envLayer)
	if *profile != "" {
		profileLayer, err := config.LoadProfile(*profile)
		if err != nil {
			log.Errorf("scan: %v", err)
			return bzerr.ExitConfigError
		}
		layers = append(layers, profileLayer)
	}
	layers = append(layers, overrides)

	cfg := config.Merge(config.Default(), layers...)
	if err := cfg.Validate(); err != nil {
		log.Errorf("scan: %v", err)
		return exitFor(err)
	}

	effectiveCacheDir := cfg.CacheDir
	if *warmCacheDir != "" {
		effectiveCacheDir = *warmCacheDir
	}

	store, err := advisory.Open(cfg.DBPath, cfg.Offline)
	if err != nil {
		log.Errorf("scan: opening advisory store: %v", err)
		return exitFor(err)
	}
	defer store.Close()

	c, err := cache.Open(effectiveCacheDir)
	if err != nil {
		log.Errorf("scan: opening cache: %v", err)
		return bzerr.ExitInternal
	}
	defer c.Close()

	pol, err := resolvePolicy(cfg.PolicyFile)
	if err != nil {
		log.Errorf("scan: %v", err)
		return exitFor(err)
	}

	extractors := map[buildsystem.System]buildsystem.Extractor{
		buildsystem.Maven:  maven.New(),
		buildsystem.Gradle: gradle.New(*gradleTool),
		buildsystem.Bazel: bazel.New(bazel.TargetSelection{
			Targets:         bazelTargets,
			Query:           *bazelQuery,
			AffectedByFiles: bazelAffectedBy,
		}),
		buildsystem.Ant:    ant.New(),
		buildsystem.Sbt:    sbt.New(*sbtTool),
		buildsystem.Buildr: buildr.New(*buildrTool),
	}

	opts := orchestrator.Options{
		Root:               os.DirFS(projectRoot),
		ProjectRoot:         projectRoot,
		WorkspaceID:         filepath.Base(projectRoot),
		Extractors:          extractors,
		Store:               store,
		Cache:               c,
		Policy:              pol,
		AnalyzerVersion:     analyzerVersion,
		Incremental:         *incremental,
		ReachabilityBudget:  reachability.Budget{Deadline: time.Now().Add(10 * time.Minute)},
	}

	if *reach && !*fast {
		cg, seeds, err := buildCallGraph(splitCSV(*classesDir))
		if err != nil {
			log.Warnf("scan: reachability analysis disabled: %v", err)
		} else {
			opts.CallGraph = cg
			opts.Seeds = seeds
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := orchestrator.Run(ctx, opts)
	if err != nil {
		log.Errorf("scan: %v", err)
		return exitFor(err)
	}
	run := result.Run
	log.Debugf("scan: run %s produced %d findings", run.ID, len(run.Findings))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Errorf("scan: creating out-dir: %v", err)
		return bzerr.ExitInternal
	}

	if *diff {
		return reportDiff(run, *baseline)
	}

	// An aborted run's partial documents are written out but never cached.
	outCache := c
	if run.Aborted {
		outCache = nil
	}
	if err := writeOutputs(outCache, run, result.SnapshotID, cfg.Format, *outDir, *vexDir); err != nil {
		log.Errorf("scan: %v", err)
		return exitFor(err)
	}

	if *jsonOut {
		printFindingsJSON(run)
	} else {
		printFindingsTable(run)
	}

	if run.Aborted {
		log.Warnf("scan: run was cancelled before completion")
		return bzerr.ExitInternal
	}
	if result.Policy.ExitAction == policy.ActionBlock {
		return bzerr.ExitPolicyBlock
	}
	return bzerr.ExitSuccess
}

// analyzerVersion tags every cached reachability result with the version of
// the reachability scoring logic that produced it, so a future change to
// the analyzer invalidates old cache entries instead of silently trusting
// them.
const analyzerVersion = "1"

func resolvePolicy(path string) (policy.Policy, error) {
	if path == "" {
		return policy.Template("default")
	}
	return policy.LoadPolicy(path)
}

// writeOutputs renders run's SBOM/findings documents into outDir. When c is
// non-nil, the canonical SPDX SBOM and the SARIF findings document are each
// looked up in the result cache first, keyed by a fingerprint of the
// resolved graph (plus the advisory snapshot id for findings, since that's
// what can change which vulnerabilities are reported for an unchanged
// graph) per spec §4.F/§6.3's sbom/<key>.spdx.json and findings/<key>.sarif
// cache entries — a repeat scan of an unchanged workspace against an
// unchanged advisory snapshot never re-serializes either document.
func writeOutputs(c *cache.Cache, run *scanrun.ScanRun, snapshotID, format, outDir, vexDir string) error {
	if err := scanrun.WriteFindingsFile(filepath.Join(outDir, "findings.json"), run); err != nil {
		return err
	}

	graphEncoding, err := run.Graph.CanonicalEncoding()
	if err != nil {
		return fmt.Errorf("encoding graph for output cache fingerprint: %w", err)
	}

	switch format {
	case "cyclonedx":
		bom, err := cyclonedx.ToCDX(run, cyclonedx.Config{ComponentName: run.WorkspaceID})
		if err != nil {
			return fmt.Errorf("serializing CycloneDX: %w", err)
		}
		data, err := json.MarshalIndent(bom, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding CycloneDX: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, "sbom.cdx.json"), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing CycloneDX SBOM: %w", err)
		}
	default:
		data, err := cachedOrComputed(c, cache.KindSBOM, ".spdx.json", []string{graphEncoding, analyzerVersion}, func() ([]byte, error) {
			doc, err := spdx.ToSPDX(run, spdx.Config{DocumentName: run.WorkspaceID})
			if err != nil {
				return nil, fmt.Errorf("serializing SPDX: %w", err)
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encoding SPDX: %w", err)
			}
			return append(data, '\n'), nil
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(outDir, "sbom.spdx.json"), data, 0o644); err != nil {
			return fmt.Errorf("writing SPDX SBOM: %w", err)
		}
	}

	sarifData, err := cachedOrComputed(c, cache.KindFindings, ".sarif", []string{graphEncoding, snapshotID, analyzerVersion}, func() ([]byte, error) {
		sarifLog, err := sarif.ToSARIF(run)
		if err != nil {
			return nil, fmt.Errorf("serializing SARIF: %w", err)
		}
		return sarif.Marshal(sarifLog)
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "findings.sarif"), sarifData, 0o644); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}

	if vexDir != "" {
		if err := os.MkdirAll(vexDir, 0o755); err != nil {
			return fmt.Errorf("creating vex-dir: %w", err)
		}
		doc, err := vex.ToVEX(run, run.WorkspaceID+"-vex", "BazBOM exploitability assessment for "+run.WorkspaceID)
		if err != nil {
			return fmt.Errorf("serializing VEX: %w", err)
		}
		data, err := vex.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling VEX: %w", err)
		}
		if err := os.WriteFile(filepath.Join(vexDir, "vex.json"), data, 0o644); err != nil {
			return fmt.Errorf("writing VEX: %w", err)
		}
	}

	return nil
}

// cachedOrComputed returns a cache hit for (kind, inputs) if one exists,
// else calls compute and publishes its result under that fingerprint. A nil
// cache, or any cache error, falls back to compute without failing the
// scan — a missing or corrupt cache never blocks output generation.
func cachedOrComputed(c *cache.Cache, kind cache.Kind, ext string, inputs []string, compute func() ([]byte, error)) ([]byte, error) {
	if c == nil {
		return compute()
	}
	key, err := cache.Fingerprint(inputs...)
	if err != nil {
		return compute()
	}
	if data, ok, err := c.Get(kind, key, ext); err == nil && ok {
		log.Debugf("scan: %s cache hit for %s", kind, key)
		return data, nil
	}
	data, err := compute()
	if err != nil {
		return nil, err
	}
	if err := c.Put(kind, key, ext, data); err != nil {
		log.Warnf("scan: caching %s: %v", kind, err)
	}
	return data, nil
}

func printFindingsTable(run *scanrun.ScanRun) {
	if len(run.Findings) == 0 {
		fmt.Println("no findings")
		return
	}
	fmt.Printf("%-20s %-8s %-10s %s\n", "ADVISORY", "SEVERITY", "REACHABLE", "PACKAGE")
	for _, f := range run.Findings {
		purl := f.Package.MustPURL()
		fmt.Printf("%-20s %-8s %-10v %s\n", f.Advisory.ID, f.Advisory.Severity, f.Reachable(), purl)
	}
}

func printFindingsJSON(run *scanrun.ScanRun) {
	data, err := json.MarshalIndent(run.Findings, "", "  ")
	if err != nil {
		log.Errorf("scan: encoding findings as JSON: %v", err)
		return
	}
	fmt.Println(string(data))
}

// reportDiff prints findings present in run but absent from the baseline
// findings file, keyed by (package PURL, advisory id) since a finding's
// NodeID is only stable within one run's own graph.
func reportDiff(run *scanrun.ScanRun, baselinePath string) int {
	if baselinePath == "" {
		fmt.Fprintln(os.Stderr, "--diff requires --baseline <findings file>")
		return bzerr.ExitConfigError
	}
	base, err := scanrun.ReadFindingsFile(baselinePath)
	if err != nil {
		log.Errorf("scan: reading baseline: %v", err)
		return bzerr.ExitConfigError
	}
	seen := map[string]bool{}
	for _, f := range base.Findings {
		seen[f.Package.MustPURL()+"|"+f.Advisory.ID] = true
	}
	added := 0
	for _, f := range run.Findings {
		key := f.Package.MustPURL() + "|" + f.Advisory.ID
		if !seen[key] {
			added++
			fmt.Printf("+ %-20s %-8s %s\n", f.Advisory.ID, f.Advisory.Severity, f.Package.MustPURL())
		}
	}
	if added == 0 {
		fmt.Println("no new findings relative to baseline")
	}
	return bzerr.ExitSuccess
}
