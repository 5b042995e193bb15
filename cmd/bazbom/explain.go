package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/scanrun"
)

// runExplain implements `bazbom explain <id>`: print every Finding in a
// findings file whose advisory ID or package PURL matches id, with its full
// reachability evidence chain, for a human to inspect a single result in
// detail without scrolling through the whole SBOM.
func runExplain(args []string) int {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	findingsPath := fs.String("findings", "", "findings file written by `bazbom scan`")
	if err := fs.Parse(args); err != nil {
		return bzerr.ExitConfigError
	}
	if fs.NArg() < 1 || *findingsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bazbom explain <advisory-id-or-purl> --findings <file>")
		return bzerr.ExitConfigError
	}
	id := fs.Arg(0)

	run, err := scanrun.ReadFindingsFile(*findingsPath)
	if err != nil {
		log.Errorf("explain: %v", err)
		return bzerr.ExitConfigError
	}

	matched := 0
	for _, f := range run.Findings {
		purl := f.Package.MustPURL()
		if f.Advisory.ID != id && purl != id {
			continue
		}
		matched++
		fmt.Printf("advisory:     %s\n", f.Advisory.ID)
		fmt.Printf("package:      %s\n", purl)
		fmt.Printf("severity:     %s\n", f.Advisory.Severity)
		fmt.Printf("reachability: %s\n", f.Reachability)
		fmt.Printf("kev_listed:   %v\n", f.KEVListed())
		fmt.Printf("epss_score:   %.4f\n", f.EPSSScore())
		if f.Advisory.Summary != "" {
			fmt.Printf("summary:      %s\n", f.Advisory.Summary)
		}
		if len(f.Evidence) > 0 {
			fmt.Println("evidence:")
			for _, hop := range f.Evidence {
				fmt.Printf("  -> %s\n", hop)
			}
		}
		fmt.Println()
	}

	if matched == 0 {
		fmt.Fprintf(os.Stderr, "explain: no finding matched %q\n", id)
		return bzerr.ExitConfigError
	}
	return bzerr.ExitSuccess
}
