package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/policy"
	"github.com/bazbom/bazbom/scanrun"
)

// runPolicyCheck implements `bazbom policy check`: re-evaluate an existing
// findings file against a policy document, independent of the scan that
// produced it. This lets a policy be tightened and re-checked against
// yesterday's findings without re-running build-system extraction.
func runPolicyCheck(args []string) int {
	fs := flag.NewFlagSet("policy check", flag.ContinueOnError)
	findingsPath := fs.String("findings", "", "findings file written by `bazbom scan`")
	policyPath := fs.String("policy-file", "", "policy document to evaluate (default template if omitted)")
	if err := fs.Parse(args); err != nil {
		return bzerr.ExitConfigError
	}
	if *findingsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bazbom policy check --findings <file> [--policy-file <file>]")
		return bzerr.ExitConfigError
	}

	run, err := scanrun.ReadFindingsFile(*findingsPath)
	if err != nil {
		log.Errorf("policy check: %v", err)
		return bzerr.ExitConfigError
	}

	pol, err := resolvePolicy(*policyPath)
	if err != nil {
		log.Errorf("policy check: %v", err)
		return exitFor(err)
	}

	result, err := pol.Evaluate(context.Background(), run.Findings)
	if err != nil {
		log.Errorf("policy check: %v", err)
		return exitFor(err)
	}

	for _, v := range result.Verdicts {
		fmt.Printf("%-8s %-20s %s\n", v.Action, v.Finding.Advisory.ID, v.Finding.Package.MustPURL())
		if v.Message != "" {
			fmt.Printf("         %s\n", v.Message)
		}
	}
	fmt.Printf("exit_action: %s\n", result.ExitAction)

	if result.ExitAction == policy.ActionBlock {
		return bzerr.ExitPolicyBlock
	}
	return bzerr.ExitSuccess
}

// runPolicyInit implements `bazbom policy init --template <id>`: write a
// starter policy document so a team can edit it in place rather than
// writing one from scratch.
func runPolicyInit(args []string) int {
	fs := flag.NewFlagSet("policy init", flag.ContinueOnError)
	template := fs.String("template", "default", "starter template: default or strict")
	out := fs.String("out", "policy.yaml", "file to write the template to")
	if err := fs.Parse(args); err != nil {
		return bzerr.ExitConfigError
	}

	pol, err := policy.Template(*template)
	if err != nil {
		log.Errorf("policy init: %v", err)
		return bzerr.ExitConfigError
	}

	data, err := yaml.Marshal(pol)
	if err != nil {
		log.Errorf("policy init: %v", err)
		return bzerr.ExitInternal
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Errorf("policy init: writing %s: %v", *out, err)
		return bzerr.ExitInternal
	}
	fmt.Printf("wrote %s template to %s\n", *template, *out)
	return bzerr.ExitSuccess
}
