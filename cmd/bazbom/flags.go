// Package main is the bazbom command-line entrypoint: one process wrapping
// build-system detection, advisory matching, reachability analysis, policy
// evaluation and SBOM serialization into the subcommands documented below.
package main

import "strings"

// stringListFlag accumulates repeated occurrences of a flag (e.g.
// -bazel-targets //foo -bazel-targets //bar) into a slice, the same
// flag.Value idiom as the teacher's binary/cli.Array.
type stringListFlag []string

func (f *stringListFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *stringListFlag) Set(value string) error {
	*f = append(*f, strings.TrimSpace(value))
	return nil
}

// splitCSV splits a comma-separated flag value into trimmed, non-empty
// parts, returning nil for an empty input.
func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
