// Package sarif serializes a ScanRun into a SARIF 2.1.0 log, the format
// most CI "upload security results" actions (GitHub code scanning among
// them) consume directly.
//
// No example repo in the corpus carries a SARIF dependency, so the document
// is a hand-rolled struct tree encoded with encoding/json, in the same
// explicit-field-order-plus-omitempty style the teacher's own advanced SBOM
// generator uses for its hand-rolled JSON structures.
package sarif

import (
	"encoding/json"
	"fmt"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/scanrun"
)

const (
	schemaURL    = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"
	toolName     = "bazbom"
	toolInfoURI  = "https://github.com/bazbom/bazbom"
)

// Log is the root SARIF document.
type Log struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run is a single analysis tool invocation.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analyzer that produced the run.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver names the tool and the rule catalog it can emit results for.
type Driver struct {
	Name           string `json:"name"`
	InformationURI string `json:"informationUri"`
	Version        string `json:"version,omitempty"`
	Rules          []Rule `json:"rules"`
}

// Rule is one advisory ID's static description, referenced by ruleId from
// each matching Result.
type Rule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	ShortDescription Text              `json:"shortDescription"`
	FullDescription  Text              `json:"fullDescription,omitempty"`
	HelpURI          string            `json:"helpUri,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Text is SARIF's {"text": "..."} message wrapper.
type Text struct {
	Text string `json:"text"`
}

// Result is one Finding rendered as a SARIF result.
type Result struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    Text              `json:"message"`
	Locations  []Location        `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Location points a Result at the affected package, identified by its PURL.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation names the artifact URI (the affected package's PURL in
// BazBOM's case; SARIF has no native notion of "a JVM dependency
// coordinate").
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

// ArtifactLocation is the URI of the affected artifact.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// ToSARIF converts a ScanRun's findings into a SARIF 2.1.0 Log. One Rule is
// emitted per distinct advisory ID referenced by the run's findings, and one
// Result per Finding.
func ToSARIF(r *scanrun.ScanRun) (*Log, error) {
	seenRules := map[string]bool{}
	rules := make([]Rule, 0, len(r.Findings))
	results := make([]Result, 0, len(r.Findings))

	for _, f := range r.Findings {
		if !seenRules[f.Advisory.ID] {
			seenRules[f.Advisory.ID] = true
			rules = append(rules, Rule{
				ID:               f.Advisory.ID,
				ShortDescription: Text{Text: summaryOrID(f.Advisory)},
				FullDescription:  Text{Text: f.Advisory.Details},
			})
		}

		purl := f.Package.MustPURL()
		var locations []Location
		if f.NodeID != 0 {
			locations = append(locations, Location{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: purl},
				},
			})
		}

		results = append(results, Result{
			RuleID:    f.Advisory.ID,
			Level:     sarifLevel(f.Severity()),
			Message:   Text{Text: fmt.Sprintf("%s affects %s (%s)", f.Advisory.ID, purl, f.Reachability)},
			Locations: locations,
			Properties: map[string]string{
				"reachability": string(f.Reachability),
				"kev":          boolString(f.KEVListed()),
			},
		})
	}

	return &Log{
		Schema:  schemaURL,
		Version: sarifVersion,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:           toolName,
						InformationURI: toolInfoURI,
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}, nil
}

// Marshal renders l as indented JSON with a trailing newline, matching the
// teacher's canonical JSON-output convention elsewhere in the pack.
func Marshal(l *Log) ([]byte, error) {
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sarif: marshal: %w", err)
	}
	return append(b, '\n'), nil
}

func summaryOrID(a advisory.Advisory) string {
	if a.Summary != "" {
		return a.Summary
	}
	return a.ID
}

// sarifLevel maps BazBOM's severity bands onto SARIF's three result levels:
// critical/high become error, medium becomes warning, low/none become note.
func sarifLevel(sev advisory.Severity) string {
	switch sev {
	case advisory.SeverityCritical, advisory.SeverityHigh:
		return "error"
	case advisory.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
