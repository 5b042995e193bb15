// Package vex serializes a ScanRun's exploitability signals into a CSAF VEX
// document. The justification vocabulary and not-affected/affected status
// model are generalized from the teacher's vex package, which tracks the
// same signals per-package/per-finding in-process but never serializes them
// to the CSAF wire format.
package vex

import (
	"encoding/json"
	"fmt"

	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/scanrun"
)

// Status is CSAF VEX's product_status bucket for one vulnerability.
type Status string

// CSAF VEX statuses.
const (
	StatusKnownAffected      Status = "known_affected"
	StatusNotAffected        Status = "not_affected"
	StatusFixed              Status = "fixed"
	StatusUnderInvestigation Status = "under_investigation"
)

// Justification enumerates CSAF's standard "not affected" justifications,
// generalized from the teacher's vex.Justification (an in-process int enum
// with the same five reasons) into CSAF's official machine-readable labels.
type Justification string

// CSAF justification labels.
const (
	JustificationComponentNotPresent                         Justification = "component_not_present"
	JustificationVulnerableCodeNotPresent                     Justification = "vulnerable_code_not_present"
	JustificationVulnerableCodeNotInExecutePath               Justification = "vulnerable_code_not_in_execute_path"
	JustificationVulnerableCodeCannotBeControlledByAdversary Justification = "vulnerable_code_cannot_be_controlled_by_adversary"
	JustificationInlineMitigationsAlreadyExist                Justification = "inline_mitigations_already_exist"
)

// Document is a deliberately partial CSAF VEX document: document metadata
// plus one vulnerability entry per advisory with a product-status/
// justification pair, not the full CSAF profile (distribution, tracking
// revision history, and the rest of the CSAF profile are out of scope).
type Document struct {
	Document        DocumentMetadata `json:"document"`
	Vulnerabilities []Vulnerability  `json:"vulnerabilities"`
}

// DocumentMetadata is CSAF's top-level /document object.
type DocumentMetadata struct {
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Tracking Tracking `json:"tracking"`
}

// Tracking is CSAF's /document/tracking object, trimmed to the fields
// BazBOM can populate deterministically from a ScanRun.
type Tracking struct {
	ID                 string `json:"id"`
	CurrentReleaseDate string `json:"current_release_date"`
	Status             string `json:"status"`
	Version            string `json:"version"`
}

// Vulnerability is one advisory's VEX statement set: its product status
// bucket, and (for not_affected) the justification.
type Vulnerability struct {
	ID            string        `json:"cve,omitempty"`
	Notes         []Note        `json:"notes,omitempty"`
	ProductStatus ProductStatus `json:"product_status"`
	Justification Justification `json:"justification,omitempty"`
	Threats       []Threat      `json:"threats,omitempty"`
}

// Note is a free-text annotation, used here to carry the human-readable
// reason alongside the machine-readable Justification.
type Note struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// ProductStatus buckets affected product IDs (PURLs, in BazBOM's case) by
// VEX status.
type ProductStatus struct {
	KnownAffected      []string `json:"known_affected,omitempty"`
	FixedProducts      []string `json:"fixed,omitempty"`
	NotAffected        []string `json:"known_not_affected,omitempty"`
	UnderInvestigation []string `json:"under_investigation,omitempty"`
}

// Threat carries CSAF's structured exploit-status narrative for an
// affected product.
type Threat struct {
	Category   string   `json:"category"`
	Details    string   `json:"details"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

// ToVEX converts a ScanRun's findings into a CSAF VEX document. A Finding
// whose Reachability is unreachable is classified not_affected with the
// vulnerable-code-not-in-execute-path justification, since BazBOM's
// reachability analyzer is exactly the mechanism that establishes that
// claim; every other Finding is known_affected pending policy review.
func ToVEX(r *scanrun.ScanRun, documentID, title string) (*Document, error) {
	byAdvisory := map[string]*Vulnerability{}
	order := make([]string, 0)

	for _, f := range r.Findings {
		v, ok := byAdvisory[f.Advisory.ID]
		if !ok {
			v = &Vulnerability{ID: f.Advisory.ID}
			byAdvisory[f.Advisory.ID] = v
			order = append(order, f.Advisory.ID)
		}
		purl := f.Package.MustPURL()
		if f.Reachability != reachability.StatusUnreachable {
			v.ProductStatus.KnownAffected = append(v.ProductStatus.KnownAffected, purl)
			continue
		}
		v.ProductStatus.NotAffected = append(v.ProductStatus.NotAffected, purl)
		v.Justification = JustificationVulnerableCodeNotInExecutePath
		v.Notes = append(v.Notes, Note{
			Category: "other",
			Text:     fmt.Sprintf("%s: no call path from an application entry point reaches the vulnerable code.", purl),
		})
	}

	vulns := make([]Vulnerability, 0, len(order))
	for _, id := range order {
		vulns = append(vulns, *byAdvisory[id])
	}

	return &Document{
		Document: DocumentMetadata{
			Category: "csaf_vex",
			Title:    title,
			Tracking: Tracking{
				ID:                 documentID,
				CurrentReleaseDate: formatTimestamp(r),
				Status:             "final",
				Version:            "1",
			},
		},
		Vulnerabilities: vulns,
	}, nil
}

func formatTimestamp(r *scanrun.ScanRun) string {
	if r.GeneratedAt.IsZero() {
		return ""
	}
	return r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")
}

// Marshal renders d as indented JSON with a trailing newline.
func Marshal(d *Document) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("vex: marshal: %w", err)
	}
	return append(b, '\n'), nil
}
