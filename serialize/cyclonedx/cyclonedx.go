// Package cyclonedx serializes a ScanRun into a CycloneDX 1.5 BOM, including
// both the resolved component inventory and the vulnerability findings
// matched against it.
package cyclonedx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/scanrun"
)

// Config describes the root component BazBOM is scanning, and the tool
// metadata attached to the generated document.
type Config struct {
	ComponentName    string
	ComponentVersion string
	Authors          []string
}

// ToCDX converts a ScanRun into a CycloneDX 1.5 BOM. Component and
// vulnerability BOM-refs are derived deterministically from their PURL (and,
// for findings, the matched advisory ID), mirroring serialize/spdx's
// determinism requirement.
func ToCDX(r *scanrun.ScanRun, c Config) (*cdx.BOM, error) {
	bom := cdx.NewBOM()
	bom.Metadata = &cdx.Metadata{
		Timestamp: formatTimestamp(r.GeneratedAt),
		Component: &cdx.Component{
			Name:    c.ComponentName,
			Version: c.ComponentVersion,
			BOMRef:  deterministicRef("root:" + r.WorkspaceID),
		},
		Tools: &cdx.ToolsChoice{
			Tools: &[]cdx.Tool{
				{
					Name: "bazbom",
					ExternalReferences: &[]cdx.ExternalReference{
						{
							URL:  "https://github.com/bazbom/bazbom",
							Type: cdx.ERTypeWebsite,
						},
					},
				},
			},
		},
	}
	if len(c.Authors) > 0 {
		authors := make([]cdx.OrganizationalContact, 0, len(c.Authors))
		for _, author := range c.Authors {
			authors = append(authors, cdx.OrganizationalContact{Name: author})
		}
		bom.Metadata.Authors = &authors
	}

	nodes := r.Graph.Nodes()
	refByNodeID := make(map[int]string, len(nodes))
	comps := make([]cdx.Component, 0, len(nodes))
	for _, n := range nodes {
		purl, err := n.Ref.PURL()
		if err != nil {
			continue
		}
		ref := deterministicRef(purl)
		refByNodeID[int(n.ID)] = ref
		comp := cdx.Component{
			BOMRef:     ref,
			Type:       cdx.ComponentTypeLibrary,
			Name:       n.Ref.Name,
			Version:    n.Ref.Version,
			PackageURL: purl,
		}
		if len(n.Licenses) > 0 {
			choices := make(cdx.Licenses, 0, len(n.Licenses))
			for _, l := range n.Licenses {
				l := l
				choices = append(choices, cdx.LicenseChoice{License: &cdx.License{Name: l}})
			}
			comp.Licenses = &choices
		}
		if n.Evidence.ManifestPath != "" {
			occ := []cdx.EvidenceOccurrence{{Location: n.Evidence.ManifestPath}}
			comp.Evidence = &cdx.Evidence{Occurrences: &occ}
		}
		comps = append(comps, comp)
	}
	bom.Components = &comps

	if len(r.Findings) > 0 {
		vulns := make([]cdx.Vulnerability, 0, len(r.Findings))
		for _, f := range r.Findings {
			purl := f.Package.MustPURL()
			vulnRef := deterministicRef(f.Advisory.ID + ":" + purl)
			rating := cdx.VulnerabilityRating{
				Source:   &cdx.Source{Name: f.Advisory.Source},
				Severity: cdxSeverity(f.Severity()),
				Method:   cdx.ScoringMethodOther,
			}
			if f.Advisory.CVSSScore > 0 {
				score := f.Advisory.CVSSScore
				rating.Score = &score
				rating.Method = cdx.ScoringMethodCVSSv3
			}
			affects := []cdx.Affects{{Ref: refByNodeID[int(f.NodeID)]}}
			vulns = append(vulns, cdx.Vulnerability{
				BOMRef:      vulnRef,
				ID:          f.Advisory.ID,
				Source:      &cdx.Source{Name: f.Advisory.Source},
				Ratings:     &[]cdx.VulnerabilityRating{rating},
				Description: f.Advisory.Summary,
				Affects:     &affects,
				Properties:  reachabilityProperties(f),
			})
		}
		bom.Vulnerabilities = &vulns
	}

	return bom, nil
}

func reachabilityProperties(f scanrun.Finding) *[]cdx.Property {
	props := []cdx.Property{
		{Name: "bazbom:reachability", Value: string(f.Reachability)},
	}
	if f.KEVListed() {
		props = append(props, cdx.Property{Name: "bazbom:kev", Value: "true"})
	}
	return &props
}

func cdxSeverity(sev advisory.Severity) cdx.Severity {
	switch sev {
	case advisory.SeverityCritical:
		return cdx.SeverityCritical
	case advisory.SeverityHigh:
		return cdx.SeverityHigh
	case advisory.SeverityMedium:
		return cdx.SeverityMedium
	case advisory.SeverityLow:
		return cdx.SeverityLow
	default:
		return cdx.SeverityNone
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func deterministicRef(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("bazbom-%s", hex.EncodeToString(sum[:16]))
}
