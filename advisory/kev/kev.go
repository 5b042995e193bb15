// Package kev syncs CISA's Known Exploited Vulnerabilities catalog. KEV
// doesn't describe its own affected-package ranges; it exists purely to set
// Advisory.KEVListed on records already in the store, matched by CVE ID.
package kev

import (
	"encoding/json"
	"fmt"

	"github.com/bazbom/bazbom/bzerr"
)

// Catalog is the subset of CISA's KEV JSON schema bazbom needs.
type Catalog struct {
	Vulnerabilities []Entry `json:"vulnerabilities"`
}

// Entry is one catalog row.
type Entry struct {
	CVEID             string `json:"cveID"`
	VendorProject     string `json:"vendorProject"`
	Product           string `json:"product"`
	VulnerabilityName string `json:"vulnerabilityName"`
	DateAdded         string `json:"dateAdded"`
	ShortDescription  string `json:"shortDescription"`
	RequiredAction    string `json:"requiredAction"`
	DueDate           string `json:"dueDate"`
}

// Parse decodes a KEV catalog export and returns the set of listed CVE IDs.
func Parse(data []byte) (map[string]Entry, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, bzerr.ParseFailure("advisory/kev", fmt.Errorf("decode KEV catalog: %w", err))
	}
	out := make(map[string]Entry, len(c.Vulnerabilities))
	for _, e := range c.Vulnerabilities {
		if e.CVEID != "" {
			out[e.CVEID] = e
		}
	}
	return out, nil
}
