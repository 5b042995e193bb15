// Package ghsa syncs advisories from the GitHub Advisory Database. GHSA
// publishes its records in the same OSV JSON schema osv.dev uses, so
// parsing delegates to advisory/osv and only re-tags the Source field.
package ghsa

import (
	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/advisory/osv"
)

// ParseOne decodes a single GHSA advisory JSON document (the per-file
// format the github/advisory-database repo's reviewed/ and unreviewed/
// trees both use).
func ParseOne(data []byte) (advisory.Advisory, error) {
	a, err := osv.ParseOne(data)
	if err != nil {
		return advisory.Advisory{}, err
	}
	a.Source = "ghsa"
	return a, nil
}
