// Package advisory implements the offline-capable vulnerability advisory
// store from spec.md §4.B: a bbolt-backed index over OSV/NVD/GHSA/KEV/EPSS
// records, keyed for fast ecosystem+name lookup, with an explicit offline
// mode that fails fast rather than silently scanning with a stale or
// missing snapshot.
package advisory

import "time"

// Severity mirrors the CVSS-derived severity bands spec.md §3 names.
type Severity string

// Severity bands.
const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AffectedRange is one version range an advisory applies to, expressed in
// the advisory source's native ecosystem versioning scheme.
type AffectedRange struct {
	Introduced string
	Fixed      string
	// LastAffected is set instead of Fixed when the upstream advisory has no
	// known fix version yet.
	LastAffected string
}

// AffectedPackage names one ecosystem+name target of an advisory and the
// ranges it applies to.
type AffectedPackage struct {
	Ecosystem string
	Name      string
	Ranges    []AffectedRange
	// Versions lists exact affected versions when the source enumerates them
	// instead of (or in addition to) ranges.
	Versions []string
}

// Advisory is one normalized vulnerability record, merged from whichever
// upstream source(s) reported it (spec.md §4.B "advisories are normalized
// into one schema regardless of source").
type Advisory struct {
	ID        string // e.g. "CVE-2021-44228", "GHSA-jfh8-c2jp-5v3q".
	Aliases   []string
	Summary   string
	Details   string
	Severity  Severity
	CVSSScore float64
	CVSSVector string
	Published time.Time
	Modified  time.Time
	Affected  []AffectedPackage
	// Withdrawn is non-zero if the upstream source has retracted this
	// advisory.
	Withdrawn time.Time
	// Source names which sync source last wrote this record ("osv", "nvd",
	// "ghsa", "kev", "epss").
	Source string
	// KEVListed is true if CISA's Known Exploited Vulnerabilities catalog
	// lists this ID.
	KEVListed bool
	// EPSSScore and EPSSPercentile carry the most recent EPSS score seen for
	// this ID, if any (spec.md's resolved Open Question: retain-and-annotate
	// stale EPSS scores rather than dropping them).
	EPSSScore      float64
	EPSSPercentile float64
	EPSSAsOf       time.Time
	// EPSSStale is set by ApplyEPSS when EPSSAsOf is older than the EPSS
	// freshness window at the time of that db sync.
	EPSSStale bool
}

// IsWithdrawn reports whether the advisory has been retracted upstream.
func (a Advisory) IsWithdrawn() bool {
	return !a.Withdrawn.IsZero()
}
