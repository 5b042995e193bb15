package advisory

import (
	"strings"

	"deps.dev/util/semver"

	"github.com/bazbom/bazbom/log"
	"github.com/bazbom/bazbom/pkgref"
)

// semverSystemFor maps a bazbom Ecosystem onto the version system deps.dev's
// semver package needs to parse and compare it correctly; each ecosystem
// has its own version grammar (Maven's dash/dot qualifiers, PyPI's PEP 440,
// etc.) so there is no single parser that works across all of them.
func semverSystemFor(eco pkgref.Ecosystem) semver.System {
	switch eco {
	case pkgref.Maven:
		return semver.Maven
	case pkgref.PyPI:
		return semver.PyPI
	default:
		// NPM's comparator is standard dotted-numeric semver, the closest
		// general-purpose fit for ecosystems deps.dev doesn't model with
		// their own dedicated System (Go modules, Cargo, RubyGems, Composer).
		return semver.NPM
	}
}

// Matches reports whether ref's version falls inside one of pkg's declared
// affected ranges (or exact-version list), using the version comparator for
// ref's ecosystem. A range with an empty Introduced is treated as "since
// the beginning of time"; a range with neither Fixed nor LastAffected is
// treated as "still affected in every version at or above Introduced."
func Matches(ref pkgref.Ref, pkg AffectedPackage) bool {
	if !strings.EqualFold(string(ref.Ecosystem), pkg.Ecosystem) || ref.Name != pkg.Name {
		return false
	}
	for _, v := range pkg.Versions {
		if v == ref.Version {
			return true
		}
	}
	if len(pkg.Ranges) == 0 {
		return false
	}

	sys := semverSystemFor(ref.Ecosystem)
	target, err := sys.Parse(ref.Version)
	if err != nil {
		log.Debugf("advisory: cannot parse version %q for %s, skipping range match", ref.Version, ref)
		return false
	}

	for _, r := range pkg.Ranges {
		if rangeContains(sys, target, r) {
			return true
		}
	}
	return false
}

func rangeContains(sys semver.System, target *semver.Version, r AffectedRange) bool {
	if r.Introduced != "" {
		intro, err := sys.Parse(r.Introduced)
		if err != nil {
			return false
		}
		if target.Compare(intro) < 0 {
			return false
		}
	}
	if r.Fixed != "" {
		fixed, err := sys.Parse(r.Fixed)
		if err != nil {
			return false
		}
		return target.Compare(fixed) < 0
	}
	if r.LastAffected != "" {
		last, err := sys.Parse(r.LastAffected)
		if err != nil {
			return false
		}
		return target.Compare(last) <= 0
	}
	// No upper bound given: every version at or above Introduced is affected.
	return true
}

// MatchAdvisories returns every advisory in candidates whose Affected list
// matches ref.
func MatchAdvisories(ref pkgref.Ref, candidates []Advisory) []Advisory {
	var out []Advisory
	for _, a := range candidates {
		if a.IsWithdrawn() {
			continue
		}
		for _, pkg := range a.Affected {
			if Matches(ref, pkg) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
