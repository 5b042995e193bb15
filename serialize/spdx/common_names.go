package spdx

import (
	"regexp"
	"sort"
	"strings"
)

// canonicalLicenses is the set of SPDX short identifiers this serializer
// recognizes without falling back to a LicenseRef. It covers the licenses
// that dominate the JVM ecosystem (Maven Central's own license-usage
// statistics skew heavily toward this set); anything outside it still
// serializes correctly, just as a LicenseRef- custom license rather than a
// canonical SPDX identifier.
var canonicalLicenses = map[string]struct{}{
	"Apache-2.0":        {},
	"MIT":               {},
	"BSD-2-Clause":      {},
	"BSD-3-Clause":      {},
	"ISC":               {},
	"MPL-2.0":           {},
	"MPL-1.1":           {},
	"EPL-1.0":           {},
	"EPL-2.0":           {},
	"CDDL-1.0":          {},
	"CDDL-1.1":          {},
	"GPL-2.0-only":      {},
	"GPL-2.0-or-later":  {},
	"GPL-3.0-only":      {},
	"GPL-3.0-or-later":  {},
	"LGPL-2.0-only":     {},
	"LGPL-2.0-or-later": {},
	"LGPL-2.1-only":     {},
	"LGPL-2.1-or-later": {},
	"LGPL-3.0-only":     {},
	"LGPL-3.0-or-later": {},
	"AGPL-3.0-only":     {},
	"AGPL-3.0-or-later": {},
	"BSL-1.0":           {},
	"Unlicense":         {},
	"WTFPL":             {},
	"Zlib":              {},
	"CC0-1.0":           {},
	"Python-2.0":        {},
	"PostgreSQL":        {},
	"Vim":               {},
}

// Handle mapping common names like LGPL2 to LGPL-2.0-only etc.

var (
	minusVersion       = regexp.MustCompile(`[-]([0-9])`)
	versionMinus       = regexp.MustCompile(`([0-9])[-]`)
	trailingZero       = regexp.MustCompile(`[.]0($|[^.0-9])`)
	trailingInitialism = regexp.MustCompile(`[-]([A-Z])[a-z]+($|[^A-Za-z])`)

	commonLicenseNameToShortIdentifier map[string]string
)

// mapCommonLicenseNames calculates a map from ill-formed common license
// names to canonical names.
func mapCommonLicenseNames() map[string]string {
	commonLicenseNameToShortIdentifier := make(map[string]string)
	sortedCanonical := make([]string, 0, len(canonicalLicenses))
	for canonical := range canonicalLicenses {
		sortedCanonical = append(sortedCanonical, canonical)
	}
	sort.Strings(sortedCanonical)

	alreadyPopulated := func(canonical, l string) bool {
		other, ok := commonLicenseNameToShortIdentifier[strings.ToUpper(l)]
		if !ok {
			return false
		}
		return canonical != other+"-only"
	}

	for _, canonical := range sortedCanonical {
		commonLicenseNameToShortIdentifier[strings.ToUpper(canonical)] = canonical

		base := normalize(strings.ReplaceAll(strings.ReplaceAll(canonical, "-only", ""), "-or-later", "+"))
		commonLicenseNameToShortIdentifier[strings.ToUpper(base)] = canonical

		for {
			l := strings.ToUpper(base)
			for loc := trailingZero.FindAllStringSubmatchIndex(l, -1); loc != nil; loc = trailingZero.FindAllStringSubmatchIndex(l, -1) {
				l = replaceLastGroup(l, loc)
				commonLicenseNameToShortIdentifier[l] = canonical
			}

			l = makeInitialism(base)
			if l != base {
				if !alreadyPopulated(canonical, l) {
					commonLicenseNameToShortIdentifier[strings.ToUpper(l)] = canonical
				}
				for loc := trailingZero.FindAllStringSubmatchIndex(l, -1); loc != nil; loc = trailingZero.FindAllStringSubmatchIndex(l, -1) {
					l = replaceLastGroup(l, loc)
					if alreadyPopulated(canonical, l) {
						continue
					}
					commonLicenseNameToShortIdentifier[strings.ToUpper(l)] = canonical
				}
			}

			l = versionMinus.ReplaceAllString(base, "$1")
			if l == base {
				l = strings.ReplaceAll(base, "-", "")
				if l == base {
					break
				}
			}
			commonLicenseNameToShortIdentifier[strings.ToUpper(l)] = canonical
			base = l
		}
	}
	return commonLicenseNameToShortIdentifier
}

func replaceLastGroup(l string, locs [][]int) string {
	loc := locs[len(locs)-1]
	return l[:loc[0]] + l[loc[len(loc)-2]:loc[len(loc)-1]] + l[loc[1]:]
}

func normalize(l string) string {
	return minusVersion.ReplaceAllString(strings.TrimSpace(l), "$1")
}

func makeInitialism(l string) string {
	for locs := trailingInitialism.FindAllStringSubmatchIndex(l, -1); locs != nil; locs = trailingInitialism.FindAllStringSubmatchIndex(l, -1) {
		loc := locs[len(locs)-1]
		l = l[:loc[0]] + l[loc[len(loc)-4]:loc[len(loc)-3]] + l[loc[len(loc)-2]:loc[len(loc)-1]] + l[loc[1]:]
	}
	return l
}

// ShortIdentifier returns the SPDX short identifier for license name l, if
// it (or a common misspelling/variant of it) is in canonicalLicenses.
func ShortIdentifier(l string) (string, bool) {
	if _, ok := canonicalLicenses[l]; ok {
		return l, true
	}
	u := strings.ToUpper(l)
	if commonLicenseNameToShortIdentifier == nil {
		commonLicenseNameToShortIdentifier = mapCommonLicenseNames()
	}
	if si, ok := commonLicenseNameToShortIdentifier[u]; ok {
		return si, true
	}
	if si, ok := commonLicenseNameToShortIdentifier[normalize(u)]; ok {
		return si, true
	}
	return "", false
}
