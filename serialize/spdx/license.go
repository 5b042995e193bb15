package spdx

import (
	"fmt"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"
	"github.com/thoas/go-funk"
)

const (
	// NonStandardLicense refers to a non-spdx-compliant license.
	NonStandardLicense = "non-standard"
	// UnknownLicense refers to a license we can't identify.
	UnknownLicense = "unknown"
	// LicenseRefPrefix is the prefix for non-standard licenses.
	LicenseRefPrefix = "LicenseRef-"
)

// LicenseExpression takes a package's declared license strings and
// transforms them into an SPDX-compliant license expression, handling
// singular licenses (e.g. "MIT") and basic AND/OR expressions (e.g.
// "MIT AND LGPL").
func LicenseExpression(licenses []string) (string, stringset.Set) {
	cleanLicenses := cleanLicenseExpression(licenses)
	if len(cleanLicenses) == 0 {
		return NoAssertion, stringset.Set{}
	}
	licenseExpressionSet := stringset.New()
	customLicenses := stringset.New()
	for _, l := range cleanLicenses {
		if strings.EqualFold(l, UnknownLicense) || strings.EqualFold(l, NonStandardLicense) {
			return NoAssertion, stringset.Set{}
		}
		l := strings.ReplaceAll(l, " or ", " OR ")
		if strings.Contains(l, " OR ") {
			var orLicenses []string
			for _, ols := range strings.Split(l, " OR ") {
				spdxL, customL := spdxAndCustomLicenses(ols)
				orLicenses = append(orLicenses, spdxL)
				if customL != "" {
					customLicenses.Add(customL)
				}
			}
			licenseExpressionSet.Add(fmt.Sprintf("(%s)", strings.Join(orLicenses, " OR ")))
		} else {
			spdxL, customL := spdxAndCustomLicenses(l)
			licenseExpressionSet.Add(spdxL)
			if customL != "" {
				customLicenses.Add(customL)
			}
		}
	}
	return strings.Join(licenseExpressionSet.Elements(), " AND "), customLicenses
}

// cleanLicenseExpression preparses licenses: removes empties, strips
// leading/trailing parentheses, and splits AND-joined licenses apart.
func cleanLicenseExpression(licenses []string) []string {
	var cleanLicenses []string
	for _, l := range licenses {
		if l == "" {
			continue
		}
		var noParenLicense string
		if strings.HasPrefix(l, "(") && strings.HasSuffix(l, ")") {
			noParenLicense = l[1 : len(l)-1]
		} else {
			noParenLicense = l
		}
		l = strings.ReplaceAll(noParenLicense, " and ", " AND ")
		cleanLicenses = append(cleanLicenses, strings.Split(l, " AND ")...)
	}
	return cleanLicenses
}

// spdxAndCustomLicenses returns l unchanged if it's a recognized SPDX
// identifier, or its LicenseRef form plus the raw text otherwise.
func spdxAndCustomLicenses(l string) (string, string) {
	if _, ok := canonicalLicenses[l]; ok {
		return l, ""
	}
	if si, ok := ShortIdentifier(l); ok {
		return si, ""
	}
	return spdxLicenceRef(l), l
}

// ToOtherLicenses converts a stringset of non-canonical license texts into
// SPDX's OtherLicense section.
func ToOtherLicenses(otherLicenses stringset.Set) []*v2_3.OtherLicense {
	if otherLicenses.Empty() {
		return nil
	}
	return funk.Map(otherLicenses.Elements(), func(l string) *v2_3.OtherLicense {
		return &v2_3.OtherLicense{LicenseIdentifier: spdxLicenceRef(l), ExtractedText: l}
	}).([]*v2_3.OtherLicense)
}

func spdxLicenceRef(l string) string {
	return LicenseRefPrefix + replaceSPDXIDInvalidChars(l)
}
