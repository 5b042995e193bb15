// Package spdx serializes a ScanRun's dependency graph into an SPDX 2.3
// document.
package spdx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"bitbucket.org/creachadair/stringset"
	"github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	"github.com/bazbom/bazbom/scanrun"
)

const (
	// NoAssertion indicates that we don't claim anything about the value of a given field.
	NoAssertion = "NOASSERTION"
	// SPDXRefPrefix is the prefix used in reference IDs in the SPDX document.
	SPDXRefPrefix = "SPDXRef-"
	// SPDXDocumentID is the string identifier used to refer to the SPDX document.
	SPDXDocumentID = "SPDXRef-DOCUMENT"
)

// spdx_id must only contain letters, numbers, "." and "-"
var spdxIDInvalidCharRe = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Config describes custom settings that should be applied to the generated
// SPDX document.
type Config struct {
	DocumentName      string
	DocumentNamespace string
	Creators          []common.Creator
}

// ToSPDX converts a ScanRun's dependency graph into an SPDX v2.3 document.
//
// Unlike a tool that mints a fresh package ID per run, every package ID here
// is derived deterministically from its PURL, so serializing the same
// ScanRun twice produces byte-identical output (spec.md §8's
// determinism requirement for SBOM output).
func ToSPDX(r *scanrun.ScanRun, c Config) (*v2_3.Document, error) {
	nodes := r.Graph.Nodes()
	packages := make([]*v2_3.Package, 0, len(nodes)+1)

	mainPackageID := SPDXRefPrefix + "Package-main-" + deterministicSuffix("main:"+r.WorkspaceID)
	packages = append(packages, &v2_3.Package{
		PackageName:           "main",
		PackageSPDXIdentifier: common.ElementID(mainPackageID),
		PackageVersion:        "0",
		PackageSupplier: &common.Supplier{
			Supplier:     NoAssertion,
			SupplierType: NoAssertion,
		},
		PackageDownloadLocation:   NoAssertion,
		IsFilesAnalyzedTagPresent: false,
	})

	relationships := make([]*v2_3.Relationship, 0, 1+2*len(nodes))
	relationships = append(relationships, &v2_3.Relationship{
		RefA:         toDocElementID(SPDXDocumentID),
		RefB:         toDocElementID(mainPackageID),
		Relationship: "DESCRIBES",
	})

	allOtherLicenses := stringset.Set{}

	for _, n := range nodes {
		purl, err := n.Ref.PURL()
		if err != nil {
			continue // unvalidated ref; skip rather than emit a malformed package.
		}
		pName := n.Ref.Name
		pVersion := n.Ref.Version

		pID := SPDXRefPrefix + "Package-" + replaceSPDXIDInvalidChars(pName) + "-" + deterministicSuffix(purl)
		pSourceInfo := fmt.Sprintf("Identified by the %s extractor from %s", n.Origin.BuildSystem, n.Evidence.ManifestPath)

		licensesConcluded, otherLicenses := LicenseExpression(n.Licenses)
		allOtherLicenses.Update(otherLicenses)

		packages = append(packages, &v2_3.Package{
			PackageName:           pName,
			PackageSPDXIdentifier: common.ElementID(pID),
			PackageVersion:        pVersion,
			PackageSupplier: &common.Supplier{
				Supplier:     NoAssertion,
				SupplierType: NoAssertion,
			},
			PackageDownloadLocation:   NoAssertion,
			PackageLicenseConcluded:   licensesConcluded,
			PackageLicenseDeclared:    NoAssertion,
			IsFilesAnalyzedTagPresent: false,
			PackageSourceInfo:         pSourceInfo,
			PackageExternalReferences: []*v2_3.PackageExternalReference{
				{
					Category: "PACKAGE-MANAGER",
					RefType:  "purl",
					Locator:  purl,
				},
			},
		})
		relationships = append(relationships, &v2_3.Relationship{
			RefA:         toDocElementID(mainPackageID),
			RefB:         toDocElementID(pID),
			Relationship: "CONTAINS",
		})
	}

	name := c.DocumentName
	if name == "" {
		name = "bazbom-generated SPDX"
	}
	namespace := c.DocumentNamespace
	if namespace == "" {
		namespace = "https://bazbom.dev/spdx/" + deterministicSuffix("namespace:"+r.WorkspaceID)
	}
	creators := []common.Creator{
		{
			CreatorType: "Tool",
			Creator:     "bazbom",
		},
	}
	creators = append(creators, c.Creators...)

	created := r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")
	if r.GeneratedAt.IsZero() {
		created = time.Unix(0, 0).UTC().Format("2006-01-02T15:04:05Z")
	}

	return &v2_3.Document{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      name,
		DocumentNamespace: namespace,
		CreationInfo: &v2_3.CreationInfo{
			Creators: creators,
			Created:  created,
		},
		Packages:      packages,
		Relationships: relationships,
		OtherLicenses: ToOtherLicenses(allOtherLicenses),
	}, nil
}

// deterministicSuffix derives a stable, uuid-shaped-enough identifier
// suffix from seed, replacing the non-deterministic uuid.New() the
// original converter used for SPDX package IDs.
func deterministicSuffix(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}

func replaceSPDXIDInvalidChars(id string) string {
	return spdxIDInvalidCharRe.ReplaceAllString(id, "-")
}

func toDocElementID(id string) common.DocElementID {
	if id == NoAssertion {
		return common.DocElementID{
			SpecialID: NoAssertion,
		}
	}
	return common.DocElementID{
		ElementRefID: common.ElementID(id),
	}
}
