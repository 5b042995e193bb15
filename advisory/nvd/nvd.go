// Package nvd syncs CVE records from the NVD 2.0 JSON feed. NVD's feed
// files run into the hundreds of megabytes, so parsing streams through
// tidwall/gjson rather than unmarshaling the whole document into structs:
// gjson lets ParseAll walk straight to the "vulnerabilities" array and
// iterate it without materializing an intermediate tree for fields bazbom
// never reads (configurations, references, weaknesses).
//
// NVD correlates by CPE, not by ecosystem+package name, so records parsed
// here carry no AffectedPackage entries; they exist purely to enrich an
// advisory already matched via OSV/GHSA with NVD's CVSS score and
// description when the OSV record's own severity is missing, matched by
// CVE ID via Aliases.
package nvd

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/bzerr"
)

const nvdTimeLayout = "2006-01-02T15:04:05"

// ParseAll streams the "vulnerabilities" array of an NVD 2.0 feed document
// and returns one Advisory per CVE entry.
func ParseAll(data []byte) ([]advisory.Advisory, error) {
	root := gjson.GetBytes(data, "vulnerabilities")
	if !root.Exists() {
		return nil, bzerr.ParseFailure("advisory/nvd", fmt.Errorf("missing \"vulnerabilities\" array"))
	}

	var out []advisory.Advisory
	var parseErr error
	root.ForEach(func(_, item gjson.Result) bool {
		cve := item.Get("cve")
		a := advisory.Advisory{
			ID:      cve.Get("id").String(),
			Summary: firstEnglishDescription(cve.Get("descriptions")),
			Source:  "nvd",
		}
		if pub := cve.Get("published").String(); pub != "" {
			if t, err := time.Parse(nvdTimeLayout, pub); err == nil {
				a.Published = t
			}
		}
		if mod := cve.Get("lastModified").String(); mod != "" {
			if t, err := time.Parse(nvdTimeLayout, mod); err == nil {
				a.Modified = t
			}
		}
		if vector, score, ok := bestCVSS(cve.Get("metrics")); ok {
			a.CVSSVector = vector
			a.CVSSScore = score
		}
		out = append(out, a)
		return true
	})
	return out, parseErr
}

func firstEnglishDescription(descriptions gjson.Result) string {
	var out string
	descriptions.ForEach(func(_, d gjson.Result) bool {
		if d.Get("lang").String() == "en" {
			out = d.Get("value").String()
			return false
		}
		return true
	})
	return out
}

// bestCVSS prefers v3.1 over v3.0 over v2, matching the precedence order
// NVD's own UI uses when multiple metric versions are present.
func bestCVSS(metrics gjson.Result) (vector string, score float64, ok bool) {
	for _, key := range []string{"cvssMetricV31", "cvssMetricV30", "cvssMetricV2"} {
		arr := metrics.Get(key)
		if !arr.IsArray() || len(arr.Array()) == 0 {
			continue
		}
		first := arr.Array()[0].Get("cvssData")
		return first.Get("vectorString").String(), first.Get("baseScore").Float(), true
	}
	return "", 0, false
}
