// Package osv syncs and parses OSV-format advisory records (the schema
// osv.dev, GHSA, and PyPA all publish in) into bazbom's normalized
// advisory.Advisory, using the upstream-maintained Go bindings for the
// schema rather than hand-decoding it.
package osv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ossf/osv-schema/bindings/go/osvschema"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/bzerr"
)

// ParseAll decodes a newline-delimited or single-array OSV export (the
// format osv.dev's zip exports and the GHSA advisory-database repo both
// use) into normalized Advisory records.
func ParseAll(r io.Reader) ([]advisory.Advisory, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		if b != ' ' && b != '\t' && b != '\r' && b != '\n' {
			br.UnreadByte()
			break
		}
	}
	dec := json.NewDecoder(br)
	if first, err := br.Peek(1); err == nil && first[0] == '[' {
		dec.Token() // consume the leading '['; an NDJSON stream has none.
	}

	var out []advisory.Advisory
	for dec.More() {
		var v osvschema.Vulnerability
		if err := dec.Decode(&v); err != nil {
			return nil, bzerr.ParseFailure("advisory/osv", fmt.Errorf("decode OSV record: %w", err))
		}
		out = append(out, fromOSV(v))
	}
	return out, nil
}

// ParseOne decodes a single OSV JSON document (the shape each
// osv.dev/api/v1/vulns/<ID> response and GHSA's per-advisory file use).
func ParseOne(data []byte) (advisory.Advisory, error) {
	var v osvschema.Vulnerability
	if err := json.Unmarshal(data, &v); err != nil {
		return advisory.Advisory{}, bzerr.ParseFailure("advisory/osv", fmt.Errorf("decode OSV record: %w", err))
	}
	return fromOSV(v), nil
}

func fromOSV(v osvschema.Vulnerability) advisory.Advisory {
	a := advisory.Advisory{
		ID:        v.ID,
		Aliases:   v.Aliases,
		Summary:   v.Summary,
		Details:   v.Details,
		Published: v.Published,
		Modified:  v.Modified,
		Source:    "osv",
	}
	if v.Withdrawn != nil {
		a.Withdrawn = *v.Withdrawn
	}
	for _, sev := range v.Severity {
		if strings.EqualFold(string(sev.Type), "CVSS_V3") || strings.EqualFold(string(sev.Type), "CVSS_V2") {
			a.CVSSVector = sev.Score
		}
	}
	for _, aff := range v.Affected {
		pkg := advisory.AffectedPackage{
			Ecosystem: normalizeEcosystem(string(aff.Package.Ecosystem)),
			Name:      aff.Package.Name,
			Versions:  aff.Versions,
		}
		for _, rg := range aff.Ranges {
			pkg.Ranges = append(pkg.Ranges, rangeFromEvents(rg.Events))
		}
		a.Affected = append(a.Affected, pkg)
	}
	return a
}

func rangeFromEvents(events []osvschema.Event) advisory.AffectedRange {
	var r advisory.AffectedRange
	for _, ev := range events {
		switch {
		case ev.Introduced != "":
			r.Introduced = ev.Introduced
		case ev.Fixed != "":
			r.Fixed = ev.Fixed
		case ev.LastAffected != "":
			r.LastAffected = ev.LastAffected
		}
	}
	return r
}

// normalizeEcosystem maps OSV's capitalized ecosystem names ("Maven", "PyPI",
// "npm") onto bazbom's lowercase pkgref.Ecosystem strings.
func normalizeEcosystem(osvEco string) string {
	return strings.ToLower(strings.SplitN(osvEco, ":", 2)[0])
}

// ParseCVSSScore extracts a numeric base score from a CVSS vector string
// using the 0-10 scale both CVSS v2 and v3 share for their final score,
// when the upstream record carries a precomputed score rather than only a
// vector (some OSV sources embed "CVSS:3.1/.../<score>" style summaries;
// callers needing the authoritative parse should use
// github.com/pandatix/go-cvss against CVSSVector instead).
func ParseCVSSScore(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("advisory/osv: empty score")
	}
	return strconv.ParseFloat(raw, 64)
}
