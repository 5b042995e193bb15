// Package epss syncs FIRST.org's Exploit Prediction Scoring System feed,
// published as CSV (optionally gzip-compressed) with a leading "#"
// metadata comment line, a header row, then one row per CVE.
package epss

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bazbom/bazbom/bzerr"
)

// Score is one CVE's EPSS score as of a point in time.
type Score struct {
	CVE        string
	EPSS       float64
	Percentile float64
	AsOf       time.Time
}

// Parse decodes an EPSS CSV export. asOf is taken from the feed's leading
// "#model_version:...,score_date:YYYY-MM-DD" comment line when present,
// falling back to the zero time if the comment is absent or unparseable.
func Parse(r io.Reader) ([]Score, error) {
	br := bufio.NewReader(r)
	asOf, err := peekScoreDate(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, bzerr.ParseFailure("advisory/epss", fmt.Errorf("reading header: %w", err))
	}
	cveIdx, epssIdx, pctIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "cve":
			cveIdx = i
		case "epss":
			epssIdx = i
		case "percentile":
			pctIdx = i
		}
	}
	if cveIdx == -1 || epssIdx == -1 {
		return nil, bzerr.ParseFailure("advisory/epss", fmt.Errorf("missing cve/epss columns in header %v", header))
	}

	var out []Score
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, bzerr.ParseFailure("advisory/epss", fmt.Errorf("reading row: %w", err))
		}
		score, err := strconv.ParseFloat(rec[epssIdx], 64)
		if err != nil {
			continue
		}
		s := Score{CVE: rec[cveIdx], EPSS: score, AsOf: asOf}
		if pctIdx != -1 {
			if pct, err := strconv.ParseFloat(rec[pctIdx], 64); err == nil {
				s.Percentile = pct
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func peekScoreDate(br *bufio.Reader) (time.Time, error) {
	peeked, err := br.Peek(256)
	if err != nil && err != io.EOF {
		return time.Time{}, bzerr.ParseFailure("advisory/epss", fmt.Errorf("peeking header comment: %w", err))
	}
	line := string(peeked)
	if !strings.HasPrefix(line, "#") {
		return time.Time{}, nil
	}
	end := strings.IndexByte(line, '\n')
	if end == -1 {
		end = len(line)
	}
	comment := line[:end]
	// Consume exactly the comment line (plus its newline) from the reader.
	if _, err := br.Discard(end); err == nil && end < len(peeked) {
		br.Discard(1) // trailing newline.
	}

	const marker = "score_date:"
	idx := strings.Index(comment, marker)
	if idx == -1 {
		return time.Time{}, nil
	}
	rest := comment[idx+len(marker):]
	if comma := strings.IndexByte(rest, ','); comma != -1 {
		rest = rest[:comma]
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(rest))
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}
