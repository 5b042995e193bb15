package advisory

import (
	"strings"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
)

// ScoreVector parses a CVSS vector string (v2, v3.0 or v3.1) and returns its
// base score plus the derived Severity band, per spec.md §3's severity
// mapping (none/low/medium/high/critical on CVSS's standard boundaries).
func ScoreVector(vector string) (float64, Severity, error) {
	switch {
	case strings.HasPrefix(vector, "CVSS:3.1"):
		v, err := gocvss31.ParseVector(vector)
		if err != nil {
			return 0, SeverityNone, err
		}
		score := v.BaseScore()
		return score, severityForScore(score), nil
	case strings.HasPrefix(vector, "CVSS:3.0"):
		v, err := gocvss30.ParseVector(vector)
		if err != nil {
			return 0, SeverityNone, err
		}
		score := v.BaseScore()
		return score, severityForScore(score), nil
	default:
		v, err := gocvss20.ParseVector(vector)
		if err != nil {
			return 0, SeverityNone, err
		}
		score := v.BaseScore()
		return score, severityForScore(score), nil
	}
}

// severityForScore applies the standard CVSS v3 severity bands (also used
// as a reasonable fallback for v2 scores, which only the FIRST.org
// qualitative mapping bothers distinguishing further).
func severityForScore(score float64) Severity {
	switch {
	case score == 0:
		return SeverityNone
	case score < 4.0:
		return SeverityLow
	case score < 7.0:
		return SeverityMedium
	case score < 9.0:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
