package advisory_test

import (
	"testing"
	"time"

	"github.com/bazbom/bazbom/advisory"
)

func TestApplyKEVMatchesByAlias(t *testing.T) {
	s := openTestStore(t, false)
	a := advisory.Advisory{ID: "GHSA-jfh8-c2jp-5v3q", Aliases: []string{"CVE-2021-44228"}}
	if err := s.Put(a); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.ApplyKEV(map[string]bool{"CVE-2021-44228": true}); err != nil {
		t.Fatalf("ApplyKEV: %v", err)
	}
	got, found, err := s.Get(a.ID)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if !got.KEVListed {
		t.Fatalf("expected KEVListed=true after matching by alias")
	}
}

func TestApplyEPSSMarksStaleScores(t *testing.T) {
	s := openTestStore(t, false)
	a := advisory.Advisory{ID: "CVE-2021-44228"}
	if err := s.Put(a); err != nil {
		t.Fatalf("Put: %v", err)
	}
	oldAsOf := time.Now().Add(-90 * 24 * time.Hour)
	if err := s.ApplyEPSS([]advisory.EPSSUpdate{{CVE: a.ID, Score: 0.9, AsOf: oldAsOf}}, time.Now().Add(-30*24*time.Hour)); err != nil {
		t.Fatalf("ApplyEPSS: %v", err)
	}
	got, _, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EPSSScore != 0.9 {
		t.Fatalf("EPSSScore = %v", got.EPSSScore)
	}
	if !got.EPSSStale {
		t.Fatalf("expected the 90-day-old EPSS score to be marked stale")
	}
}
