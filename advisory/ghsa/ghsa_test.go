package ghsa_test

import (
	"testing"

	"github.com/bazbom/bazbom/advisory/ghsa"
)

const sampleGHSA = `{
  "id": "GHSA-jfh8-c2jp-5v3q",
  "summary": "Remote code execution in Log4j 2.x",
  "affected": [
    {
      "package": {"ecosystem": "Maven", "name": "org.apache.logging.log4j:log4j-core"},
      "ranges": [{"type": "ECOSYSTEM", "events": [{"introduced": "2.0"}, {"fixed": "2.15.0"}]}]
    }
  ]
}`

func TestParseOneTagsSourceAsGHSA(t *testing.T) {
	a, err := ghsa.ParseOne([]byte(sampleGHSA))
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
	if a.Source != "ghsa" {
		t.Fatalf("expected Source=ghsa, got %q", a.Source)
	}
	if a.ID != "GHSA-jfh8-c2jp-5v3q" {
		t.Fatalf("ID = %q", a.ID)
	}
	if len(a.Affected) != 1 || a.Affected[0].Name != "org.apache.logging.log4j:log4j-core" {
		t.Fatalf("unexpected affected list: %+v", a.Affected)
	}
}
