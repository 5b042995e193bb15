package nvd_test

import (
	"testing"

	"github.com/bazbom/bazbom/advisory/nvd"
)

const sampleFeed = `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2021-44228",
        "published": "2021-12-10T10:15:00",
        "lastModified": "2021-12-14T17:08:00",
        "descriptions": [
          {"lang": "es", "value": "no en ingles"},
          {"lang": "en", "value": "Apache Log4j2 JNDI lookup RCE"}
        ],
        "metrics": {
          "cvssMetricV31": [
            {"cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", "baseScore": 10.0}}
          ]
        }
      }
    }
  ]
}`

func TestParseAllExtractsEnglishDescriptionAndCVSS(t *testing.T) {
	advisories, err := nvd.ParseAll([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("expected 1 advisory, got %d", len(advisories))
	}
	a := advisories[0]
	if a.ID != "CVE-2021-44228" {
		t.Fatalf("ID = %q", a.ID)
	}
	if a.Summary != "Apache Log4j2 JNDI lookup RCE" {
		t.Fatalf("expected the English description, got %q", a.Summary)
	}
	if a.CVSSScore != 10.0 {
		t.Fatalf("CVSSScore = %v", a.CVSSScore)
	}
	if a.Source != "nvd" {
		t.Fatalf("Source = %q", a.Source)
	}
}

func TestParseAllRejectsMissingArray(t *testing.T) {
	if _, err := nvd.ParseAll([]byte(`{"foo":"bar"}`)); err == nil {
		t.Fatalf("expected an error for a feed document with no vulnerabilities array")
	}
}
