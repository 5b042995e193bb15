package pkgref_test

import (
	"testing"

	"github.com/bazbom/bazbom/pkgref"
)

func TestPURLRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ref  pkgref.Ref
	}{
		{"maven", pkgref.Ref{Ecosystem: pkgref.Maven, Namespace: "org.apache.logging.log4j", Name: "log4j-core", Version: "2.14.1"}},
		{"npm", pkgref.Ref{Ecosystem: pkgref.NPM, Name: "lodash", Version: "4.17.21"}},
		{"pypi", pkgref.Ref{Ecosystem: pkgref.PyPI, Name: "requests", Version: "2.31.0"}},
		{"cargo", pkgref.Ref{Ecosystem: pkgref.Cargo, Name: "serde", Version: "1.0.193"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			purl, err := tc.ref.PURL()
			if err != nil {
				t.Fatalf("PURL() error: %v", err)
			}
			got, err := pkgref.FromPURL(purl)
			if err != nil {
				t.Fatalf("FromPURL(%q) error: %v", purl, err)
			}
			if !got.Equal(tc.ref) {
				t.Fatalf("round-trip mismatch: want %+v, got %+v (purl=%s)", tc.ref, got, purl)
			}
		})
	}
}

func TestValidateRejectsEmptyNameOrVersion(t *testing.T) {
	cases := []pkgref.Ref{
		{Ecosystem: pkgref.Maven, Namespace: "com.example", Name: "", Version: "1.0"},
		{Ecosystem: pkgref.Maven, Namespace: "com.example", Name: "widget", Version: ""},
		{Ecosystem: "cobol", Name: "widget", Version: "1.0"},
	}
	for _, r := range cases {
		if err := r.Validate(); err == nil {
			t.Errorf("expected Validate() to reject %+v", r)
		}
	}
}

func TestEcosystemEqualityIsCaseInsensitive(t *testing.T) {
	a := pkgref.Ref{Ecosystem: "Maven", Namespace: "g", Name: "a", Version: "1"}
	b := pkgref.Ref{Ecosystem: "maven", Namespace: "g", Name: "a", Version: "1"}
	if !a.Equal(b) {
		t.Fatal("expected ecosystem comparison to be case-insensitive")
	}
	c := pkgref.Ref{Ecosystem: "maven", Namespace: "G", Name: "a", Version: "1"}
	if a.Equal(c) {
		t.Fatal("expected namespace comparison to be case-sensitive")
	}
}

func TestNewMavenAndCoordinate(t *testing.T) {
	r, err := pkgref.NewMaven("org.apache.commons:commons-text", "1.9")
	if err != nil {
		t.Fatalf("NewMaven error: %v", err)
	}
	if r.Coordinate() != "org.apache.commons:commons-text" {
		t.Fatalf("Coordinate() = %q", r.Coordinate())
	}
	if _, err := pkgref.NewMaven("no-colon-here", "1.0"); err == nil {
		t.Fatal("expected error for malformed coordinate")
	}
}
