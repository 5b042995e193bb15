// Package pkgref provides the canonical PackageRef identifier (spec §3) and
// its Package-URL encoding. It is a thin, BazBOM-domain wrapper around
// package-url-go, the same approach the teacher's purl package takes for
// the wider ecosystem-ref surface.
package pkgref

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
)

// Ecosystem is one of the seven package ecosystems spec §3 names.
type Ecosystem string

// Supported ecosystems.
const (
	Maven     Ecosystem = "maven"
	NPM       Ecosystem = "npm"
	PyPI      Ecosystem = "pypi"
	Go        Ecosystem = "go"
	Cargo     Ecosystem = "cargo"
	RubyGems  Ecosystem = "rubygems"
	Composer  Ecosystem = "composer"
)

var purlTypeByEcosystem = map[Ecosystem]string{
	Maven:    packageurl.TypeMaven,
	NPM:      packageurl.TypeNPM,
	PyPI:     packageurl.TypePyPi,
	Go:       packageurl.TypeGolang,
	Cargo:    packageurl.TypeCargo,
	RubyGems: packageurl.TypeGem,
	Composer: packageurl.TypeComposer,
}

var ecosystemByPurlType = func() map[string]Ecosystem {
	m := make(map[string]Ecosystem, len(purlTypeByEcosystem))
	for eco, t := range purlTypeByEcosystem {
		m[t] = eco
	}
	return m
}()

// Valid reports whether eco (lower-cased) is one of the seven supported
// ecosystems.
func (e Ecosystem) Valid() bool {
	_, ok := purlTypeByEcosystem[Ecosystem(strings.ToLower(string(e)))]
	return ok
}

// Ref is the canonical identifier for a software artifact (spec §3
// "PackageRef"). Equality is case-sensitive on every field except
// Ecosystem, which is lower-case normalized.
type Ref struct {
	Ecosystem Ecosystem
	Namespace string // e.g. Maven groupId; optional.
	Name      string
	Version   string
}

// Validate enforces the PackageRef invariant from spec §3: every ref handed
// to downstream stages must have a non-empty Name and Version, and a known
// ecosystem.
func (r Ref) Validate() error {
	eco := Ecosystem(strings.ToLower(string(r.Ecosystem)))
	if !eco.Valid() {
		return fmt.Errorf("pkgref: unknown ecosystem %q", r.Ecosystem)
	}
	if r.Name == "" {
		return fmt.Errorf("pkgref: empty name")
	}
	if r.Version == "" {
		return fmt.Errorf("pkgref: empty version for %s/%s", r.Ecosystem, r.Name)
	}
	return nil
}

// Normalized returns a copy of r with Ecosystem lower-cased.
func (r Ref) Normalized() Ref {
	r.Ecosystem = Ecosystem(strings.ToLower(string(r.Ecosystem)))
	return r
}

// Equal reports whether r and o refer to the same artifact, per spec §3's
// equality rule (ecosystem compared case-insensitively, everything else
// case-sensitively).
func (r Ref) Equal(o Ref) bool {
	return strings.EqualFold(string(r.Ecosystem), string(o.Ecosystem)) &&
		r.Namespace == o.Namespace && r.Name == o.Name && r.Version == o.Version
}

// PURL renders r as its canonical Package-URL string form.
func (r Ref) PURL() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	eco := Ecosystem(strings.ToLower(string(r.Ecosystem)))
	t := purlTypeByEcosystem[eco]
	p := packageurl.NewPackageURL(t, r.Namespace, r.Name, r.Version, nil, "")
	return p.ToString(), nil
}

// MustPURL is like PURL but panics on error; intended for call sites that
// have already validated r (e.g. serializers operating on a Finding set
// that's already passed through the orchestrator).
func (r Ref) MustPURL() string {
	s, err := r.PURL()
	if err != nil {
		panic(err)
	}
	return s
}

// FromPURL parses a PURL string into a Ref.
func FromPURL(purl string) (Ref, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return Ref{}, fmt.Errorf("pkgref: decode PURL %q: %w", purl, err)
	}
	eco, ok := ecosystemByPurlType[p.Type]
	if !ok {
		return Ref{}, fmt.Errorf("pkgref: unsupported PURL type %q", p.Type)
	}
	return Ref{
		Ecosystem: eco,
		Namespace: p.Namespace,
		Name:      p.Name,
		Version:   p.Version,
	}, nil
}

// NewMaven builds a Ref from the conventional "groupId:artifactId" coordinate
// form that Maven, Gradle and the other JVM build tools emit.
func NewMaven(coordinate, version string) (Ref, error) {
	group, artifact, ok := strings.Cut(coordinate, ":")
	if !ok {
		return Ref{}, fmt.Errorf("pkgref: malformed maven coordinate %q, want group:artifact", coordinate)
	}
	return Ref{Ecosystem: Maven, Namespace: group, Name: artifact, Version: version}, nil
}

// Coordinate returns the "groupId:artifactId" form for Maven refs, or just
// Name for ecosystems without a namespace/name split convention.
func (r Ref) Coordinate() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + ":" + r.Name
}

// String implements fmt.Stringer by returning the PURL form, or a
// best-effort fallback if the ref doesn't yet validate (useful while
// building up a Ref during extraction, before the version is known).
func (r Ref) String() string {
	if s, err := r.PURL(); err == nil {
		return s
	}
	return fmt.Sprintf("%s/%s@%s", r.Ecosystem, r.Name, r.Version)
}
