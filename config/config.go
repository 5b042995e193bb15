// Package config implements BazBOM's layered configuration: built-in
// defaults overridden by environment variables, overridden by a YAML
// profile file, overridden by explicit CLI flags. Ground: teacher's
// `binary/cli` Flags struct plus stdlib `flag`, generalized with a
// profile-file layer decoded the same strict way `policy.LoadPolicy` reads
// a policy document.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bazbom/bazbom/bzerr"
)

// Config is the fully merged set of scan-wide settings a `bazbom` process
// runs with.
type Config struct {
	CacheDir    string
	DBPath      string
	Offline     bool
	MaxMemoryMB int
	Format      string
	PolicyFile  string
}

// Default returns BazBOM's built-in configuration, the weakest layer in
// the merge order.
func Default() Config {
	return Config{
		CacheDir: ".bazbom/cache",
		DBPath:   ".bazbom/advisories.db",
		Offline:  false,
		Format:   "spdx",
	}
}

// Overrides is one configuration layer: every field is a pointer so a
// layer can distinguish "not set here" (nil) from "explicitly set to the
// zero value" (e.g. --offline-mode=false overriding a profile's
// offline: true). Env, LoadProfile and the CLI flag parser each produce
// one Overrides; Merge folds a list of them onto Default() from weakest to
// strongest.
type Overrides struct {
	CacheDir    *string
	DBPath      *string
	Offline     *bool
	MaxMemoryMB *int
	Format      *string
	PolicyFile  *string
}

// profileDoc is the YAML shape of a --profile file; kept distinct from
// Overrides because yaml.v3 can't decode directly into arbitrary pointer
// fields without every key being present, and a profile is free to omit
// any subset of settings.
type profileDoc struct {
	CacheDir    *string `yaml:"cache_dir"`
	DBPath      *string `yaml:"db_path"`
	Offline     *bool   `yaml:"offline"`
	MaxMemoryMB *int    `yaml:"max_memory_mb"`
	Format      *string `yaml:"format"`
	PolicyFile  *string `yaml:"policy_file"`
}

// Env reads the documented BAZBOM_* environment variables into an
// Overrides layer; a variable left unset in the environment leaves the
// corresponding field nil.
func Env(getenv func(string) string) (Overrides, error) {
	var o Overrides
	if v := getenv("BAZBOM_CACHE_DIR"); v != "" {
		o.CacheDir = &v
	}
	if v := getenv("BAZBOM_DB_PATH"); v != "" {
		o.DBPath = &v
	}
	if v := getenv("BAZBOM_OFFLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: BAZBOM_OFFLINE=%q is not a bool: %w", v, err)
		}
		o.Offline = &b
	}
	if v := getenv("BAZBOM_MAX_MEMORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: BAZBOM_MAX_MEMORY=%q is not an integer: %w", v, err)
		}
		o.MaxMemoryMB = &n
	}
	return o, nil
}

// LoadProfile strictly decodes a YAML profile file into an Overrides
// layer, rejecting unknown keys the same way policy.LoadPolicy does, so a
// typo'd profile key fails fast instead of being silently ignored.
func LoadProfile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("config: reading profile %q: %w", path, err)
	}
	var d profileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return Overrides{}, fmt.Errorf("config: profile %q is empty", path)
		}
		return Overrides{}, fmt.Errorf("config: decoding profile %q: %w", path, err)
	}
	return Overrides{
		CacheDir:    d.CacheDir,
		DBPath:      d.DBPath,
		Offline:     d.Offline,
		MaxMemoryMB: d.MaxMemoryMB,
		Format:      d.Format,
		PolicyFile:  d.PolicyFile,
	}, nil
}

// Merge folds layers onto base in order, weakest first: a later layer's
// non-nil field always wins over an earlier one's, per the documented
// precedence CLI flags > profile file > environment > built-in default.
// Call as Merge(Default(), envLayer, profileLayer, cliLayer).
func Merge(base Config, layers ...Overrides) Config {
	out := base
	for _, o := range layers {
		if o.CacheDir != nil {
			out.CacheDir = *o.CacheDir
		}
		if o.DBPath != nil {
			out.DBPath = *o.DBPath
		}
		if o.Offline != nil {
			out.Offline = *o.Offline
		}
		if o.MaxMemoryMB != nil {
			out.MaxMemoryMB = *o.MaxMemoryMB
		}
		if o.Format != nil {
			out.Format = *o.Format
		}
		if o.PolicyFile != nil {
			out.PolicyFile = *o.PolicyFile
		}
	}
	return out
}

// Validate rejects a Config that can never produce a usable scan, e.g. an
// unrecognized output format.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return bzerr.SchemaInvalid("config", fmt.Errorf("db_path must not be empty"))
	}
	if c.Format != "spdx" && c.Format != "cyclonedx" {
		return bzerr.SchemaInvalid("config", fmt.Errorf("format %q must be spdx or cyclonedx", c.Format))
	}
	return nil
}
