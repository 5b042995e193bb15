// Package cache implements the content-addressed result cache: a
// BLAKE3-128 fingerprint over a sub-result's canonical inputs, atomic
// filesystem publication, and a bbolt-backed fingerprint index for O(1)
// incremental-scan membership tests, per spec.md §4.F.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"
)

// Kind names the sub-result category a cache entry belongs to, mirroring
// the on-disk layout's sbom/findings/reachability subdirectories.
type Kind string

// Cache entry kinds.
const (
	KindSBOM         Kind = "sbom"
	KindFindings     Kind = "findings"
	KindReachability Kind = "reachability"
)

var indexBucket = []byte("fingerprints")

// Cache is the on-disk, content-addressed sub-result store rooted at a
// cache directory (default .bazbom/cache/). It is safe to delete at any
// time: a deleted cache degrades every subsequent run to a full (cold)
// scan rather than producing incorrect output.
type Cache struct {
	dir   string
	index *bolt.DB
}

// Open opens (creating if necessary) the cache rooted at dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	for _, kind := range []Kind{KindSBOM, KindFindings, KindReachability} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", kind, err)
		}
	}
	db, err := bolt.Open(filepath.Join(dir, "fingerprints.bolt"), 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: opening index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: initializing index: %w", err)
	}
	return &Cache{dir: dir, index: db}, nil
}

// Close releases the cache's index handle.
func (c *Cache) Close() error { return c.index.Close() }

// Fingerprint hashes a sub-result's canonical inputs into a hex BLAKE3-128
// key. Callers build the input string from every value that can change the
// sub-result (canonical graph encoding, advisory snapshot id, analyzer
// semver): spec.md §4.F's reviewer checklist is "every input that can
// change a result MUST be in the fingerprint".
func Fingerprint(inputs ...string) (string, error) {
	h, err := blake3.New(16, nil)
	if err != nil {
		return "", fmt.Errorf("cache: constructing hasher: %w", err)
	}
	for _, in := range inputs {
		if _, err := h.Write([]byte(in)); err != nil {
			return "", fmt.Errorf("cache: hashing input: %w", err)
		}
		// NUL-separate inputs so ("ab","c") and ("a","bc") never collide.
		if _, err := h.Write([]byte{0}); err != nil {
			return "", fmt.Errorf("cache: hashing separator: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Cache) path(kind Kind, key string, ext string) string {
	return filepath.Join(c.dir, string(kind), key+ext)
}

// Has reports whether a sub-result is already cached under key, via the
// bbolt index rather than a filesystem stat, satisfying the O(1)
// incremental-scan membership test.
func (c *Cache) Has(kind Kind, key string) (bool, error) {
	var found bool
	err := c.index.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(indexBucket).Get(indexKey(kind, key)) != nil
		return nil
	})
	return found, err
}

// Get reads a cached sub-result's bytes, or ok=false if absent.
func (c *Cache) Get(kind Kind, key string, ext string) ([]byte, bool, error) {
	has, err := c.Has(kind, key)
	if err != nil || !has {
		return nil, false, err
	}
	data, err := os.ReadFile(c.path(kind, key, ext))
	if os.IsNotExist(err) {
		// Index says present but the file is gone (e.g. cache dir partially
		// cleared by hand); treat as a miss rather than erroring.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: reading %s/%s: %w", kind, key, err)
	}
	return data, true, nil
}

// Put publishes a sub-result under key. The write stages into a `.tmp`
// sibling and renames into place on success, so a reader never observes a
// partially written file (teacher idiom: write-then-rename on the pending
// path, as in the prompt evolver's promote step).
func (c *Cache) Put(kind Kind, key string, ext string, data []byte) error {
	final := c.path(kind, key, ext)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: staging %s/%s: %w", kind, key, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: publishing %s/%s: %w", kind, key, err)
	}
	if err := c.index.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put(indexKey(kind, key), []byte(time.Now().UTC().Format(time.RFC3339)))
	}); err != nil {
		return err
	}
	return c.writeMeta()
}

func indexKey(kind Kind, key string) []byte {
	return []byte(string(kind) + "\x00" + key)
}

// meta is the human-inspectable summary written to meta.json alongside the
// bbolt fingerprint index: counts per kind and the time of the most recent
// write, useful for `bazbom` CLI diagnostics without opening the bolt file.
type meta struct {
	UpdatedAt string       `json:"updated_at"`
	Counts    map[Kind]int `json:"counts"`
}

// writeMeta recomputes and atomically republishes meta.json from the
// current index contents.
func (c *Cache) writeMeta() error {
	counts := map[Kind]int{}
	err := c.index.View(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).ForEach(func(k, _ []byte) error {
			for _, kind := range []Kind{KindSBOM, KindFindings, KindReachability} {
				if hasKindPrefix(k, kind) {
					counts[kind]++
					return nil
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("cache: computing meta counts: %w", err)
	}
	data, err := json.MarshalIndent(meta{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Counts:    counts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshaling meta.json: %w", err)
	}
	data = append(data, '\n')
	final := filepath.Join(c.dir, "meta.json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: staging meta.json: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: publishing meta.json: %w", err)
	}
	return nil
}

func hasKindPrefix(k []byte, kind Kind) bool {
	prefix := string(kind) + "\x00"
	return len(k) >= len(prefix) && string(k[:len(prefix)]) == prefix
}
