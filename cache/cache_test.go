package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bazbom/bazbom/cache"
)

func openTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := cache.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFingerprintIsDeterministicAndInputOrderSensitive(t *testing.T) {
	a, err := cache.Fingerprint("graph-encoding", "snapshot-1", "v1.0.0")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := cache.Fingerprint("graph-encoding", "snapshot-1", "v1.0.0")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Errorf("Fingerprint not deterministic: %q vs %q", a, b)
	}
	c, err := cache.Fingerprint("snapshot-1", "graph-encoding", "v1.0.0")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a == c {
		t.Error("Fingerprint should be sensitive to input order")
	}
}

func TestFingerprintDistinguishesConcatenationBoundaries(t *testing.T) {
	a, err := cache.Fingerprint("ab", "c")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := cache.Fingerprint("a", "bc")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a == b {
		t.Error("Fingerprint(\"ab\",\"c\") should differ from Fingerprint(\"a\",\"bc\")")
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	c := openTestCache(t)
	key, err := cache.Fingerprint("input-a")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if err := c.Put(cache.KindSBOM, key, ".spdx.json", []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	has, err := c.Has(cache.KindSBOM, key)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("expected Has to report true after Put")
	}
	data, ok, err := c.Get(cache.KindSBOM, key, ".spdx.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected Get to find the published entry")
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("Get data = %q, want the published bytes", data)
	}
}

func TestGetMissReturnsFalseWithoutError(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get(cache.KindFindings, "does-not-exist", ".sarif")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected a miss for an unpublished key")
	}
}

func TestPutLeavesNoTmpFileBehind(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	key, _ := cache.Fingerprint("input-b")
	if err := c.Put(cache.KindReachability, key, ".json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, string(cache.KindReachability), key+".json.tmp")); !os.IsNotExist(err) {
		t.Errorf("expected no leftover .tmp file, stat err = %v", err)
	}
}

func TestPutWritesMetaJSON(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	key, _ := cache.Fingerprint("input-c")
	if err := c.Put(cache.KindSBOM, key, ".spdx.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "meta.json")); err != nil {
		t.Errorf("expected meta.json to exist: %v", err)
	}
}
