package advisory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/log"
)

var (
	bucketAdvisories = []byte("advisories")   // key: advisory ID -> json Advisory
	bucketByEcoName  = []byte("by-eco-name")  // key: "eco\x00name\x00id" -> advisory ID
	bucketMeta       = []byte("meta")         // key: source name -> last-sync RFC3339 timestamp
)

// Store is the bbolt-backed advisory snapshot. A Store is safe for
// concurrent readers; writers (Put/PutBatch/RecordSync/ApplyKEV/ApplyEPSS)
// should be serialized by the
// caller, matching bbolt's own single-writer-transaction model.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path. offline
// controls whether Open requires the database to already exist and contain
// at least one synced source: per spec.md §4.B, "--offline MUST fail fast
// with a clear error rather than silently scanning with a stale or missing
// snapshot."
func Open(path string, offline bool) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, bzerr.NoSnapshot(path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAdvisories, bucketByEcoName, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("advisory: initializing buckets: %w", err)
	}

	s := &Store{db: db}
	if offline {
		synced, err := s.HasAnySync()
		if err != nil {
			db.Close()
			return nil, err
		}
		if !synced {
			db.Close()
			return nil, bzerr.NoSnapshot(path)
		}
	}
	return s, nil
}

// Close releases the underlying bbolt database.
func (s *Store) Close() error { return s.db.Close() }

func ecoNameKey(eco, name, id string) []byte {
	return []byte(strings.ToLower(eco) + "\x00" + name + "\x00" + id)
}

func ecoNamePrefix(eco, name string) []byte {
	return []byte(strings.ToLower(eco) + "\x00" + name + "\x00")
}

// Put writes one advisory record, replacing any prior record with the same
// ID, and (re-)indexes it under every AffectedPackage it lists.
func (s *Store) Put(a Advisory) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("advisory: marshal %s: %w", a.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		adv := tx.Bucket(bucketAdvisories)
		idx := tx.Bucket(bucketByEcoName)
		if err := adv.Put([]byte(a.ID), data); err != nil {
			return err
		}
		for _, pkg := range a.Affected {
			if err := idx.Put(ecoNameKey(pkg.Ecosystem, pkg.Name, a.ID), []byte(a.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutBatch writes multiple advisories in a single bbolt transaction, used by
// sync sources pulling a large feed.
func (s *Store) PutBatch(advisories []Advisory) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		adv := tx.Bucket(bucketAdvisories)
		idx := tx.Bucket(bucketByEcoName)
		for _, a := range advisories {
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("advisory: marshal %s: %w", a.ID, err)
			}
			if err := adv.Put([]byte(a.ID), data); err != nil {
				return err
			}
			for _, pkg := range a.Affected {
				if err := idx.Put(ecoNameKey(pkg.Ecosystem, pkg.Name, a.ID), []byte(a.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Get returns the advisory with the given ID, or ok=false if not present.
func (s *Store) Get(id string) (Advisory, bool, error) {
	var a Advisory
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAdvisories).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &a)
	})
	return a, found, err
}

// ByPackage returns every advisory indexed under the given ecosystem+name.
func (s *Store) ByPackage(ecosystem, name string) ([]Advisory, error) {
	var out []Advisory
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketByEcoName)
		adv := tx.Bucket(bucketAdvisories)
		c := idx.Cursor()
		prefix := ecoNamePrefix(ecosystem, name)
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			data := adv.Get(v)
			if data == nil {
				continue
			}
			var a Advisory
			if err := json.Unmarshal(data, &a); err != nil {
				log.Warnf("advisory: corrupt record for id %q: %v", string(v), err)
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// RecordSync timestamps a successful sync of the named source ("osv",
// "nvd", "ghsa", "kev", "epss").
func (s *Store) RecordSync(source string, when time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(source), []byte(when.UTC().Format(time.RFC3339)))
	})
}

// LastSync returns the last recorded sync time for source, or the zero
// time if it has never been synced.
func (s *Store) LastSync(source string) (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(source))
		if data == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, string(data))
		if err != nil {
			return err
		}
		t = parsed
		return nil
	})
	return t, err
}

// HasAnySync reports whether at least one source has ever synced
// successfully, used to fast-fail --offline scans against an empty store.
func (s *Store) HasAnySync() (bool, error) {
	var any bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMeta).Cursor()
		k, _ := c.First()
		any = k != nil
		return nil
	})
	return any, err
}

// SnapshotID is a stable identifier for the store's current contents,
// derived from every source's last-sync timestamp. cmd/bazbom folds this
// into the fingerprint of its cached SARIF findings document, so a
// `db sync` invalidates that cached document.
func (s *Store) SnapshotID() (string, error) {
	pairs := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			pairs = append(pairs, string(k)+"="+string(v))
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("advisory: computing snapshot id: %w", err)
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, "\x00")))
	return hex.EncodeToString(sum[:16]), nil
}
