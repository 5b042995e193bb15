package advisory

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ApplyKEV sets KEVListed=true on every stored advisory whose ID or one of
// its Aliases appears in listedCVEIDs. Unlike OSV/GHSA/NVD, KEV carries no
// affected-package data of its own, so it only ever enriches records
// another source has already written.
func (s *Store) ApplyKEV(listedCVEIDs map[string]bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		adv := tx.Bucket(bucketAdvisories)
		return adv.ForEach(func(k, v []byte) error {
			var a Advisory
			if err := json.Unmarshal(v, &a); err != nil {
				return nil // corrupt record; leave it for the next full sync to replace.
			}
			if !listedCVEIDs[a.ID] && !anyAliasListed(a.Aliases, listedCVEIDs) {
				return nil
			}
			a.KEVListed = true
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("advisory: marshal %s: %w", a.ID, err)
			}
			return adv.Put(k, data)
		})
	})
}

func anyAliasListed(aliases []string, listed map[string]bool) bool {
	for _, alias := range aliases {
		if listed[alias] {
			return true
		}
	}
	return false
}

// EPSSUpdate is one CVE's EPSS score to merge into the store.
type EPSSUpdate struct {
	CVE        string
	Score      float64
	Percentile float64
	AsOf       time.Time
}

// ApplyEPSS merges EPSS scores into matching stored advisories (by ID or
// alias) and marks any advisory whose EPSSAsOf predates staleAfter as
// EPSSStale, per spec.md's resolved Open Question to retain-and-annotate
// rather than drop aging EPSS data.
func (s *Store) ApplyEPSS(updates []EPSSUpdate, staleAfter time.Time) error {
	byCVE := make(map[string]EPSSUpdate, len(updates))
	for _, u := range updates {
		byCVE[u.CVE] = u
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		adv := tx.Bucket(bucketAdvisories)
		return adv.ForEach(func(k, v []byte) error {
			var a Advisory
			if err := json.Unmarshal(v, &a); err != nil {
				return nil
			}
			u, ok := byCVE[a.ID]
			if !ok {
				for _, alias := range a.Aliases {
					if cand, ok2 := byCVE[alias]; ok2 {
						u, ok = cand, true
						break
					}
				}
			}
			if !ok {
				if !a.EPSSAsOf.IsZero() {
					a.EPSSStale = a.EPSSAsOf.Before(staleAfter)
					data, err := json.Marshal(a)
					if err != nil {
						return err
					}
					return adv.Put(k, data)
				}
				return nil
			}
			a.EPSSScore = u.Score
			a.EPSSPercentile = u.Percentile
			a.EPSSAsOf = u.AsOf
			a.EPSSStale = u.AsOf.Before(staleAfter)
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("advisory: marshal %s: %w", a.ID, err)
			}
			return adv.Put(k, data)
		})
	})
}
