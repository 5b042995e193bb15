package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/advisory/epss"
	"github.com/bazbom/bazbom/advisory/ghsa"
	"github.com/bazbom/bazbom/advisory/kev"
	"github.com/bazbom/bazbom/advisory/nvd"
	"github.com/bazbom/bazbom/advisory/osv"
	"github.com/bazbom/bazbom/bzerr"
	"github.com/bazbom/bazbom/config"
	"github.com/bazbom/bazbom/log"
)

// runDBSync implements `bazbom db sync`. Every advisory source is read from
// a local file or directory rather than fetched over the network: the
// advisory/{osv,ghsa,nvd,kev,epss} packages are pure parsers with no fetch
// code of their own, so the operator (or a separate scheduled job) is
// responsible for placing a fresh export on disk before running sync.
func runDBSync(args []string) int {
	fs := flag.NewFlagSet("db sync", flag.ContinueOnError)
	dbPath := fs.String("db-path", "", "path to the advisory store (overrides config/profile/env)")
	osvDir := fs.String("osv-dir", "", "directory of OSV vulnerability JSON files")
	ghsaDir := fs.String("ghsa-dir", "", "directory of GHSA advisory JSON files")
	nvdFile := fs.String("nvd-file", "", "path to an NVD CVE API JSON export")
	kevFile := fs.String("kev-file", "", "path to CISA's KEV catalog JSON export")
	epssFile := fs.String("epss-file", "", "path to a FIRST.org EPSS CSV export")
	epssStaleDays := fs.Int("epss-stale-days", 30, "age in days after which an EPSS score is marked stale rather than dropped")
	if err := fs.Parse(args); err != nil {
		return bzerr.ExitConfigError
	}

	overrides := config.Overrides{}
	if *dbPath != "" {
		overrides.DBPath = dbPath
	}
	envLayer, err := config.Env(os.Getenv)
	if err != nil {
		log.Errorf("db sync: %v", err)
		return bzerr.ExitConfigError
	}
	cfg := config.Merge(config.Default(), envLayer, overrides)

	store, err := advisory.Open(cfg.DBPath, false)
	if err != nil {
		log.Errorf("db sync: opening advisory store: %v", err)
		return exitFor(err)
	}
	defer store.Close()

	synced := false

	if *osvDir != "" {
		n, err := syncOSVDir(store, *osvDir)
		if err != nil {
			log.Errorf("db sync: osv: %v", err)
			return exitFor(err)
		}
		log.Infof("db sync: osv: wrote %d advisories", n)
		if err := store.RecordSync("osv", time.Now()); err != nil {
			log.Errorf("db sync: recording osv sync: %v", err)
			return bzerr.ExitInternal
		}
		synced = true
	}

	if *ghsaDir != "" {
		n, err := syncGHSADir(store, *ghsaDir)
		if err != nil {
			log.Errorf("db sync: ghsa: %v", err)
			return exitFor(err)
		}
		log.Infof("db sync: ghsa: wrote %d advisories", n)
		if err := store.RecordSync("ghsa", time.Now()); err != nil {
			log.Errorf("db sync: recording ghsa sync: %v", err)
			return bzerr.ExitInternal
		}
		synced = true
	}

	if *nvdFile != "" {
		data, err := os.ReadFile(*nvdFile)
		if err != nil {
			log.Errorf("db sync: nvd: %v", err)
			return bzerr.ExitConfigError
		}
		advisories, err := nvd.ParseAll(data)
		if err != nil {
			log.Errorf("db sync: nvd: %v", err)
			return exitFor(err)
		}
		if err := store.PutBatch(advisories); err != nil {
			log.Errorf("db sync: nvd: writing advisories: %v", err)
			return bzerr.ExitInternal
		}
		log.Infof("db sync: nvd: wrote %d advisories", len(advisories))
		if err := store.RecordSync("nvd", time.Now()); err != nil {
			log.Errorf("db sync: recording nvd sync: %v", err)
			return bzerr.ExitInternal
		}
		synced = true
	}

	if *kevFile != "" {
		data, err := os.ReadFile(*kevFile)
		if err != nil {
			log.Errorf("db sync: kev: %v", err)
			return bzerr.ExitConfigError
		}
		entries, err := kev.Parse(data)
		if err != nil {
			log.Errorf("db sync: kev: %v", err)
			return exitFor(err)
		}
		listed := make(map[string]bool, len(entries))
		for cve := range entries {
			listed[cve] = true
		}
		if err := store.ApplyKEV(listed); err != nil {
			log.Errorf("db sync: kev: applying catalog: %v", err)
			return bzerr.ExitInternal
		}
		log.Infof("db sync: kev: applied %d listed CVEs", len(listed))
		if err := store.RecordSync("kev", time.Now()); err != nil {
			log.Errorf("db sync: recording kev sync: %v", err)
			return bzerr.ExitInternal
		}
		synced = true
	}

	if *epssFile != "" {
		f, err := os.Open(*epssFile)
		if err != nil {
			log.Errorf("db sync: epss: %v", err)
			return bzerr.ExitConfigError
		}
		scores, err := epss.Parse(f)
		f.Close()
		if err != nil {
			log.Errorf("db sync: epss: %v", err)
			return exitFor(err)
		}
		updates := make([]advisory.EPSSUpdate, len(scores))
		for i, s := range scores {
			updates[i] = advisory.EPSSUpdate{CVE: s.CVE, Score: s.EPSS, Percentile: s.Percentile, AsOf: s.AsOf}
		}
		staleAfter := time.Now().AddDate(0, 0, -*epssStaleDays)
		if err := store.ApplyEPSS(updates, staleAfter); err != nil {
			log.Errorf("db sync: epss: applying scores: %v", err)
			return bzerr.ExitInternal
		}
		log.Infof("db sync: epss: applied %d scores", len(updates))
		if err := store.RecordSync("epss", time.Now()); err != nil {
			log.Errorf("db sync: recording epss sync: %v", err)
			return bzerr.ExitInternal
		}
		synced = true
	}

	if !synced {
		fmt.Fprintln(os.Stderr, "db sync: no source flags given; nothing to do (see -h)")
		return bzerr.ExitConfigError
	}
	return bzerr.ExitSuccess
}

func syncOSVDir(store *advisory.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var advisories []advisory.Advisory
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return 0, err
		}
		a, err := osv.ParseOne(data)
		if err != nil {
			log.Warnf("db sync: osv: skipping %s: %v", e.Name(), err)
			continue
		}
		advisories = append(advisories, a)
	}
	if err := store.PutBatch(advisories); err != nil {
		return 0, err
	}
	return len(advisories), nil
}

func syncGHSADir(store *advisory.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var advisories []advisory.Advisory
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return 0, err
		}
		a, err := ghsa.ParseOne(bytes.TrimSpace(data))
		if err != nil {
			log.Warnf("db sync: ghsa: skipping %s: %v", e.Name(), err)
			continue
		}
		advisories = append(advisories, a)
	}
	if err := store.PutBatch(advisories); err != nil {
		return 0, err
	}
	return len(advisories), nil
}
