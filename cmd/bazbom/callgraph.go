package main

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bazbom/bazbom/reachability/callgraph"
	"github.com/bazbom/bazbom/reachability/classfile"
)

// buildCallGraph loads every .class file found directly on disk or inside a
// .jar under dirs, builds a CHA call graph from them, and seeds it with
// every "main(String[])" method found, the conventional JVM application
// entry point. It returns an error (rather than a partial graph) if dirs is
// empty or nothing resolvable as a class was found, since a reachability
// pass over zero classes would otherwise silently report every finding as
// unreachable instead of unknown.
func buildCallGraph(dirs []string) (*callgraph.Graph, []callgraph.MethodID, error) {
	if len(dirs) == 0 {
		return nil, nil, fmt.Errorf("no --classes-dir given")
	}

	classes := map[string]*classfile.Class{}
	for _, dir := range dirs {
		if err := loadClassesFromDir(dir, classes); err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", dir, err)
		}
	}
	if len(classes) == 0 {
		return nil, nil, fmt.Errorf("no .class files found under %v", dirs)
	}

	g := callgraph.New()
	classOf := func(name string) *classfile.Class { return classes[name] }
	for _, c := range classes {
		callgraph.LoadClass(g, c, callgraph.ModeReachable, classOf)
	}

	var seeds []callgraph.MethodID
	for _, c := range classes {
		for _, m := range c.Methods {
			if m.Name != "main" || m.Descriptor != "([Ljava/lang/String;)V" {
				continue
			}
			key := callgraph.MethodKey{Class: c.ThisClass, Name: m.Name, Descriptor: m.Descriptor}
			id, ok := g.Lookup(key)
			if !ok {
				continue
			}
			g.MarkEntryPoint(id)
			seeds = append(seeds, id)
		}
	}

	return g, seeds, nil
}

// loadClassesFromDir parses every .class file reachable under root, either
// loose on disk or inside a .jar, keyed by internal class name (e.g.
// "com/example/Foo").
func loadClassesFromDir(root string, into map[string]*classfile.Class) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".class"):
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			c, err := classfile.Parse(f)
			if err != nil {
				return nil // skip unparseable files rather than fail the whole walk.
			}
			into[c.ThisClass] = c
		case strings.HasSuffix(path, ".jar"):
			return loadClassesFromJar(path, into)
		}
		return nil
	})
}

func loadClassesFromJar(path string, into map[string]*classfile.Class) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil // not a valid jar; skip rather than fail the whole scan.
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		c, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			continue
		}
		into[c.ThisClass] = c
	}
	return nil
}
