package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bazbom/bazbom/bzerr"
)

// LoadPolicy reads and strictly decodes the policy document at path,
// recursively loading and merging any inherited parent policies named in
// its `inherit` list (spec.md §6.4), resolved relative to path's directory.
// The returned Policy's Inherit/MergeStrategy fields are left as originally
// declared for inspection, but Rules/Licenses/Exceptions already reflect
// the fully-merged result.
func LoadPolicy(path string) (Policy, error) {
	return loadPolicy(path, map[string]bool{})
}

func loadPolicy(path string, visiting map[string]bool) (Policy, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Policy{}, bzerr.SchemaInvalid(path, err)
	}
	if visiting[abs] {
		return Policy{}, bzerr.SchemaInvalid(path, fmt.Errorf("inheritance cycle detected at %q", path))
	}
	visiting[abs] = true

	p, err := decodePolicyFile(path)
	if err != nil {
		return Policy{}, err
	}

	merged := p
	dir := filepath.Dir(path)
	for _, parentRef := range p.Inherit {
		parentPath := parentRef
		if !filepath.IsAbs(parentPath) {
			parentPath = filepath.Join(dir, parentPath)
		}
		parent, err := loadPolicy(parentPath, visiting)
		if err != nil {
			return Policy{}, err
		}
		merged = mergePolicies(parent, merged)
	}
	return merged, nil
}

// decodePolicyFile strictly decodes one policy document, rejecting unknown
// keys and multiple documents per file, following the teacher's own
// decodeKnownFields convention for strict YAML validation.
func decodePolicyFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, bzerr.SchemaInvalid(path, err)
	}

	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Policy{}, bzerr.SchemaInvalid(path, fmt.Errorf("empty policy document"))
		}
		return Policy{}, bzerr.SchemaInvalid(path, err)
	}
	var extra interface{}
	if err := dec.Decode(&extra); err == nil {
		return Policy{}, bzerr.SchemaInvalid(path, fmt.Errorf("multiple YAML documents are not supported in a policy file"))
	} else if !errors.Is(err, io.EOF) {
		return Policy{}, bzerr.SchemaInvalid(path, err)
	}
	return p, nil
}

func mergePolicies(parent, child Policy) Policy {
	strategy := child.MergeStrategy
	if strategy == "" {
		strategy = MergeStrict
	}
	return Policy{
		Name:          chooseNonEmpty(child.Name, parent.Name),
		Version:       chooseNonEmpty(child.Version, parent.Version),
		Rules:         mergeRules(parent.Rules, child.Rules, strategy),
		Licenses:      mergeLicenses(parent.Licenses, child.Licenses),
		Exceptions:    mergeExceptions(parent.Exceptions, child.Exceptions),
		Inherit:       child.Inherit,
		MergeStrategy: strategy,
		FailOn:        chooseAction(child.FailOn, parent.FailOn),
	}
}

func chooseNonEmpty(child, parent string) string {
	if child != "" {
		return child
	}
	return parent
}

func chooseAction(child, parent Action) Action {
	if child != "" {
		return child
	}
	return parent
}

// mergeRules combines parent and child rule lists under strategy. Rules
// with the same Name present in both are reconciled per strategy (strict:
// most restrictive action wins; permissive: least restrictive wins);
// rules unique to either side are kept, preserving first-seen order so
// "first match wins" evaluation order survives inheritance. MergeOverride
// discards the parent's rules entirely.
func mergeRules(parentRules, childRules []Rule, strategy MergeStrategy) []Rule {
	if strategy == MergeOverride {
		return childRules
	}
	byName := map[string]Rule{}
	var order []string
	for _, r := range parentRules {
		byName[r.Name] = r
		order = append(order, r.Name)
	}
	for _, r := range childRules {
		if existing, ok := byName[r.Name]; ok {
			byName[r.Name] = reconcileRule(existing, r, strategy)
		} else {
			byName[r.Name] = r
			order = append(order, r.Name)
		}
	}
	merged := make([]Rule, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}

func reconcileRule(parent, child Rule, strategy MergeStrategy) Rule {
	if strategy == MergePermissive {
		if parent.Action.moreSevereThan(child.Action) {
			return child
		}
		return parent
	}
	// MergeStrict: most restrictive wins.
	if child.Action.moreSevereThan(parent.Action) {
		return child
	}
	return parent
}

func mergeLicenses(parent, child LicensePolicy) LicensePolicy {
	merged := LicensePolicy{
		Allow:          unionStrings(parent.Allow, child.Allow),
		Deny:           unionStrings(parent.Deny, child.Deny),
		Warn:           unionStrings(parent.Warn, child.Warn),
		ProjectLicense: chooseNonEmpty(child.ProjectLicense, parent.ProjectLicense),
		Compatibility:  map[string][]string{},
	}
	for k, v := range parent.Compatibility {
		merged.Compatibility[k] = v
	}
	for k, v := range child.Compatibility {
		merged.Compatibility[k] = v
	}
	if len(merged.Compatibility) == 0 {
		merged.Compatibility = nil
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeExceptions(parent, child []Exception) []Exception {
	byID := map[string]Exception{}
	var order []string
	for _, e := range parent {
		byID[e.ID] = e
		order = append(order, e.ID)
	}
	for _, e := range child {
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	merged := make([]Exception, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}
