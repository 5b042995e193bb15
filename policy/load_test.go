package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bazbom/bazbom/policy"
)

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadPolicyRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, "bad.yaml", `
name: bad
version: "1"
typo_field: oops
rules: []
`)
	if _, err := policy.LoadPolicy(path); err == nil {
		t.Fatalf("expected strict decoding to reject an unknown top-level key")
	}
}

func TestLoadPolicyMergesInheritedStrict(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "base.yaml", `
name: base
version: "1"
rules:
  - name: warn-high
    predicate: "severity >= high"
    action: warn
`)
	childPath := writePolicyFile(t, dir, "child.yaml", `
name: child
version: "1"
inherit: [base.yaml]
merge_strategy: strict
rules:
  - name: warn-high
    predicate: "severity >= high"
    action: block
  - name: warn-medium
    predicate: "severity >= medium"
    action: warn
`)

	merged, err := policy.LoadPolicy(childPath)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if merged.Name != "child" {
		t.Fatalf("expected child's name to win, got %q", merged.Name)
	}
	if len(merged.Rules) != 2 {
		t.Fatalf("expected 2 merged rules (warn-high reconciled, warn-medium appended), got %d: %+v", len(merged.Rules), merged.Rules)
	}
	for _, r := range merged.Rules {
		if r.Name == "warn-high" && r.Action != policy.ActionBlock {
			t.Fatalf("expected strict merge to keep the more restrictive action (block) for warn-high, got %v", r.Action)
		}
	}
}

func TestLoadPolicyOverrideDiscardsParentRules(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "base.yaml", `
name: base
version: "1"
rules:
  - name: warn-high
    predicate: "severity >= high"
    action: warn
`)
	childPath := writePolicyFile(t, dir, "child.yaml", `
name: child
version: "1"
inherit: [base.yaml]
merge_strategy: override
rules:
  - name: only-child-rule
    predicate: "kev"
    action: block
`)

	merged, err := policy.LoadPolicy(childPath)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(merged.Rules) != 1 || merged.Rules[0].Name != "only-child-rule" {
		t.Fatalf("expected override to discard the parent's rules entirely, got %+v", merged.Rules)
	}
}

func TestTemplateReturnsKnownStarterPolicies(t *testing.T) {
	p, err := policy.Template("default")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if len(p.Rules) == 0 {
		t.Fatalf("expected the default template to have rules")
	}
	if _, err := policy.Template("nonexistent"); err == nil {
		t.Fatalf("expected an unknown template id to error")
	}
}
