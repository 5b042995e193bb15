package policy

import "fmt"

// Template returns a starter Policy document for the `policy init
// --template <id>` CLI command (spec.md §6.1). Unknown ids are an error
// rather than silently falling back to a default, so a typo in the
// template name surfaces immediately.
func Template(id string) (Policy, error) {
	switch id {
	case "default":
		return defaultTemplate(), nil
	case "strict":
		return strictTemplate(), nil
	default:
		return Policy{}, fmt.Errorf("policy: unknown template %q (known: default, strict)", id)
	}
}

func defaultTemplate() Policy {
	return Policy{
		Name:    "default",
		Version: "1",
		Rules: []Rule{
			{
				Name:      "block-kev-reachable",
				Predicate: `kev && reachable`,
				Action:    ActionBlock,
				Message:   "a KEV-listed vulnerability is reachable from the application's own entry points",
			},
			{
				Name:      "block-critical-reachable",
				Predicate: `severity >= critical && reachable`,
				Action:    ActionBlock,
				Message:   "a critical-severity vulnerability is reachable",
			},
			{
				Name:      "warn-high",
				Predicate: `severity >= high`,
				Action:    ActionWarn,
				Message:   "a high-or-above severity vulnerability was found",
			},
		},
		FailOn: ActionBlock,
	}
}

func strictTemplate() Policy {
	return Policy{
		Name:    "strict",
		Version: "1",
		Rules: []Rule{
			{
				Name:      "block-any-kev",
				Predicate: `kev`,
				Action:    ActionBlock,
				Message:   "a KEV-listed vulnerability was found",
			},
			{
				Name:      "block-medium-or-above",
				Predicate: `severity >= medium`,
				Action:    ActionBlock,
				Message:   "a medium-or-above severity vulnerability was found",
			},
		},
		FailOn: ActionBlock,
	}
}
