// Package bzerr implements BazBOM's error taxonomy (spec §7): one typed
// error per component family, each carrying an exit code and a block of
// human remediation text. Components return these instead of bare errors so
// the orchestrator and CLI can route them correctly without string
// matching.
package bzerr

import "fmt"

// Exit codes, per spec §6.2.
const (
	ExitSuccess         = 0
	ExitPolicyBlock     = 1
	ExitConfigError     = 2
	ExitAdvisoryStore   = 3
	ExitInternal        = 4
)

// Kind identifies which error family an error belongs to.
type Kind int

// Kind values, one per component family from spec §7.
const (
	KindUnknown Kind = iota
	KindExtractor
	KindAdvisoryStore
	KindReachability
	KindPolicy
	KindSerializer
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindExtractor:
		return "ExtractorError"
	case KindAdvisoryStore:
		return "AdvisoryStoreError"
	case KindReachability:
		return "ReachabilityError"
	case KindPolicy:
		return "PolicyError"
	case KindSerializer:
		return "SerializerError"
	case KindCache:
		return "CacheError"
	default:
		return "UnknownError"
	}
}

// Reason is a stable, per-kind sub-classification, e.g. ToolMissing under
// KindExtractor.
type Reason string

// Extractor reasons.
const (
	ReasonToolMissing   Reason = "ToolMissing"
	ReasonParseFailure  Reason = "ParseFailure"
	ReasonCycle         Reason = "Cycle"
	ReasonTimeout       Reason = "Timeout"
)

// AdvisoryStore reasons.
const (
	ReasonNoSnapshot   Reason = "NoSnapshot"
	ReasonSyncFailure  Reason = "SyncFailure"
	ReasonCorruptIndex Reason = "CorruptIndex"
)

// Reachability reasons.
const (
	ReasonMalformedBytecode Reason = "MalformedBytecode"
	ReasonBudgetExceeded    Reason = "BudgetExceeded"
)

// Policy reasons.
const (
	ReasonSchemaInvalid     Reason = "SchemaInvalid"
	ReasonUnknownPredicate  Reason = "UnknownPredicate"
)

// Serializer reasons.
const (
	ReasonIOFailure             Reason = "IOFailure"
	ReasonCanonicalizeFailure   Reason = "CanonicalizeFailure"
)

// Cache reasons.
const (
	ReasonChecksumMismatch Reason = "ChecksumMismatch"
)

// Error is the common shape of every BazBOM error. Fatal indicates the run
// must stop (as opposed to degrading and continuing, e.g. a reachability
// budget overrun).
type Error struct {
	Kind        Kind
	Reason      Reason
	Module      string // e.g. the build-system module or advisory source this error concerns.
	Cause       error
	Remediation string
	Fatal       bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Reason, e.Module, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// RemediationText returns the actionable block of text shown to the user
// alongside the one-line summary (spec §7).
func (e *Error) RemediationText() string {
	if e.Remediation != "" {
		return e.Remediation
	}
	return "no remediation guidance available; re-run with --verbose for details"
}

// ExitCode maps the error to one of the process exit codes in spec §6.2.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindAdvisoryStore:
		return ExitAdvisoryStore
	case KindPolicy, KindExtractor:
		return ExitConfigError
	case KindSerializer:
		return ExitInternal
	default:
		return ExitInternal
	}
}

// ToolMissing builds the ExtractorError the spec requires when an anchor is
// present but the underlying build tool is absent from PATH.
func ToolMissing(module, tool string, cause error) *Error {
	return &Error{
		Kind:   KindExtractor,
		Reason: ReasonToolMissing,
		Module: module,
		Cause:  cause,
		Fatal:  true,
		Remediation: fmt.Sprintf(
			"%q not found on PATH; install it, or re-scope the scan to exclude %s "+
				"(e.g. via --bazel-targets instead of build-tool invocation)", tool, module),
	}
}

// ParseFailure builds the ExtractorError for a module whose build tool ran
// but produced output the extractor couldn't parse. Not fatal to the whole
// scan — only to this module.
func ParseFailure(module string, cause error) *Error {
	return &Error{
		Kind:   KindExtractor,
		Reason: ReasonParseFailure,
		Module: module,
		Cause:  cause,
		Fatal:  false,
		Remediation: fmt.Sprintf(
			"could not parse dependency resolution output for %s; the module will be skipped "+
				"and the run marked degraded", module),
	}
}

// NoSnapshot builds the fatal AdvisoryStoreError for an offline scan with no
// local advisory snapshot available.
func NoSnapshot(dbPath string) *Error {
	return &Error{
		Kind:   KindAdvisoryStore,
		Reason: ReasonNoSnapshot,
		Cause:  fmt.Errorf("no advisory snapshot at %q", dbPath),
		Fatal:  true,
		Remediation: fmt.Sprintf(
			"run `bazbom db sync --db-path %s` while online before scanning with --offline-mode", dbPath),
	}
}

// SchemaInvalid builds the fatal PolicyError for a policy document that
// fails strict YAML decoding (unknown keys, wrong types).
func SchemaInvalid(module string, cause error) *Error {
	return &Error{
		Kind:   KindPolicy,
		Reason: ReasonSchemaInvalid,
		Module: module,
		Cause:  cause,
		Fatal:  true,
		Remediation: fmt.Sprintf(
			"policy file %q failed validation; run `bazbom policy init --template default` "+
				"to see the expected schema", module),
	}
}

// UnknownPredicate builds the fatal PolicyError for a rule or advanced-engine
// expression that references a field or operator bazbom doesn't recognize.
func UnknownPredicate(module, predicate string) *Error {
	return &Error{
		Kind:   KindPolicy,
		Reason: ReasonUnknownPredicate,
		Module: module,
		Cause:  fmt.Errorf("unrecognized predicate: %q", predicate),
		Fatal:  true,
		Remediation: "check the predicate against the documented Finding field selectors " +
			"(severity, kev, epss, reachable, purl, age_days) and boolean operators (and, or, not)",
	}
}

// BudgetExceeded builds the non-fatal ReachabilityError emitted when the
// analyzer exceeds its memory/time budget; remaining work degrades to
// reachable=unknown rather than failing the scan.
func BudgetExceeded(module string, cause error) *Error {
	return &Error{
		Kind:   KindReachability,
		Reason: ReasonBudgetExceeded,
		Module: module,
		Cause:  cause,
		Fatal:  false,
		Remediation: "reachability analysis exceeded its configured budget; remaining findings " +
			"are reported as reachable=unknown rather than failing the scan",
	}
}
