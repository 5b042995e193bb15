package main

import (
	"errors"
	"testing"

	"github.com/bazbom/bazbom/bzerr"
)

func TestRunUnknownCommand(t *testing.T) {
	if got := run([]string{"frobnicate"}); got != bzerr.ExitConfigError {
		t.Fatalf("run(frobnicate) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunNoArgs(t *testing.T) {
	if got := run(nil); got != bzerr.ExitConfigError {
		t.Fatalf("run(nil) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunHelp(t *testing.T) {
	for _, flag := range []string{"-h", "-help", "--help", "help"} {
		if got := run([]string{flag}); got != bzerr.ExitSuccess {
			t.Fatalf("run(%s) = %d, want %d", flag, got, bzerr.ExitSuccess)
		}
	}
}

func TestRunDBWithoutSync(t *testing.T) {
	if got := run([]string{"db"}); got != bzerr.ExitConfigError {
		t.Fatalf("run(db) = %d, want %d", got, bzerr.ExitConfigError)
	}
	if got := run([]string{"db", "bogus"}); got != bzerr.ExitConfigError {
		t.Fatalf("run(db bogus) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestRunPolicyUnknownSubcommand(t *testing.T) {
	if got := run([]string{"policy"}); got != bzerr.ExitConfigError {
		t.Fatalf("run(policy) = %d, want %d", got, bzerr.ExitConfigError)
	}
	if got := run([]string{"policy", "bogus"}); got != bzerr.ExitConfigError {
		t.Fatalf("run(policy bogus) = %d, want %d", got, bzerr.ExitConfigError)
	}
}

func TestExitForNil(t *testing.T) {
	if got := exitFor(nil); got != bzerr.ExitSuccess {
		t.Fatalf("exitFor(nil) = %d, want %d", got, bzerr.ExitSuccess)
	}
}

func TestExitForBzerrError(t *testing.T) {
	cases := []struct {
		kind bzerr.Kind
		want int
	}{
		{bzerr.KindAdvisoryStore, bzerr.ExitAdvisoryStore},
		{bzerr.KindPolicy, bzerr.ExitConfigError},
		{bzerr.KindExtractor, bzerr.ExitConfigError},
		{bzerr.KindSerializer, bzerr.ExitInternal},
		{bzerr.KindCache, bzerr.ExitInternal},
	}
	for _, tc := range cases {
		err := &bzerr.Error{Kind: tc.kind, Cause: errors.New("boom")}
		if got := exitFor(err); got != tc.want {
			t.Fatalf("exitFor(%v) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestExitForWrappedBzerrError(t *testing.T) {
	inner := &bzerr.Error{Kind: bzerr.KindAdvisoryStore, Cause: errors.New("boom")}
	wrapped := errors.New("scan: " + inner.Error())
	// A plain wrapped error with no Unwrap chain to a *bzerr.Error falls
	// back to ExitInternal rather than string-sniffing the message.
	if got := exitFor(wrapped); got != bzerr.ExitInternal {
		t.Fatalf("exitFor(non-bzerr wrapped) = %d, want %d", got, bzerr.ExitInternal)
	}
	if got := exitFor(inner); got != bzerr.ExitAdvisoryStore {
		t.Fatalf("exitFor(inner) = %d, want %d", got, bzerr.ExitAdvisoryStore)
	}
}

func TestExitForUnclassifiedError(t *testing.T) {
	if got := exitFor(errors.New("plain failure")); got != bzerr.ExitInternal {
		t.Fatalf("exitFor(plain) = %d, want %d", got, bzerr.ExitInternal)
	}
}
