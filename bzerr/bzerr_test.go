package bzerr_test

import (
	"errors"
	"testing"

	"github.com/bazbom/bazbom/bzerr"
)

func TestToolMissingIsFatalAndMapsToConfigExit(t *testing.T) {
	err := bzerr.ToolMissing("pom.xml:app", "mvn", errors.New("exec: \"mvn\": executable file not found in $PATH"))
	if !err.Fatal {
		t.Fatal("ToolMissing should be fatal")
	}
	if err.ExitCode() != bzerr.ExitConfigError {
		t.Fatalf("expected exit %d, got %d", bzerr.ExitConfigError, err.ExitCode())
	}
	if err.RemediationText() == "" {
		t.Fatal("expected non-empty remediation text")
	}
}

func TestNoSnapshotMapsToAdvisoryStoreExit(t *testing.T) {
	err := bzerr.NoSnapshot("/tmp/does-not-exist")
	if err.ExitCode() != bzerr.ExitAdvisoryStore {
		t.Fatalf("expected exit %d, got %d", bzerr.ExitAdvisoryStore, err.ExitCode())
	}
	var target *bzerr.Error
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to recognize *bzerr.Error")
	}
}

func TestParseFailureIsNotFatal(t *testing.T) {
	err := bzerr.ParseFailure("gradle:submodule-b", errors.New("unexpected token"))
	if err.Fatal {
		t.Fatal("ParseFailure for a single module should not be fatal to the whole run")
	}
}
