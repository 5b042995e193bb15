package log_test

import (
	"testing"

	"github.com/bazbom/bazbom/log"
)

func TestWarnCollectorDedupesWithinCategory(t *testing.T) {
	wc := log.NewWarnCollector(log.NewDefaultLogger(false))
	wc.Collect("cycle", "module a -> module b -> module a")
	wc.Collect("cycle", "module a -> module b -> module a")
	wc.Collect("cycle", "module c -> module d -> module c")
	wc.Collect("unknown-scope", "scope \"fuzz\" is not recognized")

	got := wc.Categories()
	if len(got["cycle"]) != 2 {
		t.Fatalf("expected 2 deduplicated cycle warnings, got %d: %v", len(got["cycle"]), got["cycle"])
	}
	if len(got["unknown-scope"]) != 1 {
		t.Fatalf("expected 1 unknown-scope warning, got %d", len(got["unknown-scope"]))
	}
}

func TestWarnCollectorCategoriesClearsBuffer(t *testing.T) {
	wc := log.NewWarnCollector(log.NewDefaultLogger(false))
	wc.Collect("cycle", "a -> b -> a")
	if len(wc.Categories()) != 1 {
		t.Fatalf("expected one category on first read")
	}
	if len(wc.Categories()) != 0 {
		t.Fatalf("expected buffer to be drained after Categories()")
	}
}
