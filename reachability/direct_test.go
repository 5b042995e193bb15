package reachability_test

import (
	"context"
	"testing"
	"time"

	"github.com/bazbom/bazbom/graph"
	"github.com/bazbom/bazbom/pkgref"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/reachability/callgraph"
)

func TestAnalyzeNodeReachable(t *testing.T) {
	g := callgraph.New()
	entry := g.AddMethod(callgraph.MethodKey{Class: "com/example/Main", Name: "main", Descriptor: "()V"})
	target := g.AddMethod(callgraph.MethodKey{Class: "org/apache/commons/text/StringEscapeUtils", Name: "escapeHtml4", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"})
	g.AddEdge(entry, target)

	ref, _ := pkgref.NewMaven("org.apache.commons:commons-text", "1.9")
	node := &graph.Node{Ref: ref}

	result, err := reachability.AnalyzeNode(context.Background(), node, []callgraph.MethodID{target}, g, []callgraph.MethodID{entry}, reachability.Budget{})
	if err != nil {
		t.Fatalf("AnalyzeNode: %v", err)
	}
	if result.Status != reachability.StatusReachable {
		t.Fatalf("expected StatusReachable, got %v", result.Status)
	}
	if len(result.Evidence) == 0 {
		t.Fatalf("expected a non-empty evidence chain")
	}
}

func TestAnalyzeNodeUnreachable(t *testing.T) {
	g := callgraph.New()
	entry := g.AddMethod(callgraph.MethodKey{Class: "com/example/Main", Name: "main", Descriptor: "()V"})
	target := g.AddMethod(callgraph.MethodKey{Class: "org/apache/commons/text/StringEscapeUtils", Name: "escapeHtml4", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"})

	ref, _ := pkgref.NewMaven("org.apache.commons:commons-text", "1.9")
	node := &graph.Node{Ref: ref}

	result, err := reachability.AnalyzeNode(context.Background(), node, []callgraph.MethodID{target}, g, []callgraph.MethodID{entry}, reachability.Budget{})
	if err != nil {
		t.Fatalf("AnalyzeNode: %v", err)
	}
	if result.Status != reachability.StatusUnreachable {
		t.Fatalf("expected StatusUnreachable, got %v", result.Status)
	}
}

func TestAnalyzeNodeDegradesWhenBudgetExceeded(t *testing.T) {
	g := callgraph.New()
	target := g.AddMethod(callgraph.MethodKey{Class: "X", Name: "y", Descriptor: "()V"})
	ref, _ := pkgref.NewMaven("com.example:lib", "1.0.0")
	node := &graph.Node{Ref: ref}

	budget := reachability.Budget{Deadline: time.Now().Add(-time.Second)}
	result, err := reachability.AnalyzeNode(context.Background(), node, []callgraph.MethodID{target}, g, nil, budget)
	if err != nil {
		t.Fatalf("AnalyzeNode: %v", err)
	}
	if result.Status != reachability.StatusUnknown {
		t.Fatalf("expected StatusUnknown once the budget has expired, got %v", result.Status)
	}
}
