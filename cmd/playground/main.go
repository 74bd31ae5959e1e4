// Playground for trying suggestions against a small index.
//
// Run with: go run ./cmd/playground
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"harshagw/suggester/internal/index"
	"harshagw/suggester/internal/logger"
	"harshagw/suggester/internal/popularity"
	"harshagw/suggester/internal/suggest"
)

func runInputs(s *suggest.Suggester, snapshot *index.Snapshot, pop popularity.Store, inputs []string) {
	for _, input := range inputs {
		fmt.Printf("Input: %s\n", input)
		fmt.Println(strings.Repeat("-", 60))

		items, err := s.Suggest(context.Background(), snapshot.Partitions(), input, pop)
		if err != nil {
			fmt.Printf("  Error: %v\n\n", err)
			continue
		}

		if len(items) == 0 {
			fmt.Println("  No suggestions")
		} else {
			for i, item := range items {
				fmt.Printf("  %d. %-16s score=%-6d partition=%s\n", i+1, item.Term, item.Score, item.Partition)
			}
		}
		fmt.Println()
	}
}

func main() {
	l := logger.New("playground")

	dir, err := os.MkdirTemp("", "suggester-playground-*")
	if err != nil {
		l.Fatal("creating temp dir failed", "err", err)
	}
	defer os.RemoveAll(dir)

	fmt.Println("=== Suggester Playground ===")
	fmt.Printf("Index directory: %s\n\n", dir)

	cfg := index.DefaultConfig(dir)
	cfg.FlushThreshold = 4
	cfg.Logger = l
	idx, err := index.New(cfg)
	if err != nil {
		l.Fatal("opening index failed", "err", err)
	}
	defer idx.Close()

	docs := []struct {
		id  string
		doc map[string]any
	}{
		{"go-intro", map[string]any{"title": "Getting started with Go", "body": "Go programs compile quickly and run concurrently with goroutines."}},
		{"go-channels", map[string]any{"title": "Go channels", "body": "Channels connect goroutines so concurrent programs can share data safely."}},
		{"py-intro", map[string]any{"title": "Python for data work", "body": "Python programs are popular for data science and quick scripting."}},
		{"rust-safety", map[string]any{"title": "Rust memory safety", "body": "Rust programs guarantee memory safety without a garbage collector."}},
		{"search-index", map[string]any{"title": "Inverted indexes", "body": "Search engines map every term to the documents containing it."}},
		{"search-suggest", map[string]any{"title": "Query suggestions", "body": "Search engines suggest popular terms while the query is typed."}},
		{"go-web", map[string]any{"title": "Go on the web", "body": "Go programs serve web traffic with a small standard library footprint."}},
		{"data-pipelines", map[string]any{"title": "Data pipelines", "body": "Pipelines move data between stores and search engines in batches."}},
	}

	// A flush threshold of four spreads the documents over segments and the
	// in-memory buffer, so suggestions come from several partitions.
	fmt.Println("Indexing documents...")
	for _, d := range docs {
		if err := idx.Index(d.id, d.doc); err != nil {
			l.Fatal("indexing failed", "err", err)
		}
		fmt.Printf("  Indexed: %s - %s\n", d.id, d.doc["title"])
	}
	fmt.Printf("\n%d segments, %d buffered docs\n\n", idx.NumSegments(), idx.BufferedDocs())

	snapshot, err := idx.Snapshot()
	if err != nil {
		l.Fatal("snapshot failed", "err", err)
	}
	defer snapshot.Close()

	s := suggest.New(suggest.Options{Field: "body", ResultSize: 5, Source: "playground"}, l, nil)
	pop := popularity.NewCounts()

	fmt.Println("--- Completions ---")
	runInputs(s, snapshot, pop, []string{
		// Prefix
		"pro",
		// Field-specific prefix
		"title:go",
		// Wildcard
		"go*s",
		// Fuzzy
		"serch~1",
		// Regex
		"/da.a/",
		// Range
		"[pi TO pz",
	})

	fmt.Println("--- Constrained Completions ---")
	runInputs(s, snapshot, pop, []string{
		// Terms co-occurring with a term
		"rust m",
		// Boolean constraint
		"(go OR python) AND d",
		// Negated constraint
		"programs -go c",
		// Next word of a phrase
		`"search engines `,
		// Phrase with a partial word
		`"go programs s`,
	})

	fmt.Println("--- Popularity ---")
	for range 3 {
		pop.Record(context.Background(), "python")
	}
	pop.Record(context.Background(), "programs")
	fmt.Println("Recorded searches: python x3, programs x1")
	fmt.Println()
	runInputs(s, snapshot, pop, []string{"p", "title:p"})
}
