package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"harshagw/suggester/internal/index"
	"harshagw/suggester/internal/popularity"
	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/suggest"
)

// Document represents a test document with known content.
type Document struct {
	ID   string
	Body string
}

// TestCase is typed input with its expected suggestions as "term:score".
// Order is checked separately, since equal scores may come back in any
// partition order.
type TestCase struct {
	Input    string
	Expected []string
}

type TestCategory struct {
	Name  string
	Size  int
	Setup func(idx *index.Index) error
	Cases []TestCase
}

func main() {
	fmt.Println("Suggester Verification")
	fmt.Println("======================")
	fmt.Println()

	dir, err := os.MkdirTemp("", "verify-*")
	if err != nil {
		fmt.Printf("Error creating temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	idx, err := index.New(index.DefaultConfig(dir))
	if err != nil {
		fmt.Printf("Error creating index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	// The first batch lands in a segment and the rest stays buffered, so
	// every case runs over two partitions.
	segDocs, bufferedDocs := getTestDocuments()
	if err := indexAll(idx, segDocs); err != nil {
		fmt.Printf("Error indexing: %v\n", err)
		os.Exit(1)
	}
	if err := idx.Flush(); err != nil {
		fmt.Printf("Error flushing: %v\n", err)
		os.Exit(1)
	}
	if err := indexAll(idx, bufferedDocs); err != nil {
		fmt.Printf("Error indexing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Indexed %d documents: %d segments, %d buffered\n",
		len(segDocs)+len(bufferedDocs), idx.NumSegments(), idx.BufferedDocs())

	pop := popularity.CountsOf(map[string]uint64{"programming": 2})

	passed := 0
	failed := 0
	for _, category := range getTestCategories() {
		fmt.Printf("\n%s\n", category.Name)
		fmt.Println(strings.Repeat("-", len(category.Name)))

		if category.Setup != nil {
			if err := category.Setup(idx); err != nil {
				fmt.Printf("  Setup error: %v\n", err)
				failed += len(category.Cases)
				continue
			}
		}

		opts := suggest.DefaultOptions()
		if category.Size > 0 {
			opts.ResultSize = category.Size
		}
		s := suggest.New(opts, nil, nil)

		for _, tc := range category.Cases {
			if runTestCase(idx, s, pop, tc) {
				passed++
			} else {
				failed++
			}
		}
	}

	fmt.Println()
	fmt.Println("========================================")
	fmt.Printf("Results: %d passed, %d failed, %d total\n", passed, failed, passed+failed)

	if failed > 0 {
		os.Exit(1)
	}
	fmt.Println("\nAll tests passed!")
}

func indexAll(idx *index.Index, docs []Document) error {
	for _, doc := range docs {
		if err := idx.Index(doc.ID, map[string]any{"body": doc.Body}); err != nil {
			return fmt.Errorf("doc %s: %w", doc.ID, err)
		}
	}
	return nil
}

func runTestCase(idx *index.Index, s *suggest.Suggester, pop popularity.Store, tc TestCase) bool {
	snap, err := idx.Snapshot()
	if err != nil {
		fmt.Printf("  ✗ %s\n    Error: %v\n", tc.Input, err)
		return false
	}
	defer snap.Close()

	items, err := s.Suggest(context.Background(), snap.Partitions(), tc.Input, pop)
	if err != nil {
		fmt.Printf("  ✗ %s\n    Error: %v\n", tc.Input, err)
		return false
	}

	if problem := checkProperties(s, tc.Input, items); problem != "" {
		fmt.Printf("  ✗ %s\n    %s\n", tc.Input, problem)
		return false
	}

	got := make([]string, len(items))
	for i, item := range items {
		got[i] = fmt.Sprintf("%s:%d", item.Term, item.Score)
	}
	slices.Sort(got)
	expected := slices.Clone(tc.Expected)
	slices.Sort(expected)

	if !slices.Equal(got, expected) {
		fmt.Printf("  ✗ %s\n", tc.Input)
		fmt.Printf("    Expected: %v\n", expected)
		fmt.Printf("    Got:      %v\n", got)
		return false
	}

	fmt.Printf("  ✓ %s\n", tc.Input)
	return true
}

// checkProperties verifies what must hold for any result list: bounded
// size, descending scores, one item per term and partition, and every term
// accepted by the predicate.
func checkProperties(s *suggest.Suggester, input string, items []suggest.Item) string {
	opts := s.Options()
	if len(items) > opts.ResultSize {
		return fmt.Sprintf("%d items exceed result size %d", len(items), opts.ResultSize)
	}

	_, pred, err := query.ParseSuggestion(input, opts.Field, opts.Analyzer)
	if err != nil {
		return fmt.Sprintf("parse: %v", err)
	}
	_, sel, err := search.Selector(pred)
	if err != nil {
		return fmt.Sprintf("selector: %v", err)
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if i > 0 && items[i-1].Score < item.Score {
			return fmt.Sprintf("scores not descending at %d: %d < %d", i, items[i-1].Score, item.Score)
		}
		key := item.Term + "@" + item.Partition
		if seen[key] {
			return fmt.Sprintf("duplicate item %s", key)
		}
		seen[key] = true
		if !sel.Matches([]byte(item.Term)) {
			return fmt.Sprintf("term %q not selected by %s", item.Term, pred)
		}
		if item.Source != opts.Source {
			return fmt.Sprintf("source %q, want %q", item.Source, opts.Source)
		}
	}
	return ""
}

// getTestDocuments returns the segment batch and the buffered batch.
func getTestDocuments() (segment, buffered []Document) {
	segment = []Document{
		{"d1", "Quick brown fox jumps"},
		{"d2", "Quick brown dog sleeps"},
		{"d3", "Quick red fox runs"},
		{"d4", "Lazy brown dog"},
		{"d5", "Programming in Go"},
		{"d6", "Programming languages compared"},
	}
	buffered = []Document{
		{"d7", "Quick brown bear"},
		{"d8", "Program design notes"},
		{"d9", "Brown bread recipe"},
	}
	return segment, buffered
}

func getTestCategories() []TestCategory {
	return []TestCategory{
		{
			Name: "DOCUMENT FREQUENCY",
			Cases: []TestCase{
				{"qu", []string{"quick:3", "quick:1"}},
				{"b", []string{"brown:3", "brown:2", "bear:1", "bread:1"}},
				{"zz", []string{}},
				{"fax~1", []string{"fox:2"}},
				{"/br.*d/", []string{"bread:1"}},
				{"sl*s", []string{"sleeps:1"}},
			},
		},
		{
			Name: "POPULARITY",
			Cases: []TestCase{
				{"prog", []string{"programming:2002", "program:1"}},
				{"[p TO q", []string{"programming:2002", "program:1"}},
			},
		},
		{
			Name: "CONSTRAINED",
			Cases: []TestCase{
				{"lazy d", []string{"dog:1"}},
				{"programming AND l", []string{"languages:1"}},
				{"quick AND -brown f", []string{"fox:1"}},
				{"(red OR lazy) b", []string{"brown:1"}},
				{"nonexistent b", []string{}},
			},
		},
		{
			Name: "PHRASE",
			Cases: []TestCase{
				{`"quick b`, []string{"brown:2", "brown:1"}},
				{`"quick `, []string{"brown:2", "red:1", "brown:1"}},
				{`"brown d`, []string{"dog:2"}},
				{`"quick brown f`, []string{"fox:1"}},
			},
		},
		{
			Name: "RESULT SIZE",
			Size: 1,
			Cases: []TestCase{
				{"b", []string{"brown:3"}},
				{"prog", []string{"programming:2002"}},
			},
		},
		{
			Name: "AFTER DELETE",
			Setup: func(idx *index.Index) error {
				return idx.Delete("d4")
			},
			Cases: []TestCase{
				{"lazy d", []string{}},
				{"b", []string{"brown:2", "brown:2", "bear:1", "bread:1"}},
				{"d", []string{"dog:1", "design:1"}},
			},
		},
	}
}
