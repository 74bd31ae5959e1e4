package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"harshagw/suggester/internal/index"
	"harshagw/suggester/internal/query"
	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/suggest"
)

// completionTimeout bounds live completion so typing never stalls.
const completionTimeout = 200 * time.Millisecond

type REPL struct {
	idx       *index.Index
	suggester *suggest.Suggester
	pop       popularityStore
	logger    *log.Logger
	close     func()
}

func (r *REPL) executor(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "index":
		r.cmdIndex(input)
	case "delete":
		r.cmdDelete(parts[1:])
	case "flush":
		r.cmdFlush()
	case "merge":
		r.cmdMerge()
	case "search":
		r.cmdSearch(strings.TrimSpace(strings.TrimPrefix(input, "search")))
	case "suggest":
		r.cmdSuggest(strings.TrimPrefix(input, "suggest "))
	case "popularity":
		r.cmdPopularity(parts[1:])
	case "segments":
		r.cmdSegments()
	case "segment":
		r.cmdSegment(parts[1:])
	case "doc":
		r.cmdDoc(parts[1:])
	case "dump":
		r.cmdDump(parts[1:])
	case "help":
		printHelp()
	case "quit", "exit":
		fmt.Println("Goodbye!")
		r.close()
		os.Exit(0)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
}

func (r *REPL) cmdIndex(input string) {
	parts := strings.SplitN(input, " ", 3)
	if len(parts) < 3 {
		fmt.Println("Usage: index <docID> <json>")
		return
	}

	docID := parts[1]
	jsonStr := parts[2]

	var doc map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		return
	}

	if err := r.idx.Index(docID, doc); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Indexed '%s' (%d fields)\n", docID, len(doc))
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: delete <docID>")
		return
	}

	docID := args[0]
	if err := r.idx.Delete(docID); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted '%s'\n", docID)
}

func (r *REPL) cmdFlush() {
	if err := r.idx.Flush(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Flushed. %d segments.\n", r.idx.NumSegments())
}

func (r *REPL) cmdMerge() {
	if err := r.idx.ForceMerge(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Merged. %d segments.\n", r.idx.NumSegments())
}

// cmdSearch counts the documents matching a full query in every partition
// and records each searched term so later suggestions rank it higher.
func (r *REPL) cmdSearch(input string) {
	if input == "" {
		fmt.Println("Usage: search <query>")
		return
	}

	parsed, err := query.ParseString(input)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	snap, err := r.idx.Snapshot()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer snap.Close()

	q, err := query.Rewrite(parsed, snap.Analyzer(), r.suggester.Options().Field)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	ctx := context.Background()
	var total uint64
	for _, part := range snap.Partitions() {
		res, err := search.New(part).Run(ctx, q)
		if err != nil {
			fmt.Printf("Error in %s: %v\n", part.ID(), err)
			return
		}
		if n := res.Count(); n > 0 {
			fmt.Printf("  %s: %d docs\n", part.ID(), n)
			total += n
		}
	}
	fmt.Printf("Found %d docs for %s\n", total, q)

	for _, term := range searchedTerms(q) {
		if err := r.pop.Record(ctx, term); err != nil {
			r.logger.Warn("could not record search", "term", term, "err", err)
		}
	}
}

func (r *REPL) cmdSuggest(input string) {
	if strings.TrimSpace(input) == "" || input == "suggest" {
		fmt.Println("Usage: suggest <input>")
		return
	}

	items := r.suggest(input)
	if len(items) == 0 {
		fmt.Printf("No suggestions for %q\n", input)
		return
	}
	fmt.Printf("%d suggestions for %q:\n", len(items), input)
	for _, item := range items {
		fmt.Printf("  %-20s %8d  %s\n", item.Term, item.Score, item.Partition)
	}
}

// suggest completes input against a fresh snapshot. Errors are logged and
// yield no items.
func (r *REPL) suggest(input string) []suggest.Item {
	snap, err := r.idx.Snapshot()
	if err != nil {
		r.logger.Error("snapshot failed", "err", err)
		return nil
	}
	defer snap.Close()

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	items, err := r.suggester.Suggest(ctx, snap.Partitions(), input, r.pop)
	if err != nil {
		if !errors.Is(err, query.ErrEmptyPredicate) {
			r.logger.Debug("cannot parse suggestion input", "input", input, "err", err)
		}
		return nil
	}
	return items
}

func (r *REPL) cmdPopularity(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: popularity <term>")
		return
	}
	for _, term := range args {
		fmt.Printf("  %s: %d\n", term, r.pop.Count(term))
	}
}

func (r *REPL) cmdSegments() {
	segs := r.idx.Segments()
	if len(segs) == 0 {
		fmt.Println("No segments")
		return
	}
	fmt.Printf("%d segments:\n", len(segs))
	for _, seg := range segs {
		fmt.Printf("  %s: %d docs\n", seg.ID, seg.NumDocs)
	}
	if n := r.idx.BufferedDocs(); n > 0 {
		fmt.Printf("  (%d buffered docs not yet flushed)\n", n)
	}
}

func (r *REPL) cmdSegment(args []string) {
	if len(args) < 2 || args[1] != "stats" {
		fmt.Println("Usage: segment <id> stats")
		return
	}

	segID := args[0]
	info, err := r.idx.SegmentStats(segID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Segment %s:\n", segID)
	fmt.Printf("  Documents: %d\n", info.NumDocs)
	fmt.Printf("  Deleted: %d\n", info.NumDeleted)
	fmt.Printf("  Fields: %v\n", info.Fields)
}

func (r *REPL) cmdDoc(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: doc <segment> <docNum>")
		return
	}

	segID := args[0]
	docNum, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid docNum: %v\n", err)
		return
	}

	doc, err := r.idx.LoadDoc(segID, docNum)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	data, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(data))
}

func (r *REPL) cmdDump(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: dump postings <field> <term>")
		fmt.Println("       dump deletions <segment>")
		return
	}

	switch args[0] {
	case "postings":
		if len(args) < 3 {
			fmt.Println("Usage: dump postings <field> <term>")
			return
		}
		r.dumpPostings(args[1], args[2])
	case "deletions":
		r.dumpDeletions(args[1])
	default:
		fmt.Printf("Unknown dump type: %s\n", args[0])
	}
}

func (r *REPL) dumpPostings(field, term string) {
	postings, err := r.idx.DumpPostings(field, term)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if len(postings) == 0 {
		fmt.Printf("No postings for %s:%s\n", field, term)
		return
	}

	fmt.Printf("Postings for %s:%s (%d docs):\n", field, term, len(postings))
	for _, p := range postings {
		fmt.Printf("  %s doc=%d freq=%d pos=%v\n", p.Partition, p.DocNum, p.Freq, p.Positions)
	}
}

func (r *REPL) dumpDeletions(segID string) {
	deleted, err := r.idx.DumpDeletions(segID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if len(deleted) == 0 {
		fmt.Printf("No deletions in segment %s\n", segID)
		return
	}

	fmt.Printf("Deletions in %s: %v\n", segID, deleted)
}

// searchedTerms lists the exact terms a rewritten query looks for. Negated
// clauses and multi-term patterns are not counted as searches.
func searchedTerms(q query.Query) []string {
	switch v := q.(type) {
	case *query.TermQuery:
		return []string{v.Term}
	case *query.PhraseQuery:
		return v.Terms
	case *query.BoolQuery:
		var terms []string
		for _, c := range v.Must {
			terms = append(terms, searchedTerms(c)...)
		}
		for _, c := range v.Should {
			terms = append(terms, searchedTerms(c)...)
		}
		return terms
	default:
		return nil
	}
}
