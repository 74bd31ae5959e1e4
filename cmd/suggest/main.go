package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/prometheus/client_golang/prometheus"

	"harshagw/suggester/internal/config"
	"harshagw/suggester/internal/index"
	"harshagw/suggester/internal/logger"
	"harshagw/suggester/internal/suggest"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	l, err := logger.NewWithConfig(os.Stderr, "suggest", cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Suggester REPL")
	fmt.Println()
	printHelp()
	fmt.Println()

	idxConfig := index.DefaultConfig(cfg.Index.Dir)
	idxConfig.FlushThreshold = cfg.Index.FlushThreshold
	idxConfig.Logger = l
	idx, err := index.New(idxConfig)
	if err != nil {
		fmt.Printf("Error opening index: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pop, closePop, err := openPopularity(ctx, cfg.Popularity)
	if err != nil {
		fmt.Printf("Error opening popularity store: %v\n", err)
		idx.Close()
		os.Exit(1)
	}

	var metrics *suggest.Metrics
	shutdown := func(context.Context) error { return nil }
	if cfg.Metrics.Enabled {
		metrics = suggest.NewMetrics(prometheus.DefaultRegisterer)
		shutdown = startMetricsServer(cfg.Metrics.Addr, l)
	}

	opts := suggest.DefaultOptions()
	opts.Field = cfg.Suggest.Field
	opts.ResultSize = cfg.Suggest.ResultSize
	opts.PopularityMultiplier = cfg.Suggest.PopularityMultiplier
	opts.Workers = cfg.Suggest.Workers
	opts.Source = cfg.Suggest.Source

	r := &REPL{
		idx:       idx,
		suggester: suggest.New(opts, l, metrics),
		pop:       pop,
		logger:    l,
		close: func() {
			shutdown(context.Background())
			closePop()
			idx.Close()
		},
	}
	fmt.Printf("Index loaded from %s (%d segments)\n\n", cfg.Index.Dir, idx.NumSegments())

	p := prompt.New(
		r.executor,
		r.completer,
		prompt.OptionPrefix("suggest >> "),
		prompt.OptionTitle("suggest"),
	)
	p.Run()
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  index <docID> <json>         - Add document to batch")
	fmt.Println("  delete <docID>               - Mark document as deleted")
	fmt.Println("  flush                        - Write batch to new segment")
	fmt.Println("  merge                        - Merge segments, remove deleted docs")
	fmt.Println("  search <query>               - Count matches and record searched terms")
	fmt.Println("  suggest <input>              - Rank completions for partially typed input")
	fmt.Println("  popularity <term>            - Show how often a term was searched")
	fmt.Println("  segments                     - List all segments")
	fmt.Println("  segment <id> stats           - Show segment details")
	fmt.Println("  doc <segment> <docNum>       - Load stored document")
	fmt.Println("  dump postings <field> <term> - Show posting list")
	fmt.Println("  dump deletions <segment>     - Show deletion bitmap")
	fmt.Println("  help                         - Show this help")
	fmt.Println("  quit                         - Exit")
}

var commands = []prompt.Suggest{
	{Text: "index", Description: "Add document to batch"},
	{Text: "delete", Description: "Mark document as deleted"},
	{Text: "flush", Description: "Write batch to new segment"},
	{Text: "merge", Description: "Merge segments"},
	{Text: "search", Description: "Count matches"},
	{Text: "suggest", Description: "Rank completions"},
	{Text: "popularity", Description: "Show search count"},
	{Text: "segments", Description: "List all segments"},
	{Text: "segment", Description: "Show segment details"},
	{Text: "doc", Description: "Load stored document"},
	{Text: "dump", Description: "Show postings or deletions"},
	{Text: "help", Description: "Show help"},
	{Text: "quit", Description: "Exit"},
}

// completer offers command names for the first word and live completions
// while a suggest or search command is being typed.
func (r *REPL) completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	cmd, rest, found := strings.Cut(text, " ")
	if !found {
		return prompt.FilterHasPrefix(commands, cmd, true)
	}
	if cmd != "suggest" && cmd != "search" {
		return nil
	}
	if strings.TrimSpace(rest) == "" {
		return nil
	}

	items := r.suggest(rest)
	out := make([]prompt.Suggest, len(items))
	for i, item := range items {
		out[i] = prompt.Suggest{
			Text:        item.Term,
			Description: fmt.Sprintf("%d  %s", item.Score, item.Partition),
		}
	}
	return out
}
