// engramctl is a thin command-line driver for the memory engine, useful for
// poking at a database from a shell without writing Go.
//
// Usage:
//
//	engramctl add [-importance 0.7] [-pin] "Alex prefers tea over coffee"
//	engramctl recall [-limit 5] [-expand] "what does Alex drink"
//	engramctl stats
//
// Environment variables:
//
//	ENGRAM_DB_PATH — SQLite database path (default: ./data/engram.db)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	engram "github.com/engramhq/engram"
	"github.com/mattn/go-isatty"
	"github.com/segmentio/encoding/json"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dbPath := os.Getenv("ENGRAM_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/engram.db"
	}

	en, err := engram.Init(engram.Config{DBPath: dbPath})
	if err != nil {
		fatalf("engram init: %v", err)
	}
	defer en.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "add":
		runAdd(ctx, en, os.Args[2:])
	case "recall":
		runRecall(ctx, en, os.Args[2:])
	case "stats":
		runStats(ctx, en)
	default:
		usage()
		os.Exit(1)
	}
}

func runAdd(ctx context.Context, en *engram.Engram, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	importance := fs.Float64("importance", 0, "importance 0.0-1.0 (default 0.5)")
	pinned := fs.Bool("pin", false, "pin this memory against core decay and forgetting")
	source := fs.String("source", "", "provenance label")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fatalf("add: content is required")
	}

	entry, err := en.Add(ctx, engram.AddOptions{
		Content:    fs.Arg(0),
		Importance: *importance,
		Pinned:     *pinned,
		Source:     *source,
	})
	if err != nil {
		fatalf("add: %v", err)
	}
	emit(map[string]any{"id": entry.ID, "type": entry.Type, "layer": entry.Layer})
}

func runRecall(ctx context.Context, en *engram.Engram, args []string) {
	fs := flag.NewFlagSet("recall", flag.ExitOnError)
	limit := fs.Int("limit", 5, "max results")
	expand := fs.Bool("expand", false, "expand one hop over the co-activation and entity graphs")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fatalf("recall: query is required")
	}

	results, err := en.Recall(ctx, engram.SearchOptions{
		Query:       fs.Arg(0),
		Limit:       *limit,
		GraphExpand: *expand,
	})
	if err != nil {
		fatalf("recall: %v", err)
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		now := time.Now()
		for _, r := range results {
			created := now.Add(-time.Duration(r.AgeDays * float64(24*time.Hour)))
			fmt.Printf("%-8.3f %-6s %-36s %s (%s)\n",
				r.Activation, r.ConfidenceLabel, r.ID, r.Content, humanize.Time(created))
		}
		return
	}
	emit(results)
}

func runStats(ctx context.Context, en *engram.Engram) {
	stats, err := en.Stats(ctx)
	if err != nil {
		fatalf("stats: %v", err)
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("%s memories, %s co-activation links\n",
			humanize.Comma(int64(stats.Total)), humanize.Comma(int64(stats.FormedLinks)))
		for layer, n := range stats.ByLayer {
			fmt.Printf("  %-8s %s\n", layer, humanize.Comma(int64(n)))
		}
		return
	}
	emit(stats)
}

func emit(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}
	fmt.Println(string(data))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: engramctl <add|recall|stats> ...")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
