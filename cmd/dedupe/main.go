package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/dedup"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/store"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	var (
		dbPath      = flag.String("db", "./analysis.db", "SQLite results database (empty to scan -results)")
		resultsDir  = flag.String("results", "./results", "Results directory when no database is used")
		outPath     = flag.String("out", "./roster.json", "Deduplicated roster output file")
		minMentions = flag.Int("min-mentions", 1, "Drop roster entries below this mention total")
		verbose     = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Parse()

	level := log.InfoLevel
	if *verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Level: level})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, "person-dedupe")
	if err != nil {
		logger.Fatal("telemetry setup failed", "err", err)
	}
	defer shutdown(context.Background())
	tracer := telemetry.Tracer("dedupe")

	st, err := openStore(*dbPath, *resultsDir)
	if err != nil {
		logger.Fatal("opening store", "err", err)
	}
	defer st.Close()

	results, err := st.ListResults(ctx)
	if err != nil {
		logger.Fatal("loading results", "err", err)
	}
	logger.Info("loaded results", "documents", len(results))

	aggCtx, aggSpan := tracer.Start(ctx, "dedupe.aggregate")
	aggs, err := dedup.Aggregate(&dedup.SliceSource{Results: results})
	aggSpan.End()
	if err != nil {
		logger.Fatal("aggregating persons", "err", err)
	}
	logger.Info("aggregated persons", "candidates", len(aggs))

	_, ufSpan := tracer.Start(aggCtx, "dedupe.cluster")
	roster := dedup.Deduplicate(aggs, dedup.NewNameMatcher(dedup.DefaultMatchConfig()))
	ufSpan.End()
	if *minMentions > 1 {
		kept := roster[:0]
		for _, p := range roster {
			if p.TotalMentions >= *minMentions {
				kept = append(kept, p)
			}
		}
		roster = kept
	}
	logger.Info("deduplicated", "persons", len(roster))

	if err := st.SaveRoster(ctx, roster); err != nil {
		logger.Fatal("saving roster", "err", err)
	}
	if *outPath != "" {
		if err := writeRoster(*outPath, roster); err != nil {
			logger.Fatal("writing roster file", "err", err)
		}
		logger.Info("roster written", "path", *outPath)
	}
}

func openStore(dbPath, resultsDir string) (store.Store, error) {
	if strings.TrimSpace(dbPath) != "" {
		if _, err := os.Stat(dbPath); err == nil {
			return store.OpenSQLite(dbPath)
		}
	}
	return store.OpenFiles(resultsDir)
}

// writeRoster emits the {name, role, category} gazetteer seed consumed
// by the next analysis run.
func writeRoster(path string, roster []dedup.Person) error {
	entries := make([]analysis.GazetteerEntry, 0, len(roster))
	for _, p := range roster {
		entries = append(entries, analysis.GazetteerEntry{
			Name:     p.Name,
			Role:     p.TopRole,
			Category: p.TopCategory,
		})
	}
	return store.WriteJSON(path, entries)
}
