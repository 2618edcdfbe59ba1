package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/budget"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/report"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/store"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	var (
		inputDir    = flag.String("input", "./extracted", "Directory of extracted document JSON files")
		dbPath      = flag.String("db", "./analysis.db", "SQLite results database (empty to use -out files)")
		outDir      = flag.String("out", "./results", "Results directory when no database is used")
		invalidDir  = flag.String("invalid", "./invalid_responses", "Directory for rejected model responses")
		dataSet     = flag.String("dataset", "default", "Data-set label stamped on every result")
		gazetteer   = flag.String("gazetteer", "", "Roster JSON to use as the known-person gazetteer (empty for built-in)")
		limit       = flag.Int("limit", 0, "Stop after this many documents (0 = no limit)")
		minTextLen  = flag.Int("min-text-len", analysis.MinDocumentChars, "Skip documents with less text than this")
		delay       = flag.Duration("delay", 2*time.Second, "Pause between successive model calls")
		budgetCents = flag.Float64("budget-cents", 0, "Run budget cap in cents (0 = unlimited)")
		monthCents  = flag.Float64("month-budget-cents", 0, "Monthly budget cap in cents (0 = unlimited)")
		tier        = flag.Int("tier", 1, "Maximum tier to run: 0 = rules only, 1 = rules + model")
		minPriority = flag.Int("min-priority", 0, "Route to the model only documents whose tier-0 pass found at least this many known persons")
		skipExist   = flag.Bool("skip-existing", true, "Skip documents that already have a stored result")
		dryRun      = flag.Bool("dry-run", false, "Estimate token usage and cost without calling the model or writing output")
		reportPath  = flag.String("report", "", "Write an HTML run report to this path")
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

	shutdown, err := telemetry.Setup(ctx, "document-analyzer")
	if err != nil {
		logger.Fatal("telemetry setup failed", "err", err)
	}
	defer shutdown(context.Background())

	if err := run(ctx, logger, runConfig{
		inputDir:    *inputDir,
		dbPath:      *dbPath,
		outDir:      *outDir,
		invalidDir:  *invalidDir,
		dataSet:     *dataSet,
		gazetteer:   *gazetteer,
		limit:       *limit,
		minTextLen:  *minTextLen,
		delay:       *delay,
		budgetCents: *budgetCents,
		monthCents:  *monthCents,
		tier:        *tier,
		minPriority: *minPriority,
		skipExist:   *skipExist,
		dryRun:      *dryRun,
		reportPath:  *reportPath,
	}); err != nil {
		logger.Fatal("run failed", "err", err)
	}
}

type runConfig struct {
	inputDir    string
	dbPath      string
	outDir      string
	invalidDir  string
	dataSet     string
	gazetteer   string
	limit       int
	minTextLen  int
	delay       time.Duration
	budgetCents float64
	monthCents  float64
	tier        int
	minPriority int
	skipExist   bool
	dryRun      bool
	reportPath  string
}

func run(ctx context.Context, logger *log.Logger, cfg runConfig) error {
	paths, err := analysis.ListDocuments(cfg.inputDir)
	if err != nil {
		return err
	}
	logger.Info("scanning input", "dir", cfg.inputDir, "documents", len(paths))

	if cfg.dryRun {
		return dryRun(logger, cfg, paths)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := loadClassifier(cfg.gazetteer)
	if err != nil {
		return err
	}

	var caller analysis.LLMCaller
	var gate analysis.BudgetGate
	if cfg.tier >= 1 {
		c, err := analysis.NewAnthropicCallerFromEnv()
		if err != nil {
			return err
		}
		caller = c

		tracker, err := budget.Open(budgetDBPath(cfg), "claude-sonnet", "document-analysis", budget.SonnetRates)
		if err != nil {
			return err
		}
		defer tracker.Close()
		tracker.RunCapCents = cfg.budgetCents
		tracker.MonthCapCents = cfg.monthCents
		gate = tracker
	}

	tracer := telemetry.Tracer("analyze")
	summary := report.Summary{
		StartedAt:   time.Now(),
		DataSet:     cfg.dataSet,
		SkipReasons: map[string]int{},
	}

	analyzer := analysis.NewTieredAnalyzer(rules, caller, analysis.NewInvalidSink(cfg.invalidDir), gate, &analysis.AnalyzerConfig{
		InterChunkDelay: cfg.delay,
	})
	analyzer.Progress = func(o analysis.ChunkOutcome) {
		if o.Valid {
			logger.Debug("chunk analyzed", "file", o.FileName, "chunk", o.ChunkIndex+1, "of", o.ChunkTotal)
			return
		}
		if !o.Skipped {
			summary.Invalid++
		}
		logger.Warn("chunk rejected", "file", o.FileName, "chunk", o.ChunkIndex+1, "of", o.ChunkTotal, "reason", o.Reason)
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if cfg.limit > 0 && summary.Processed >= cfg.limit {
			logger.Info("document limit reached", "limit", cfg.limit)
			break
		}

		doc, err := analysis.ReadDocument(path)
		if err != nil {
			logger.Warn("unreadable document", "path", path, "err", err)
			summary.Skipped++
			summary.SkipReasons["unreadable"]++
			continue
		}
		if len(doc.Text) < cfg.minTextLen {
			logger.Debug("document too short", "file", doc.FileName, "chars", len(doc.Text))
			summary.Skipped++
			summary.SkipReasons["too short"]++
			continue
		}
		if cfg.skipExist {
			has, err := st.HasResult(ctx, doc.FileName)
			if err != nil {
				return err
			}
			if has {
				summary.Skipped++
				summary.SkipReasons["already analyzed"]++
				continue
			}
		}

		docCtx, span := tracer.Start(ctx, "analyze.document")
		span.SetAttributes(attribute.String("document.file", doc.FileName))

		res, err := analyzeOne(docCtx, analyzer, rules, doc, cfg)
		span.End()
		if err != nil {
			if errors.Is(err, analysis.ErrBudgetExhausted) {
				logger.Info("budget exhausted, stopping paid analysis", "spent_cents", summary.CostCents)
				break
			}
			if ctx.Err() != nil {
				break
			}
			logger.Warn("document failed", "file", doc.FileName, "err", err)
			summary.Skipped++
			summary.SkipReasons["analysis error"]++
			continue
		}

		if err := st.SaveResult(ctx, res); err != nil {
			return err
		}
		summary.Processed++
		summary.InputTokens += res.InputTokens
		summary.OutputTok += res.OutputTokens
		summary.CostCents += res.CostCents
		if res.Tier == 0 {
			summary.Tier0++
		} else {
			summary.Tier1++
		}
		logger.Info("analyzed", "file", doc.FileName, "tier", res.Tier,
			"persons", len(res.Persons), "cost_cents", fmt.Sprintf("%.2f", res.CostCents))
	}
	summary.FinishedAt = time.Now()

	md := report.BuildMarkdown(summary)
	fmt.Println(md)
	if cfg.reportPath != "" {
		html, err := report.RenderHTML(md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.reportPath, []byte(html), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("report written", "path", cfg.reportPath)
	}
	return nil
}

// analyzeOne routes a document: tier 0 always runs; the model pass runs
// only when enabled and the rule-based pass found enough known persons
// to clear the priority floor.
func analyzeOne(ctx context.Context, analyzer *analysis.TieredAnalyzer, rules *analysis.RuleBasedClassifier, doc analysis.Document, cfg runConfig) (analysis.TieredAnalysisResult, error) {
	tier0 := rules.Classify(doc.Text, doc.FileName, cfg.dataSet)
	if cfg.tier < 1 || len(tier0.Persons) < cfg.minPriority {
		return tier0, nil
	}
	return analyzer.Analyze(ctx, doc, cfg.dataSet)
}

func dryRun(logger *log.Logger, cfg runConfig, paths []string) error {
	est := analysis.NewTokenEstimator()
	rates := budget.SonnetRates

	var docs, tokens int
	for _, path := range paths {
		doc, err := analysis.ReadDocument(path)
		if err != nil || len(doc.Text) < cfg.minTextLen {
			continue
		}
		docs++
		for _, chunk := range analysis.Chunk(doc.Text, analysis.MaxChunkChars) {
			tokens += est.Estimate(chunk)
		}
		if cfg.limit > 0 && docs >= cfg.limit {
			break
		}
	}
	// Output tokens assumed at roughly a quarter of input for budgeting.
	outTokens := tokens / 4
	cents := float64(tokens)*rates.InputCentsPerMTok/1e6 + float64(outTokens)*rates.OutputCentsPerMTok/1e6
	logger.Info("dry run estimate", "documents", docs,
		"input_tokens", tokens, "output_tokens_est", outTokens,
		"cost_cents_est", fmt.Sprintf("%.2f", cents))
	return nil
}

// loadClassifier builds the tier-0 classifier, seeding it from a prior
// dedupe roster when one is given.
func loadClassifier(path string) (*analysis.RuleBasedClassifier, error) {
	if path == "" {
		return analysis.NewRuleBasedClassifier(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gazetteer: %w", err)
	}
	var entries []analysis.GazetteerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing gazetteer: %w", err)
	}
	return analysis.NewRuleBasedClassifier(entries), nil
}

func openStore(cfg runConfig) (store.Store, error) {
	if strings.TrimSpace(cfg.dbPath) != "" {
		return store.OpenSQLite(cfg.dbPath)
	}
	return store.OpenFiles(cfg.outDir)
}

// budgetDBPath keeps the ledger next to the results database, or in
// the results directory when running file-backed.
func budgetDBPath(cfg runConfig) string {
	if strings.TrimSpace(cfg.dbPath) != "" {
		return filepath.Join(filepath.Dir(cfg.dbPath), "budget.db")
	}
	return filepath.Join(cfg.outDir, "budget.db")
}
