package analysis

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned by a BudgetGate when cumulative spend
// has reached the configured cap. The analyzer stops before the call.
var ErrBudgetExhausted = errors.New("budget exhausted")

// ErrDocumentTooShort marks documents below the minimum text length.
var ErrDocumentTooShort = errors.New("document below minimum length")

// DocError ties a failure to the document it occurred in.
type DocError struct {
	File string
	Err  error
}

func (e *DocError) Error() string { return e.File + ": " + e.Err.Error() }
func (e *DocError) Unwrap() error { return e.Err }

// BudgetGate decides whether another paid call may proceed and records
// the cost of calls that did.
type BudgetGate interface {
	Allow(ctx context.Context) error
	Charge(ctx context.Context, documentID string, inputTokens, outputTokens int) (costCents float64, err error)
}

// unlimitedGate admits every call and charges nothing.
type unlimitedGate struct{}

func (unlimitedGate) Allow(context.Context) error { return nil }
func (unlimitedGate) Charge(context.Context, string, int, int) (float64, error) {
	return 0, nil
}

// AnalyzerConfig tunes the tiered pipeline.
type AnalyzerConfig struct {
	// MaxChunkChars bounds the text per model call; zero means the
	// package default.
	MaxChunkChars int
	// InterChunkDelay is the pause between successive paid calls.
	InterChunkDelay time.Duration
	// Backoff is the fixed wait before retrying a rate-limited chunk;
	// zero means the package default.
	Backoff time.Duration
	// MaxRateLimitRetries caps retries of a single chunk after
	// rate-limit signals before the chunk is skipped.
	MaxRateLimitRetries int
}

func (c *AnalyzerConfig) withDefaults() AnalyzerConfig {
	out := AnalyzerConfig{}
	if c != nil {
		out = *c
	}
	if out.MaxChunkChars <= 0 {
		out.MaxChunkChars = MaxChunkChars
	}
	if out.Backoff <= 0 {
		out.Backoff = defaultBackoff
	}
	if out.MaxRateLimitRetries <= 0 {
		out.MaxRateLimitRetries = 3
	}
	return out
}

// ChunkOutcome reports what happened to one chunk, for progress logging.
type ChunkOutcome struct {
	FileName   string
	ChunkIndex int
	ChunkTotal int
	Valid      bool
	Skipped    bool
	Reason     string
}

// TieredAnalyzer runs the two-tier pipeline: a free rule-based pass for
// every document, and a model pass for documents routed to tier 1. The
// caller decides routing; the analyzer enforces chunking, validation,
// retry, and budget semantics.
type TieredAnalyzer struct {
	rules    *RuleBasedClassifier
	caller   LLMCaller
	sink     *InvalidSink
	gate     BudgetGate
	cfg      AnalyzerConfig
	Progress func(ChunkOutcome)

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewTieredAnalyzer wires the pipeline. caller may be nil when only
// tier 0 will run; gate nil means no budget enforcement.
func NewTieredAnalyzer(rules *RuleBasedClassifier, caller LLMCaller, sink *InvalidSink, gate BudgetGate, cfg *AnalyzerConfig) *TieredAnalyzer {
	if rules == nil {
		rules = NewRuleBasedClassifier(nil)
	}
	if gate == nil {
		gate = unlimitedGate{}
	}
	return &TieredAnalyzer{
		rules:  rules,
		caller: caller,
		sink:   sink,
		gate:   gate,
		cfg:    cfg.withDefaults(),
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AnalyzeTier0 runs only the free pass. It never fails.
func (a *TieredAnalyzer) AnalyzeTier0(doc Document) TieredAnalysisResult {
	return a.rules.Classify(doc.Text, doc.FileName, "")
}

// Analyze runs the full pipeline on one document. Documents below the
// minimum length return ErrDocumentTooShort. When the budget gate
// refuses before the first chunk, ErrBudgetExhausted is returned; once
// at least one chunk has been paid for, exhaustion mid-document yields
// a partial result from the chunks already analyzed.
func (a *TieredAnalyzer) Analyze(ctx context.Context, doc Document, dataSet string) (TieredAnalysisResult, error) {
	if len(doc.Text) < MinDocumentChars {
		return TieredAnalysisResult{}, &DocError{File: doc.FileName, Err: ErrDocumentTooShort}
	}
	if a.caller == nil {
		return a.rules.Classify(doc.Text, doc.FileName, dataSet), nil
	}

	chunks := Chunk(doc.Text, a.cfg.MaxChunkChars)
	total := len(chunks)

	var (
		valid      []AnalysisResult
		usage      TokenUsage
		costCents  float64
		anyCharged bool
	)

	for i, chunk := range chunks {
		if i > 0 {
			if err := a.sleep(ctx, a.cfg.InterChunkDelay); err != nil {
				return TieredAnalysisResult{}, err
			}
		}

		res, u, cost, err := a.analyzeChunk(ctx, chunk, doc.FileName, dataSet, i, total)
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens
		costCents += cost
		if u.InputTokens > 0 || u.OutputTokens > 0 {
			anyCharged = true
		}
		if err != nil {
			if errors.Is(err, ErrBudgetExhausted) {
				if !anyCharged {
					return TieredAnalysisResult{}, err
				}
				break
			}
			if ctx.Err() != nil {
				return TieredAnalysisResult{}, ctx.Err()
			}
			// Transport or validation failure on this chunk: siblings
			// still contribute.
			continue
		}
		valid = append(valid, res)
	}

	out := TieredAnalysisResult{
		Tier:         1,
		CostCents:    costCents,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}
	if len(valid) == 0 {
		out.AnalysisResult = placeholderResult(doc.FileName, dataSet, a.now().UTC())
		return out, nil
	}
	out.AnalysisResult = Merge(valid)
	out.AnalyzedAt = a.now().UTC()
	return out, nil
}

// analyzeChunk runs one chunk through the gate, the model, and the
// validator. Rate-limit errors retry the same chunk after a fixed
// backoff; other transport errors and invalid responses skip the chunk.
func (a *TieredAnalyzer) analyzeChunk(ctx context.Context, chunk, fileName, dataSet string, index, total int) (AnalysisResult, TokenUsage, float64, error) {
	var usage TokenUsage
	var cost float64

	retries := 0
	for {
		if err := a.gate.Allow(ctx); err != nil {
			return AnalysisResult{}, usage, cost, err
		}

		raw, u, err := a.caller.GenerateJSON(ctx, chunkPrompt(chunk, fileName, dataSet, index, total))
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens
		if u.InputTokens > 0 || u.OutputTokens > 0 {
			c, chErr := a.gate.Charge(ctx, fileName, u.InputTokens, u.OutputTokens)
			if chErr != nil {
				return AnalysisResult{}, usage, cost, chErr
			}
			cost += c
		}

		if err != nil {
			switch classifyTransportError(err) {
			case failureRateLimit:
				retries++
				if retries > a.cfg.MaxRateLimitRetries {
					a.report(ChunkOutcome{fileName, index, total, false, true, "rate limit retries exhausted"})
					return AnalysisResult{}, usage, cost, err
				}
				if serr := a.sleep(ctx, a.cfg.Backoff); serr != nil {
					return AnalysisResult{}, usage, cost, serr
				}
				continue
			default:
				a.report(ChunkOutcome{fileName, index, total, false, true, err.Error()})
				return AnalysisResult{}, usage, cost, err
			}
		}

		res, perr := ParseResponse(raw, fileName, dataSet)
		if perr != nil {
			var verr *ValidationError
			reason := perr.Error()
			if errors.As(perr, &verr) {
				reason = verr.Error()
			}
			if serr := a.sink.Record(fileName, index, total, reason, raw); serr != nil {
				reason += "; sink write failed: " + serr.Error()
			}
			a.report(ChunkOutcome{fileName, index, total, false, false, reason})
			return AnalysisResult{}, usage, cost, perr
		}

		a.report(ChunkOutcome{fileName, index, total, true, false, ""})
		return res, usage, cost, nil
	}
}

func (a *TieredAnalyzer) report(o ChunkOutcome) {
	if a.Progress != nil {
		a.Progress(o)
	}
}

// placeholderResult stands in when every chunk of a document failed, so
// the document is marked processed and not retried forever.
func placeholderResult(fileName, dataSet string, at time.Time) AnalysisResult {
	return AnalysisResult{
		FileName:     fileName,
		DataSet:      dataSet,
		DocumentType: "other",
		Summary:      "Unable to analyze document",
		Persons:      []PersonMention{},
		Connections:  []Connection{},
		Events:       []Event{},
		Locations:    []string{},
		KeyFacts:     []string{},
		AnalyzedAt:   at,
	}
}
