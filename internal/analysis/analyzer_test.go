package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// scriptedCaller replays canned responses or errors in order.
type scriptedCaller struct {
	responses []scriptedResponse
	calls     int
	prompts   []string
}

type scriptedResponse struct {
	body string
	err  error
}

func (c *scriptedCaller) GenerateJSON(_ context.Context, prompt string) (string, TokenUsage, error) {
	if c.calls >= len(c.responses) {
		return "", TokenUsage{}, errors.New("unexpected extra call")
	}
	r := c.responses[c.calls]
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if r.err != nil {
		return "", TokenUsage{}, r.err
	}
	return r.body, TokenUsage{InputTokens: 100, OutputTokens: 50}, nil
}

// countingGate admits allowCalls paid calls, then refuses.
type countingGate struct {
	allowCalls int
	allows     int
	charges    int
}

func (g *countingGate) Allow(context.Context) error {
	if g.allows >= g.allowCalls {
		return ErrBudgetExhausted
	}
	g.allows++
	return nil
}

func (g *countingGate) Charge(_ context.Context, _ string, in, out int) (float64, error) {
	g.charges++
	return 1.5, nil
}

func validChunkJSON(personName string, mentions int) string {
	return fmt.Sprintf(`{"documentType":"deposition","summary":"chunk summary","persons":[{"name":%q,"role":"Witness","category":"witness","context":"","mentionCount":%d}],"connections":[],"events":[],"locations":[],"keyFacts":[]}`, personName, mentions)
}

// multiPageText builds a document that chunks into n pieces at maxChars
// around 200.
func multiPageText(pages int) string {
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		fmt.Fprintf(&b, "Page %d\n%s\n", i, strings.Repeat("testimony ", 15))
	}
	return b.String()
}

func newTestAnalyzer(caller LLMCaller, sink *InvalidSink, gate BudgetGate) *TieredAnalyzer {
	a := NewTieredAnalyzer(nil, caller, sink, gate, &AnalyzerConfig{
		MaxChunkChars: 200,
		Backoff:       time.Millisecond,
	})
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

func TestAnalyzeMergesValidChunks(t *testing.T) {
	caller := &scriptedCaller{responses: []scriptedResponse{
		{body: validChunkJSON("Jane Roberts", 2)},
		{body: validChunkJSON("Jane Roberts", 3)},
	}}
	a := newTestAnalyzer(caller, nil, nil)

	doc := Document{Text: multiPageText(2), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tier != 1 {
		t.Fatalf("expected tier 1, got %d", res.Tier)
	}
	if len(res.Persons) != 1 || res.Persons[0].MentionCount != 5 {
		t.Fatalf("chunk persons not merged: %+v", res.Persons)
	}
	if res.InputTokens != 200 || res.OutputTokens != 100 {
		t.Fatalf("usage not accumulated: in=%d out=%d", res.InputTokens, res.OutputTokens)
	}
}

func TestAnalyzeInvalidChunkRecordedSiblingsContribute(t *testing.T) {
	dir := t.TempDir()
	caller := &scriptedCaller{responses: []scriptedResponse{
		{body: "```json\n{\"documentType\": \"email\",}\n```"},
		{body: validChunkJSON("Jane Roberts", 4)},
	}}
	a := newTestAnalyzer(caller, NewInvalidSink(dir), nil)

	doc := Document{Text: multiPageText(2), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Persons) != 1 || res.Persons[0].MentionCount != 4 {
		t.Fatalf("valid sibling chunk should contribute: %+v", res.Persons)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 invalid record, found %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "doc.json") {
		t.Fatal("invalid record missing file identity")
	}
}

func TestAnalyzeRateLimitRetriesSameChunk(t *testing.T) {
	caller := &scriptedCaller{responses: []scriptedResponse{
		{err: errors.New("429 rate limit exceeded")},
		{body: validChunkJSON("Jane Roberts", 1)},
	}}
	a := newTestAnalyzer(caller, nil, nil)

	doc := Document{Text: strings.Repeat("testimony text ", 20), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.calls != 2 {
		t.Fatalf("expected a retry after rate limit, got %d calls", caller.calls)
	}
	if len(caller.prompts) == 2 && caller.prompts[0] != caller.prompts[1] {
		t.Fatal("retry must resend the same chunk")
	}
	if len(res.Persons) != 1 {
		t.Fatalf("expected the retried chunk's data: %+v", res.Persons)
	}
}

func TestAnalyzeOtherErrorSkipsChunk(t *testing.T) {
	caller := &scriptedCaller{responses: []scriptedResponse{
		{err: errors.New("status code: 500 internal error")},
		{body: validChunkJSON("Jane Roberts", 2)},
	}}
	a := newTestAnalyzer(caller, nil, nil)

	doc := Document{Text: multiPageText(2), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.calls != 2 {
		t.Fatalf("failed chunk must be skipped, not retried: %d calls", caller.calls)
	}
	if len(res.Persons) != 1 {
		t.Fatalf("surviving chunk should contribute: %+v", res.Persons)
	}
}

func TestAnalyzePlaceholderWhenAllChunksFail(t *testing.T) {
	dir := t.TempDir()
	caller := &scriptedCaller{responses: []scriptedResponse{
		{body: "not json at all"},
		{body: "still not json"},
	}}
	a := newTestAnalyzer(caller, NewInvalidSink(dir), nil)

	doc := Document{Text: multiPageText(2), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("total chunk failure must degrade, not error: %v", err)
	}
	if res.DocumentType != "other" {
		t.Fatalf("expected placeholder documentType %q, got %q", "other", res.DocumentType)
	}
	if res.Summary != "Unable to analyze document" {
		t.Fatalf("expected placeholder summary, got %q", res.Summary)
	}
	if len(res.Persons) != 0 {
		t.Fatalf("placeholder must have no persons: %+v", res.Persons)
	}
}

func TestAnalyzeBudgetRefusedBeforeFirstCall(t *testing.T) {
	caller := &scriptedCaller{}
	a := newTestAnalyzer(caller, nil, &countingGate{allowCalls: 0})

	doc := Document{Text: strings.Repeat("testimony text ", 20), FileName: "doc.json"}
	_, err := a.Analyze(context.Background(), doc, "ds")
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if caller.calls != 0 {
		t.Fatalf("no paid call may happen after refusal, got %d", caller.calls)
	}
}

func TestAnalyzeBudgetExhaustedMidDocumentKeepsPartial(t *testing.T) {
	caller := &scriptedCaller{responses: []scriptedResponse{
		{body: validChunkJSON("Jane Roberts", 2)},
	}}
	gate := &countingGate{allowCalls: 1}
	a := newTestAnalyzer(caller, nil, gate)

	doc := Document{Text: multiPageText(3), FileName: "doc.json"}
	res, err := a.Analyze(context.Background(), doc, "ds")
	if err != nil {
		t.Fatalf("partial result expected, not error: %v", err)
	}
	if caller.calls != 1 {
		t.Fatalf("expected exactly 1 paid call, got %d", caller.calls)
	}
	if len(res.Persons) != 1 {
		t.Fatalf("paid chunk should survive budget stop: %+v", res.Persons)
	}
	if gate.charges != 1 {
		t.Fatalf("every paid call must be charged: %d", gate.charges)
	}
}

func TestAnalyzeTooShortDocument(t *testing.T) {
	a := newTestAnalyzer(&scriptedCaller{}, nil, nil)
	_, err := a.Analyze(context.Background(), Document{Text: "tiny", FileName: "doc.json"}, "ds")
	if !errors.Is(err, ErrDocumentTooShort) {
		t.Fatalf("expected ErrDocumentTooShort, got %v", err)
	}
}

func TestAnalyzeNilCallerFallsBackToRules(t *testing.T) {
	a := NewTieredAnalyzer(nil, nil, nil, nil, nil)
	text := "Jeffrey Epstein met with Ghislaine Maxwell on January 5, 2005 in Palm Beach. " + strings.Repeat("pad ", 10)
	res, err := a.Analyze(context.Background(), Document{Text: text, FileName: "doc.json"}, "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tier != 0 {
		t.Fatalf("expected tier 0 fallback, got %d", res.Tier)
	}
}
