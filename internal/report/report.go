// Package report renders run completion summaries as markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Summary is the completion accounting for one analysis run.
type Summary struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	DataSet     string
	Processed   int
	Skipped     int
	Invalid     int
	Tier0       int
	Tier1       int
	InputTokens int
	OutputTok   int
	CostCents   float64
	SkipReasons map[string]int
}

// BuildMarkdown renders the summary as a GFM document.
func BuildMarkdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Analysis Run Summary\n\n")
	if s.DataSet != "" {
		fmt.Fprintf(&b, "Dataset: **%s**\n\n", s.DataSet)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started %s, finished %s (%s).\n\n",
			s.StartedAt.UTC().Format(time.RFC3339),
			s.FinishedAt.UTC().Format(time.RFC3339),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	}

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Documents processed | %d |\n", s.Processed)
	fmt.Fprintf(&b, "| Documents skipped | %d |\n", s.Skipped)
	fmt.Fprintf(&b, "| Invalid chunk responses | %d |\n", s.Invalid)
	fmt.Fprintf(&b, "| Tier 0 results | %d |\n", s.Tier0)
	fmt.Fprintf(&b, "| Tier 1 results | %d |\n", s.Tier1)
	fmt.Fprintf(&b, "| Input tokens | %d |\n", s.InputTokens)
	fmt.Fprintf(&b, "| Output tokens | %d |\n", s.OutputTok)
	fmt.Fprintf(&b, "| Spend | %.2f¢ |\n", s.CostCents)

	if len(s.SkipReasons) > 0 {
		b.WriteString("\n## Skip reasons\n\n")
		reasons := make([]string, 0, len(s.SkipReasons))
		for r := range s.SkipReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", r, s.SkipReasons[r])
		}
	}
	return b.String()
}

// RenderHTML converts the markdown summary to HTML with GFM tables.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}
