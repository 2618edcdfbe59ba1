package analysis

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const extractionSystemPrompt = `You are an analyst extracting structured data from public-record documents. Respond with strict JSON only, matching this schema:
{
  "documentType": "string",
  "dateOriginal": "string (partial ISO date or empty)",
  "summary": "string (one paragraph)",
  "persons": [{"name": "string", "role": "string", "category": "key figure | associate | victim | witness | legal | political | law enforcement | staff | other", "context": "string (short excerpt)", "mentionCount": "integer >= 1"}],
  "connections": [{"person1": "string", "person2": "string", "relationshipType": "string", "description": "string", "strength": "integer 1-5"}],
  "events": [{"date": "string or empty", "title": "string", "description": "string", "category": "string", "significance": "integer 1-5", "personsInvolved": ["string"]}],
  "locations": ["string"],
  "keyFacts": ["string"]
}
Rules: exclude redacted or placeholder names (Jane Doe, [REDACTED]); exclude organizations; use only the listed category values; keep strength and significance within 1-5. Return ONLY the JSON object.`

type llmFailureClass int

const (
	failureNone llmFailureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

// TokenUsage is the token accounting for one model call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// LLMCaller issues one extraction call and reports token usage.
type LLMCaller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, TokenUsage, error)
}

// AnthropicMessager is the slice of the Anthropic client the caller
// needs; it exists so tests can substitute a fake.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCaller implements LLMCaller over the Anthropic Messages API.
type AnthropicCaller struct {
	messages AnthropicMessager
	model    anthropic.Model
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// NewAnthropicCallerFromEnv builds a caller from ANTHROPIC_API_KEY.
func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return &AnthropicCaller{
		messages: newAnthropicClient(apiKey),
		model:    anthropic.ModelClaudeSonnet4_20250514,
	}, nil
}

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, TokenUsage, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   4096,
		System:      []anthropic.TextBlockParam{{Text: extractionSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", TokenUsage{}, err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	usage := TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return sb.String(), usage, nil
}

func classifyTransportError(err error) llmFailureClass {
	if err == nil {
		return failureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func chunkPrompt(chunk, fileName, dataSet string, index, total int) string {
	var b strings.Builder
	b.WriteString("Extract structured data from this document excerpt.\n")
	b.WriteString("File: " + fileName + "\n")
	b.WriteString("Dataset: " + dataSet + "\n")
	if total > 1 {
		b.WriteString("Chunk " + strconv.Itoa(index+1) + " of " + strconv.Itoa(total) + "\n")
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(chunk)
	return b.String()
}

// defaultBackoff is the fixed wait after a rate-limit signal before the
// same chunk is retried.
const defaultBackoff = 5 * time.Second
