package analysis

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type fakeMessager struct {
	lastParams anthropic.MessageNewParams
	resp       *anthropic.Message
	err        error
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestAnthropicCallerGenerateJSON(t *testing.T) {
	fake := &fakeMessager{resp: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"documentType":`},
			{Type: "text", Text: `"email"}`},
		},
		Usage: anthropic.Usage{InputTokens: 321, OutputTokens: 45},
	}}
	caller := &AnthropicCaller{messages: fake, model: anthropic.ModelClaudeSonnet4_20250514}

	body, usage, err := caller.GenerateJSON(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"documentType":"email"}` {
		t.Fatalf("text blocks not concatenated: %q", body)
	}
	if usage.InputTokens != 321 || usage.OutputTokens != 45 {
		t.Fatalf("usage not reported: %+v", usage)
	}
	if len(fake.lastParams.System) == 0 || !strings.Contains(fake.lastParams.System[0].Text, "documentType") {
		t.Fatal("system prompt not sent")
	}
}

func TestAnthropicCallerPropagatesError(t *testing.T) {
	fake := &fakeMessager{err: errors.New("status code: 500")}
	caller := &AnthropicCaller{messages: fake, model: anthropic.ModelClaudeSonnet4_20250514}
	_, _, err := caller.GenerateJSON(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNewAnthropicCallerFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicCallerFromEnv(); err == nil {
		t.Fatal("expected an error without an API key")
	}

	orig := newAnthropicClient
	defer func() { newAnthropicClient = orig }()
	var gotKey string
	newAnthropicClient = func(apiKey string) AnthropicMessager {
		gotKey = apiKey
		return &fakeMessager{}
	}
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	caller, err := NewAnthropicCallerFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller == nil || gotKey != "test-key" {
		t.Fatalf("client not built from env key: %q", gotKey)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		err  error
		want llmFailureClass
	}{
		{nil, failureNone},
		{context.DeadlineExceeded, failureTimeout},
		{timeoutErr{}, failureTimeout},
		{errors.New("429 Too Many Requests"), failureRateLimit},
		{errors.New("rate_limit_error"), failureRateLimit},
		{errors.New("status code: 503"), failureServer},
		{errors.New("status code: 400 bad request"), failureClient},
		{errors.New("connection reset"), failureServer},
	}
	for _, tc := range cases {
		if got := classifyTransportError(tc.err); got != tc.want {
			t.Fatalf("classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestChunkPrompt(t *testing.T) {
	p := chunkPrompt("the text", "doc.json", "ds", 1, 3)
	if !strings.Contains(p, "Chunk 2 of 3") {
		t.Fatalf("multi-chunk position missing: %q", p)
	}
	single := chunkPrompt("the text", "doc.json", "ds", 0, 1)
	if strings.Contains(single, "Chunk") {
		t.Fatalf("single-chunk prompt should omit position: %q", single)
	}
}
