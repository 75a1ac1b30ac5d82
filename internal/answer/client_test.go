package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/platform/openrouter"
)

// fakeCompleter scripts one behavior per model name.
type fakeCompleter struct {
	mu       sync.Mutex
	behavior map[string]func(ctx context.Context) (*openrouter.Completion, error)
	calls    []string
}

func (f *fakeCompleter) ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (*openrouter.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Model)
	fn, ok := f.behavior[req.Model]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("unexpected model " + req.Model)
	}
	return fn(ctx)
}

func (f *fakeCompleter) calledModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func succeed(model, content string, after time.Duration) func(ctx context.Context) (*openrouter.Completion, error) {
	return func(ctx context.Context) (*openrouter.Completion, error) {
		select {
		case <-time.After(after):
			return &openrouter.Completion{Model: model, Content: content}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func failWith(err error) func(ctx context.Context) (*openrouter.Completion, error) {
	return func(ctx context.Context) (*openrouter.Completion, error) {
		return nil, err
	}
}

func hangUntilDeadline() func(ctx context.Context) (*openrouter.Completion, error) {
	return func(ctx context.Context) (*openrouter.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func testModels() []ModelDescriptor {
	return []ModelDescriptor{
		{Name: "model-a", Temperature: 0.7, MaxTokens: 1000, TimeoutSeconds: 1},
		{Name: "model-b", Temperature: 0.8, MaxTokens: 1000, TimeoutSeconds: 1},
		{Name: "model-c", Temperature: 0.7, MaxTokens: 1000, TimeoutSeconds: 2},
	}
}

func newTestClient(t *testing.T, completer Completer, models []ModelDescriptor) *Client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	c, err := NewClient(log, completer, models, 3)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

var testMessages = []openrouter.Message{{Role: "user", Content: "what are your hours"}}

func TestGenerateFirstSuccessWins(t *testing.T) {
	completer := &fakeCompleter{behavior: map[string]func(ctx context.Context) (*openrouter.Completion, error){
		"model-a": succeed("model-a", "slow answer", 300*time.Millisecond),
		"model-b": succeed("model-b", "fast answer", 10*time.Millisecond),
		"model-c": succeed("model-c", "slower answer", 500*time.Millisecond),
	}}
	c := newTestClient(t, completer, testModels())

	result, err := c.Generate(context.Background(), testMessages, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-b" || result.Content != "fast answer" {
		t.Fatalf("result: got model=%q content=%q", result.Model, result.Content)
	}
}

func TestGenerateThirdSucceedsAfterTimeoutAndRateLimit(t *testing.T) {
	completer := &fakeCompleter{behavior: map[string]func(ctx context.Context) (*openrouter.Completion, error){
		"model-a": hangUntilDeadline(),
		"model-b": failWith(&openrouter.HTTPError{StatusCode: 429, Body: "rate limit exceeded"}),
		"model-c": succeed("model-c", "the answer", 50*time.Millisecond),
	}}
	c := newTestClient(t, completer, testModels())

	start := time.Now()
	result, err := c.Generate(context.Background(), testMessages, "")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-c" || result.Content != "the answer" {
		t.Fatalf("result: got model=%q content=%q", result.Model, result.Content)
	}
	// Attempts race concurrently: total latency tracks the winner, not the
	// sum of the losers' timeouts.
	if elapsed > time.Second {
		t.Fatalf("latency not bounded by winner: %v", elapsed)
	}
	if calls := completer.calledModels(); len(calls) != 3 {
		t.Fatalf("calls: want=3 got=%v", calls)
	}
}

func TestGenerateAllModelsExhausted(t *testing.T) {
	completer := &fakeCompleter{behavior: map[string]func(ctx context.Context) (*openrouter.Completion, error){
		"model-a": failWith(&openrouter.HTTPError{StatusCode: 402, Body: "insufficient credits"}),
		"model-b": failWith(&openrouter.HTTPError{StatusCode: 429, Body: "too many requests"}),
		"model-c": failWith(errors.New("connection refused")),
	}}
	c := newTestClient(t, completer, testModels())

	_, err := c.Generate(context.Background(), testMessages, "")
	if !errors.Is(err, ErrAllModelsExhausted) {
		t.Fatalf("want ErrAllModelsExhausted, got %v", err)
	}
}

func TestGeneratePreferredModelIncluded(t *testing.T) {
	completer := &fakeCompleter{behavior: map[string]func(ctx context.Context) (*openrouter.Completion, error){
		"model-a": succeed("model-a", "a", 200*time.Millisecond),
		"model-b": succeed("model-b", "b", 200*time.Millisecond),
		"model-c": succeed("model-c", "c", 5*time.Millisecond),
	}}
	c := newTestClient(t, completer, testModels())

	result, err := c.Generate(context.Background(), testMessages, "model-c")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-c" {
		t.Fatalf("result model: want=%q got=%q", "model-c", result.Model)
	}
	calls := completer.calledModels()
	found := false
	for _, m := range calls {
		if m == "model-c" {
			found = true
		}
	}
	if !found {
		t.Fatalf("preferred model never attempted: %v", calls)
	}
}

func TestGenerateParentContextCancellation(t *testing.T) {
	completer := &fakeCompleter{behavior: map[string]func(ctx context.Context) (*openrouter.Completion, error){
		"model-a": hangUntilDeadline(),
		"model-b": hangUntilDeadline(),
		"model-c": hangUntilDeadline(),
	}}
	c := newTestClient(t, completer, testModels())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, testMessages, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

func TestSelectCandidates(t *testing.T) {
	models := testModels()

	got := selectCandidates(models, "", 3)
	if len(got) != 3 || got[0].Name != "model-a" {
		t.Fatalf("plain priority order: got=%v", names(got))
	}

	got = selectCandidates(models, "model-b", 2)
	if len(got) != 2 || got[0].Name != "model-b" || got[1].Name != "model-a" {
		t.Fatalf("preferred first: got=%v", names(got))
	}

	got = selectCandidates(models, "unknown-model", 2)
	if len(got) != 2 || got[0].Name != "model-a" {
		t.Fatalf("unknown preferred falls back to priority: got=%v", names(got))
	}

	got = selectCandidates(models, "", 10)
	if len(got) != 3 {
		t.Fatalf("cap beyond list length: got=%v", names(got))
	}
}

func names(models []ModelDescriptor) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.Name
	}
	return out
}

func TestConfidenceMarkerAppendsReferral(t *testing.T) {
	p := NewConfidenceMarker("")

	got := p.Process("I don't have that information in my knowledge base.")
	if !strings.Contains(got, DefaultReferral) {
		t.Fatalf("referral not appended: %q", got)
	}
	// Applying twice must not stack referrals.
	again := p.Process(got)
	if strings.Count(again, DefaultReferral) != 1 {
		t.Fatalf("referral duplicated: %q", again)
	}
}

func TestConfidenceMarkerLeavesConfidentAnswers(t *testing.T) {
	p := NewConfidenceMarker("")
	answer := "Our support hours are 9 to 5."
	if got := p.Process(answer); got != answer {
		t.Fatalf("confident answer modified: %q", got)
	}
}

func TestLoadModelsMissingFileUsesDefaults(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	models, err := LoadModels(log, "/nonexistent/models.yaml")
	if err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	defaults := DefaultModels()
	if len(models) != len(defaults) || models[0].Name != defaults[0].Name {
		t.Fatalf("defaults not returned: got=%v", names(models))
	}
}
