package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mzaremba/quotient/internal/cache"
	"github.com/mzaremba/quotient/internal/llm"
)

// mockProvider returns scripted responses in order
type mockProvider struct {
	responses []*llm.CompletionResponse
	errs      []error
	calls     int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := m.calls
	m.calls++
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	if m.errs != nil && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return m.responses[i], nil
}

func textResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Text: text, Model: "mock-model", TokensUsed: 42}
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleepFunc
	sleepFunc = func(time.Duration) {}
	t.Cleanup(func() { sleepFunc = orig })
}

func TestClient_ExtractJSON(t *testing.T) {
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"name": "adoption", "count": 3}`),
	}}
	client := NewClient(provider, Options{})

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out.Name != "adoption" || out.Count != 3 {
		t.Errorf("decoded %+v", out)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 call, got %d", provider.calls)
	}
}

func TestClient_ExtractJSON_MarkdownFence(t *testing.T) {
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse("Here is the result:\n```json\n{\"ok\": true}\n```\n"),
	}}
	client := NewClient(provider, Options{})

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if !out.OK {
		t.Error("expected ok=true from fenced payload")
	}
}

func TestClient_RetriesParseError(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"broken":`),
		textResponse(`{"fixed": true}`),
	}}
	client := NewClient(provider, Options{MaxRetries: 3})

	var out struct {
		Fixed bool `json:"fixed"`
	}
	if err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("expected recovery on retry, got %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestClient_ExhaustedRetries(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse("no json here at all"),
	}}
	client := NewClient(provider, Options{MaxRetries: 2})

	var out map[string]any
	err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected ParseError in chain, got %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestClient_Truncation(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		{Text: `{"partial":`, Model: "mock-model", TokensUsed: 8192, Truncated: true},
	}}
	client := NewClient(provider, Options{MaxRetries: 2})

	var out map[string]any
	err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out)
	var terr *TruncationError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TruncationError, got %v", err)
	}
	if terr.Tokens != 8192 {
		t.Errorf("Tokens = %d, want 8192", terr.Tokens)
	}
}

func TestClient_EmptyResponse(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse("   \n"),
	}}
	client := NewClient(provider, Options{MaxRetries: 1})

	var out map[string]any
	err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClient_ProviderError(t *testing.T) {
	noSleep(t)
	callErr := fmt.Errorf("backend unavailable")
	provider := &mockProvider{
		responses: []*llm.CompletionResponse{nil, textResponse(`{"ok": true}`)},
		errs:      []error{callErr, nil},
	}
	client := NewClient(provider, Options{MaxRetries: 3})

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.ExtractJSON(context.Background(), Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("expected recovery after transient backend error, got %v", err)
	}
}

func TestClient_ValidationRetry(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"count": -1}`),
		textResponse(`{"count": 5}`),
	}}
	client := NewClient(provider, Options{MaxRetries: 3})

	var out struct {
		Count int `json:"count"`
	}
	validate := func() error {
		if out.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
		return nil
	}

	if err := client.ExtractJSONValidated(context.Background(), Request{Prompt: "p"}, &out, validate); err != nil {
		t.Fatalf("expected recovery after schema violation, got %v", err)
	}
	if out.Count != 5 {
		t.Errorf("Count = %d, want 5", out.Count)
	}
}

func TestClient_RetryDecodesIntoCleanValue(t *testing.T) {
	noSleep(t)
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"codes": [{"id": "STALE", "level": 5}]}`),
		textResponse(`{"count": 1}`),
	}}
	client := NewClient(provider, Options{MaxRetries: 3})

	var out struct {
		Codes []struct {
			ID    string `json:"id"`
			Level int    `json:"level"`
		} `json:"codes"`
		Count int `json:"count"`
	}
	validate := func() error {
		for _, c := range out.Codes {
			if c.Level != 0 {
				return fmt.Errorf("bad level %d for %s", c.Level, c.ID)
			}
		}
		return nil
	}

	// The second payload omits the codes key entirely. If the first
	// attempt's rejected codes survived into the second decode, validation
	// would fail again on stale data.
	if err := client.ExtractJSONValidated(context.Background(), Request{Prompt: "p"}, &out, validate); err != nil {
		t.Fatalf("expected clean decode on retry, got %v", err)
	}
	if len(out.Codes) != 0 {
		t.Errorf("stale codes carried across attempts: %+v", out.Codes)
	}
	if out.Count != 1 {
		t.Errorf("Count = %d, want 1", out.Count)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"ok": true}`),
	}}
	client := NewClient(provider, Options{MaxRetries: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]any
	err := client.ExtractJSON(ctx, Request{Prompt: "p"}, &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("expected no backend calls after cancellation, got %d", provider.calls)
	}
}

func TestClient_CacheHit(t *testing.T) {
	provider := &mockProvider{responses: []*llm.CompletionResponse{
		textResponse(`{"value": "cached"}`),
	}}
	client := NewClient(provider, Options{Cache: cache.NewMemoryCache(time.Minute, time.Minute)})

	var first, second struct {
		Value string `json:"value"`
	}
	req := Request{Prompt: "same prompt", Model: "m"}

	if err := client.ExtractJSON(context.Background(), req, &first); err != nil {
		t.Fatal(err)
	}
	if err := client.ExtractJSON(context.Background(), req, &second); err != nil {
		t.Fatal(err)
	}

	if provider.calls != 1 {
		t.Errorf("expected 1 backend call with warm cache, got %d", provider.calls)
	}
	if second.Value != "cached" {
		t.Errorf("cache round-trip: %q", second.Value)
	}
}
