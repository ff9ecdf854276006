package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"chatsummary/internal/config"
	"chatsummary/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + marshalString(content) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func marshalString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestOpenAI(apiBase string, visionModels ...string) *OpenAI {
	return NewOpenAI(OpenAIConfig{
		APIKey:       "test-key",
		APIBase:      apiBase,
		Model:        "gpt-4o-mini",
		VisionModels: visionModels,
		Logger:       testLogger(),
	})
}

func TestSummarize_SendsPromptAndTranscript(t *testing.T) {
	var captured oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody("今天大家讨论了聚餐安排。")))
	}))
	defer srv.Close()

	o := newTestOpenAI(srv.URL)
	got, err := o.Summarize(context.Background(), "请总结以下聊天记录：", "[2024-01-01 12:00:00]「a」: hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "今天大家讨论了聚餐安排。" {
		t.Fatalf("unexpected summary: %q", got)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected roles: %s, %s", captured.Messages[0].Role, captured.Messages[1].Role)
	}
}

func TestSummarize_RateLimitClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Summarize(context.Background(), "p", "t")

	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if domain.Classify(err) != domain.KindRateLimit {
		t.Fatalf("expected rate-limit kind, got %s", domain.Classify(err))
	}
}

func TestSummarize_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Summarize(context.Background(), "p", "t")

	var tr *domain.TransientProviderError
	if !errors.As(err, &tr) {
		t.Fatalf("expected TransientProviderError, got %v", err)
	}
}

func TestSummarize_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Summarize(context.Background(), "p", "t")

	var empty *domain.EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResponseError, got %v", err)
	}
}

func TestSummarize_BlankContentIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("   ")))
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Summarize(context.Background(), "p", "t")

	var empty *domain.EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResponseError for blank content, got %v", err)
	}
}

func TestCaption_SendsImageURLPart(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody("一张风景照")))
	}))
	defer srv.Close()

	o := newTestOpenAI(srv.URL, "gpt-4o-mini")
	got, err := o.Caption(context.Background(), "https://img.example.com/1.jpg", "描述这张图片")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "一张风景照" {
		t.Fatalf("unexpected caption: %q", got)
	}

	msgs := raw["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(parts))
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" {
		t.Fatalf("expected image_url part, got %v", img["type"])
	}
	if img["image_url"].(map[string]any)["url"] != "https://img.example.com/1.jpg" {
		t.Fatalf("image url not forwarded: %v", img)
	}
}

func TestSupportsVision(t *testing.T) {
	if newTestOpenAI("http://unused").SupportsVision() {
		t.Fatal("empty allowlist must mean no vision")
	}
	if !newTestOpenAI("http://unused", "gpt-4o", "GPT-4O-MINI").SupportsVision() {
		t.Fatal("expected case-insensitive allowlist match")
	}
	if newTestOpenAI("http://unused", "gpt-4o").SupportsVision() {
		t.Fatal("model off the allowlist must not report vision")
	}
}

func TestFactory_GetCachesInstances(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers["openai"] = config.ProviderConfig{
		Enabled:      true,
		APIKey:       "k",
		DefaultModel: "gpt-4o-mini",
	}
	f := NewFactory(cfg, testLogger())

	a, err := f.Get("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := f.Get("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected the cached instance on the second Get")
	}
}

func TestFactory_UnknownAndDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers["off"] = config.ProviderConfig{Enabled: false, APIKey: "k", APIBase: "http://x"}
	f := NewFactory(cfg, testLogger())

	if _, err := f.Get("nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := f.Get("off"); err == nil {
		t.Fatal("expected error for disabled provider")
	}
}

func TestFactory_CompatibleFallback(t *testing.T) {
	cfg := config.Defaults()
	cfg.Providers["deepseek"] = config.ProviderConfig{
		Enabled:      true,
		APIBase:      "https://api.deepseek.com/v1",
		APIKey:       "k",
		DefaultModel: "deepseek-chat",
	}
	f := NewFactory(cfg, testLogger())

	p, err := f.Get("deepseek")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*OpenAI); !ok {
		t.Fatalf("expected OpenAI-compatible fallback, got %T", p)
	}
}
