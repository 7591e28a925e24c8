package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lecturenote/internal/services"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body chatCompletionRequestEcho
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)
	return server
}

type chatCompletionRequestEcho struct {
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Format      map[string]string `json:"response_format"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func writeContent(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientCompleteSendsPromptsAndSettings(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("missing bearer token")
		}
		if body.Model != "demo-model" || body.Temperature != 0.3 || body.MaxTokens != 4096 {
			t.Errorf("unexpected settings %+v", body)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}
		writeContent(t, w, "  summary text  ")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo-model", Temperature: 0.3, MaxTokens: 4096})
	got, err := client.Complete(context.Background(), Request{System: "be brief", Prompt: "summarize"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "summary text" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestClientCompleteInlinesImage(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		var parts []contentPart
		if err := json.Unmarshal(body.Messages[len(body.Messages)-1].Content, &parts); err != nil {
			t.Errorf("expected content parts: %v", err)
		}
		if len(parts) != 2 || parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
			t.Errorf("unexpected parts %+v", parts)
		}
		writeContent(t, w, "# Slide")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1/chat/completions", Model: "vision"})
	got, err := client.Complete(context.Background(), Request{Prompt: "read", Image: []byte{1, 2, 3}, ImageMIME: "image/png"})
	if err != nil || got != "# Slide" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		if body.Format["type"] != jsonResponseType {
			t.Errorf("expected json response format, got %v", body.Format)
		}
		writeContent(t, w, "```json\n{\"ok\":true}\n```")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientFailsFastOnUnauthorized(t *testing.T) {
	var calls int
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})
	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL + "/v1", Model: "demo"})
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retry, got %d calls", calls)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeContent(t, w, "ok")
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
	)
	if _, err := client.Complete(context.Background(), Request{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if calls != 2 || len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected one retry after 1s, got calls=%d slept=%v", calls, slept)
	}
}

func TestClientEmptyContentExhaustsRetries(t *testing.T) {
	var calls int
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request, body chatCompletionRequestEcho) {
		calls++
		writeContent(t, w, "")
	})
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(3),
	)
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestCompleteRequiresInput(t *testing.T) {
	client := NewClient(Config{APIKey: "test", Model: "demo"})
	if _, err := client.Complete(context.Background(), Request{System: "only system"}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	if _, err := New(Config{Provider: "openai", Model: "m"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing key, got %v", err)
	}
	if _, err := New(Config{Provider: "mystery", APIKey: "k", Model: "m"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown provider, got %v", err)
	}
	completer, err := New(Config{Provider: "gemini", APIKey: "k", Model: "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("New gemini: %v", err)
	}
	if _, ok := completer.(*GeminiClient); !ok || completer.Model() != "gemini-1.5-pro" {
		t.Fatalf("unexpected completer %T", completer)
	}
	completer, err = New(Config{Provider: "nvidia", APIKey: "k", Model: "meta/llama"})
	if err != nil {
		t.Fatalf("New nvidia: %v", err)
	}
	if _, ok := completer.(*Client); !ok {
		t.Fatalf("unexpected completer %T", completer)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```markdown\n# Title\n```": "# Title",
		"```\nplain\n```":           "plain",
		"no fence":                  "no fence",
	}
	for input, want := range cases {
		if got := StripCodeFence(input); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}
