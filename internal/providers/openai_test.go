package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 30, "completion_tokens": 20, "total_tokens": 50}
}`

func TestOpenAI_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	c := newOpenAI(Options{APIKey: "test-key", BaseURL: server.URL})

	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:    "reviewer",
		Prompt:    "diff",
		Model:     "gpt-4",
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q, want %q", resp.Content, "[]")
	}
	if resp.TokensUsed != 50 {
		t.Errorf("TokensUsed = %d, want 50", resp.TokensUsed)
	}
}

func TestOpenAI_RateLimitRetries(t *testing.T) {
	shortBackoff(t)

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(429)
			w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	c := newOpenAI(Options{APIKey: "test-key", BaseURL: server.URL, MaxRetries: 3})

	resp, err := c.Complete(context.Background(), CompletionRequest{Prompt: "diff", Model: "gpt-4"})
	if err != nil {
		t.Fatalf("Complete error after retries: %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q, want %q", resp.Content, "[]")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if resp.Attempts != 3 {
		t.Errorf("resp.Attempts = %d, want 3", resp.Attempts)
	}
}

func TestOpenAI_AuthFailureDoesNotRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(401)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	c := newOpenAI(Options{APIKey: "bad-key", BaseURL: server.URL, MaxRetries: 3})

	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "diff", Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	c := newOpenAI(Options{APIKey: "test-key", BaseURL: server.URL})

	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "diff", Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
