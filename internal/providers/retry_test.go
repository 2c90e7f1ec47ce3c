package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// shortBackoff shrinks retry sleeps for the duration of a test.
func shortBackoff(t *testing.T) {
	t.Helper()
	old := backoffUnit
	backoffUnit = time.Millisecond
	t.Cleanup(func() { backoffUnit = old })
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Class
	}{
		{429, ClassRetryable},
		{500, ClassRetryable},
		{502, ClassRetryable},
		{503, ClassRetryable},
		{504, ClassRetryable},
		{400, ClassTerminal},
		{401, ClassTerminal},
		{403, ClassTerminal},
		{404, ClassTerminal},
		{422, ClassTerminal},
		{200, ClassTerminal},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"provider retryable", &ProviderError{StatusCode: 429, Class: ClassRetryable}, ClassRetryable},
		{"provider terminal", &ProviderError{StatusCode: 401, Class: ClassTerminal}, ClassTerminal},
		{"wrapped provider error", fmt.Errorf("call failed: %w", &ProviderError{StatusCode: 503, Class: ClassRetryable}), ClassRetryable},
		{"deadline", context.DeadlineExceeded, ClassRetryable},
		{"wrapped deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), ClassRetryable},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ClassRetryable},
		{"connection reset", errors.New("read tcp: connection reset by peer"), ClassRetryable},
		{"unexpected eof", errors.New("unexpected EOF"), ClassRetryable},
		{"plain error", errors.New("invalid model name"), ClassTerminal},
		{"nil", nil, ClassTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(&ProviderError{StatusCode: 401, Class: ClassTerminal}) {
		t.Error("401 should be an auth error")
	}
	if !IsAuthError(fmt.Errorf("wrapped: %w", &ProviderError{StatusCode: 403, Class: ClassTerminal})) {
		t.Error("wrapped 403 should be an auth error")
	}
	if IsAuthError(&ProviderError{StatusCode: 429, Class: ClassRetryable}) {
		t.Error("429 should not be an auth error")
	}
	if IsAuthError(errors.New("some error")) {
		t.Error("plain error should not be an auth error")
	}
}

func TestWithRetry_SucceedsAfterRetryable(t *testing.T) {
	shortBackoff(t)

	calls := 0
	resp, err := withRetry(context.Background(), "test", Options{MaxRetries: 3}, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		if calls < 3 {
			return CompletionResponse{}, &ProviderError{StatusCode: 429, Message: "rate limited", Class: ClassRetryable}
		}
		return CompletionResponse{Content: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("withRetry error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_TerminalStopsImmediately(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "test", Options{MaxRetries: 3}, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		return CompletionResponse{}, &ProviderError{StatusCode: 401, Message: "bad key", Class: ClassTerminal}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	shortBackoff(t)

	calls := 0
	_, err := withRetry(context.Background(), "test", Options{MaxRetries: 2}, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		return CompletionResponse{}, &ProviderError{StatusCode: 503, Message: "unavailable", Class: ClassRetryable}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected wrapped ProviderError, got %v", err)
	}
	if pe.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", pe.StatusCode)
	}
}

func TestWithRetry_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, "test", Options{MaxRetries: 5}, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		cancel()
		return CompletionResponse{}, &ProviderError{StatusCode: 429, Class: ClassRetryable}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ObserverSeesEveryAttempt(t *testing.T) {
	shortBackoff(t)

	var outcomes []string
	opts := Options{
		MaxRetries: 2,
		OnAttempt: func(outcome string, elapsed time.Duration) {
			outcomes = append(outcomes, outcome)
		},
	}
	calls := 0
	_, err := withRetry(context.Background(), "test", opts, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		if calls == 1 {
			return CompletionResponse{}, &ProviderError{StatusCode: 500, Class: ClassRetryable}
		}
		return CompletionResponse{Content: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("withRetry error: %v", err)
	}
	want := []string{"retryable", "success"}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcomes[%d] = %q, want %q", i, outcomes[i], want[i])
		}
	}
}

func TestWithRetry_PerCallTimeout(t *testing.T) {
	shortBackoff(t)

	opts := Options{MaxRetries: 1, RequestTimeout: 5 * time.Millisecond}
	calls := 0
	_, err := withRetry(context.Background(), "test", opts, func(ctx context.Context) (CompletionResponse, error) {
		calls++
		<-ctx.Done()
		return CompletionResponse{}, ctx.Err()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// Per-call deadlines are retryable, so both attempts run.
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
