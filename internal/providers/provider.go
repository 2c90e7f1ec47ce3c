package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CompletionRequest carries one prompt submission to an LLM backend.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse contains the raw completion text plus usage
// accounting. Attempts counts the network attempts the call took,
// including the successful one.
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Attempts   int
}

// Client is the provider abstraction interface. Complete blocks until
// the backend answers, retries are exhausted, or ctx is done.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Name() string
	Close() error
}

// Options configures a provider client. OnAttempt, when set, is called
// once per network attempt with its outcome ("success", "retryable" or
// "terminal") and duration.
type Options struct {
	APIKey         string
	BaseURL        string
	MaxRetries     int
	RequestTimeout time.Duration
	Logger         *slog.Logger
	OnAttempt      func(outcome string, elapsed time.Duration)
}

func (o Options) observe(outcome string, elapsed time.Duration) {
	if o.OnAttempt != nil {
		o.OnAttempt(outcome, elapsed)
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// New creates a provider client by name. The context is only used by
// backends that dial during construction.
func New(ctx context.Context, provider string, opts Options) (Client, error) {
	switch provider {
	case "openai":
		return newOpenAI(opts), nil
	case "azure":
		return newAzure(opts)
	case "local":
		return newLocal(opts), nil
	case "anthropic":
		return newAnthropic(opts), nil
	case "gemini":
		return newGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
