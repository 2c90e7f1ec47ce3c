package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Class partitions provider failures for the retry policy.
type Class string

const (
	// ClassRetryable marks failures that may succeed on a later attempt.
	ClassRetryable Class = "retryable"
	// ClassTerminal marks failures where retrying cannot help.
	ClassTerminal Class = "terminal"
)

// ProviderError is a classified failure from a provider call.
// StatusCode is zero when no HTTP status applies.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Class      Class
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ClassifyStatus maps an HTTP status code to a retry class. 429 and
// all 5xx are retryable; every other status is terminal.
func ClassifyStatus(status int) Class {
	switch {
	case status == 429:
		return ClassRetryable
	case status >= 500:
		return ClassRetryable
	default:
		return ClassTerminal
	}
}

// IsAuthError reports whether err is an authentication or
// authorization failure from a provider.
func IsAuthError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 401 || pe.StatusCode == 403
	}
	return false
}

// retryablePatterns classify errors that reach us as plain strings,
// typically wrapped transport failures from an SDK.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"timeout",
	"deadline exceeded",
	"eof",
}

// Classify determines the retry class of an arbitrary error. Typed
// provider errors keep their class; timeouts and transport failures
// are retryable; anything unrecognized is terminal.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassRetryable
	}
	msg := strings.ToLower(err.Error())
	for _, pat := range retryablePatterns {
		if strings.Contains(msg, pat) {
			return ClassRetryable
		}
	}
	return ClassTerminal
}

// backoffUnit is the exponential backoff base. Tests shrink it.
var backoffUnit = time.Second

// withRetry runs fn up to opts.MaxRetries+1 times, sleeping
// 1<<attempt units between retryable failures. Each attempt gets its
// own timeout from opts.RequestTimeout; cancellation of the parent
// ctx stops everything immediately.
func withRetry(ctx context.Context, name string, opts Options, fn func(context.Context) (CompletionResponse, error)) (CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if opts.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		start := time.Now()
		resp, err := fn(callCtx)
		cancel()
		elapsed := time.Since(start)

		if err == nil {
			opts.observe("success", elapsed)
			resp.Attempts = attempt + 1
			return resp, nil
		}
		if ctx.Err() != nil {
			opts.observe(string(ClassTerminal), elapsed)
			return CompletionResponse{}, ctx.Err()
		}

		lastErr = err
		class := Classify(err)
		opts.observe(string(class), elapsed)
		opts.logger().Debug("provider call failed",
			"provider", name,
			"attempt", attempt+1,
			"class", string(class),
			"error", err)

		if class != ClassRetryable {
			return CompletionResponse{}, err
		}
		if attempt == opts.MaxRetries {
			return CompletionResponse{}, fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt+1, err)
		}

		backoff := time.Duration(1<<uint(attempt)) * backoffUnit
		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return CompletionResponse{}, lastErr
}
