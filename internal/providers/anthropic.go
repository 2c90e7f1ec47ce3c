package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient implements Client over the Anthropic Messages API.
type anthropicClient struct {
	client *anthropic.Client
	opts   Options
}

func newAnthropic(opts Options) *anthropicClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return &anthropicClient{client: &client, opts: opts}
}

func (c *anthropicClient) Name() string { return "anthropic" }

func (c *anthropicClient) Close() error { return nil }

func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return withRetry(ctx, "anthropic", c.opts, func(ctx context.Context) (CompletionResponse, error) {
		return c.complete(ctx, req)
	})
}

func (c *anthropicClient) complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	// The Messages API caps temperature at 1.
	temp := req.Temperature
	if temp > 1 {
		temp = 1
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(temp),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, wrapAnthropicError("anthropic", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return CompletionResponse{}, &ProviderError{
			Provider: "anthropic",
			Message:  "response contained no text blocks",
			Class:    ClassTerminal,
		}
	}
	return CompletionResponse{
		Content:    content.String(),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

func wrapAnthropicError(provider string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		msg := apierr.Error()
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", apierr.StatusCode)
		}
		return &ProviderError{
			Provider:   provider,
			StatusCode: apierr.StatusCode,
			Message:    msg,
			Class:      ClassifyStatus(apierr.StatusCode),
		}
	}
	return err
}
