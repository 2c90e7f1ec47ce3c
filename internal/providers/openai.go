package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openAIClient implements Client over the OpenAI chat completions API.
// It also backs the azure and local providers, which speak the same
// protocol against different endpoints.
type openAIClient struct {
	name   string
	client *openai.Client
	opts   Options
}

// newOpenAI creates a client for the hosted OpenAI API, or for any
// compatible endpoint when opts.BaseURL is set.
func newOpenAI(opts Options) *openAIClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0), // retry policy lives in withRetry
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return &openAIClient{name: "openai", client: &client, opts: opts}
}

func (c *openAIClient) Name() string { return c.name }

func (c *openAIClient) Close() error { return nil }

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return withRetry(ctx, c.name, c.opts, func(ctx context.Context) (CompletionResponse, error) {
		return c.complete(ctx, req)
	})
}

func (c *openAIClient) complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, wrapOpenAIError(c.name, err)
	}
	if len(completion.Choices) == 0 {
		return CompletionResponse{}, &ProviderError{
			Provider: c.name,
			Message:  "response contained no choices",
			Class:    ClassTerminal,
		}
	}
	return CompletionResponse{
		Content:    completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func wrapOpenAIError(provider string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
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
