package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// geminiClient implements Client over the Google Generative AI API.
type geminiClient struct {
	client *genai.Client
	opts   Options
}

func newGemini(ctx context.Context, opts Options) (*geminiClient, error) {
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &geminiClient{client: client, opts: opts}, nil
}

func (c *geminiClient) Name() string { return "gemini" }

func (c *geminiClient) Close() error { return c.client.Close() }

func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return withRetry(ctx, "gemini", c.opts, func(ctx context.Context) (CompletionResponse, error) {
		return c.complete(ctx, req)
	})
}

func (c *geminiClient) complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.ResponseMIMEType = "application/json"
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return CompletionResponse{}, wrapGeminiError("gemini", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return CompletionResponse{}, &ProviderError{
			Provider: "gemini",
			Message:  "response contained no candidates",
			Class:    ClassTerminal,
		}
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content.WriteString(string(text))
		}
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return CompletionResponse{Content: content.String(), TokensUsed: tokens}, nil
}

func wrapGeminiError(provider string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", gerr.Code)
		}
		return &ProviderError{
			Provider:   provider,
			StatusCode: gerr.Code,
			Message:    msg,
			Class:      ClassifyStatus(gerr.Code),
		}
	}
	return err
}
