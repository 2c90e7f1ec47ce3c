package providers

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// azureAPIVersion pins the Azure OpenAI service API version.
const azureAPIVersion = "2024-06-01"

// newAzure creates a client for an Azure OpenAI deployment. The base
// URL must be the resource endpoint, and the model name in requests is
// the deployment name.
func newAzure(opts Options) (*openAIClient, error) {
	if opts.BaseURL == "" {
		return nil, &ProviderError{
			Provider: "azure",
			Message:  "azure requires the resource endpoint as base URL",
			Class:    ClassTerminal,
		}
	}
	client := openai.NewClient(
		azure.WithEndpoint(opts.BaseURL, azureAPIVersion),
		azure.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	)
	return &openAIClient{name: "azure", client: &client, opts: opts}, nil
}
