package providers

import (
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// defaultLocalURL is where Ollama listens out of the box.
const defaultLocalURL = "http://localhost:11434/v1"

// newLocal creates a client for local OpenAI-compatible servers such
// as Ollama, LM Studio, llama.cpp or vLLM. No API key is required; a
// placeholder is sent because some servers insist on a bearer token.
func newLocal(opts Options) *openAIClient {
	key := opts.APIKey
	if key == "" {
		key = "unused"
	}
	client := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(normalizeLocalURL(opts.BaseURL)),
		option.WithMaxRetries(0),
	)
	return &openAIClient{name: "local", client: &client, opts: opts}
}

// normalizeLocalURL accepts OLLAMA_HOST-style values (bare host:port,
// no scheme, no path) and returns a chat-completions base URL.
func normalizeLocalURL(raw string) string {
	if raw == "" {
		raw = os.Getenv("OLLAMA_HOST")
	}
	if raw == "" {
		return defaultLocalURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	raw = strings.TrimRight(raw, "/")
	raw = strings.TrimSuffix(raw, "/v1/chat/completions")
	raw = strings.TrimSuffix(raw, "/v1")
	return raw + "/v1"
}
