// Package providers implements the Client interface for each supported
// LLM backend.
//
// Supported providers: OpenAI (GPT), Azure OpenAI, Anthropic (Claude),
// Google (Gemini), and local OpenAI-compatible servers such as Ollama
// and LM Studio.
//
// All providers share a retry helper with exponential back-off. Failures
// are classified as retryable (429, 5xx, timeouts, transport errors) or
// terminal (auth failures and other 4xx); classification is a pure
// function over the error, so the policy is testable without a network.
// SDK-internal retries are disabled so that every attempt is observable
// through Options.OnAttempt.
//
// Use [New] to obtain a Client by provider name. Base URLs can be
// pointed at local httptest servers in tests.
package providers
