// Package redact removes secrets from diff content before it is sent to
// any LLM provider.
//
// Detection uses regex heuristics covering common secret shapes: API
// keys, JWTs, private keys, AWS access key IDs and secret access keys,
// bearer tokens, database connection strings with embedded credentials,
// and provider-specific tokens (Anthropic, OpenAI, GitHub, Slack).
//
// Redaction runs line by line and never changes the line count of its
// input, so review findings still anchor to the correct diff positions
// afterward. Files whose paths match configured patterns are withheld
// from review entirely via [ShouldRedactPath].
package redact
