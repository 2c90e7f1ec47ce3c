// Package cache provides a file-based cache for LLM review responses.
//
// Cache entries are keyed by a SHA-256 hash of the provider name, model,
// and chunk identifier. Chunk identifiers are themselves content hashes,
// so an unchanged chunk hits the cache across runs while any edit to the
// underlying diff misses. Each entry stores the raw LLM response string
// along with a creation timestamp and a TTL (in seconds). Expired
// entries are skipped on read and removed during cache-clear operations.
//
// The default cache directory is $XDG_CACHE_HOME/llm-reviewer (or the
// OS-appropriate equivalent). All payloads stored in the cache have
// already been through secret redaction.
package cache
