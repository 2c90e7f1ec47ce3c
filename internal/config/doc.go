// Package config loads and merges llm-reviewer configuration from
// multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. GitHub Action inputs (INPUT_API_KEY, INPUT_MODEL_NAME,
//     INPUT_TEMPERATURE, and friends), with provider-native key
//     variables such as OPENAI_API_KEY accepted as fallbacks
//  3. Config file ($XDG_CONFIG_HOME/llm-reviewer/config.json)
//  4. Built-in defaults
//
// [Load] returns the merged [Config]; callers validate it with
// [Config.Validate] before doing anything that touches the network.
// Validation failures are [ConfigError] values.
package config
