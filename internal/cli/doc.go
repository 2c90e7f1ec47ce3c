// Package cli wires together the Cobra command tree for the
// llm-reviewer binary.
//
// It defines the root command and all subcommands (action, review,
// config, providers, cache, version), binds flags, reads configuration,
// invokes the review engine, and returns deterministic exit codes for
// CI gating. The action command is the GitHub Action entrypoint: it
// resolves the repository and pull request from the Actions
// environment, reviews the PR diff, and posts line comments plus a
// summary comment.
package cli
