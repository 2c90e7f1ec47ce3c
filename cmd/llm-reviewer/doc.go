// Llm-reviewer reviews pull requests with LLM providers and posts
// line-anchored findings as review comments.
//
// It parses a unified diff, packs it into provider-sized chunks,
// reviews the chunks concurrently, and reconciles the findings against
// the pull request's existing comments so re-runs never post the same
// finding twice.
//
// Usage:
//
//	llm-reviewer action                  # run as a GitHub Action
//	llm-reviewer review pr 42            # review a pull request
//	llm-reviewer review pr 42 --post     # review and post comments
//	llm-reviewer review diff fix.patch   # review a diff file
//	git diff | llm-reviewer review diff  # review a diff from stdin
//
// See https://github.com/ILoveScratch2/LLM-Reviewer for full documentation.
package main
