// Package review contains the core types and engine for LLM-based code
// review of pull request diffs.
//
// It defines the Finding, Report, and Severity types, packs diff hunks
// into provider-sized chunks with content-hashed identifiers, parses
// and validates JSON responses from LLM providers, and anchors every
// finding to a line that exists on the new side of the diff.
//
// Chunks are reviewed concurrently with bounded parallelism; results
// correlate back to their chunk by identifier, so findings merge in
// chunk-submission order regardless of network completion order. One
// chunk's failure never discards another chunk's findings.
//
// The reconciler (reconcile.go) compares findings against the comment
// keys already present on a pull request and emits create/skip
// decisions, making repeated runs over an unchanged commit idempotent.
//
// Rules packs (rules.go) allow callers to override finding severities,
// specify focus areas, and declare required checks that must appear in
// every review.
package review
