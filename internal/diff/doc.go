// Package diff parses raw unified-diff text into a typed, read-only
// model of changed files, hunks, and line records.
//
// Line records keep their original new-side line numbers, which is what
// review findings anchor to. Binary files, files over a configurable
// size ceiling, and files matching exclude globs or a sensitive-path
// policy are not parsed; they are recorded as skipped with a reason so
// the final report can list them.
//
// A file section that cannot be tokenized into hunks yields a
// [MalformedDiffError] scoped to that file only. The rest of the diff
// still parses.
package diff
