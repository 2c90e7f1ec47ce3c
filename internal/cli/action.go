package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/config"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/github"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/output"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/review"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Run as a GitHub Action",
	Long: "Review the pull request that triggered the workflow. The repository, pull request number " +
		"and review settings all come from the Actions environment (GITHUB_REPOSITORY, GITHUB_REF, " +
		"GITHUB_EVENT_PATH and the INPUT_* variables).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		owner, repo, err := github.Repository()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		number, err := github.PullNumber()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		logger := newLogger()
		gh, err := github.NewClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}
		gh.Logger = logger

		logger.Info("action run", "repo", owner+"/"+repo, "pr", number)

		ctx := context.Background()
		report := reviewPullRequest(ctx, gh, owner, repo, number, cfg, logger, true)
		if report == nil {
			return nil
		}

		// The text report goes to the workflow log; the markdown lives
		// on the PR as the summary comment.
		if err := output.WriteReport(report, "text", ""); err != nil {
			logger.Warn("writing report failed", "error", err)
		}
		if path := os.Getenv("GITHUB_STEP_SUMMARY"); path != "" {
			if err := appendStepSummary(path, report); err != nil {
				logger.Warn("writing step summary failed", "error", err)
			}
		}

		if allChunksFailed(report) {
			fmt.Fprintf(os.Stderr, "Error: all %d chunks failed\n", report.Summary.ChunksTotal)
			exitCode = ExitRuntimeError
			return nil
		}

		for _, f := range report.Findings {
			if review.MeetsThreshold(f.Severity, cfg.FailOn) {
				exitCode = ExitFindings
				return nil
			}
		}
		return nil
	},
}

// appendStepSummary renders the markdown report into the Actions job
// summary file. Runners truncate the file past 1 MiB, which a review
// report never approaches.
func appendStepSummary(path string, report *review.Report) error {
	var body bytes.Buffer
	if err := (&output.MarkdownWriter{}).Write(&body, report); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(body.Bytes()); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

// postToGitHub reconciles the report's findings against the PR's
// existing comments and executes the resulting operations: inline
// comments per create decision, then the upserted summary comment.
// Individual comment failures are recorded on the report and never
// abort the loop.
func postToGitHub(ctx context.Context, gh *github.Client, owner, repo string, number int, report *review.Report, cfg config.Config) error {
	if cfg.InlineComments {
		headSHA, err := gh.HeadSHA(ctx, owner, repo, number)
		if err != nil {
			return err
		}
		existing, err := gh.FetchExistingCommentKeys(ctx, owner, repo, number)
		if err != nil {
			return err
		}

		ops := review.Reconcile(report.Findings, existing)
		report.Posts = gh.PostFindings(ctx, owner, repo, number, headSHA, ops)
	}

	if cfg.SummaryComment {
		var body bytes.Buffer
		if err := (&output.MarkdownWriter{}).Write(&body, report); err != nil {
			return fmt.Errorf("rendering summary: %w", err)
		}
		if err := gh.UpsertSummary(ctx, owner, repo, number, body.String()); err != nil {
			return err
		}
	}

	return nil
}
