package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/cache"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/config"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/github"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/metrics"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/output"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/providers"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/review"
)

// Shared review flags
var (
	flagProvider       string
	flagModel          string
	flagBaseURL        string
	flagLanguage       string
	flagTemperature    string
	flagExclude        string
	flagFormat         string
	flagOut            string
	flagFailOn         string
	flagMaxFindings    int
	flagMaxChunkTokens int
	flagConcurrency    int
	flagRules          string
	flagNoRedact       bool
	flagNoCache        bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, azure, local, anthropic, gemini)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Provider base URL override")
	cmd.Flags().StringVar(&flagLanguage, "language", "", "Natural language for finding rationale text")
	cmd.Flags().StringVar(&flagTemperature, "temperature", "", "Sampling temperature [0,2]")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Fail on severity threshold (none, low, medium, high, critical)")
	cmd.Flags().IntVar(&flagMaxFindings, "max-findings", 0, "Maximum number of findings")
	cmd.Flags().IntVar(&flagMaxChunkTokens, "max-chunk-tokens", 0, "Token budget per prompt chunk")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Concurrent provider calls")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Disable the response cache")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagBaseURL != "" {
		m["baseURL"] = flagBaseURL
	}
	if flagLanguage != "" {
		m["language"] = flagLanguage
	}
	if flagTemperature != "" {
		m["temperature"] = flagTemperature
	}
	if flagExclude != "" {
		m["exclude"] = flagExclude
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagMaxFindings > 0 {
		m["maxFindings"] = strconv.Itoa(flagMaxFindings)
	}
	if flagMaxChunkTokens > 0 {
		m["maxChunkTokens"] = strconv.Itoa(flagMaxChunkTokens)
	}
	if flagConcurrency > 0 {
		m["concurrency"] = strconv.Itoa(flagConcurrency)
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	if flagNoRedact {
		m["redactSecrets"] = "false"
	}
	if flagNoCache {
		m["cache"] = "false"
	}
	return m
}

// loadValidatedConfig merges flags over env and file and validates the
// result. Validation failures are usage errors.
func loadValidatedConfig() (config.Config, bool) {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return config.Config{}, false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return config.Config{}, false
	}
	return cfg, true
}

// newEngine assembles the review engine: provider client, cache,
// metrics, rules. close must be called when the run is done.
func newEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (eng *review.Engine, close func(), err error) {
	m := metrics.New()

	client, err := providers.New(ctx, cfg.Provider, providers.Options{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Logger:         logger,
		OnAttempt: func(outcome string, elapsed time.Duration) {
			m.ObserveAttempt(cfg.Provider, outcome, elapsed)
		},
	})
	if err != nil {
		return nil, nil, err
	}

	respCache, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	eng = &review.Engine{
		Client:  client,
		Cache:   respCache,
		Metrics: m,
		Logger:  logger,
		Config:  cfg,
		Rules:   rules,
		Version: version,
	}
	return eng, func() { client.Close() }, nil
}

// pushMetrics delivers run telemetry if a pushgateway is configured.
func pushMetrics(ctx context.Context, eng *review.Engine, cfg config.Config, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := eng.Metrics.Push(ctx, cfg.PushgatewayURL, "llm-reviewer"); err != nil {
		logger.Warn("metrics push failed", "url", cfg.PushgatewayURL, "error", err)
	}
}

// allChunksFailed reports a total run failure: every chunk errored.
func allChunksFailed(r *review.Report) bool {
	return r.Summary.ChunksTotal > 0 && r.Summary.ChunksFailed == r.Summary.ChunksTotal
}

// finishRun writes the report and derives the exit code: runtime error
// when every chunk failed, findings exit when the fail-on threshold is
// met, success otherwise.
func finishRun(report *review.Report, cfg config.Config) {
	if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if allChunksFailed(report) {
		fmt.Fprintf(os.Stderr, "Error: all %d chunks failed\n", report.Summary.ChunksTotal)
		exitCode = ExitRuntimeError
		return
	}

	for _, f := range report.Findings {
		if review.MeetsThreshold(f.Severity, cfg.FailOn) {
			exitCode = ExitFindings
			return
		}
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a diff",
	Long:  "Review a diff using an LLM provider. Use subcommands to specify the diff source.",
}

var reviewDiffCmd = &cobra.Command{
	Use:   "diff [file]",
	Short: "Review a unified diff from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ok := loadValidatedConfig()
		if !ok {
			return nil
		}

		var raw []byte
		var target string
		var err error
		if len(args) == 1 {
			target = args[0]
			raw, err = os.ReadFile(args[0])
		} else {
			target = "stdin"
			raw, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading diff: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		ctx := context.Background()
		logger := newLogger()
		eng, closeEng, err := newEngine(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer closeEng()

		report, err := eng.Run(ctx, string(raw), review.InputInfo{Mode: "diff", Target: target})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		pushMetrics(ctx, eng, cfg, logger)

		finishRun(report, cfg)
		return nil
	},
}

var (
	flagPROwner string
	flagPRRepo  string
	flagPRPost  bool
)

var reviewPRCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Review a GitHub pull request",
	Long:  "Fetch a pull request diff from GitHub, review it, and optionally post findings as review comments.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid PR number %q\n", args[0])
			exitCode = ExitUsageError
			return nil
		}

		cfg, ok := loadValidatedConfig()
		if !ok {
			return nil
		}

		owner, repo := flagPROwner, flagPRRepo
		if owner == "" || repo == "" {
			detectedOwner, detectedRepo, err := github.Repository()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\nUse --owner and --repo flags to specify manually.\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			if owner == "" {
				owner = detectedOwner
			}
			if repo == "" {
				repo = detectedRepo
			}
		}

		logger := newLogger()
		gh, err := github.NewClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}
		gh.Logger = logger

		ctx := context.Background()
		report := reviewPullRequest(ctx, gh, owner, repo, number, cfg, logger, flagPRPost)
		if report == nil {
			return nil
		}

		finishRun(report, cfg)
		return nil
	},
}

// reviewPullRequest fetches, reviews and (optionally) posts. A nil
// return means the run failed before producing a report; exitCode is
// already set.
func reviewPullRequest(ctx context.Context, gh *github.Client, owner, repo string, number int, cfg config.Config, logger *slog.Logger, post bool) *review.Report {
	fetchStart := time.Now()
	rawDiff, err := gh.FetchDiff(ctx, owner, repo, number)
	if err != nil {
		if github.IsAuthError(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return nil
	}
	fetchMs := time.Since(fetchStart).Milliseconds()

	eng, closeEng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return nil
	}
	defer closeEng()

	inputs := review.InputInfo{Mode: "pr", Repo: owner + "/" + repo, PullNumber: number}
	report, err := eng.Run(ctx, rawDiff, inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return nil
	}
	report.Timing.FetchMs = fetchMs
	report.Timing.TotalMs += fetchMs

	if post {
		postStart := time.Now()
		if err := postToGitHub(ctx, gh, owner, repo, number, report, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error posting review: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		report.Timing.PostMs = time.Since(postStart).Milliseconds()
		report.Timing.TotalMs += report.Timing.PostMs
	}

	pushMetrics(ctx, eng, cfg, logger)
	return report
}

func init() {
	reviewCmd.AddCommand(reviewDiffCmd)
	reviewCmd.AddCommand(reviewPRCmd)

	for _, cmd := range []*cobra.Command{reviewDiffCmd, reviewPRCmd} {
		addReviewFlags(cmd)
	}

	reviewPRCmd.Flags().StringVar(&flagPROwner, "owner", "", "GitHub repository owner (auto-detected if omitted)")
	reviewPRCmd.Flags().StringVar(&flagPRRepo, "repo", "", "GitHub repository name (auto-detected if omitted)")
	reviewPRCmd.Flags().BoolVar(&flagPRPost, "post", false, "Post findings to the pull request")
}
