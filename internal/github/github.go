package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/review"
)

const defaultAPIURL = "https://api.github.com"

// Client wraps the GitHub REST API for fetching pull-request diffs and
// posting review comments. Logger is optional.
type Client struct {
	gh     *github.Client
	Logger *slog.Logger
}

// NewClient creates an authenticated client from GITHUB_TOKEN.
// GITHUB_API_URL switches the endpoint for GitHub Enterprise.
func NewClient() (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(context.Background(), ts))

	if apiURL := strings.TrimRight(os.Getenv("GITHUB_API_URL"), "/"); apiURL != "" && apiURL != defaultAPIURL {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise endpoint: %w", err)
		}
	}

	return &Client{gh: gh}, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// IsAuthError reports whether err was a GitHub authentication or
// authorization failure.
func IsAuthError(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}

// FetchDiff returns the raw unified diff of a pull request.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, resp, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("pull request #%d not found in %s/%s: %w", number, owner, repo, err)
		}
		return "", fmt.Errorf("fetching PR diff: %w", err)
	}
	return diff, nil
}

// HeadSHA returns the pull request's current head commit, required
// when creating review comments.
func (c *Client) HeadSHA(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("fetching pull request: %w", err)
	}
	return pr.GetHead().GetSHA(), nil
}

// markers embed comment keys in posted bodies so a later run can
// recover them. Only comments carrying a marker count for dedup;
// human comments never collide with findings.
const (
	markerPrefix  = "<!-- llm-reviewer: "
	summaryMarker = "<!-- llm-reviewer:summary -->"
)

var markerRe = regexp.MustCompile(`<!-- llm-reviewer: (.+?)#L(\d+)-L(\d+) (.+?) -->`)

func commentMarker(key review.CommentKey) string {
	return markerPrefix + key.String() + " -->"
}

// parseMarker recovers a comment key from a body posted by an earlier
// run.
func parseMarker(body string) (review.CommentKey, bool) {
	m := markerRe.FindStringSubmatch(body)
	if m == nil {
		return review.CommentKey{}, false
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return review.CommentKey{}, false
	}
	end, err := strconv.Atoi(m[3])
	if err != nil {
		return review.CommentKey{}, false
	}
	return review.CommentKey{File: m[1], Start: start, End: end, Category: m[4]}, true
}

// FetchExistingCommentKeys lists the pull request's review comments and
// collects the comment keys embedded in their markers.
func (c *Client) FetchExistingCommentKeys(ctx context.Context, owner, repo string, number int) (map[review.CommentKey]bool, error) {
	keys := make(map[review.CommentKey]bool)
	opts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments: %w", err)
		}
		for _, cm := range comments {
			if key, ok := parseMarker(cm.GetBody()); ok {
				keys[key] = true
			}
		}
		if resp.NextPage == 0 {
			return keys, nil
		}
		opts.Page = resp.NextPage
	}
}

// CommentPostError reports a failed comment creation for one finding.
// The posting loop continues past it; the finding is reported as not
// posted.
type CommentPostError struct {
	File  string
	Line  int
	Cause error
}

func (e *CommentPostError) Error() string {
	return fmt.Sprintf("posting comment on %s:%d: %v", e.File, e.Line, e.Cause)
}

func (e *CommentPostError) Unwrap() error { return e.Cause }

// PostComment creates one review comment anchored to the finding's
// line range on the new side of the diff.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, commitID string, f review.Finding) error {
	comment := &github.PullRequestComment{
		Body:     github.Ptr(FormatComment(f)),
		Path:     github.Ptr(f.File),
		CommitID: github.Ptr(commitID),
		Line:     github.Ptr(f.Lines.End),
		Side:     github.Ptr("RIGHT"),
	}
	if f.Lines.Start < f.Lines.End {
		comment.StartLine = github.Ptr(f.Lines.Start)
		comment.StartSide = github.Ptr("RIGHT")
	}
	if _, _, err := c.gh.PullRequests.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return &CommentPostError{File: f.File, Line: f.Lines.End, Cause: err}
	}
	return nil
}

// FormatComment renders a finding as a review comment body, marker
// included. Suggested code becomes a GitHub suggestion block.
func FormatComment(f review.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", f.Severity, f.Category)
	b.WriteString(f.Rationale)
	if f.SuggestedCode != "" {
		b.WriteString("\n\n```suggestion\n")
		b.WriteString(f.SuggestedCode)
		if !strings.HasSuffix(f.SuggestedCode, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("```")
	}
	b.WriteString("\n\n")
	b.WriteString(commentMarker(review.KeyFor(f)))
	return b.String()
}

// PostFindings executes the reconciler's decisions in order, one
// comment per create operation. A failed post is recorded and the loop
// continues.
func (c *Client) PostFindings(ctx context.Context, owner, repo string, number int, commitID string, ops []review.Op) []review.PostOutcome {
	outcomes := make([]review.PostOutcome, 0, len(ops))
	for _, op := range ops {
		f := op.Finding
		out := review.PostOutcome{FindingID: f.ID, File: f.File, Lines: f.Lines}
		switch op.Kind {
		case review.OpSkip:
			out.Status = review.PostSkipped
			out.Reason = op.Reason
		case review.OpCreate:
			if err := c.PostComment(ctx, owner, repo, number, commitID, f); err != nil {
				out.Status = review.PostFailed
				out.Reason = err.Error()
				c.logger().Warn("comment post failed", "path", f.File, "line", f.Lines.End, "error", err)
			} else {
				out.Status = review.PostCreated
				c.logger().Debug("comment posted", "path", f.File, "line", f.Lines.End)
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// UpsertSummary posts the aggregated summary comment on the pull
// request. When an earlier run's summary is found by its marker the
// comment is edited in place, so re-runs never stack summaries.
func (c *Client) UpsertSummary(ctx context.Context, owner, repo string, number int, body string) error {
	body = body + "\n" + summaryMarker

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return fmt.Errorf("listing issue comments: %w", err)
		}
		for _, cm := range comments {
			if strings.Contains(cm.GetBody(), summaryMarker) {
				if _, _, err := c.gh.Issues.EditComment(ctx, owner, repo, cm.GetID(), &github.IssueComment{Body: github.Ptr(body)}); err != nil {
					return fmt.Errorf("editing summary comment: %w", err)
				}
				return nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if _, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(body)}); err != nil {
		return fmt.Errorf("creating summary comment: %w", err)
	}
	return nil
}
