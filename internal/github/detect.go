package github

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Repository resolves owner and repo, preferring the Actions
// environment and falling back to the local git remote.
func Repository() (owner, repo string, err error) {
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		parts := strings.SplitN(v, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("malformed GITHUB_REPOSITORY: %q", v)
		}
		return parts[0], parts[1], nil
	}
	return DetectRepo()
}

var prRefRe = regexp.MustCompile(`^refs/pull/(\d+)/`)

// PullNumber resolves the pull request number from the Actions
// environment: GITHUB_REF first, then the event payload at
// GITHUB_EVENT_PATH.
func PullNumber() (int, error) {
	if ref := os.Getenv("GITHUB_REF"); ref != "" {
		if m := prRefRe.FindStringSubmatch(ref); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	if path := os.Getenv("GITHUB_EVENT_PATH"); path != "" {
		n, err := eventPullNumber(path)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("cannot determine pull request number: set GITHUB_REF or GITHUB_EVENT_PATH")
}

// eventPullNumber digs the PR number out of a webhook event payload.
// pull_request events carry it under pull_request.number, issue_comment
// events under issue.number, and some events only at the top level.
func eventPullNumber(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading event payload: %w", err)
	}
	var event struct {
		Number      int `json:"number"`
		PullRequest struct {
			Number int `json:"number"`
		} `json:"pull_request"`
		Issue struct {
			Number int `json:"number"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return 0, fmt.Errorf("parsing event payload: %w", err)
	}
	switch {
	case event.PullRequest.Number > 0:
		return event.PullRequest.Number, nil
	case event.Issue.Number > 0:
		return event.Issue.Number, nil
	default:
		return event.Number, nil
	}
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(url, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}
