// Package github is the hosting-platform client: it fetches pull-request
// diffs, lists the comment keys posted by earlier runs, and creates review
// comments for new findings, one per reconciler create operation.
//
// Posted bodies embed an HTML marker carrying the finding's comment key;
// [Client.FetchExistingCommentKeys] recovers those markers, which is what
// makes re-runs idempotent. The aggregated summary comment is upserted by
// its own marker instead of being reposted.
//
// Repository and pull-request discovery follow the GitHub Actions
// environment (GITHUB_REPOSITORY, GITHUB_REF, GITHUB_EVENT_PATH) and fall
// back to the local git remote for CLI use. GITHUB_API_URL points the
// client at a GitHub Enterprise instance.
package github
