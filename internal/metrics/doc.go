// Package metrics instruments review runs with Prometheus counters and
// histograms: provider attempts and latency, chunk outcomes, and
// finding counts by severity.
//
// The binary runs to completion rather than serving a scrape endpoint,
// so metrics are optionally delivered to a pushgateway at the end of a
// run when PUSHGATEWAY_URL (or the pushgatewayURL config key) is set.
package metrics
