package health

import (
	"context"
	"fmt"
	"net/http"
)

// UpstreamChecker probes the upstream MCP server.
type UpstreamChecker struct {
	url    string
	client *http.Client
}

// NewUpstreamChecker creates a checker that issues GET requests to url.
// A nil client means http.DefaultClient.
func NewUpstreamChecker(url string, client *http.Client) *UpstreamChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &UpstreamChecker{url: url, client: client}
}

// Name returns "upstream".
func (u *UpstreamChecker) Name() string {
	return "upstream"
}

// Check is Healthy when the upstream answers with a status below 500,
// Degraded on a 5xx and Unhealthy when it cannot be reached. MCP servers
// commonly answer GET with 405, which still proves reachability.
func (u *UpstreamChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return Unhealthy("invalid upstream url", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return Unhealthy("upstream unreachable", fmt.Errorf("%w: %v", ErrCheckFailed, err))
	}
	_ = resp.Body.Close()

	details := map[string]any{"status_code": resp.StatusCode}
	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded(fmt.Sprintf("upstream returned %d", resp.StatusCode)).WithDetails(details)
	}
	return Healthy("upstream reachable").WithDetails(details)
}
