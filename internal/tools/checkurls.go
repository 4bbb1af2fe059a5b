package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const urlCheckTimeout = 5 * time.Second

// CheckURLsTool verifies that candidate listing URLs are actually live
// before the assistant cites them.
type CheckURLsTool struct {
	client *http.Client
}

func NewCheckURLsTool() *CheckURLsTool {
	return &CheckURLsTool{client: &http.Client{Timeout: urlCheckTimeout}}
}

func (t *CheckURLsTool) Name() string     { return "check_urls_status" }
func (t *CheckURLsTool) IsReadOnly() bool { return true }

func (t *CheckURLsTool) Description() string {
	return `Check whether URLs are working. Use this only after web_search_tool, to verify the returned URLs before responding to the user.`
}

func (t *CheckURLsTool) Parameters() map[string]any {
	return map[string]any{
		"urls": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "The list of URLs to check",
		},
	}
}

func (t *CheckURLsTool) Execute(ctx context.Context, params json.RawMessage) (ToolResult, error) {
	var p struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolResult{}, fmt.Errorf("invalid params: %w", err)
	}
	if len(p.URLs) == 0 {
		return ToolResult{
			Content: "No URLs provided for checking. Provide the list of URLs returned by web_search_tool.",
			IsError: true,
		}, nil
	}

	var lines []string
	for _, u := range p.URLs {
		status := "not working"
		if t.isAlive(ctx, u) {
			status = "OK"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", u, status))
	}
	return ToolResult{Content: strings.Join(lines, "\n")}, nil
}

// isAlive issues a HEAD request and treats any status below 400 as live.
func (t *CheckURLsTool) isAlive(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
