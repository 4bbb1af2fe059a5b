package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	searchTimeout    = 30 * time.Second
	searchMaxResults = 10
	tavilyEndpoint   = "https://api.tavily.com/search"
)

// WebSearchTool searches the web via the Tavily API, constrained to the
// used-equipment listing domains the assistant is allowed to cite.
type WebSearchTool struct {
	apiKey   string
	domains  []string
	endpoint string
	client   *http.Client
}

func NewWebSearchTool(apiKey string, domains []string) *WebSearchTool {
	return &WebSearchTool{
		apiKey:   apiKey,
		domains:  domains,
		endpoint: tavilyEndpoint,
		client:   http.DefaultClient,
	}
}

func (t *WebSearchTool) Name() string     { return "web_search_tool" }
func (t *WebSearchTool) IsReadOnly() bool { return true }

func (t *WebSearchTool) Description() string {
	return `Search the web for current product prices and listings. Returns results with URLs that must be verified with check_urls_status before citing them.`
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": `Search query, e.g. "Agilent E4980A current price buy sell"`,
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (ToolResult, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolResult{}, fmt.Errorf("invalid params: %w", err)
	}
	if p.Query == "" {
		return ToolResult{}, fmt.Errorf("query is required")
	}
	if t.apiKey == "" {
		return ToolResult{
			Content: "Tavily API key not configured. Set web.search_api_key in config or the TAVILY_API_KEY env var.",
			IsError: true,
		}, nil
	}

	body := map[string]any{
		"query":               p.Query,
		"search_depth":        "advanced",
		"topic":               "general",
		"include_raw_content": true,
		"max_results":         searchMaxResults,
	}
	if len(t.domains) > 0 {
		body["include_domains"] = t.domains
	}
	reqBody, _ := json.Marshal(body)

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to create request: %v", err), IsError: true}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, fmt.Errorf("cancelled")
		}
		return ToolResult{Content: fmt.Sprintf("Search request failed: %v", err), IsError: true}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ToolResult{
			Content: fmt.Sprintf("Tavily API error (HTTP %d): %s", resp.StatusCode, string(b)),
			IsError: true,
		}, nil
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to parse response: %v", err), IsError: true}, nil
	}

	if len(result.Results) == 0 {
		return ToolResult{Content: "No results found for: " + p.Query}, nil
	}

	var sb strings.Builder
	for i, r := range result.Results {
		fmt.Fprintf(&sb, "Result %d: %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return ToolResult{Content: sb.String()}, nil
}
