package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchSendsDomainConstraints(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "DMM6500 listing", "url": "https://used-line.com/item/1", "content": "Price: $1,250"},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebSearchTool("test-key", []string{"used-line.com", "testunlimited.com", "ebay.com"})
	tool.endpoint = srv.URL
	tool.client = srv.Client()

	params, _ := json.Marshal(map[string]string{"query": "DMM6500 price"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", res.Content)
	}

	domains, ok := captured["include_domains"].([]any)
	if !ok || len(domains) != 3 {
		t.Errorf("include_domains = %v, want the 3 configured domains", captured["include_domains"])
	}
	if captured["search_depth"] != "advanced" {
		t.Errorf("search_depth = %v", captured["search_depth"])
	}
	if !strings.Contains(res.Content, "https://used-line.com/item/1") {
		t.Errorf("result should carry the URL:\n%s", res.Content)
	}
}

func TestWebSearchWithoutKeyIsErrorResult(t *testing.T) {
	tool := NewWebSearchTool("", nil)
	params, _ := json.Marshal(map[string]string{"query": "q"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("missing API key should produce an error result, not a panic or request")
	}
}

func TestWebSearchAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tool := NewWebSearchTool("bad-key", nil)
	tool.endpoint = srv.URL
	tool.client = srv.Client()

	params, _ := json.Marshal(map[string]string{"query": "q"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "401") {
		t.Errorf("result = %+v, want HTTP 401 error result", res)
	}
}
