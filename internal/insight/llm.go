package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/insightbot/insightbot/internal/provider"
)

const extractionSystemPrompt = `You extract structured product information from a chat interaction about used test and measurement equipment.
Call the record_product_insights tool exactly once with what the response actually states.
Leave any field empty when the response does not support it. Never guess or invent values.`

const defaultExtractTimeout = 20 * time.Second

// LLMExtractor implements Extractor with a single non-interactive provider
// call: the model is offered one tool, record_product_insights, and the
// first tool call's arguments become the record. No tool call, or arguments
// that fail to parse, degrade to zero Insights.
type LLMExtractor struct {
	provider provider.Provider
	model    string
	timeout  time.Duration
}

func NewLLMExtractor(p provider.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: p, model: model, timeout: defaultExtractTimeout}
}

// extractionArgs is the tool-call wire format. Prices arrive as strings
// ("$1,250.00", "1800 EUR") and are parsed into typed entries afterwards.
type extractionArgs struct {
	ProductBrand string   `json:"product_brand"`
	ProductModel string   `json:"product_model"`
	Prices       []string `json:"prices"`
	Vendors      []string `json:"vendors"`
	VerifiedURLs []string `json:"verified_urls"`
	Notes        string   `json:"notes"`
}

func (e *LLMExtractor) Extract(ctx context.Context, userQuery, agentResponse string) (Insights, error) {
	if strings.TrimSpace(agentResponse) == "" {
		return Insights{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &provider.ChatRequest{
		Model:        e.model,
		SystemPrompt: extractionSystemPrompt,
		MaxTokens:    1024,
		Messages: []provider.Message{{
			Role: provider.RoleUser,
			Content: []provider.Content{{
				Type: provider.ContentTypeText,
				Text: fmt.Sprintf("User query:\n%s\n\nAssistant response:\n%s", userQuery, agentResponse),
			}},
		}},
		Tools: []provider.ToolSchema{{
			Name:        "record_product_insights",
			Description: "Record the structured product information present in the assistant response.",
			Parameters: map[string]any{
				"product_brand": map[string]any{
					"type":        "string",
					"description": "Equipment manufacturer, e.g. Keysight, Tektronix. Empty if not mentioned.",
				},
				"product_model": map[string]any{
					"type":        "string",
					"description": "Model number or name, e.g. DMM6500. Empty if not mentioned.",
				},
				"prices": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Every price stated in the response, as written, e.g. \"$1,250.00\".",
				},
				"vendors": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Vendor or seller names mentioned in the response.",
				},
				"verified_urls": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "URLs the response presents as live listings or sources.",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "One short sentence of additional context, or empty.",
				},
			},
		}},
	}

	events, err := e.provider.Chat(ctx, req)
	if err != nil {
		return Insights{}, fmt.Errorf("extraction request: %w", err)
	}

	var args *extractionArgs
	for ev := range events {
		switch ev.Type {
		case provider.EventToolCallDone:
			if args == nil && ev.ToolCall.Name == "record_product_insights" {
				var a extractionArgs
				if err := json.Unmarshal(ev.ToolCall.Input, &a); err == nil {
					args = &a
				}
			}
		case provider.EventError:
			return Insights{}, fmt.Errorf("extraction stream: %w", ev.Error)
		}
	}
	if args == nil {
		return Insights{}, nil
	}

	in := Insights{
		ProductBrand: strings.TrimSpace(args.ProductBrand),
		ProductModel: strings.TrimSpace(args.ProductModel),
		Notes:        strings.TrimSpace(args.Notes),
	}
	for _, raw := range args.Prices {
		if entry, ok := ParsePrice(raw); ok {
			in.PriceDetails = append(in.PriceDetails, entry)
		}
	}
	for _, v := range args.Vendors {
		if v = strings.TrimSpace(v); v != "" {
			in.Vendors = append(in.Vendors, v)
		}
	}
	for _, u := range args.VerifiedURLs {
		if u = strings.TrimSpace(u); u != "" {
			in.VerifiedURLs = append(in.VerifiedURLs, u)
		}
	}
	return in, nil
}
