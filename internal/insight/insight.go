// Package insight turns a free-text agent response into a structured
// product-insight record. The history store consumes the output as opaque
// data; it never depends on how extraction happens.
package insight

import "context"

// PriceEntry is one extracted price. Currency is a code like "USD" and may
// be empty when the source text gave no currency context.
type PriceEntry struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

// Insights is the structured record extracted from one chat interaction.
// Every field is empty when not determinable from the response text.
type Insights struct {
	ProductBrand string
	ProductModel string
	PriceDetails []PriceEntry
	Vendors      []string
	VerifiedURLs []string
	Notes        string
}

// IsZero reports whether nothing was extracted.
func (in Insights) IsZero() bool {
	return in.ProductBrand == "" && in.ProductModel == "" &&
		len(in.PriceDetails) == 0 && len(in.Vendors) == 0 &&
		len(in.VerifiedURLs) == 0 && in.Notes == ""
}

// Extractor derives Insights from one (query, response) pair.
//
// Contract: an empty or whitespace-only agentResponse yields zero Insights
// and a nil error without any external call. Extractors never fabricate
// values; a field stays empty unless the response supports it.
type Extractor interface {
	Extract(ctx context.Context, userQuery, agentResponse string) (Insights, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, userQuery, agentResponse string) (Insights, error)

func (f ExtractorFunc) Extract(ctx context.Context, userQuery, agentResponse string) (Insights, error) {
	return f(ctx, userQuery, agentResponse)
}
