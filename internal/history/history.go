// Package history is an append-only log of chat interactions enriched with
// structured product insights. Records are immutable once written; the only
// mutations are age-based retention pruning and a full clear.
package history

import (
	"time"

	"github.com/insightbot/insightbot/internal/insight"
)

// Record sources. Derived by the store from the extracted URLs, never
// supplied by the extractor: any verified URL means "web".
const (
	SourceDatabase = "database"
	SourceWeb      = "web"
)

// Record is one logged interaction.
type Record struct {
	RecordID     int64
	Timestamp    time.Time
	UserQuery    string
	ProductBrand string
	ProductModel string
	PriceDetails []insight.PriceEntry
	Vendors      []string
	VerifiedURLs []string
	Source       string
	Notes        string
	SessionID    string
}

// Filter narrows Search and ExportCSV results. Zero-valued fields are
// ignored; set fields combine with AND.
type Filter struct {
	Limit     int // default 50
	Offset    int
	Brand     string // substring, case-insensitive
	Model     string // substring, case-insensitive
	DateFrom  time.Time
	DateTo    time.Time
	SessionID string // exact
}

// Statistics summarizes the whole log.
type Statistics struct {
	TotalSearches      int
	UniqueBrands       int // distinct non-empty brands
	SearchesWithPrices int
	RecentSearches     int // last 7 days
}
