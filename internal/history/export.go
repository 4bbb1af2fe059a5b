package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/insightbot/insightbot/internal/insight"
)

// exportCap bounds how many rows one export materializes.
const exportCap = 10000

var exportHeader = []string{
	"Record ID", "Timestamp", "User Query", "Product Brand", "Product Model",
	"Price Count", "Price Range", "Vendors", "URL Count", "Source", "Notes",
}

// ExportCSV writes the filtered history to a timestamped CSV file in dir and
// returns its path. Multi-valued fields flatten to display strings. An empty
// result set writes nothing and returns "".
func (s *Store) ExportCSV(ctx context.Context, f Filter, dir string) (string, error) {
	f.Limit = exportCap
	f.Offset = 0
	records, err := s.Search(ctx, f)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, "search_history_"+time.Now().Format("20060102_150405")+".csv")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(exportHeader); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.RecordID, 10),
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.UserQuery,
			rec.ProductBrand,
			rec.ProductModel,
			strconv.Itoa(len(rec.PriceDetails)),
			priceRange(rec.PriceDetails),
			strings.Join(rec.Vendors, ", "),
			strconv.Itoa(len(rec.VerifiedURLs)),
			rec.Source,
			rec.Notes,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}
	return path, nil
}

// priceRange flattens a price list to a display string: "No prices" when
// empty, the single value when all prices are equal, otherwise "$min - $max".
func priceRange(prices []insight.PriceEntry) string {
	if len(prices) == 0 {
		return "No prices"
	}
	values := make([]float64, len(prices))
	for i, p := range prices {
		values[i] = p.Value
	}
	sort.Float64s(values)
	min, max := values[0], values[len(values)-1]
	if min == max {
		return formatMoney(min)
	}
	return formatMoney(min) + " - " + formatMoney(max)
}

// formatMoney renders a value as "$1,234.56".
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	b.WriteByte('$')
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(frac)
	return b.String()
}
