package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightbot/insightbot/internal/config"
	"github.com/insightbot/insightbot/internal/history"
)

type historyFilterFlags struct {
	brand   string
	model   string
	from    string
	to      string
	session string
	limit   int
	offset  int
}

func (f *historyFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.brand, "brand", "", "filter by product brand (substring)")
	cmd.Flags().StringVar(&f.model, "model", "", "filter by product model (substring)")
	cmd.Flags().StringVar(&f.from, "from", "", "filter from date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "filter to date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.session, "session", "", "filter by session id")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "max records (default 50)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "skip the first N records")
}

func (f *historyFilterFlags) build() (history.Filter, error) {
	filter := history.Filter{
		Limit:     f.limit,
		Offset:    f.offset,
		Brand:     f.brand,
		Model:     f.model,
		SessionID: f.session,
	}
	if f.from != "" {
		t, err := time.Parse("2006-01-02", f.from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", f.from)
		}
		filter.DateFrom = t
	}
	if f.to != "" {
		t, err := time.Parse("2006-01-02", f.to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", f.to)
		}
		// Inclusive: cover the whole day.
		filter.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	return filter, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the search history log",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryStatsCmd())
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var flags historyFilterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List search history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			filter, err := flags.build()
			if err != nil {
				return err
			}
			records, err := store.Search(context.Background(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No matching records.")
				return nil
			}
			for _, r := range records {
				product := strings.TrimSpace(r.ProductBrand + " " + r.ProductModel)
				if product == "" {
					product = "-"
				}
				query := r.UserQuery
				if len(query) > 60 {
					query = query[:60] + "..."
				}
				fmt.Printf("#%-5d %s  [%-8s]  %-40s  %s\n",
					r.RecordID, r.Timestamp.Local().Format("2006-01-02 15:04"),
					r.Source, product, query)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var flags historyFilterFlags
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export search history to a timestamped CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			filter, err := flags.build()
			if err != nil {
				return err
			}
			path, err := store.ExportCSV(context.Background(), filter, dir)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println("Nothing to export.")
				return nil
			}
			fmt.Printf("Exported to %s\n", path)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	return cmd
}

func newHistoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show search history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Statistics(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Total searches:       %d\n", stats.TotalSearches)
			fmt.Printf("Unique brands:        %d\n", stats.UniqueBrands)
			fmt.Printf("Searches with prices: %d\n", stats.SearchesWithPrices)
			fmt.Printf("Last 7 days:          %d\n", stats.RecentSearches)
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	var keepDays int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear search history, optionally keeping recent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if !store.Clear(context.Background(), keepDays) {
				return fmt.Errorf("clear failed")
			}
			if keepDays < 0 {
				fmt.Println("Search history cleared.")
			} else {
				fmt.Printf("Cleared records older than %d days.\n", keepDays)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&keepDays, "keep-days", -1, "keep records newer than N days (-1 clears everything)")
	return cmd
}

// openHistory opens the history store without an extractor; the CLI only
// reads and prunes, it never logs new searches.
func openHistory(cfg *config.Config) (*history.Store, error) {
	store, err := history.Open(cfg.Databases.HistoryPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}
