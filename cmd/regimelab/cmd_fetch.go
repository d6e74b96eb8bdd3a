package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regimelab/internal/config"
	"regimelab/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily index history from quote providers",
	Long: `Download daily close history for every configured series and write
loader-ready CSV files into the data directory. Files that already
exist are left alone unless --force is given.`,
	RunE: runFetch,
}

var (
	fetchStart string
	fetchEnd   string
	fetchForce bool
)

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "History start date YYYY-MM-DD (default from config)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "History end date YYYY-MM-DD (default from config)")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Refetch and overwrite existing files")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchStart != "" {
		cfg.Fetch.Start = fetchStart
	}
	if fetchEnd != "" {
		cfg.Fetch.End = fetchEnd
	}

	start, err := time.Parse("2006-01-02", cfg.Fetch.Start)
	if err != nil {
		return fmt.Errorf("bad start date %q: %w", cfg.Fetch.Start, err)
	}
	end, err := time.Parse("2006-01-02", cfg.Fetch.End)
	if err != nil {
		return fmt.Errorf("bad end date %q: %w", cfg.Fetch.End, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s must precede end %s", cfg.Fetch.Start, cfg.Fetch.End)
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	specs := make([]fetch.Spec, 0, len(cfg.Data.Series))
	for _, s := range cfg.Data.Series {
		specs = append(specs, fetch.Spec{
			Name:    s.Name,
			File:    s.FileOrDefault(),
			Symbols: s.Symbols,
		})
	}

	f := fetch.New(providers, fetch.Options{
		DataDir:       cfg.Data.Dir,
		Start:         start,
		End:           end,
		Force:         fetchForce,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Burst:         cfg.Fetch.Burst,
	})
	results, err := f.FetchAll(cmd.Context(), specs)
	if err != nil {
		return err
	}

	fetched := 0
	for _, r := range results {
		if !r.Skipped {
			fetched++
		}
	}
	fmt.Printf("fetched %d series (%d skipped) into %s\n", fetched, len(results)-fetched, cfg.Data.Dir)
	return nil
}

// buildProviders returns the provider chain: the configured primary,
// then the other source when fallback is enabled.
func buildProviders(cfg *config.Config) ([]fetch.Provider, error) {
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second

	var primary, secondary fetch.Provider
	switch cfg.Fetch.Provider {
	case "stooq":
		primary, secondary = fetch.NewStooq(timeout), fetch.NewYahoo(timeout)
	case "yahoo":
		primary, secondary = fetch.NewYahoo(timeout), fetch.NewStooq(timeout)
	default:
		return nil, fmt.Errorf("unknown fetch provider %q", cfg.Fetch.Provider)
	}

	providers := []fetch.Provider{primary}
	if cfg.Fetch.Fallback {
		providers = append(providers, secondary)
	}
	return providers, nil
}
