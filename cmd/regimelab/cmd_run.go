package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regimelab/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full regime statistics pipeline",
	Long: `Load every configured series, derive log returns, rolling
volatility and drawdowns, segment by crisis windows, and write the
summary, panel, correlation, and manifest artifacts.`,
	RunE: runRun,
}

var (
	runDataDir string
	runOutDir  string
)

func init() {
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Override input data directory")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "", "Override output directory")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDataDir != "" {
		cfg.Data.Dir = runDataDir
	}
	if runOutDir != "" {
		cfg.Report.OutDir = runOutDir
	}

	res, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d records, %d artifacts in %s (%.2fs)\n",
		res.RunID, res.Records, len(res.Artifacts), res.OutDir, res.Elapsed.Seconds())
	return nil
}
