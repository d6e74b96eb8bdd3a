// Package pipeline wires the full run: load each configured series,
// derive feature columns, segment by crisis windows, compute regime
// statistics, and write the report artifacts.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"regimelab/internal/config"
	"regimelab/internal/dataset"
	"regimelab/internal/regime"
	"regimelab/internal/report"
	"regimelab/internal/series"
	"regimelab/internal/stats"
)

// Result summarizes one completed run.
type Result struct {
	RunID     string
	OutDir    string
	Records   int
	Artifacts []report.ArtifactEntry
	Elapsed   time.Duration
}

// Run executes the pipeline for cfg. The first failing series aborts
// the run; nothing is written past the failure.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	start := time.Now()

	windows, err := resolveWindows(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Int("crises", len(windows.Crises)).
		Int("pre_months", windows.PreMonths).
		Int("post_months", windows.PostMonths).
		Str("overlap_policy", windows.OverlapPolicy).
		Msg("crisis windows resolved")

	segmenter, err := regime.NewSegmenter(windows)
	if err != nil {
		return nil, err
	}
	engine, err := stats.NewEngine(stats.Config{
		Sample:  cfg.Stats.Sample,
		Columns: cfg.Stats.Columns,
		Metrics: cfg.Stats.Metrics,
	})
	if err != nil {
		return nil, err
	}

	loader := dataset.NewLoader(cfg.Data.DateLayout)
	writer := report.NewWriter(cfg.Report.OutDir, cfg.Report.Formats, cfg.Fingerprint())

	var (
		allRecords []stats.Record
		returns    []stats.SeriesReturns
	)
	for _, spec := range cfg.Data.Series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(cfg.Data.Dir, spec.FileOrDefault())
		s, skipped, err := loader.LoadFile(path, spec.Name)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			log.Warn().Str("series", spec.Name).Int("skipped_rows", skipped).
				Msg("rows without a close price skipped")
		}
		log.Info().Str("series", spec.Name).Int("rows", s.Len()).
			Str("first", s.First().Date.Format("2006-01-02")).
			Str("last", s.Last().Date.Format("2006-01-02")).
			Msg("series loaded")

		features := series.Build(s, cfg.Features.VolWindow)
		seg, err := segmenter.Segment(s)
		if err != nil {
			return nil, err
		}

		records, err := engine.Describe(spec.Name, seg, series.Columns(s, features))
		if err != nil {
			return nil, err
		}
		records = append(records, engine.DescribeDrawdowns(spec.Name, seg, s.Closes())...)
		allRecords = append(allRecords, records...)

		if err := writer.WritePanels(s, features, seg); err != nil {
			return nil, err
		}

		returns = append(returns, stats.SeriesReturns{
			Name:    spec.Name,
			Dates:   s.Dates(),
			Labels:  seg.Labels,
			Returns: features.LogReturn,
		})
		log.Debug().Str("series", spec.Name).Int("records", len(records)).
			Int("segments", len(seg.Segments)).Msg("series described")
	}

	matrices := stats.Correlations(returns)

	if err := writer.WriteSummaries(allRecords); err != nil {
		return nil, err
	}
	if err := writer.WriteCorrelations(matrices); err != nil {
		return nil, err
	}
	if err := writer.WriteSummaryMarkdown(allRecords, matrices); err != nil {
		return nil, err
	}
	if err := writer.WriteRecords(allRecords); err != nil {
		return nil, err
	}
	if err := writer.WriteManifest(); err != nil {
		return nil, err
	}

	m := writer.Manifest()
	elapsed := time.Since(start)
	log.Info().Str("run_id", m.RunID).Int("records", len(allRecords)).
		Int("artifacts", len(m.Artifacts)).Dur("elapsed", elapsed).
		Str("out_dir", cfg.Report.OutDir).Msg("run complete")

	return &Result{
		RunID:     m.RunID,
		OutDir:    cfg.Report.OutDir,
		Records:   len(allRecords),
		Artifacts: m.Artifacts,
		Elapsed:   elapsed,
	}, nil
}

// resolveWindows picks the regime definition source: a standalone
// windows file wins, then inline crises from the config, then the
// built-in defaults. Extension months and overlap policy from the
// config apply to the inline and default sources; a windows file
// carries its own.
func resolveWindows(cfg *config.Config) (*regime.WindowSet, error) {
	if cfg.Regimes.WindowsFile != "" {
		loader := regime.NewLoader()
		if err := loader.LoadFromFile(cfg.Regimes.WindowsFile); err != nil {
			return nil, err
		}
		return loader.WindowSet()
	}

	var set *regime.WindowSet
	if len(cfg.Regimes.Crises) > 0 {
		set = &regime.WindowSet{}
		for _, c := range cfg.Regimes.Crises {
			w, err := regime.ParseWindow(c.Name, c.Start, c.End)
			if err != nil {
				return nil, err
			}
			set.Crises = append(set.Crises, w)
		}
	} else {
		set = regime.DefaultWindowSet()
	}
	set.PreMonths = cfg.Regimes.PreMonths()
	set.PostMonths = cfg.Regimes.PostMonths()
	set.OverlapPolicy = cfg.Regimes.OverlapPolicy

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
