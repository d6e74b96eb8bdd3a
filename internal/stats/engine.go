package stats

import (
	"fmt"
	"math"

	"regimelab/internal/regime"
	"regimelab/internal/series"
)

// Metric names understood by the engine.
const (
	MetricCount       = "count"
	MetricMean        = "mean"
	MetricVariance    = "variance"
	MetricStdDev      = "stddev"
	MetricMin         = "min"
	MetricMax         = "max"
	MetricSkewness    = "skewness"
	MetricKurtosis    = "kurtosis"
	MetricMaxDrawdown = "max_drawdown"
)

// minPoints is the number of valid observations each metric needs.
// Requesting a metric for a regime below its minimum is an error, not
// a silent NaN.
var minPoints = map[string]int{
	MetricCount:    1,
	MetricMean:     1,
	MetricMin:      1,
	MetricMax:      1,
	MetricVariance: 2,
	MetricStdDev:   2,
	MetricSkewness: 3,
	MetricKurtosis: 4,
}

// DefaultMetrics returns the metric set computed when the config does
// not narrow it.
func DefaultMetrics() []string {
	return []string{
		MetricCount, MetricMean, MetricVariance, MetricStdDev,
		MetricMin, MetricMax, MetricSkewness, MetricKurtosis,
	}
}

// DefaultColumns returns the feature columns described by default.
func DefaultColumns() []string {
	return []string{series.ColLogReturn, series.ColVolatility, series.ColDrawdown}
}

// Config selects what the engine computes and which estimator family
// it uses. Population moments are the default; Sample switches
// variance, stddev, skewness and kurtosis to the sample estimators.
type Config struct {
	Sample  bool
	Columns []string
	Metrics []string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Sample:  false,
		Columns: DefaultColumns(),
		Metrics: DefaultMetrics(),
	}
}

// Record is one computed statistic in long form.
type Record struct {
	Series string  `json:"series"`
	Regime string  `json:"regime"`
	Column string  `json:"column"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Engine computes descriptive statistics per regime.
type Engine struct {
	cfg Config
}

// NewEngine validates the requested metric names and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Columns) == 0 {
		cfg.Columns = DefaultColumns()
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = DefaultMetrics()
	}
	for _, m := range cfg.Metrics {
		if _, ok := minPoints[m]; !ok {
			return nil, fmt.Errorf("unknown metric %q", m)
		}
	}
	return &Engine{cfg: cfg}, nil
}

// Describe computes the configured metrics for every regime present in
// the segmentation, over every configured column. NaN column entries
// are missing data: they are excluded from every metric and from the
// valid count. A regime whose valid count falls below a requested
// metric's minimum yields an InsufficientDataError.
func (e *Engine) Describe(name string, seg *regime.Segmentation, columns map[string][]float64) ([]Record, error) {
	byLabel := seg.ByLabel()

	var records []Record
	for _, label := range regime.Labels() {
		idx, ok := byLabel[label]
		if !ok {
			continue
		}
		for _, col := range e.cfg.Columns {
			values, ok := columns[col]
			if !ok {
				return nil, fmt.Errorf("series %s has no column %q", name, col)
			}
			clean := gather(values, idx)
			for _, metric := range e.cfg.Metrics {
				value, err := e.compute(name, label, col, metric, clean)
				if err != nil {
					return nil, err
				}
				records = append(records, Record{
					Series: name,
					Regime: label.String(),
					Column: col,
					Metric: metric,
					Value:  value,
				})
			}
		}
	}
	return records, nil
}

// DescribeDrawdowns computes the deepest intra-segment decline of the
// close column for every regime present, reported as max_drawdown.
// Pooling closes across disjoint segments would let a peak from one
// crisis shadow another, so each segment is measured on its own.
func (e *Engine) DescribeDrawdowns(name string, seg *regime.Segmentation, closes []float64) []Record {
	deepest := make(map[regime.Label]float64)
	present := make(map[regime.Label]bool)

	for _, segment := range seg.Segments {
		dd := MaxDrawdown(closes[segment.Start:segment.End])
		if !present[segment.Label] || dd < deepest[segment.Label] {
			deepest[segment.Label] = dd
			present[segment.Label] = true
		}
	}

	var records []Record
	for _, label := range regime.Labels() {
		if !present[label] {
			continue
		}
		records = append(records, Record{
			Series: name,
			Regime: label.String(),
			Column: series.ColClose,
			Metric: MetricMaxDrawdown,
			Value:  deepest[label],
		})
	}
	return records
}

func (e *Engine) compute(seriesName string, label regime.Label, column, metric string, clean []float64) (float64, error) {
	need := minPoints[metric]
	if len(clean) < need {
		return 0, &InsufficientDataError{
			Series: seriesName,
			Regime: label.String(),
			Column: column,
			Metric: metric,
			Need:   need,
			Got:    len(clean),
		}
	}

	switch metric {
	case MetricCount:
		return float64(len(clean)), nil
	case MetricMean:
		return Mean(clean), nil
	case MetricVariance:
		return Variance(clean, e.cfg.Sample), nil
	case MetricStdDev:
		return StdDev(clean, e.cfg.Sample), nil
	case MetricMin:
		return Min(clean), nil
	case MetricMax:
		return Max(clean), nil
	case MetricSkewness, MetricKurtosis:
		if Variance(clean, false) == 0 {
			return 0, &InsufficientDataError{
				Series: seriesName,
				Regime: label.String(),
				Column: column,
				Metric: metric,
				Need:   need,
				Got:    len(clean),
				Reason: "zero variance",
			}
		}
		if metric == MetricSkewness {
			return Skewness(clean, e.cfg.Sample), nil
		}
		return Kurtosis(clean, e.cfg.Sample), nil
	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
}

// gather picks the indexed entries and drops NaN ones.
func gather(values []float64, idx []int) []float64 {
	clean := make([]float64, 0, len(idx))
	for _, i := range idx {
		if math.IsNaN(values[i]) {
			continue
		}
		clean = append(clean, values[i])
	}
	return clean
}
