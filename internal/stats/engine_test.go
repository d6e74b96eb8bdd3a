package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimelab/internal/regime"
	"regimelab/internal/series"
)

// flatSegmentation builds a segmentation directly from labels, with
// one segment per label run and empty crisis names.
func flatSegmentation(labels ...regime.Label) *regime.Segmentation {
	seg := &regime.Segmentation{
		Labels: labels,
		Crises: make([]string, len(labels)),
	}
	start := 0
	for i := 1; i <= len(labels); i++ {
		if i == len(labels) || labels[i] != labels[start] {
			seg.Segments = append(seg.Segments, regime.Segment{
				Label: labels[start], Start: start, End: i,
			})
			start = i
		}
	}
	return seg
}

func findRecord(t *testing.T, records []Record, regimeName, column, metric string) Record {
	t.Helper()
	for _, r := range records {
		if r.Regime == regimeName && r.Column == column && r.Metric == metric {
			return r
		}
	}
	t.Fatalf("no record for %s/%s/%s", regimeName, column, metric)
	return Record{}
}

func TestDescribeBasic(t *testing.T) {
	engine, err := NewEngine(Config{
		Columns: []string{"x"},
		Metrics: []string{MetricCount, MetricMean, MetricVariance, MetricStdDev, MetricMin, MetricMax},
	})
	require.NoError(t, err)

	seg := flatSegmentation(
		regime.Normal, regime.Normal, regime.Normal,
		regime.Crisis, regime.Crisis, regime.Crisis,
	)
	columns := map[string][]float64{"x": {1, 2, 3, 10, 20, 30}}

	records, err := engine.Describe("T", seg, columns)
	require.NoError(t, err)
	assert.Len(t, records, 12, "2 regimes x 1 column x 6 metrics")

	assert.Equal(t, 3.0, findRecord(t, records, "normal", "x", MetricCount).Value)
	assert.Equal(t, 2.0, findRecord(t, records, "normal", "x", MetricMean).Value)
	assert.InDelta(t, 2.0/3.0, findRecord(t, records, "normal", "x", MetricVariance).Value, 1e-12)
	assert.Equal(t, 20.0, findRecord(t, records, "crisis", "x", MetricMean).Value)
	assert.InDelta(t, 200.0/3.0, findRecord(t, records, "crisis", "x", MetricVariance).Value, 1e-12)
	assert.Equal(t, 1.0, findRecord(t, records, "normal", "x", MetricMin).Value)
	assert.Equal(t, 30.0, findRecord(t, records, "crisis", "x", MetricMax).Value)

	for _, r := range records {
		assert.Equal(t, "T", r.Series)
	}
}

func TestDescribeSampleEstimators(t *testing.T) {
	engine, err := NewEngine(Config{
		Sample:  true,
		Columns: []string{"x"},
		Metrics: []string{MetricVariance},
	})
	require.NoError(t, err)

	seg := flatSegmentation(regime.Normal, regime.Normal, regime.Normal)
	records, err := engine.Describe("T", seg, map[string][]float64{"x": {1, 2, 3}})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, records[0].Value, 1e-12, "sample variance uses the n-1 denominator")
}

func TestDescribeExcludesNaN(t *testing.T) {
	engine, err := NewEngine(Config{
		Columns: []string{"x"},
		Metrics: []string{MetricCount, MetricMean},
	})
	require.NoError(t, err)

	seg := flatSegmentation(regime.Normal, regime.Normal, regime.Normal)
	columns := map[string][]float64{"x": {math.NaN(), 2, 4}}

	records, err := engine.Describe("T", seg, columns)
	require.NoError(t, err)

	assert.Equal(t, 2.0, findRecord(t, records, "normal", "x", MetricCount).Value, "NaN entries do not count")
	assert.Equal(t, 3.0, findRecord(t, records, "normal", "x", MetricMean).Value)
}

func TestDescribeInsufficientData(t *testing.T) {
	engine, err := NewEngine(Config{
		Columns: []string{"x"},
		Metrics: []string{MetricVariance},
	})
	require.NoError(t, err)

	seg := flatSegmentation(regime.Normal, regime.Crisis)
	_, err = engine.Describe("T", seg, map[string][]float64{"x": {1, 2}})

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient, "a one-point regime cannot carry a variance")
	assert.Equal(t, "T", insufficient.Series)
	assert.Equal(t, "normal", insufficient.Regime)
	assert.Equal(t, "x", insufficient.Column)
	assert.Equal(t, MetricVariance, insufficient.Metric)
	assert.Equal(t, 2, insufficient.Need)
	assert.Equal(t, 1, insufficient.Got)
}

func TestDescribeMetricMinimums(t *testing.T) {
	tests := []struct {
		metric string
		points int
		need   int
	}{
		{MetricSkewness, 2, 3},
		{MetricKurtosis, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			engine, err := NewEngine(Config{Columns: []string{"x"}, Metrics: []string{tt.metric}})
			require.NoError(t, err)

			labels := make([]regime.Label, tt.points)
			values := make([]float64, tt.points)
			for i := range values {
				values[i] = float64(i)
			}

			_, err = engine.Describe("T", flatSegmentation(labels...), map[string][]float64{"x": values})

			var insufficient *InsufficientDataError
			require.ErrorAs(t, err, &insufficient)
			assert.Equal(t, tt.need, insufficient.Need)
			assert.Equal(t, tt.points, insufficient.Got)
		})
	}
}

func TestDescribeZeroVariance(t *testing.T) {
	engine, err := NewEngine(Config{Columns: []string{"x"}, Metrics: []string{MetricSkewness}})
	require.NoError(t, err)

	seg := flatSegmentation(regime.Normal, regime.Normal, regime.Normal)
	_, err = engine.Describe("T", seg, map[string][]float64{"x": {5, 5, 5}})

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient, "zero-variance skewness is an error, never NaN or Inf")
	assert.Equal(t, "zero variance", insufficient.Reason)
}

func TestDescribeSkipsAbsentRegimes(t *testing.T) {
	engine, err := NewEngine(Config{Columns: []string{"x"}, Metrics: []string{MetricMean}})
	require.NoError(t, err)

	seg := flatSegmentation(regime.Normal, regime.Normal)
	records, err := engine.Describe("T", seg, map[string][]float64{"x": {1, 2}})
	require.NoError(t, err, "a regime absent from the series is skipped, not an error")
	assert.Len(t, records, 1)
}

func TestDescribeDeterministic(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	labels := []regime.Label{
		regime.Normal, regime.Normal, regime.Normal, regime.Normal, regime.Normal,
	}
	columns := map[string][]float64{
		series.ColLogReturn:  {0.01, -0.02, 0.03, 0.005, -0.01},
		series.ColVolatility: {0.1, 0.11, 0.12, 0.13, 0.12},
		series.ColDrawdown:   {0, -0.01, 0, -0.02, -0.03},
	}

	first, err := engine.Describe("T", flatSegmentation(labels...), columns)
	require.NoError(t, err)
	second, err := engine.Describe("T", flatSegmentation(labels...), columns)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical input must produce identical records")
}

func TestDescribeUnknownMetricAndColumn(t *testing.T) {
	_, err := NewEngine(Config{Metrics: []string{"median"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")

	engine, err := NewEngine(Config{Columns: []string{"missing"}, Metrics: []string{MetricMean}})
	require.NoError(t, err)

	_, err = engine.Describe("T", flatSegmentation(regime.Normal), map[string][]float64{"x": {1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no column")
}

func TestDescribeDrawdowns(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	seg := &regime.Segmentation{
		Labels: []regime.Label{regime.Crisis, regime.Crisis, regime.Normal, regime.Crisis, regime.Crisis},
		Crises: []string{"a", "a", "", "b", "b"},
		Segments: []regime.Segment{
			{Label: regime.Crisis, Crisis: "a", Start: 0, End: 2},
			{Label: regime.Normal, Crisis: "", Start: 2, End: 3},
			{Label: regime.Crisis, Crisis: "b", Start: 3, End: 5},
		},
	}
	closes := []float64{100, 80, 999, 120, 60}

	records := engine.DescribeDrawdowns("T", seg, closes)
	require.Len(t, records, 2)

	crisis := findRecord(t, records, "crisis", series.ColClose, MetricMaxDrawdown)
	assert.InDelta(t, -0.5, crisis.Value, 1e-12,
		"deepest decline is measured inside a segment, the 999 peak must not leak across")

	normal := findRecord(t, records, "normal", series.ColClose, MetricMaxDrawdown)
	assert.Equal(t, 0.0, normal.Value)
}
