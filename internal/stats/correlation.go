package stats

import (
	"math"
	"sort"
	"time"

	"regimelab/internal/regime"
)

// SeriesReturns is one series' dated, labeled log returns, the input
// for cross-series correlation.
type SeriesReturns struct {
	Name    string
	Dates   []time.Time
	Labels  []regime.Label
	Returns []float64
}

// Matrix holds pairwise log-return correlations for one regime label.
// Values[i][j] is NaN when the pair has fewer than two aligned valid
// observations; Counts carries the aligned observation count.
type Matrix struct {
	Regime string
	Names  []string
	Values [][]float64
	Counts [][]int
}

// Correlations computes the per-regime Pearson correlation of log
// returns across series, aligning observations by date. Regimes with
// no valid observations in any series are omitted. Correlation is a
// cross-series supplement: an empty pairwise overlap reports as NaN
// with a zero count rather than an error.
func Correlations(inputs []SeriesReturns) []Matrix {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}

	var matrices []Matrix
	for _, label := range regime.Labels() {
		perSeries := make([]map[int64]float64, len(inputs))
		populated := false
		for i, in := range inputs {
			byDate := make(map[int64]float64)
			for j, l := range in.Labels {
				if l != label || math.IsNaN(in.Returns[j]) {
					continue
				}
				byDate[in.Dates[j].Unix()] = in.Returns[j]
			}
			perSeries[i] = byDate
			if len(byDate) > 0 {
				populated = true
			}
		}
		if !populated {
			continue
		}

		m := Matrix{
			Regime: label.String(),
			Names:  names,
			Values: make([][]float64, len(inputs)),
			Counts: make([][]int, len(inputs)),
		}
		for i := range inputs {
			m.Values[i] = make([]float64, len(inputs))
			m.Counts[i] = make([]int, len(inputs))
			for j := range inputs {
				value, n := alignedPearson(perSeries[i], perSeries[j])
				m.Values[i][j] = value
				m.Counts[i][j] = n
			}
		}
		matrices = append(matrices, m)
	}
	return matrices
}

// alignedPearson intersects two date-keyed return maps and correlates
// the aligned pairs. The intersection is walked in date order so
// identical input always accumulates in the same order and yields
// bit-identical results.
func alignedPearson(a, b map[int64]float64) (float64, int) {
	dates := make([]int64, 0, len(a))
	for date := range a {
		if _, ok := b[date]; ok {
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	if len(dates) < 2 {
		return math.NaN(), len(dates)
	}
	xs := make([]float64, len(dates))
	ys := make([]float64, len(dates))
	for i, date := range dates {
		xs[i] = a[date]
		ys[i] = b[date]
	}
	return Pearson(xs, ys), len(dates)
}
