package series

import "math"

// Column names for the derived feature columns.
const (
	ColClose      = "close"
	ColLogReturn  = "log_return"
	ColVolatility = "volatility"
	ColPeak       = "peak"
	ColDrawdown   = "drawdown"
)

// FeatureSet holds derived columns parallel to a series' points.
// Warmup entries that are undefined (the first log return, the first
// window-1 volatility points) are NaN and count as missing downstream.
type FeatureSet struct {
	LogReturn  []float64
	Volatility []float64
	Peak       []float64
	Drawdown   []float64

	VolWindow int
}

// Build computes the derived columns for s. volWindow is the trailing
// window for rolling volatility and must be at least 2; config
// validation enforces this before Build is reached.
func Build(s *Series, volWindow int) *FeatureSet {
	n := s.Len()
	f := &FeatureSet{
		LogReturn: make([]float64, n),
		Peak:      make([]float64, n),
		Drawdown:  make([]float64, n),
		VolWindow: volWindow,
	}

	for i, p := range s.Points {
		if i == 0 {
			f.LogReturn[i] = math.NaN()
			f.Peak[i] = p.Close
		} else {
			f.LogReturn[i] = math.Log(p.Close) - math.Log(s.Points[i-1].Close)
			f.Peak[i] = math.Max(f.Peak[i-1], p.Close)
		}
		f.Drawdown[i] = (p.Close - f.Peak[i]) / f.Peak[i]
	}

	f.Volatility = rollingStd(f.LogReturn, volWindow)
	return f
}

// Columns returns the numeric columns keyed by name, including the raw
// close column, for per-regime statistics.
func Columns(s *Series, f *FeatureSet) map[string][]float64 {
	return map[string][]float64{
		ColClose:      s.Closes(),
		ColLogReturn:  f.LogReturn,
		ColVolatility: f.Volatility,
		ColPeak:       f.Peak,
		ColDrawdown:   f.Drawdown,
	}
}

// rollingStd computes the trailing sample standard deviation over a
// fixed window. A slot is NaN until the window holds `window` non-NaN
// values, matching a rolling deviation with a full-window minimum.
func rollingStd(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}

	for i := window - 1; i < len(xs); i++ {
		sum := 0.0
		valid := 0
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				continue
			}
			sum += xs[j]
			valid++
		}
		if valid < window {
			continue
		}

		mean := sum / float64(valid)
		ss := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := xs[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(valid-1))
	}

	return out
}
