// Package stats computes per-regime descriptive statistics over the
// derived series columns.
package stats

import "math"

// The kernels below operate on slices already cleaned of NaN entries.
// Minimum-size enforcement and error mapping live in the engine.

// Mean returns the arithmetic mean.
func Mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance by default, or the sample
// variance (n-1 denominator) when sample is true.
func Variance(xs []float64, sample bool) float64 {
	mean := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	if sample {
		return ss / float64(len(xs)-1)
	}
	return ss / float64(len(xs))
}

// StdDev returns the square root of Variance.
func StdDev(xs []float64, sample bool) float64 {
	return math.Sqrt(Variance(xs, sample))
}

// Skewness returns the population skewness m3/m2^(3/2). When sample is
// true the adjusted Fisher-Pearson estimator is returned instead.
// Zero-variance input yields NaN; the engine maps that to an error.
func Skewness(xs []float64, sample bool) float64 {
	_, m2, m3, _ := centralMoments(xs)
	if m2 == 0 {
		return math.NaN()
	}
	g1 := m3 / math.Pow(m2, 1.5)
	if !sample {
		return g1
	}
	n := float64(len(xs))
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// Kurtosis returns excess kurtosis, so a normal distribution scores
// zero. Population form is m4/m2^2 - 3; the sample form applies the
// standard bias correction. Zero-variance input yields NaN.
func Kurtosis(xs []float64, sample bool) float64 {
	_, m2, _, m4 := centralMoments(xs)
	if m2 == 0 {
		return math.NaN()
	}
	g2 := m4/(m2*m2) - 3
	if !sample {
		return g2
	}
	n := float64(len(xs))
	return ((n+1)*g2 + 6) * (n - 1) / ((n - 2) * (n - 3))
}

// Min returns the smallest value.
func Min(xs []float64) float64 {
	min := xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
	}
	return min
}

// Max returns the largest value.
func Max(xs []float64) float64 {
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	return max
}

// MaxDrawdown returns the deepest peak-to-trough decline across the
// close sequence as a fraction of the peak. The result is zero for a
// non-decreasing sequence and negative otherwise.
func MaxDrawdown(closes []float64) float64 {
	peak := closes[0]
	maxDD := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		dd := (c - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Pearson returns the correlation of two equal-length slices, or NaN
// when either side has zero variance.
func Pearson(xs, ys []float64) float64 {
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// centralMoments returns the mean and the second through fourth
// central moments with the population (1/n) normalization.
func centralMoments(xs []float64) (mean, m2, m3, m4 float64) {
	mean = Mean(xs)
	for _, x := range xs {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(xs))
	m2 /= n
	m3 /= n
	m4 /= n
	return mean, m2, m3, m4
}
