// Package series defines the in-memory time series model and the
// derived feature columns used by regime statistics.
package series

import "time"

// Point is a single daily observation for one index.
type Point struct {
	Date  time.Time
	Close float64
}

// Series is an ordered run of daily closes for a single market index.
// The loader guarantees the invariants: dates strictly increasing, no
// duplicates, closes finite and positive.
type Series struct {
	Name   string
	Points []Point
}

// New creates a series from already-validated points.
func New(name string, points []Point) *Series {
	return &Series{Name: name, Points: points}
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Points)
}

// First returns the earliest observation.
func (s *Series) First() Point {
	return s.Points[0]
}

// Last returns the latest observation.
func (s *Series) Last() Point {
	return s.Points[len(s.Points)-1]
}

// Dates returns the observation dates in order.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Closes returns the close column in order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}
