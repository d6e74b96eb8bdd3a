package stats

import "fmt"

// InsufficientDataError reports a regime slice too small, or too
// degenerate, for a requested metric. The engine fails loudly rather
// than emitting NaN for a metric it cannot compute.
type InsufficientDataError struct {
	Series string
	Regime string
	Column string
	Metric string
	Need   int
	Got    int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = fmt.Sprintf("have %d valid points, need %d", e.Got, e.Need)
	}
	return fmt.Sprintf("insufficient data for %s/%s %s %s: %s",
		e.Series, e.Regime, e.Column, e.Metric, reason)
}
