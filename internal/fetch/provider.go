// Package fetch downloads daily close history from public quote
// providers and writes it as loader-ready CSV files.
package fetch

import (
	"context"
	"time"
)

const userAgent = "regimelab/1.0"

// Quote is one daily observation as delivered by a provider.
type Quote struct {
	Date  time.Time
	Close float64
}

// Provider fetches daily close history for one symbol. Implementations
// return quotes in ascending date order and skip days the source marks
// as missing.
type Provider interface {
	Name() string
	Daily(ctx context.Context, symbol string, start, end time.Time) ([]Quote, error)
}
