package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	atomicio "regimelab/internal/io"
)

// Spec names one series to download: the output file and the symbol
// each provider knows it by.
type Spec struct {
	Name    string
	File    string
	Symbols map[string]string
}

// Result reports one series fetch.
type Result struct {
	Series   string
	Path     string
	Provider string
	Rows     int
	Skipped  bool
}

// Options tune the fetcher.
type Options struct {
	DataDir       string
	Start         time.Time
	End           time.Time
	Force         bool
	RatePerSecond float64
	Burst         int
}

// Fetcher downloads series through an ordered provider chain. Each
// provider gets its own rate limiter and circuit breaker; the next
// provider in the chain is tried only when the previous one fails.
type Fetcher struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	breakers  map[string]*gobreaker.CircuitBreaker
	opts      Options
}

// New builds a fetcher over the given chain. A single-element chain
// means no fallback: the first provider error fails the series.
func New(providers []Provider, opts Options) *Fetcher {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	f := &Fetcher{
		providers: providers,
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker, len(providers)),
		opts:      opts,
	}
	for _, p := range providers {
		name := p.Name()
		f.limiters[name] = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst)
		f.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("provider", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("fetch breaker state change")
			},
		})
	}
	return f
}

// FetchAll downloads every spec in order. The first failed series
// aborts the run; already-present files are skipped unless Force is
// set.
func (f *Fetcher) FetchAll(ctx context.Context, specs []Spec) ([]Result, error) {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		res, err := f.FetchSeries(ctx, spec)
		if err != nil {
			return results, err
		}
		if res.Skipped {
			log.Info().Str("series", res.Series).Str("path", res.Path).
				Msg("file exists, skipping (use --force to refetch)")
		} else {
			log.Info().Str("series", res.Series).Str("provider", res.Provider).
				Int("rows", res.Rows).Str("path", res.Path).
				Msg("fetched daily history")
		}
		results = append(results, res)
	}
	return results, nil
}

// FetchSeries downloads one series and writes it atomically in the
// loader's date,close format.
func (f *Fetcher) FetchSeries(ctx context.Context, spec Spec) (Result, error) {
	path := filepath.Join(f.opts.DataDir, spec.File)
	if !f.opts.Force {
		if _, err := os.Stat(path); err == nil {
			return Result{Series: spec.Name, Path: path, Skipped: true}, nil
		}
	}

	quotes, provider, err := f.daily(ctx, spec)
	if err != nil {
		return Result{}, err
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Date.Before(quotes[j].Date) })

	rows := make([][]string, 0, len(quotes)+1)
	rows = append(rows, []string{"date", "close"})
	for _, q := range quotes {
		rows = append(rows, []string{
			q.Date.Format("2006-01-02"),
			strconv.FormatFloat(q.Close, 'f', -1, 64),
		})
	}
	if err := atomicio.WriteCSVAtomic(path, rows); err != nil {
		return Result{}, err
	}

	return Result{Series: spec.Name, Path: path, Provider: provider, Rows: len(quotes)}, nil
}

// daily walks the provider chain until one succeeds.
func (f *Fetcher) daily(ctx context.Context, spec Spec) ([]Quote, string, error) {
	var lastErr error
	for _, p := range f.providers {
		name := p.Name()
		symbol, ok := spec.Symbols[name]
		if !ok || symbol == "" {
			lastErr = &FetchError{Provider: name, Code: ErrCodeNoSymbol,
				Message: "no symbol configured for series " + spec.Name}
			continue
		}

		if err := f.limiters[name].Wait(ctx); err != nil {
			return nil, "", err
		}

		out, err := f.breakers[name].Execute(func() (interface{}, error) {
			return p.Daily(ctx, symbol, f.opts.Start, f.opts.End)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				err = &FetchError{Provider: name, Symbol: symbol, Code: ErrCodeCircuitOpen,
					Message: "breaker open", Temporary: true, Cause: err}
			}
			log.Warn().Err(err).Str("provider", name).Str("series", spec.Name).
				Msg("provider fetch failed")
			lastErr = err
			continue
		}
		return out.([]Quote), name, nil
	}
	return nil, "", lastErr
}
