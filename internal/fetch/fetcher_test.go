package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimelab/internal/dataset"
)

type stubProvider struct {
	name   string
	quotes []Quote
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Daily(ctx context.Context, symbol string, start, end time.Time) ([]Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

func testOptions(dir string) Options {
	return Options{
		DataDir:       dir,
		Start:         time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
		RatePerSecond: 1000,
		Burst:         10,
	}
}

func testSpec() Spec {
	return Spec{
		Name:    "SP500",
		File:    "SP500.csv",
		Symbols: map[string]string{"stub": "^spx", "backup": "^GSPC"},
	}
}

func TestFetchSeriesWritesLoaderFormat(t *testing.T) {
	dir := t.TempDir()
	p := &stubProvider{name: "stub", quotes: []Quote{
		// Deliberately unsorted.
		{Date: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC), Close: 101.5},
		{Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
	}}
	f := New([]Provider{p}, testOptions(dir))

	res, err := f.FetchSeries(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, "stub", res.Provider)
	assert.Equal(t, 2, res.Rows)
	assert.False(t, res.Skipped)

	// The written file must round-trip through the loader.
	s, skipped, err := dataset.NewLoader("").LoadFile(res.Path, "SP500")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	assert.Equal(t, 100.0, s.Points[0].Close)
}

func TestFetchSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SP500.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,close\n2019-01-02,10\n"), 0644))

	p := &stubProvider{name: "stub", quotes: []Quote{{Date: time.Now(), Close: 1}}}
	f := New([]Provider{p}, testOptions(dir))

	res, err := f.FetchSeries(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, p.calls, "existing file short-circuits the download")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2019-01-02", "file untouched")
}

func TestFetchForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SP500.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,close\n2019-01-02,10\n"), 0644))

	p := &stubProvider{name: "stub", quotes: []Quote{
		{Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
	}}
	opts := testOptions(dir)
	opts.Force = true
	f := New([]Provider{p}, opts)

	res, err := f.FetchSeries(context.Background(), testSpec())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, p.calls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "2019-01-02")
	assert.Contains(t, string(data), "2020-01-02")
}

func TestFallbackChain(t *testing.T) {
	primary := &stubProvider{name: "stub", err: errors.New("down")}
	backup := &stubProvider{name: "backup", quotes: []Quote{
		{Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
	}}
	f := New([]Provider{primary, backup}, testOptions(t.TempDir()))

	res, err := f.FetchSeries(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestNoFallbackFailsTheSeries(t *testing.T) {
	primary := &stubProvider{name: "stub", err: &FetchError{
		Provider: "stub", Code: ErrCodeHTTP, Message: "unexpected status 500", HTTPStatus: 500, Temporary: true,
	}}
	f := New([]Provider{primary}, testOptions(t.TempDir()))

	_, err := f.FetchSeries(context.Background(), testSpec())
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, ErrCodeHTTP, ferr.Code)
}

func TestNoSymbolConfigured(t *testing.T) {
	p := &stubProvider{name: "stub", quotes: []Quote{{Date: time.Now(), Close: 1}}}
	f := New([]Provider{p}, testOptions(t.TempDir()))

	spec := testSpec()
	spec.Symbols = map[string]string{"other": "^x"}
	_, err := f.FetchSeries(context.Background(), spec)

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, ErrCodeNoSymbol, ferr.Code)
	assert.Equal(t, 0, p.calls)
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	p := &stubProvider{name: "stub", quotes: []Quote{
		{Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
	}}
	opts := testOptions(t.TempDir())
	opts.RatePerSecond = 1
	opts.Burst = 1
	opts.Force = true
	f := New([]Provider{p}, opts)

	// First call consumes the burst token.
	_, err := f.FetchSeries(context.Background(), testSpec())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter would block for the next token; a dead context must
	// surface instead of waiting.
	_, err = f.FetchSeries(ctx, testSpec())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := &stubProvider{name: "stub", err: errors.New("down")}
	opts := testOptions(t.TempDir())
	opts.Force = true
	f := New([]Provider{p}, opts)

	for i := 0; i < 3; i++ {
		_, err := f.FetchSeries(context.Background(), testSpec())
		require.Error(t, err)
	}
	assert.Equal(t, 3, p.calls)

	_, err := f.FetchSeries(context.Background(), testSpec())
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, ErrCodeCircuitOpen, ferr.Code)
	assert.True(t, ferr.Temporary)
	assert.Equal(t, 3, p.calls, "open breaker blocks the call")
}
