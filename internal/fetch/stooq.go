package fetch

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StooqProvider downloads daily history from the stooq.com CSV export
// endpoint. Index symbols use stooq's lowercase form, e.g. ^spx.
type StooqProvider struct {
	client  *http.Client
	baseURL string
}

func NewStooq(timeout time.Duration) *StooqProvider {
	return &StooqProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://stooq.com",
	}
}

func (p *StooqProvider) Name() string {
	return "stooq"
}

func (p *StooqProvider) Daily(ctx context.Context, symbol string, start, end time.Time) ([]Quote, error) {
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("d1", start.Format("20060102"))
	q.Set("d2", end.Format("20060102"))
	q.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/q/d/l/?"+q.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNetwork, Message: "build request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNetwork, Message: "request failed", Temporary: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Provider:   p.Name(),
			Symbol:     symbol,
			Code:       ErrCodeHTTP,
			Message:    "unexpected status " + resp.Status,
			HTTPStatus: resp.StatusCode,
			Temporary:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "parse CSV body", Cause: err}
	}
	return p.parseRows(symbol, rows)
}

func (p *StooqProvider) parseRows(symbol string, rows [][]string) ([]Quote, error) {
	// Unknown symbols come back as a one-line "No data" body rather
	// than an HTTP error.
	if len(rows) < 2 || !strings.EqualFold(strings.TrimSpace(rows[0][0]), "date") {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNoData, Message: "no rows returned"}
	}

	dateIdx, closeIdx := -1, -1
	for i, col := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if closeIdx < 0 {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "no close column in response"}
	}

	quotes := make([]Quote, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= closeIdx {
			continue
		}
		raw := strings.TrimSpace(row[closeIdx])
		if raw == "" || strings.EqualFold(raw, "n/d") {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "bad date " + row[dateIdx], Cause: err}
		}
		close, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "bad close " + raw, Cause: err}
		}
		quotes = append(quotes, Quote{Date: date, Close: close})
	}

	if len(quotes) == 0 {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNoData, Message: "no usable rows"}
	}
	return quotes, nil
}
