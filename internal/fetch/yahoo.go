package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// YahooProvider downloads daily history from the Yahoo Finance v8
// chart endpoint. Index symbols use Yahoo's caret form, e.g. ^GSPC.
type YahooProvider struct {
	client  *http.Client
	baseURL string
}

func NewYahoo(timeout time.Duration) *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://query1.finance.yahoo.com",
	}
}

func (p *YahooProvider) Name() string {
	return "yahoo"
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) Daily(ctx context.Context, symbol string, start, end time.Time) ([]Quote, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")

	endpoint := p.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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

	var chart yahooChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "parse chart JSON", Cause: err}
	}

	if chart.Chart.Error != nil {
		return nil, &FetchError{
			Provider: p.Name(),
			Symbol:   symbol,
			Code:     ErrCodeNoData,
			Message:  fmt.Sprintf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description),
		}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNoData, Message: "empty chart result"}
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeDecode, Message: "timestamp/close length mismatch"}
	}

	quotes := make([]Quote, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Halted or unquoted days arrive as JSON nulls.
		if closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		quotes = append(quotes, Quote{
			Date:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Close: *closes[i],
		})
	}

	if len(quotes) == 0 {
		return nil, &FetchError{Provider: p.Name(), Symbol: symbol, Code: ErrCodeNoData, Message: "no usable rows"}
	}
	return quotes, nil
}
