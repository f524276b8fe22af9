// Package eodhd provides a client for the EODHD (End of Day Historical Data) API.
// It is the market-data source used for closing prices and instrument metadata.
package eodhd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// QueryOption narrows a bar query.
type QueryOption func(*queryParams)

type queryParams struct {
	From   time.Time
	To     time.Time
	Period string // d, w, m
	Order  string // a, d
}

func (q queryParams) values() url.Values {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.Format(dateLayout))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.Format(dateLayout))
	}
	if q.Period != "" {
		v.Set("period", q.Period)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	return v
}

// WithDateRange limits bars to [from, to], both inclusive by calendar date.
func WithDateRange(from, to time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
		p.To = to
	}
}

// APIError is a non-2xx, non-429 API answer.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is an HTTP 429 answer.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded, retry after %v", e.RetryAfter)
}

// ErrNoData is returned when the API answers successfully with an empty series.
var ErrNoData = errors.New("EODHD returned no data")

// IsRateLimited reports whether err is a rate-limit class error.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
