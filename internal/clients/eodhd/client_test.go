package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/models"
)

func TestTicker_AppendsDefaultExchange(t *testing.T) {
	c := NewClient("k")
	if got := c.Ticker("aapl"); got != "AAPL.US" {
		t.Errorf("Ticker(aapl) = %s, want AAPL.US", got)
	}
	if got := c.Ticker("BHP.AU"); got != "BHP.AU" {
		t.Errorf("Ticker(BHP.AU) = %s, want BHP.AU", got)
	}
	c = NewClient("k", WithDefaultExchange("au"))
	if got := c.Ticker("CBA"); got != "CBA.AU" {
		t.Errorf("Ticker(CBA) = %s, want CBA.AU", got)
	}
}

func TestFetchPrices_ParsesAndSorts(t *testing.T) {
	var capturedPath string
	var capturedQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedQuery = map[string]string{
			"from":      r.URL.Query().Get("from"),
			"to":        r.URL.Query().Get("to"),
			"api_token": r.URL.Query().Get("api_token"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"date": "2023-01-11", "close": 125.0, "adjusted_close": 124.0, "volume": 10},
			{"date": "2023-01-10", "close": "120", "adjusted_close": 119.0, "volume": 10},
			{"date": "bad", "close": 1.0},
			{"date": "2023-01-12", "close": "NA"},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	from := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 1, 12, 0, 0, 0, 0, time.UTC)
	points, err := c.FetchPrices(context.Background(), "AAPL", from, to)
	require.NoError(t, err)

	assert.Equal(t, "/eod/AAPL.US", capturedPath)
	assert.Equal(t, "2023-01-10", capturedQuery["from"])
	assert.Equal(t, "2023-01-12", capturedQuery["to"])
	assert.Equal(t, "test-key", capturedQuery["api_token"])

	require.Len(t, points, 2)
	assert.True(t, points[0].Date.Equal(from))
	assert.Equal(t, 120.0, points[0].Close)
	assert.Equal(t, 125.0, points[1].Close)
}

func TestFetchDividends_UsesExDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/div/MSFT.US" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"date": "2023-05-10", "paymentDate": "2023-06-08", "value": 0.68, "unadjustedValue": 0.68},
			{"date": "2023-02-15", "paymentDate": "2023-03-09", "value": 0.68, "unadjustedValue": 0},
			{"date": "2023-08-16", "value": 0},
		})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	points, err := c.FetchDividends(context.Background(), "msft", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2023-02-15", points[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2023-05-10", points[1].Date.Format("2006-01-02"))
	assert.Equal(t, 0.68, points[1].Amount)
}

func TestFetchRealtime_ParsesTimestamp(t *testing.T) {
	ts := int64(1711670340)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/real-time/BHP.AU" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":      "BHP.AU",
			"timestamp": ts,
			"close":     43.25,
		})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	quote, err := c.FetchRealtime(context.Background(), "BHP.AU")
	require.NoError(t, err)
	assert.Equal(t, "BHP.AU", quote.Symbol)
	assert.Equal(t, 43.25, quote.Price)
	assert.True(t, quote.AsOf.Equal(time.Unix(ts, 0)))
}

func TestFetchRealtime_FallsBackToPreviousClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":          "AAPL.US",
			"timestamp":     "NA",
			"close":         "NA",
			"previousClose": 190.5,
		})
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	quote, err := c.FetchRealtime(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.5, quote.Price)
	assert.False(t, quote.AsOf.IsZero())
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("slow down"))
		}))

		c := NewClient("k", WithBaseURL(srv.URL))
		_, err := c.FetchPrices(context.Background(), "AAPL", time.Time{}, time.Time{})
		srv.Close()

		require.Error(t, err)
		assert.True(t, models.IsTransient(err), "status %d should be transient", status)
		var apiErr *APIError
		assert.True(t, errors.As(err, &apiErr))
	}
}

func TestFetch_AuthErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.FetchDividends(context.Background(), "AAPL", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.False(t, models.IsTransient(err))
}

func TestFetch_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient("k", WithBaseURL(url), WithTimeout(time.Second))
	_, err := c.FetchRealtime(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}
