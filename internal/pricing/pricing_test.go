package pricing

import (
	"context"
	"errors"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string) *EODHD {
	cfg := config.Pricing{
		BaseURL:    baseURL,
		APIToken:   "demo",
		Timeout:    time.Second,
		MaxRetries: 2,
		PricePath:  "$.close",
		NamePath:   "$[0].Name",
	}
	e := NewEODHD(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return e
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real-time/XYZ.US", r.URL.Path)
		assert.Equal(t, "demo", r.URL.Query().Get("api_token"))
		_, _ = w.Write([]byte(`{"code":"XYZ.US","close":60.15,"open":59.1}`))
	}))
	defer srv.Close()

	q, err := newTestClient(srv.URL).Quote(context.Background(), "XYZ.US")
	require.NoError(t, err)
	assert.Equal(t, "XYZ.US", q.Symbol)
	assert.True(t, q.Close.Equal(decimal.RequireFromString("60.15")), "close = %s", q.Close)
}

func TestQuoteRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"close":12}`))
	}))
	defer srv.Close()

	q, err := newTestClient(srv.URL).Quote(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.True(t, q.Close.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQuoteGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "XYZ")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "XYZ", fetchErr.Symbol)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "one call plus two retries")
}

func TestQuoteUnknownSymbolIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuoteNotAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NOPE","close":"NA"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/EMPTY") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"Code":"XYZ","Exchange":"US","Name":"XYZ Corp"}]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	name, err := client.Describe(context.Background(), "XYZ.US")
	require.NoError(t, err)
	assert.Equal(t, "XYZ Corp", name)

	_, err = client.Describe(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestReadReference(t *testing.T) {
	list, err := ReadReference(strings.NewReader(`
tickers:
  - symbol: aapl.us
    name: " Apple Inc. "
  - symbol: MSFT.US
    name: Microsoft Corporation
  - symbol: AAPL.US
    name: duplicate
`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL.US", list[0].Symbol)
	assert.Equal(t, "Apple Inc.", list[0].Name)
	assert.Equal(t, "MSFT.US", list[1].Symbol)

	_, err = ReadReference(strings.NewReader("tickers:\n  - name: nameless\n"))
	assert.Error(t, err)
}

func TestQuoteRateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"close":1}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := client.Quote(context.Background(), "XYZ")
	require.NoError(t, err)

	// the single token is spent, so the next call waits until ctx expires
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = client.Quote(ctx, "XYZ")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
