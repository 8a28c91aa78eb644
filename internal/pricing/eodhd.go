package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/PaesslerAG/jsonpath"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EODHD fetches quotes from the eodhd.com API.
//
// Prices come from the real-time endpoint:
//
//	GET {base}/real-time/AAPL.US?api_token=demo&fmt=json
//	{"code":"AAPL.US","timestamp":1717790400,"open":194.65,"close":196.89,...}
//
// Names come from the search endpoint:
//
//	GET {base}/search/AAPL.US?api_token=demo&fmt=json
//	[{"Code":"AAPL","Exchange":"US","Name":"Apple Inc",...}]
//
// Both values are located with a jsonpath expression so that a compatible
// provider with another payload shape only needs a config change.
type EODHD struct {
	client     *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
	maxRetries uint64
	pricePath  string
	namePath   string
	logger     *slog.Logger
	limiter    *rate.Limiter

	// newBackOff builds the retry schedule for one call.
	newBackOff func() backoff.BackOff
}

// NewEODHD builds a client. Requests, retries included, are throttled to
// cfg.RateLimit per second; a non-positive limit disables throttling.
func NewEODHD(cfg config.Pricing, logger *slog.Logger) *EODHD {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &EODHD{
		client:     &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		pricePath:  cfg.PricePath,
		namePath:   cfg.NamePath,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, 1),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

func (e *EODHD) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	addr := fmt.Sprintf("%s/real-time/%s?fmt=json&api_token=%s", e.baseURL, url.PathEscape(symbol), url.QueryEscape(e.token))

	payload, err := e.fetch(ctx, addr)
	if err != nil {
		return models.Quote{}, &FetchError{Symbol: symbol, Err: err}
	}

	raw, err := jsonpath.Get(e.pricePath, payload)
	if err != nil {
		return models.Quote{}, &FetchError{Symbol: symbol, Err: fmt.Errorf("price path %q: %w", e.pricePath, err)}
	}

	price, err := toDecimal(raw)
	if err != nil {
		return models.Quote{}, &FetchError{Symbol: symbol, Err: err}
	}

	return models.Quote{Symbol: symbol, Close: price}, nil
}

func (e *EODHD) Describe(ctx context.Context, symbol string) (string, error) {
	addr := fmt.Sprintf("%s/search/%s?fmt=json&api_token=%s", e.baseURL, url.PathEscape(symbol), url.QueryEscape(e.token))

	payload, err := e.fetch(ctx, addr)
	if err != nil {
		return "", &FetchError{Symbol: symbol, Err: err}
	}

	raw, err := jsonpath.Get(e.namePath, payload)
	if err != nil || raw == nil {
		// an empty search result has no first element
		return "", &FetchError{Symbol: symbol, Err: ErrUnknownSymbol}
	}

	name, ok := raw.(string)
	if !ok {
		return "", &FetchError{Symbol: symbol, Err: fmt.Errorf("name is %T, not a string", raw)}
	}

	return name, nil
}

// fetch GETs addr and decodes the JSON body, retrying transient failures.
// Every attempt runs under its own timeout.
func (e *EODHD) fetch(ctx context.Context, addr string) (interface{}, error) {
	var payload interface{}

	operation := func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, addr, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrUnknownSymbol)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("cannot http GET %v: %v", req.URL.Path, resp.Status)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("cannot http GET %v: %v", req.URL.Path, resp.Status))
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Price fetch failed, retrying", "error", err, slog.Duration("wait", wait))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), e.maxRetries), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, err
	}

	return payload, nil
}

func toDecimal(raw interface{}) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		// eodhd answers "NA" for symbols it cannot price
		price, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, ErrUnknownSymbol
		}
		return price, nil
	default:
		return decimal.Zero, fmt.Errorf("price is %T, not a number", raw)
	}
}
