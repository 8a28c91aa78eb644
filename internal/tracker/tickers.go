package tracker

import (
	"context"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/shopspring/decimal"
	"log/slog"
	"strings"
)

// RefreshReport lists which tickers got a fresh price and which did not.
type RefreshReport struct {
	Updated []string         `json:"updated"`
	Failed  []RefreshFailure `json:"failed"`
}

type RefreshFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
	Err    error  `json:"-"`
}

// Initialize prepares the store. It applies pending migrations and seeds the
// tickers from the reference list while the ticker table is empty, so a
// seed that failed on an earlier run is retried. On a store that already has
// tickers it only refreshes prices when asked to. Calling it again is safe.
func (t *Tracker) Initialize(ctx context.Context) (RefreshReport, error) {
	const op = "tracker.Initialize"

	initialized, err := t.store.IsInitialized(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
	}

	// a fresh store is left untouched when the reference list is unusable
	var refs []models.ReferenceTicker
	if !initialized {
		if refs, err = t.reference(); err != nil {
			return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := t.store.Migrate(ctx); err != nil {
		return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
	}

	tickers, err := t.store.Tickers(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(tickers) > 0 {
		if !t.seed.RefreshOnStart {
			return RefreshReport{}, nil
		}
		return t.UpdateAllTickers(ctx)
	}

	if refs == nil {
		if refs, err = t.reference(); err != nil {
			return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	report, err := t.seedTickers(ctx, refs)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

func (t *Tracker) reference() ([]models.ReferenceTicker, error) {
	refs, err := pricing.LoadReference(t.seed.ReferencePath)
	if err != nil {
		return nil, err
	}
	if t.seed.Limit > 0 && len(refs) > t.seed.Limit {
		refs = refs[:t.seed.Limit]
	}
	return refs, nil
}

// seedTickers stores the reference tickers unpriced in one batch, then
// prices them one by one. A symbol that cannot be priced stays unpriced and
// is reported.
func (t *Tracker) seedTickers(ctx context.Context, refs []models.ReferenceTicker) (RefreshReport, error) {
	tickers := make([]models.Ticker, 0, len(refs))
	symbols := make([]string, 0, len(refs))
	for _, ref := range refs {
		name := ref.Name
		if name == "" {
			var err error
			name, err = t.source.Describe(ctx, ref.Symbol)
			if err != nil {
				t.logger.Warn("No display name for ticker", slog.String("symbol", ref.Symbol), "error", err)
			}
		}

		tickers = append(tickers, models.Ticker{Symbol: ref.Symbol, CompanyName: name})
		symbols = append(symbols, ref.Symbol)
	}

	if err := t.store.CreateTickers(ctx, tickers); err != nil {
		return RefreshReport{}, err
	}

	t.logger.Info("Seeded tickers", slog.Int("count", len(symbols)))

	if !t.seed.FetchPrices {
		return RefreshReport{}, nil
	}
	return t.refresh(ctx, symbols)
}

// AddTicker stores a new ticker and tries to price it right away. A failed
// fetch leaves the ticker unpriced and shows up in the report.
func (t *Tracker) AddTicker(ctx context.Context, symbol, name string) (RefreshReport, error) {
	const op = "tracker.AddTicker"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if name == "" {
		var err error
		if name, err = t.source.Describe(ctx, symbol); err != nil {
			t.logger.Warn("No display name for ticker", slog.String("symbol", symbol), "error", err)
		}
	}

	if err := t.store.CreateTicker(ctx, symbol, name, decimal.NullDecimal{}); err != nil {
		return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
	}
	t.logger.Info("Added ticker", slog.String("symbol", symbol))

	report, err := t.refresh(ctx, []string{symbol})
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// DeleteTicker removes a ticker along with every position held in it.
func (t *Tracker) DeleteTicker(ctx context.Context, symbol string) error {
	if err := t.store.DeleteTicker(ctx, symbol); err != nil {
		return err
	}
	t.logger.Info("Deleted ticker", slog.String("symbol", symbol))
	return nil
}

// UpdateTicker fetches the latest close for symbol and stores it.
func (t *Tracker) UpdateTicker(ctx context.Context, symbol string) error {
	const op = "tracker.UpdateTicker"

	// unknown tickers are rejected before spending a provider call
	ticker, err := t.store.GetTicker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	quote, err := t.source.Quote(ctx, ticker.Symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	quote.Symbol = ticker.Symbol

	if err := t.store.SaveQuote(ctx, quote); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.logger.Debug("Updated ticker", slog.String("symbol", ticker.Symbol), slog.String("price", quote.Close.String()))
	return nil
}

// UpdateAllTickers refreshes every stored ticker. Failures are isolated per
// symbol and listed in the report; only a store failure or a cancelled
// context aborts the run.
func (t *Tracker) UpdateAllTickers(ctx context.Context) (RefreshReport, error) {
	const op = "tracker.UpdateAllTickers"

	tickers, err := t.store.Tickers(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("%s: %w", op, err)
	}

	symbols := make([]string, 0, len(tickers))
	for _, tk := range tickers {
		symbols = append(symbols, tk.Symbol)
	}

	report, err := t.refresh(ctx, symbols)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// UpdateTickers refreshes the given symbols with the same isolation as
// UpdateAllTickers.
func (t *Tracker) UpdateTickers(ctx context.Context, symbols []string) (RefreshReport, error) {
	return t.refresh(ctx, symbols)
}

func (t *Tracker) refresh(ctx context.Context, symbols []string) (RefreshReport, error) {
	report := RefreshReport{
		Updated: make([]string, 0, len(symbols)),
		Failed:  make([]RefreshFailure, 0),
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := t.UpdateTicker(ctx, symbol); err != nil {
			t.logger.Warn("Failed to update ticker", slog.String("symbol", symbol), "error", err)
			report.Failed = append(report.Failed, RefreshFailure{Symbol: symbol, Error: err.Error(), Err: err})
			continue
		}
		report.Updated = append(report.Updated, symbol)
	}

	t.logger.Info("Refreshed tickers",
		slog.Int("updated", len(report.Updated)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (t *Tracker) Tickers(ctx context.Context) ([]models.TickerPrice, error) {
	return t.store.Tickers(ctx)
}
