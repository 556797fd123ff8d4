// Package extract resolves the identifier code and price for a single
// product reference using tiered fallback strategies and a bounded retry.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/fetch"
	"github.com/dkoetsier/eanharvest/metrics"
)

// Result is the outcome of extracting one product reference. EAN and Price
// are empty when absent after all strategies and attempts.
type Result struct {
	URL        string
	EAN        string
	Price      string
	Attempts   int
	LoadFailed bool // page never rendered on any attempt
}

// Complete reports whether both fields were resolved.
func (r Result) Complete() bool {
	return r.EAN != "" && r.Price != ""
}

// Failed reports a complete failure: neither field resolved.
func (r Result) Failed() bool {
	return r.EAN == "" && r.Price == ""
}

// Extractor fetches product pages and resolves their fields.
type Extractor struct {
	fetcher     fetch.PageFetcher
	retryDelay  time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
}

// New builds an extractor using the given fetcher.
func New(fetcher fetch.PageFetcher, cfg *config.Config, m *metrics.Metrics) *Extractor {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Extractor{
		fetcher:     fetcher,
		retryDelay:  cfg.RetryDelay,
		maxAttempts: attempts,
		metrics:     m,
	}
}

// Extract resolves both fields for one reference. The whole fetch is retried
// once, after a fixed delay, when the page fails to load or both fields come
// back absent; one present field is accepted as a final partial result, since
// re-fetching already-correct data only adds rate pressure. Only a
// *fetch.SessionError is returned as an error.
func (e *Extractor) Extract(ctx context.Context, ref string) (Result, error) {
	result := Result{URL: ref}
	loaded := false

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result.Attempts = attempt

		if attempt > 1 {
			e.metrics.IncRetry()
			slog.Debug("retrying product", slog.String("url", ref))
			if err := sleep(ctx, e.retryDelay); err != nil {
				return result, err
			}
		}

		doc, err := e.fetcher.Fetch(ctx, ref)
		if err != nil {
			var session *fetch.SessionError
			if errors.As(err, &session) {
				result.LoadFailed = !loaded
				return result, err
			}
			slog.Warn("product page failed",
				slog.String("url", ref),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}
		loaded = true
		e.metrics.IncPage("product")

		result.EAN = resolveField(doc, eanStrategies)
		result.Price = resolveField(doc, priceStrategies)

		// Anything found ends the loop; a retry is warranted only when
		// the attempt produced nothing at all.
		if !result.Failed() {
			break
		}
	}

	result.LoadFailed = !loaded
	e.metrics.IncProduct()
	if result.EAN == "" {
		e.metrics.IncFieldMissing("ean")
	}
	if result.Price == "" {
		e.metrics.IncFieldMissing("price")
	}

	return result, nil
}

// resolveField tries each strategy in order until one yields a validated
// value. Absence of all values is the not-found outcome, not an error.
func resolveField(doc *goquery.Document, strategies []strategy) string {
	for _, s := range strategies {
		if value, ok := s.fn(doc); ok {
			return value
		}
		slog.Debug("strategy missed", slog.String("strategy", s.name))
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
