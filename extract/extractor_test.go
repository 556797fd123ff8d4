package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/fetch"
	"github.com/dkoetsier/eanharvest/metrics"
)

const productURL = "https://shop.test/nl/nl/p/camera-1/"

type step struct {
	html string
	err  error
}

// seqFetcher replays one response per call, so retry behaviour can be
// scripted attempt by attempt.
type seqFetcher struct {
	steps []step
	calls int
}

func (f *seqFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if f.calls >= len(f.steps) {
		return nil, &fetch.NavigationError{URL: url, Err: errors.New("no scripted response")}
	}
	s := f.steps[f.calls]
	f.calls++
	if s.err != nil {
		return nil, s.err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func newExtractor(f fetch.PageFetcher) *Extractor {
	cfg := config.DefaultConfig()
	cfg.RetryDelay = 0
	return New(f, cfg, metrics.New())
}

func productPage(ean, whole, fraction string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><h1>Camera</h1>")
	if whole != "" {
		fmt.Fprintf(&builder, `<span data-test="price">%s`, whole)
		if fraction != "" {
			fmt.Fprintf(&builder, `<sup data-test="price-fraction">%s</sup>`, fraction)
		}
		builder.WriteString("</span>")
	}
	if ean != "" {
		builder.WriteString(`<section data-group-name="ProductSpecification">`)
		builder.WriteString(`<div class="specs__row"><dt class="specs__title">Merk</dt><dd class="specs__value">Acme</dd></div>`)
		fmt.Fprintf(&builder, `<div class="specs__row"><dt class="specs__title">EAN</dt><dd class="specs__value">%s</dd></div>`, ean)
		builder.WriteString("</section>")
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

func navErr() error {
	return &fetch.NavigationError{URL: productURL, Err: errors.New("timeout")}
}

func TestExtractCompleteFirstAttempt(t *testing.T) {
	f := &seqFetcher{steps: []step{{html: productPage("9300000000001", "129", "99")}}}

	result, err := newExtractor(f).Extract(context.Background(), productURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.EAN != "9300000000001" || result.Price != "129.99" {
		t.Fatalf("result=%+v", result)
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts=%d, want 1", result.Attempts)
	}
	if !result.Complete() || result.Failed() || result.LoadFailed {
		t.Fatalf("flags wrong: %+v", result)
	}
}

func TestExtractRetryOnceAfterLoadFailure(t *testing.T) {
	f := &seqFetcher{steps: []step{
		{err: navErr()},
		{html: productPage("9300000000001", "129", "99")},
	}}

	result, err := newExtractor(f).Extract(context.Background(), productURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts=%d, want 2", result.Attempts)
	}
	if !result.Complete() {
		t.Fatalf("second attempt should have resolved both fields: %+v", result)
	}
	if result.LoadFailed {
		t.Fatalf("LoadFailed should be false once any attempt renders")
	}
}

func TestExtractBothAttemptsFailToLoad(t *testing.T) {
	f := &seqFetcher{steps: []step{{err: navErr()}, {err: navErr()}}}

	result, err := newExtractor(f).Extract(context.Background(), productURL)
	if err != nil {
		t.Fatalf("per-item failures must be absorbed: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts=%d, want 2", result.Attempts)
	}
	if !result.Failed() || !result.LoadFailed {
		t.Fatalf("expected complete load failure, got %+v", result)
	}
	if f.calls != 2 {
		t.Fatalf("fetches=%d, want exactly 2", f.calls)
	}
}

func TestExtractNoRetryOnPartialResult(t *testing.T) {
	f := &seqFetcher{steps: []step{
		{html: productPage("", "129", "99")}, // price only
		{html: productPage("9300000000001", "129", "99")},
	}}

	result, err := newExtractor(f).Extract(context.Background(), productURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts=%d, want 1 (partial results are final)", result.Attempts)
	}
	if result.EAN != "" || result.Price != "129.99" {
		t.Fatalf("result=%+v", result)
	}
	if f.calls != 1 {
		t.Fatalf("fetches=%d, want 1", f.calls)
	}
}

func TestExtractRetryWhenBothFieldsAbsent(t *testing.T) {
	f := &seqFetcher{steps: []step{
		{html: "<html><body><h1>Camera</h1></body></html>"},
		{html: productPage("9300000000001", "129", "99")},
	}}

	result, err := newExtractor(f).Extract(context.Background(), productURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts=%d, want 2", result.Attempts)
	}
	if !result.Complete() {
		t.Fatalf("result=%+v", result)
	}
}

func TestExtractPropagatesSessionError(t *testing.T) {
	f := &seqFetcher{steps: []step{{err: &fetch.SessionError{Err: errors.New("no session")}}}}

	_, err := newExtractor(f).Extract(context.Background(), productURL)
	var session *fetch.SessionError
	if !errors.As(err, &session) {
		t.Fatalf("expected SessionError, got %v", err)
	}
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestPriceStrategyFallbackOrder(t *testing.T) {
	// The price element has no usable direct text node (the digits sit in
	// nested spans), so the structured strategy misses and the rendered-text
	// strategy must be consulted next.
	doc := docFrom(t, `<html><body>
		<span data-test="price"><span>49</span>,<span>95</span></span>
	</body></html>`)

	if got := resolveField(doc, priceStrategies); got != "49.95" {
		t.Fatalf("price=%q, want 49.95 via rendered text", got)
	}
}

func TestPricePatternLastResort(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<p>Nu voor € 1.299,95 inclusief verzending</p>
	</body></html>`)

	if got := resolveField(doc, priceStrategies); got != "1299.95" {
		t.Fatalf("price=%q, want 1299.95 via pattern sweep", got)
	}
}

func TestPriceAllStrategiesExhausted(t *testing.T) {
	doc := docFrom(t, `<html><body><p>tijdelijk uitverkocht</p></body></html>`)
	if got := resolveField(doc, priceStrategies); got != "" {
		t.Fatalf("price=%q, want absent", got)
	}
}

func TestPriceMarkupWithFraction(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<span data-test="price">129<sup data-test="price-fraction">99</sup></span>
	</body></html>`)
	if got := resolveField(doc, priceStrategies); got != "129.99" {
		t.Fatalf("price=%q, want 129.99", got)
	}
}

func TestPriceMarkupWithoutFraction(t *testing.T) {
	doc := docFrom(t, `<html><body><span data-test="price">129</span></body></html>`)
	if got := resolveField(doc, priceStrategies); got != "129.00" {
		t.Fatalf("price=%q, want 129.00", got)
	}
}

func TestEANStrategyFallbackOrder(t *testing.T) {
	// Wrong-length value in the spec section must not be returned as
	// garbage; the pattern sweep finds the valid code elsewhere.
	doc := docFrom(t, `<html><body>
		<section data-group-name="ProductSpecification">
			<div class="specs__row"><dt class="specs__title">EAN</dt><dd class="specs__value">123</dd></div>
		</section>
		<p>Artikel EAN: 9300000000001</p>
	</body></html>`)

	if got := resolveField(doc, eanStrategies); got != "9300000000001" {
		t.Fatalf("ean=%q, want 9300000000001 via pattern", got)
	}
}

func TestEANFromDefinitionPairsOutsideSpecSection(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<dl><dt>EAN-code</dt><dd>87118340</dd></dl>
	</body></html>`)
	if got := resolveField(doc, eanStrategies); got != "87118340" {
		t.Fatalf("ean=%q, want 87118340 via definition pairs", got)
	}
}

func TestEANAbsentEverywhere(t *testing.T) {
	doc := docFrom(t, `<html><body><p>geen specificaties</p></body></html>`)
	if got := resolveField(doc, eanStrategies); got != "" {
		t.Fatalf("ean=%q, want absent", got)
	}
}
