// Package collect walks paginated category listings and accumulates a
// deduplicated, ordered set of product references.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/fetch"
	"github.com/dkoetsier/eanharvest/metrics"
	"github.com/dkoetsier/eanharvest/models"
)

// Collector extracts product references from a category's listing pages.
type Collector struct {
	fetcher      fetch.PageFetcher
	productPath  string
	categoryPath string
	metrics      *metrics.Metrics
}

// New builds a collector using the given fetcher.
func New(fetcher fetch.PageFetcher, cfg *config.Config, m *metrics.Metrics) *Collector {
	return &Collector{
		fetcher:      fetcher,
		productPath:  cfg.ProductPath,
		categoryPath: cfg.CategoryPath,
		metrics:      m,
	}
}

// Collect walks the target's listing pages from StartPage onward and returns
// unique product references in encounter order. Pagination stops when a page
// yields no new references, when the page ceiling is hit, or when a page
// fails to load; a failed page ends the walk but keeps what was collected.
// Only a *fetch.SessionError is returned as an error.
func (c *Collector) Collect(ctx context.Context, target models.CategoryTarget) ([]string, error) {
	base, err := baseListingURL(target.URL)
	if err != nil {
		return nil, fmt.Errorf("category url: %w", err)
	}

	seen := make(map[string]struct{})
	var refs []string

	startPage := target.StartPage
	if startPage < 1 {
		startPage = 1
	}

	for page, fetched := startPage, 0; ; page, fetched = page+1, fetched+1 {
		if target.MaxPages > 0 && fetched >= target.MaxPages {
			slog.Debug("page ceiling reached",
				slog.String("category", target.URL),
				slog.Int("pages", fetched),
			)
			break
		}
		if err := ctx.Err(); err != nil {
			return refs, err
		}

		pageURL := listingPageURL(base, page)
		doc, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			var session *fetch.SessionError
			if errors.As(err, &session) {
				return refs, err
			}
			slog.Warn("listing page failed, stopping pagination",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		c.metrics.IncPage("listing")

		added := 0
		for _, ref := range c.pageReferences(doc, pageURL) {
			if _, ok := seen[ref]; ok {
				c.metrics.IncDuplicate()
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
			added++
		}
		c.metrics.IncReferences(added)

		slog.Debug("listing page collected",
			slog.String("url", pageURL),
			slog.Int("new", added),
			slog.Int("total", len(refs)),
		)

		// A page with nothing new means the last page was passed or the
		// page rendered without usable content.
		if added == 0 {
			break
		}
	}

	return refs, nil
}

// pageReferences extracts normalized product URLs from one listing document,
// preserving document order.
func (c *Collector) pageReferences(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var refs []string
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, ok := c.normalizeReference(base, href)
		if ok {
			refs = append(refs, ref)
		}
	})
	return refs
}

// normalizeReference resolves an href against the listing page and strips
// query and fragment so uniqueness is exact URL equality. Links that do not
// point at a product detail page are rejected.
func (c *Collector) normalizeReference(base *url.URL, href string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(parsed)
	resolved.RawQuery = ""
	resolved.Fragment = ""

	path := resolved.Path
	if !strings.Contains(path, c.productPath) {
		return "", false
	}
	if c.categoryPath != "" && strings.Contains(path, c.categoryPath) {
		return "", false
	}
	return resolved.String(), true
}

func baseListingURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

// listingPageURL builds the URL for page n of a category. Page 1 is the bare
// category URL; later pages append the page query parameter.
func listingPageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}
