// Package fetch owns the page-fetching boundary of the pipeline: the
// PageFetcher contract the core stages consume, the navigation error
// taxonomy, and a colly-backed implementation reusing one session for the
// whole run.
package fetch

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher returns a fully rendered document for a URL or fails with a
// *NavigationError. A *SessionError signals the fetcher cannot establish any
// session at all; callers treat that as fatal to the run.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}
