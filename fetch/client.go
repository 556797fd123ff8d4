package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/metrics"
)

// Client is the production PageFetcher. It keeps one colly session for the
// whole run; requests go out strictly one at a time with a fixed pacing
// delay, so the crawl reads like steady human browsing.
type Client struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *metrics.Metrics

	requestCount int64
	established  atomic.Bool
}

type responseSink struct {
	mu         sync.Mutex
	body       []byte
	statusCode int
}

const sinkKey = "sink"

// NewClient builds a fetch client restricted to the hosts of the configured
// category targets.
func NewClient(cfg *config.Config, m *metrics.Metrics) (*Client, error) {
	hosts, err := targetHosts(cfg)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(hosts...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Parallelism is pinned to 1: concurrent sessions against the same
	// target raise the odds of tripping its countermeasures.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.PageDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &Client{
		collector: collector,
		cfg:       cfg,
		metrics:   m,
	}
	c.registerHandlers()
	return c, nil
}

// Fetch retrieves a page and parses it into a document.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sink := &responseSink{}
	rctx := colly.NewContext()
	rctx.Put(sinkKey, sink)
	rctx.Put("start", time.Now())

	err := c.collector.Request(http.MethodGet, pageURL, nil, rctx, nil)

	sink.mu.Lock()
	body, status := sink.body, sink.statusCode
	sink.mu.Unlock()

	if err != nil {
		cause := Classify(err, status)
		c.metrics.IncNavigationError(ErrorLabel(cause))
		if !c.established.Load() && ErrorLabel(cause) == "connection" {
			return nil, &SessionError{Err: cause}
		}
		return nil, &NavigationError{URL: pageURL, Err: cause}
	}
	if len(body) == 0 {
		return nil, &NavigationError{URL: pageURL, Err: fmt.Errorf("empty response body")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &NavigationError{URL: pageURL, Err: fmt.Errorf("parse document: %w", err)}
	}
	return doc, nil
}

// RequestCount reports how many requests the session has issued.
func (c *Client) RequestCount() int64 {
	return atomic.LoadInt64(&c.requestCount)
}

func (c *Client) registerHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		current := atomic.AddInt64(&c.requestCount, 1)
		if current%25 == 0 {
			slog.Debug("fetch progress",
				slog.Int64("requests", current),
				slog.String("url", r.URL.String()),
			)
		}
	})

	c.collector.OnResponse(func(r *colly.Response) {
		c.established.Store(true)
		if sink, ok := r.Ctx.GetAny(sinkKey).(*responseSink); ok {
			sink.mu.Lock()
			sink.body = r.Body
			sink.statusCode = r.StatusCode
			sink.mu.Unlock()
		}
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			c.metrics.ObserveFetch(time.Since(start))
		}
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		if sink, ok := r.Ctx.GetAny(sinkKey).(*responseSink); ok {
			sink.mu.Lock()
			sink.statusCode = r.StatusCode
			sink.mu.Unlock()
		}
		slog.Debug("fetch error",
			slog.String("url", r.Request.URL.String()),
			slog.Int("status", r.StatusCode),
			slog.Any("error", err),
		)
	})
}

// WithTransport swaps the HTTP transport. Used by tests to install mocks.
func (c *Client) WithTransport(transport http.RoundTripper) {
	c.collector.WithTransport(transport)
}

func targetHosts(cfg *config.Config) ([]string, error) {
	seen := make(map[string]struct{})
	var hosts []string
	for _, target := range cfg.Targets {
		parsed, err := url.Parse(target.URL)
		if err != nil {
			return nil, fmt.Errorf("parse category url %q: %w", target.URL, err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("category url %q must include a host", target.URL)
		}
		if _, ok := seen[parsed.Host]; ok {
			continue
		}
		seen[parsed.Host] = struct{}{}
		hosts = append(hosts, parsed.Host)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no category targets configured")
	}
	return hosts, nil
}
