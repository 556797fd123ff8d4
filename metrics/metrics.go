// Package metrics bundles Prometheus collectors for the harvester.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all run collectors on a dedicated registry.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesFetchedTotal   *prometheus.CounterVec
	FetchDuration       prometheus.Histogram
	ReferencesTotal     prometheus.Counter
	DuplicatesTotal     prometheus.Counter
	ProductsTotal       prometheus.Counter
	FieldMissingTotal   *prometheus.CounterVec
	RetriesTotal        prometheus.Counter
	NavigationErrsTotal *prometheus.CounterVec
}

// New constructs and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_pages_fetched_total",
			Help: "Total pages fetched, by pipeline stage.",
		},
		[]string{"stage"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "Page fetch latency including render wait.",
			Buckets: prometheus.DefBuckets,
		},
	)
	references := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_references_collected_total",
			Help: "Unique product references collected from listings.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_duplicate_references_total",
			Help: "Product references dropped as duplicates.",
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_products_processed_total",
			Help: "Product pages fully processed by the extractor.",
		},
	)
	fieldMissing := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_field_missing_total",
			Help: "Fields still absent after all strategies and retries.",
		},
		[]string{"field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_retries_total",
			Help: "Product fetches retried after a failed first attempt.",
		},
	)
	navErrs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_navigation_errors_total",
			Help: "Navigation errors by category.",
		},
		[]string{"category"},
	)

	registry.MustRegister(pages, fetchDuration, references, duplicates, products, fieldMissing, retries, navErrs)

	return &Metrics{
		Registry:            registry,
		PagesFetchedTotal:   pages,
		FetchDuration:       fetchDuration,
		ReferencesTotal:     references,
		DuplicatesTotal:     duplicates,
		ProductsTotal:       products,
		FieldMissingTotal:   fieldMissing,
		RetriesTotal:        retries,
		NavigationErrsTotal: navErrs,
	}
}

// IncPage increments the pages-fetched counter for a stage label.
func (m *Metrics) IncPage(stage string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(stage).Inc()
}

// ObserveFetch records one page fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncReferences adds collected references.
func (m *Metrics) IncReferences(n int) {
	if m == nil {
		return
	}
	m.ReferencesTotal.Add(float64(n))
}

// IncDuplicate counts a dropped duplicate reference.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// IncProduct counts a fully processed product.
func (m *Metrics) IncProduct() {
	if m == nil {
		return
	}
	m.ProductsTotal.Inc()
}

// IncFieldMissing counts a field absent after all strategies.
func (m *Metrics) IncFieldMissing(field string) {
	if m == nil {
		return
	}
	m.FieldMissingTotal.WithLabelValues(field).Inc()
}

// IncRetry counts a scheduled product retry.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncNavigationError counts a navigation error by category label.
func (m *Metrics) IncNavigationError(category string) {
	if m == nil {
		return
	}
	m.NavigationErrsTotal.WithLabelValues(category).Inc()
}
