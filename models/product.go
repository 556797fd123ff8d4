// Package models defines data structures shared across the harvest pipeline.
package models

// CategoryTarget is one paginated category listing to collect references
// from. StartPage is 1-indexed; MaxPages of 0 means no per-category ceiling.
type CategoryTarget struct {
	URL       string `yaml:"url"`
	StartPage int    `yaml:"start_page"`
	MaxPages  int    `yaml:"max_pages"`
}

// Record is one output row: a product URL with its resolved fields.
// EAN and Price are empty strings when unresolved.
type Record struct {
	URL   string `csv:"product_url" json:"product_url"`
	EAN   string `csv:"ean" json:"ean"`
	Price string `csv:"price" json:"price"`
}

// RunSummary aggregates per-run counters. It is owned and mutated by the
// orchestrator and read-only once the run ends.
type RunSummary struct {
	TotalReferences int
	Complete        int
	MissingEAN      int
	MissingPrice    int
	Failed          int // both fields absent after all attempts
	LoadFailures    int // page never loaded on any attempt
	Categories      int
}

// SuccessRate reports the share of references that produced at least one
// field, as a percentage.
func (s *RunSummary) SuccessRate() float64 {
	if s.TotalReferences == 0 {
		return 0
	}
	return float64(s.TotalReferences-s.Failed) / float64(s.TotalReferences) * 100
}
