// Package pipeline sequences the two extraction stages over a run's
// categories and owns the output writers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dkoetsier/eanharvest/collect"
	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/extract"
	"github.com/dkoetsier/eanharvest/fetch"
	"github.com/dkoetsier/eanharvest/metrics"
	"github.com/dkoetsier/eanharvest/models"
)

// ErrRunAborted is returned when the fetch layer reports a total inability
// to reach the target. Whatever was resolved before the abort is still
// written to the sink.
var ErrRunAborted = errors.New("pipeline: run aborted")

// OutputWriter defines the interface for record output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// State names the orchestrator's run phase.
type State int

const (
	StateIdle State = iota
	StateCollectingReferences
	StateExtractingFields
	StateSummarizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollectingReferences:
		return "collecting_references"
	case StateExtractingFields:
		return "extracting_fields"
	case StateSummarizing:
		return "summarizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Orchestrator drives one batch run: collect references across all
// categories, extract fields per reference in collection order, summarize,
// emit. It owns the single fetch session via the injected stages and runs
// strictly sequentially.
type Orchestrator struct {
	cfg       *config.Config
	collector *collect.Collector
	extractor *extract.Extractor
	writer    OutputWriter
	metrics   *metrics.Metrics

	state   State
	seen    *lru.Cache[string, struct{}]
	results []extract.Result
	records []*models.Record
	summary models.RunSummary
}

// New wires an orchestrator from a shared fetcher.
func New(fetcher fetch.PageFetcher, cfg *config.Config, writer OutputWriter, m *metrics.Metrics) (*Orchestrator, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &Orchestrator{
		cfg:       cfg,
		collector: collect.New(fetcher, cfg, m),
		extractor: extract.New(fetcher, cfg, m),
		writer:    writer,
		metrics:   m,
		state:     StateIdle,
		seen:      seen,
	}, nil
}

// State reports the current run phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Summary returns the run counters. Only meaningful once Run has returned.
func (o *Orchestrator) Summary() *models.RunSummary {
	return &o.summary
}

// Run executes the full pipeline. Per-item failures are absorbed into
// records; only a session-level fetch failure ends the run early, and even
// then the records resolved so far are emitted.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	if o.state != StateIdle {
		return nil, fmt.Errorf("run already started (state %s)", o.state)
	}

	refs, err := o.collectReferences(ctx)
	if err != nil {
		return o.abort(err)
	}
	o.summary.TotalReferences = len(refs)
	o.summary.Categories = len(o.cfg.Targets)

	if err := o.extractFields(ctx, refs); err != nil {
		return o.abort(err)
	}

	o.state = StateSummarizing
	o.summarize()

	o.state = StateDone
	if err := o.emit(); err != nil {
		return &o.summary, err
	}
	return &o.summary, nil
}

// collectReferences walks every configured category and concatenates the
// results, re-checking uniqueness at run level since two categories can list
// the same product.
func (o *Orchestrator) collectReferences(ctx context.Context) ([]string, error) {
	o.state = StateCollectingReferences

	var refs []string
	for i, target := range o.cfg.Targets {
		slog.Info("collecting category",
			slog.Int("category", i+1),
			slog.Int("categories", len(o.cfg.Targets)),
			slog.String("url", target.URL),
		)

		collected, err := o.collector.Collect(ctx, target)
		for _, ref := range collected {
			if _, dup := o.seen.Get(ref); dup {
				o.metrics.IncDuplicate()
				continue
			}
			o.seen.Add(ref, struct{}{})
			refs = append(refs, ref)
		}
		if err != nil {
			return refs, err
		}

		slog.Info("category collected",
			slog.String("url", target.URL),
			slog.Int("references", len(collected)),
			slog.Int("run_total", len(refs)),
		)
	}
	return refs, nil
}

// extractFields resolves every reference strictly in collection order. Each
// reference produces exactly one record; absence of data is represented as
// empty fields, never as a missing row.
func (o *Orchestrator) extractFields(ctx context.Context, refs []string) error {
	o.state = StateExtractingFields

	for i, ref := range refs {
		slog.Info("processing product",
			slog.Int("index", i+1),
			slog.Int("total", len(refs)),
			slog.String("url", ref),
		)

		result, err := o.extractor.Extract(ctx, ref)
		o.results = append(o.results, result)
		o.records = append(o.records, &models.Record{
			URL:   result.URL,
			EAN:   result.EAN,
			Price: result.Price,
		})
		if err != nil {
			return err
		}

		if result.Failed() {
			slog.Warn("complete failure",
				slog.String("url", ref),
				slog.Int("attempts", result.Attempts),
			)
		}
	}
	return nil
}

func (o *Orchestrator) summarize() {
	for _, result := range o.results {
		switch {
		case result.Complete():
			o.summary.Complete++
		case result.Failed():
			o.summary.Failed++
			if result.LoadFailed {
				o.summary.LoadFailures++
			}
		case result.EAN == "":
			o.summary.MissingEAN++
		default:
			o.summary.MissingPrice++
		}
	}
}

// emit writes the full ordered record sequence to the sink.
func (o *Orchestrator) emit() error {
	if len(o.records) == 0 {
		slog.Warn("no records to write")
		return nil
	}
	if err := o.writer.Write(o.records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// abort finishes a run cut short by a session failure: counters are tallied
// for what was processed and partial results still reach the sink.
func (o *Orchestrator) abort(cause error) (*models.RunSummary, error) {
	slog.Error("run aborted", slog.Any("error", cause))

	o.state = StateSummarizing
	if o.summary.TotalReferences == 0 {
		o.summary.TotalReferences = len(o.results)
	}
	o.summarize()
	o.state = StateDone

	if err := o.emit(); err != nil {
		slog.Error("emit partial results", slog.Any("error", err))
	}
	return &o.summary, fmt.Errorf("%w: %v", ErrRunAborted, cause)
}
