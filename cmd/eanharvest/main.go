package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkoetsier/eanharvest/config"
	"github.com/dkoetsier/eanharvest/fetch"
	"github.com/dkoetsier/eanharvest/metrics"
	"github.com/dkoetsier/eanharvest/models"
	"github.com/dkoetsier/eanharvest/pipeline"
)

func main() {
	defaultCfg := config.DefaultConfig()
	startPageDefault := defaultCfg.StartPage
	if value, ok, err := config.EnvInt("HARVEST_START_PAGE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_START_PAGE: %v\n", err)
		os.Exit(1)
	} else if ok {
		startPageDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("HARVEST_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("HARVEST_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("HARVEST_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	targetsFile := flag.String("targets", "", "YAML file listing category targets")
	categories := flag.String("categories", "", "Comma-separated category listing URLs")
	startPage := flag.Int("start-page", startPageDefault, "First listing page to collect (1-indexed)")
	maxPages := flag.Int("pages", pagesDefault, "Listing pages per category (0 = until exhausted)")
	pageDelayMs := flag.Int("delay", int(defaultCfg.PageDelay/time.Millisecond), "Pacing delay between fetches (milliseconds)")
	retryDelayMs := flag.Int("retry-delay", int(defaultCfg.RetryDelay/time.Millisecond), "Delay before the single product retry (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Page fetch timeout (seconds)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	split := flag.Bool("split", false, "Write one output file per category")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.StartPage = *startPage
	cfg.MaxPages = *maxPages
	cfg.PageDelay = time.Duration(*pageDelayMs) * time.Millisecond
	cfg.RetryDelay = time.Duration(*retryDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.SplitPerCategory = *split
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr

	targets, err := resolveTargets(*targetsFile, *categories)
	if err != nil {
		slog.Error("resolving category targets", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Targets = targets

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Normalize()

	slog.Info("starting harvest",
		slog.Int("categories", len(cfg.Targets)),
		slog.Int("start_page", cfg.StartPage),
		slog.Int("pages", cfg.MaxPages),
		slog.String("output", cfg.OutputFile),
	)

	m := metrics.New()
	client, err := fetch.NewClient(cfg, m)
	if err != nil {
		slog.Error("initialising fetch client", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current fetch")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	exitCode := 0
	if cfg.SplitPerCategory && len(cfg.Targets) > 1 {
		for i, target := range cfg.Targets {
			runCfg := *cfg
			runCfg.Targets = []models.CategoryTarget{target}
			runCfg.OutputFile = splitOutputPath(cfg.OutputFile, i+1)
			if err := runOnce(ctx, &runCfg, client, m, startTime); err != nil {
				exitCode = 1
			}
		}
	} else {
		if err := runOnce(ctx, cfg, client, m, startTime); err != nil {
			exitCode = 1
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	os.Exit(exitCode)
}

func runOnce(ctx context.Context, cfg *config.Config, client *fetch.Client, m *metrics.Metrics, startTime time.Time) error {
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return err
	}

	orchestrator, err := pipeline.New(client, cfg, writer, m)
	if err != nil {
		writer.Close()
		slog.Error("initialising pipeline", slog.Any("error", err))
		return err
	}

	summary, runErr := orchestrator.Run(ctx)
	if runErr != nil {
		slog.Error("harvest failed", slog.Any("error", runErr))
	}

	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr == nil {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
			runErr = err
		}
	}

	printSummary(summary, time.Since(startTime), cfg.OutputFile)
	return runErr
}

func resolveTargets(targetsFile, categories string) ([]models.CategoryTarget, error) {
	if targetsFile == "" {
		if value, ok := config.EnvString("HARVEST_TARGETS_FILE"); ok {
			targetsFile = value
		}
	}
	if targetsFile != "" {
		return config.LoadTargets(targetsFile)
	}

	urls := splitList(categories)
	if len(urls) == 0 {
		if value, ok := config.EnvStrings("HARVEST_CATEGORY_URLS"); ok {
			urls = value
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no category targets: pass -targets, -categories, or HARVEST_CATEGORY_URLS")
	}

	targets := make([]models.CategoryTarget, 0, len(urls))
	for _, u := range urls {
		targets = append(targets, models.CategoryTarget{URL: u})
	}
	return targets, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitOutputPath derives a per-category output filename such as
// output/products_category_2.csv.
func splitOutputPath(base string, index int) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".csv"
	}
	return fmt.Sprintf("%s_category_%d%s", stem, index, ext)
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(summary *models.RunSummary, duration time.Duration, outputFile string) {
	if summary == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")
	fmt.Printf("  References:      %d\n", summary.TotalReferences)
	fmt.Printf("  Complete:        %d\n", summary.Complete)
	fmt.Printf("  Missing EAN:     %d\n", summary.MissingEAN)
	fmt.Printf("  Missing price:   %d\n", summary.MissingPrice)
	fmt.Printf("  Failed:          %d\n", summary.Failed)
	fmt.Printf("  Load failures:   %d\n", summary.LoadFailures)
	fmt.Printf("  Success rate:    %.1f%%\n", summary.SuccessRate())
	fmt.Printf("  Duration:        %v\n", duration)
	fmt.Printf("  Output file:     %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
