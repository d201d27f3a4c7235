package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/ratekeeper/internal/common/urlhandler"
	"github.com/aleister1102/ratekeeper/internal/config"
	"github.com/aleister1102/ratekeeper/internal/datastore"
	"github.com/aleister1102/ratekeeper/internal/httpclient"
	"github.com/aleister1102/ratekeeper/internal/logger"
	"github.com/aleister1102/ratekeeper/internal/observability"
	"github.com/aleister1102/ratekeeper/internal/prober"
	"github.com/aleister1102/ratekeeper/internal/rslimiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitSetup    = 2
)

func main() {
	flags, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		fmt.Fprintln(os.Stderr, "[FATAL]", err)
		os.Exit(exitSetup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, flags, os.Stdout)
	stop()
	os.Exit(code)
}

// run wires every component and returns the process exit code.
func run(ctx context.Context, flags AppFlags, out io.Writer) int {
	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile, zerolog.Nop())
	if err != nil {
		log.Printf("[FATAL] Main: Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
		return exitSetup
	}
	applyFlagOverrides(gCfg, flags)

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Printf("[FATAL] Main: Could not initialize logger: %v", err)
		return exitSetup
	}

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Error().Err(err).Msg("Configuration validation failed")
		return exitSetup
	}

	retryCfg, err := gCfg.RetryConfig.ToRateLimitConfig()
	if err != nil {
		zLogger.Error().Err(err).Msg("Invalid retry configuration")
		return exitSetup
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewRetryMetrics(registry, gCfg.MetricsConfig.Namespace)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to register retry metrics")
		return exitSetup
	}

	if gCfg.MetricsConfig.Enabled {
		metricsServer := observability.NewMetricsServer(gCfg.MetricsConfig.ListenAddr, gCfg.MetricsConfig.Path, registry, zLogger)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zLogger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	client, err := httpclient.NewHTTPClientBuilder(zLogger).
		WithConfig(gCfg.HTTPClientConfig.ToHTTPClientConfig()).
		WithRetryConfig(retryCfg).
		WithClassifier(gCfg.RetryConfig.NewClassifier()).
		WithObserver(metrics).
		Build()
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to create HTTP client")
		return exitSetup
	}

	targetManager := urlhandler.NewTargetManager(zLogger)
	targets, err := targetManager.LoadTargets(flags.TargetsFile, flags.URLs)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to load targets")
		return exitSetup
	}

	var recorder prober.Recorder
	if gCfg.StorageConfig.ResultsDBPath != "" {
		store, err := datastore.NewResultStore(gCfg.StorageConfig.ResultsDBPath, zLogger)
		if err != nil {
			zLogger.Error().Err(err).Msg("Failed to open results database")
			return exitSetup
		}
		defer store.Close()
		recorder = store
	}

	probeCfg := prober.Config{
		Method:      gCfg.ProbeConfig.Method,
		Concurrency: gCfg.ProbeConfig.Concurrency,
		Headers:     gCfg.ProbeConfig.Headers,
		Batch:       gCfg.BatchConfig.ToBatchProcessorConfig(),
	}
	p, err := prober.NewProber(client, recorder, probeCfg, zLogger)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to create prober")
		return exitSetup
	}

	source := flags.TargetsFile
	if source == "" {
		source = "cli"
	}

	urls := targetManager.GetTargetStrings(targets)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if gCfg.ResourceLimiterConfig.Enabled {
		limiter := rslimiter.NewResourceLimiter(gCfg.ResourceLimiterConfig.ToResourceLimiterConfig(), zLogger)
		limiter.SetShutdownCallback(cancelRun)
		limiter.Start(runCtx)
		defer limiter.Stop()
	}

	summary, runErr := p.Run(runCtx, source, urls)
	if summary != nil {
		printSummary(out, summary)
	}
	if runErr != nil {
		zLogger.Warn().Err(runErr).Msg("Run did not complete")
		return exitFailures
	}
	if summary.HasFailures() {
		return exitFailures
	}
	return exitOK
}

func applyFlagOverrides(gCfg *config.GlobalConfig, flags AppFlags) {
	if flags.Method != "" {
		gCfg.ProbeConfig.Method = flags.Method
	}
	if flags.Preset != "" {
		gCfg.RetryConfig.Preset = flags.Preset
	}
	if flags.Concurrency > 0 {
		gCfg.ProbeConfig.Concurrency = flags.Concurrency
	}
	if flags.ResultsDB != "" {
		gCfg.StorageConfig.ResultsDBPath = flags.ResultsDB
	}
	if flags.MetricsAddr != "" {
		gCfg.MetricsConfig.Enabled = true
		gCfg.MetricsConfig.ListenAddr = flags.MetricsAddr
	}
}

func printSummary(out io.Writer, summary *prober.Summary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tOUTCOME\tATTEMPTS\tWAITED\tDURATION")
	for _, r := range summary.Results {
		status := "-"
		if r.StatusCode != 0 {
			status = fmt.Sprint(r.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Target, status, r.Outcome, r.Attempts,
			r.CumulativeDelay.Round(time.Millisecond), r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()

	outcomes := make([]string, 0, len(summary.Outcomes))
	for outcome := range summary.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	fmt.Fprintf(out, "\nrun %s: %d targets, %d succeeded, %d failed in %s\n",
		summary.RunID, summary.Total, summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
	for _, outcome := range outcomes {
		fmt.Fprintf(out, "  %-22s %d\n", outcome, summary.Outcomes[outcome])
	}
}
