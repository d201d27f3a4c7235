// Package prober requests a list of targets through the retrying HTTP client
// and summarizes how each logical operation concluded.
package prober

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/ratekeeper/internal/common/batchprocessor"
	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
	"github.com/aleister1102/ratekeeper/internal/datastore"
	"github.com/aleister1102/ratekeeper/internal/httpclient"
	"github.com/aleister1102/ratekeeper/internal/observability"
	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Recorder persists run bookkeeping and per-operation results.
// *datastore.ResultStore implements it.
type Recorder interface {
	RecordRunStart(ctx context.Context, runID, targetSource string, numTargets int, startTime time.Time) error
	UpdateRunCompletion(ctx context.Context, runID string, endTime time.Time, status string, succeeded, failed int) error
	RecordResult(ctx context.Context, result datastore.OperationResult) (int64, error)
}

// Config controls how targets are requested.
type Config struct {
	Method      string
	Concurrency int
	Headers     map[string]string
	Batch       batchprocessor.BatchProcessorConfig
}

// DefaultConfig returns GET with 10 concurrent requests.
func DefaultConfig() Config {
	return Config{
		Method:      http.MethodGet,
		Concurrency: 10,
		Batch:       batchprocessor.DefaultBatchProcessorConfig(),
	}
}

// Result describes one finished target.
type Result struct {
	Target          string
	Method          string
	StatusCode      int
	Outcome         string
	Attempts        int
	CumulativeDelay time.Duration
	Duration        time.Duration
	RateLimit       *ratelimit.State
	Err             error
}

// Summary aggregates a run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Outcomes  map[string]int
	Results   []Result
	Duration  time.Duration
}

// HasFailures reports whether any target did not succeed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

// Prober fans requests out over targets with bounded concurrency.
type Prober struct {
	client   *httpclient.HTTPClient
	recorder Recorder
	config   Config
	logger   zerolog.Logger
}

// NewProber creates a Prober. recorder may be nil to skip persistence.
func NewProber(client *httpclient.HTTPClient, recorder Recorder, config Config, logger zerolog.Logger) (*Prober, error) {
	if client == nil {
		return nil, errorwrapper.NewValidationError("client", nil, "HTTP client is required")
	}
	if config.Method == "" {
		config.Method = http.MethodGet
	}
	config.Method = strings.ToUpper(config.Method)
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	return &Prober{
		client:   client,
		recorder: recorder,
		config:   config,
		logger:   logger.With().Str("component", "Prober").Logger(),
	}, nil
}

// Run probes every target once (each through the retry driver) and returns
// the summary. Individual target failures are reported in the summary, not
// as an error. The error is non-nil only when ctx ends the run early, in
// which case the partial summary is still returned.
func (p *Prober) Run(ctx context.Context, source string, targets []string) (*Summary, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := p.logger.With().Str("run_id", runID).Logger()

	if p.recorder != nil {
		if err := p.recorder.RecordRunStart(ctx, runID, source, len(targets), start); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to record run start")
		}
	}

	logger.Info().
		Int("targets", len(targets)).
		Str("method", p.config.Method).
		Int("concurrency", p.config.Concurrency).
		Msg("Starting probe run")

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(targets))
	)

	bp := batchprocessor.NewBatchProcessor(p.config.Batch, logger)
	_, runErr := bp.ProcessBatches(ctx, targets, func(ctx context.Context, batch []string, batchIndex int) error {
		g := new(errgroup.Group)
		g.SetLimit(p.config.Concurrency)
		for _, target := range batch {
			if ctx.Err() != nil {
				break
			}
			target := target
			g.Go(func() error {
				result := p.probe(ctx, target)
				p.record(ctx, runID, result, logger)

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})

	summary := summarize(runID, results)
	summary.Duration = time.Since(start)

	if p.recorder != nil {
		status := datastore.RunStatusCompleted
		if runErr != nil {
			status = datastore.RunStatusFailed
		}
		// The run context may already be done; completion is still recorded.
		if err := p.recorder.UpdateRunCompletion(context.WithoutCancel(ctx), runID, time.Now(), status, summary.Succeeded, summary.Failed); err != nil {
			logger.Error().Err(err).Msg("Failed to record run completion")
		}
	}

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Probe run finished")

	if runErr != nil {
		return summary, errorwrapper.WrapError(runErr, "probe run interrupted")
	}
	return summary, nil
}

func (p *Prober) probe(ctx context.Context, target string) Result {
	start := time.Now()
	resp, err := p.client.Do(ctx, &httpclient.HTTPRequest{
		URL:     target,
		Method:  p.config.Method,
		Headers: p.config.Headers,
	})

	result := Result{
		Target:   target,
		Method:   p.config.Method,
		Outcome:  observability.OutcomeLabel(err),
		Duration: time.Since(start),
		Err:      err,
	}

	if err == nil {
		result.StatusCode = resp.StatusCode
		result.Attempts = resp.Attempts
		result.RateLimit = resp.RateLimit
		return result
	}

	var retryErr *ratelimit.RetryError
	if errors.As(err, &retryErr) {
		result.Attempts = retryErr.Attempts
		result.CumulativeDelay = retryErr.CumulativeDelay
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		result.StatusCode = httpErr.StatusCode
	}
	result.RateLimit = ratelimit.StateFromError(err)

	p.logger.Debug().Err(err).Str("target", target).Str("outcome", result.Outcome).Msg("Target failed")
	return result
}

func (p *Prober) record(ctx context.Context, runID string, result Result, logger zerolog.Logger) {
	if p.recorder == nil {
		return
	}

	row := datastore.OperationResult{
		RunID:           runID,
		Target:          result.Target,
		Method:          result.Method,
		StatusCode:      result.StatusCode,
		Outcome:         result.Outcome,
		Attempts:        result.Attempts,
		CumulativeDelay: result.CumulativeDelay,
		Duration:        result.Duration,
		FinishedAt:      time.Now(),
	}
	if result.Err != nil {
		row.Error = result.Err.Error()
	}
	if result.RateLimit != nil {
		row.RateLimitRemaining = result.RateLimit.Remaining
	}

	if _, err := p.recorder.RecordResult(context.WithoutCancel(ctx), row); err != nil {
		logger.Error().Err(err).Str("target", result.Target).Msg("Failed to record operation result")
	}
}

func summarize(runID string, results []Result) *Summary {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Target < results[j].Target })

	summary := &Summary{
		RunID:    runID,
		Total:    len(results),
		Outcomes: make(map[string]int),
		Results:  results,
	}
	for _, r := range results {
		summary.Outcomes[r.Outcome]++
		if r.Err == nil {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}
