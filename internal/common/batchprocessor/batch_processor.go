package batchprocessor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchProcessorConfig holds configuration for batch processing
type BatchProcessorConfig struct {
	BatchSize          int           // Max items per batch (default: 100)
	MaxConcurrentBatch int           // Max concurrent batches (1 or less is sequential)
	BatchTimeout       time.Duration // Timeout per batch, 0 for none
	ThresholdSize      int           // Minimum size to trigger batching (default: 500)
}

// DefaultBatchProcessorConfig returns default configuration
func DefaultBatchProcessorConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		BatchSize:          100,
		MaxConcurrentBatch: 1,
		BatchTimeout:       30 * time.Minute,
		ThresholdSize:      500,
	}
}

// BatchResult holds the result of a batch processing
type BatchResult struct {
	BatchIndex int
	Success    bool
	Error      error
	Processed  int
	Duration   time.Duration
	Timestamp  time.Time
}

// BatchProcessor splits large target lists into smaller batches
type BatchProcessor struct {
	config BatchProcessorConfig
	logger zerolog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(config BatchProcessorConfig, logger zerolog.Logger) *BatchProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchProcessorConfig().BatchSize
	}
	return &BatchProcessor{
		config: config,
		logger: logger.With().Str("component", "BatchProcessor").Logger(),
	}
}

// ProcessFunc defines the function signature for processing a batch
type ProcessFunc func(ctx context.Context, batch []string, batchIndex int) error

// ShouldUseBatching determines if batching should be used based on input size
func (bp *BatchProcessor) ShouldUseBatching(inputSize int) bool {
	return inputSize >= bp.config.ThresholdSize
}

// SplitIntoBatches splits a slice of strings into batches
func (bp *BatchProcessor) SplitIntoBatches(input []string) [][]string {
	if len(input) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(input)+bp.config.BatchSize-1)/bp.config.BatchSize)
	for i := 0; i < len(input); i += bp.config.BatchSize {
		end := min(i+bp.config.BatchSize, len(input))
		batches = append(batches, input[i:end])
	}
	return batches
}

// ProcessBatches processes all batches sequentially or concurrently based on config.
// A failing batch does not stop the others; only context cancellation does.
func (bp *BatchProcessor) ProcessBatches(ctx context.Context, input []string, processFunc ProcessFunc) ([]BatchResult, error) {
	batches := [][]string{input}
	if bp.ShouldUseBatching(len(input)) {
		batches = bp.SplitIntoBatches(input)
		bp.logger.Info().
			Int("total_items", len(input)).
			Int("batch_count", len(batches)).
			Int("batch_size", bp.config.BatchSize).
			Msg("Starting batch processing")
	} else {
		bp.logger.Debug().
			Int("input_size", len(input)).
			Int("threshold", bp.config.ThresholdSize).
			Msg("Input size below threshold, processing as single batch")
	}

	if bp.config.MaxConcurrentBatch <= 1 {
		return bp.processSequentially(ctx, batches, processFunc)
	}
	return bp.processConcurrently(ctx, batches, processFunc)
}

// processSequentially processes batches one by one
func (bp *BatchProcessor) processSequentially(ctx context.Context, batches [][]string, processFunc ProcessFunc) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(batches))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			bp.logger.Info().
				Int("completed_batches", i).
				Int("total_batches", len(batches)).
				Msg("Batch processing interrupted by context cancellation")
			return results, err
		}
		results = append(results, bp.runBatch(ctx, batch, i, processFunc))
	}

	return results, nil
}

// processConcurrently processes batches with at most MaxConcurrentBatch in flight
func (bp *BatchProcessor) processConcurrently(ctx context.Context, batches [][]string, processFunc ProcessFunc) ([]BatchResult, error) {
	results := make([]BatchResult, len(batches))

	g := new(errgroup.Group)
	g.SetLimit(bp.config.MaxConcurrentBatch)

	started := 0
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		started++
		i, batch := i, batch
		g.Go(func() error {
			results[i] = bp.runBatch(ctx, batch, i, processFunc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		bp.logger.Info().
			Int("started_batches", started).
			Int("total_batches", len(batches)).
			Msg("Batch processing interrupted by context cancellation")
		return results[:started], err
	}
	return results, nil
}

func (bp *BatchProcessor) runBatch(ctx context.Context, batch []string, index int, processFunc ProcessFunc) BatchResult {
	batchCtx := ctx
	if bp.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, bp.config.BatchTimeout)
		defer cancel()
	}

	start := time.Now()
	err := processFunc(batchCtx, batch, index)
	duration := time.Since(start)

	event := bp.logger.Debug()
	if err != nil {
		event = bp.logger.Error().Err(err)
	}
	event.
		Int("batch_index", index).
		Int("processed", len(batch)).
		Dur("duration", duration).
		Msg("Batch processing completed")

	return BatchResult{
		BatchIndex: index,
		Success:    err == nil,
		Error:      err,
		Processed:  len(batch),
		Duration:   duration,
		Timestamp:  time.Now(),
	}
}
