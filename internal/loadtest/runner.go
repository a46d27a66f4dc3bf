package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/spendseg/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
)

// Run executes the complete load test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	applyDefaults(config)

	logger.Get().Info(ctx, "starting spendseg load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("batches", config.NumBatches),
		logger.Int("batchSize", config.BatchSize),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate batches
	batches, err := generateBatches(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("batch generation failed: %w", err)
	}

	// Step 3: Submit originals and duplicates concurrently
	ids, err := submitBatches(ctx, config, withDuplicates(batches, config.DuplicateRate, config.Seed), stats)
	if err != nil {
		return fmt.Errorf("batch submission failed: %w", err)
	}

	// Step 4: Wait for the workers
	results := awaitAnalyses(ctx, config, ids)

	// Step 5: Verify results
	verifyErr := verifyResults(ctx, config, batches, ids, results, stats)

	// Step 6: Save batches to file
	if err := saveBatchesToFile(ctx, config, batches); err != nil {
		logger.Get().Warn(ctx, "failed to save batches to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verifyErr != nil {
		return fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

func applyDefaults(config *Config) {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.CompleteTimeout <= 0 {
		config.CompleteTimeout = DefaultCompleteTimeout
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_, _ = readResponseBody(resp)

	// Any 200 is healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveBatchesToFile writes the generated batches as a JSON array. Nothing is
// written when no output file is configured.
func saveBatchesToFile(ctx context.Context, config *Config, batches []Batch) error {
	if config.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(config.OutputFile)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batches); err != nil {
		return fmt.Errorf("failed to write batches: %w", err)
	}

	logger.Get().Info(ctx, "batches saved to file", logger.String("filename", config.OutputFile))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, batchesPerSecond float64
	if stats.BatchesSubmitted > 0 {
		acceptRate = float64(stats.BatchesAccepted) / float64(stats.BatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("batchesGenerated", stats.BatchesGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesDuplicate", stats.BatchesDuplicate),
		logger.Int("batchesRejected", stats.BatchesRejected),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("analysesCompleted", stats.AnalysesCompleted),
		logger.Int("analysesFailed", stats.AnalysesFailed),
		logger.Int("analysesPending", stats.AnalysesPending),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
