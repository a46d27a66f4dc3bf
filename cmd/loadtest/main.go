package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/spendseg/internal/loadtest"
)

// Default configuration constants.
const (
	defaultBatches       = 200
	defaultBatchSize     = 120
	defaultDuplicateRate = 0.1
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		batches    = flag.Int("batches", defaultBatches, "Number of analyses to submit")
		size       = flag.Int("size", defaultBatchSize, "Transactions per analysis")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Fraction of batches resubmitted with the same request ID")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", loadtest.DefaultCompleteTimeout, "How long to wait for analyses to finish")
		seed       = flag.Int64("seed", 1, "Base seed for generated histories")
		outputFile = flag.String("output", "", "Write the generated batches to this JSON file")
		logFile    = flag.String("log", "", "Also write log output to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:         *baseURL,
		NumBatches:      *batches,
		BatchSize:       *size,
		DuplicateRate:   *duplicates,
		Workers:         *workers,
		Timeout:         *timeout,
		CompleteTimeout: *wait,
		Seed:            *seed,
		OutputFile:      *outputFile,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	if err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
