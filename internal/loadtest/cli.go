package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/okian/spendseg/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(logFile string) error {
	if logFile == "" {
		return logger.Init()
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	if err := logger.InitWithWriter(multiWriter, false); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`spendseg Load Test Tool
=======================

Submits generated transaction histories as asynchronous analyses, waits for
the workers and verifies every result.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -batches int
        Number of analyses to submit (default 200)
  -size int
        Transactions per analysis (default 120)
  -duplicates float
        Fraction of batches resubmitted with the same request ID (default 0.1)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -wait duration
        How long to wait for analyses to finish (default 2m)
  -seed int
        Base seed for generated histories (default 1)
  -output string
        Write the generated batches to this JSON file
  -log string
        Also write log output to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/loadtest

  # Larger histories against another instance
  go run ./cmd/loadtest -batches 1000 -size 500 -workers 16 -url http://localhost:8080
`)
}
