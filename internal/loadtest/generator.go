package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/spendseg/internal/sampledata"
	"github.com/okian/spendseg/pkg/logger"
)

// generateBatches creates NumBatches histories, each from its own seed so any
// batch can be regenerated on its own.
func generateBatches(ctx context.Context, config *Config, stats *Stats) ([]Batch, error) {
	logger.Get().Info(ctx, "generating transaction batches",
		logger.Int("batches", config.NumBatches),
		logger.Int("batchSize", config.BatchSize))

	batches := make([]Batch, config.NumBatches)
	for i := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		txs := sampledata.Transactions(config.Seed+int64(i), config.BatchSize)
		out := make([]Transaction, len(txs))
		for j, tx := range txs {
			out[j] = Transaction{
				ID:       tx.ID,
				Amount:   tx.Amount.StringFixed(2),
				Category: tx.Category,
				Date:     tx.Date.Format(time.RFC3339),
			}
		}
		batches[i] = Batch{
			RequestID:    fmt.Sprintf("load-%d-%06d", config.Seed, i),
			Async:        true,
			Transactions: out,
		}
	}

	stats.BatchesGenerated = len(batches)
	logger.Get().Info(ctx, "generated batches successfully", logger.Int("count", len(batches)))
	return batches, nil
}

// withDuplicates appends resubmissions of randomly chosen batches. They carry
// the original request ID, so the service must answer with the existing
// analysis.
func withDuplicates(batches []Batch, rate float64, seed int64) []Batch {
	n := int(float64(len(batches)) * rate)
	if n <= 0 {
		return batches
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data selection
	out := make([]Batch, len(batches), len(batches)+n)
	copy(out, batches)
	for i := 0; i < n; i++ {
		out = append(out, batches[rng.Intn(len(batches))])
	}
	return out
}
