package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// submitBatches submits batches concurrently and returns the analysis ID bound
// to each request ID.
func submitBatches(ctx context.Context, config *Config, batches []Batch, stats *Stats) (map[string]string, error) {
	log.Printf("📤 Submitting %d batches with %d workers...", len(batches), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/analyses"

	var (
		submitted, accepted, duplicate, rejected, failed int64

		mu  sync.Mutex
		ids = make(map[string]string, len(batches))
	)

	batchChan := make(chan Batch, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchChan {
				if ctx.Err() != nil {
					return
				}
				ack, outcome := submitSingleBatch(ctx, client, url, batch)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if ack.AnalysisID == "" {
					continue
				}

				mu.Lock()
				if prev, ok := ids[batch.RequestID]; ok && prev != ack.AnalysisID {
					log.Printf("⚠️  Request %s bound to %s and %s", batch.RequestID, prev, ack.AnalysisID)
				}
				ids[batch.RequestID] = ack.AnalysisID
				mu.Unlock()

				if config.Verbose {
					log.Printf("📊 %s -> %s (%s)", batch.RequestID, ack.AnalysisID, outcome)
				}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for _, batch := range batches {
			select {
			case <-ctx.Done():
				return
			case batchChan <- batch:
			}
		}
	}()

	wg.Wait()

	stats.BatchesSubmitted = int(submitted)
	stats.BatchesAccepted = int(accepted)
	stats.BatchesDuplicate = int(duplicate)
	stats.BatchesRejected = int(rejected)
	stats.BatchesFailed = int(failed)

	log.Printf(`✅ Batch submission completed:
   Accepted: %d
   Duplicate: %d
   Rejected (backpressure): %d
   Failed: %d
`, stats.BatchesAccepted, stats.BatchesDuplicate, stats.BatchesRejected, stats.BatchesFailed)

	if err := ctx.Err(); err != nil {
		return ids, fmt.Errorf("submission interrupted: %w", err)
	}
	return ids, nil
}

// submitSingleBatch submits one batch and classifies the response.
func submitSingleBatch(ctx context.Context, client *HTTPClient, url string, batch Batch) (AckResponse, string) {
	resp, err := client.Post(ctx, url, batch)
	if err != nil {
		return AckResponse{}, outcomeFailed
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return AckResponse{}, outcomeFailed
	}

	var ack AckResponse
	switch resp.StatusCode {
	case http.StatusAccepted:
		_ = json.Unmarshal(body, &ack)
		return ack, outcomeAccepted
	case http.StatusOK:
		_ = json.Unmarshal(body, &ack)
		if ack.Duplicate {
			return ack, outcomeDuplicate
		}
		return ack, outcomeAccepted
	case http.StatusTooManyRequests:
		return ack, outcomeRejected
	default:
		return ack, outcomeFailed
	}
}

// fetchAnalysis retrieves one analysis by ID.
func fetchAnalysis(ctx context.Context, client *HTTPClient, baseURL, id string) (Analysis, error) {
	resp, err := client.Get(ctx, baseURL+"/analyses/"+id)
	if err != nil {
		return Analysis{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return Analysis{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Analysis{}, fmt.Errorf("unexpected status %d for analysis %s", resp.StatusCode, id)
	}
	var a Analysis
	if err := json.Unmarshal(body, &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return a, nil
}
