package loadtest

import (
	"context"
	"log"
	"sync"
	"time"
)

// awaitAnalyses polls every analysis until it reaches a terminal status or
// the completion timeout passes. It returns the last seen state per ID.
func awaitAnalyses(ctx context.Context, config *Config, ids map[string]string) map[string]Analysis {
	log.Printf("⏳ Waiting for %d analyses to finish...", len(ids))

	client := newHTTPClient(config.Timeout)
	deadline := time.Now().Add(config.CompleteTimeout)

	var (
		mu      sync.Mutex
		results = make(map[string]Analysis, len(ids))
	)

	idChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				a := pollUntilTerminal(ctx, client, config, id, deadline)
				mu.Lock()
				results[id] = a
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		idChan <- id
	}
	close(idChan)
	wg.Wait()

	return results
}

func pollUntilTerminal(ctx context.Context, client *HTTPClient, config *Config, id string, deadline time.Time) Analysis {
	last := Analysis{ID: id, Status: StatusPending}
	for {
		a, err := fetchAnalysis(ctx, client, config.BaseURL, id)
		if err == nil {
			last = a
			if a.Status == StatusCompleted || a.Status == StatusFailed {
				return last
			}
		} else if config.Verbose {
			log.Printf("⚠️  Failed to poll %s: %v", id, err)
		}
		if time.Now().After(deadline) {
			return last
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(config.PollInterval):
		}
	}
}
