package loadtest

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// verifyResults checks that every accepted analysis finished and that each
// completed result assigns every submitted transaction exactly once.
func verifyResults(_ context.Context, config *Config, batches []Batch, ids map[string]string, results map[string]Analysis, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	sizes := make(map[string]int, len(batches))
	for _, b := range batches {
		sizes[b.RequestID] = len(b.Transactions)
	}

	var problems []string
	kCounts := map[int]int{}
	for requestID, id := range ids {
		a, ok := results[id]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: never polled", id))
			continue
		}
		if a.RequestID != "" && a.RequestID != requestID {
			problems = append(problems, fmt.Sprintf("%s: request ID %q, want %q", id, a.RequestID, requestID))
		}
		switch a.Status {
		case StatusCompleted:
			stats.AnalysesCompleted++
			kCounts[a.K]++
			if err := verifyAssignments(a, sizes[requestID]); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", id, err))
			}
		case StatusFailed:
			stats.AnalysesFailed++
			problems = append(problems, fmt.Sprintf("%s: failed: %s", id, a.Error))
		default:
			stats.AnalysesPending++
			problems = append(problems, fmt.Sprintf("%s: still %s", id, a.Status))
		}
	}

	displayClusterCounts(kCounts, config.Verbose)

	if len(problems) > 0 {
		sort.Strings(problems)
		for i, p := range problems {
			if i == 10 && !config.Verbose {
				log.Printf("   ... and %d more", len(problems)-i)
				break
			}
			log.Printf("   ❌ %s", p)
		}
		return fmt.Errorf("%d of %d analyses did not verify", len(problems), len(ids))
	}

	log.Println("✅ Result verification completed")
	return nil
}

// verifyAssignments checks one completed analysis against its batch size.
func verifyAssignments(a Analysis, want int) error {
	if a.Result == nil {
		return fmt.Errorf("completed without a result")
	}
	if got := len(a.Result.Assignments); got != want {
		return fmt.Errorf("%d assignments for %d transactions", got, want)
	}
	for i, as := range a.Result.Assignments {
		if as.ClusterID < 1 || as.ClusterID > a.K {
			return fmt.Errorf("assignment %d in cluster %d, k=%d", i, as.ClusterID, a.K)
		}
	}
	return nil
}

// displayClusterCounts shows how often each k was chosen.
func displayClusterCounts(kCounts map[int]int, verbose bool) {
	ks := make([]int, 0, len(kCounts))
	for k := range kCounts {
		ks = append(ks, k)
	}
	sort.Ints(ks)

	log.Println("🧮 Selected cluster counts:")
	for _, k := range ks {
		log.Printf("   k=%d: %d analyses", k, kCounts[k])
	}
	if verbose && len(ks) > 0 {
		log.Printf("   range: %d..%d", ks[0], ks[len(ks)-1])
	}
}
