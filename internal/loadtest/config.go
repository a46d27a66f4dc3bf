package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumBatches      int           // Number of analyses to submit
	BatchSize       int           // Transactions per analysis
	DuplicateRate   float64       // Fraction of batches resubmitted with the same request ID
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	PollInterval    time.Duration // Delay between status polls
	CompleteTimeout time.Duration // How long to wait for all analyses to finish
	Seed            int64         // Base seed for generated histories
	OutputFile      string        // Output file for the submitted batches
	LogFile         string        // Log file for test output
	Verbose         bool          // Enable verbose logging
}

// Transaction is one transaction as posted to the service.
type Transaction struct {
	ID       string `json:"id"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

// Batch is one asynchronous analysis request.
type Batch struct {
	RequestID    string        `json:"request_id"`
	Async        bool          `json:"async"`
	Transactions []Transaction `json:"transactions"`
}

// AckResponse represents the response to a submission.
type AckResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate"`
}

// Analysis is the subset of a stored analysis the runner checks.
type Analysis struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Records   int    `json:"records"`
	K         int    `json:"k"`
	Result    *Result `json:"result"`
}

// Result is the subset of an analysis result the runner checks.
type Result struct {
	Assignments []Assignment `json:"assignments"`
}

// Assignment places one transaction in a 1-based cluster.
type Assignment struct {
	ClusterID int `json:"cluster_id"`
}

// Stats holds test statistics.
type Stats struct {
	BatchesGenerated  int
	BatchesSubmitted  int
	BatchesAccepted   int
	BatchesDuplicate  int
	BatchesRejected   int
	BatchesFailed     int
	AnalysesCompleted int
	AnalysesFailed    int
	AnalysesPending   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
