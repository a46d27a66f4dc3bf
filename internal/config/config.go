// Package config defines the service configuration and how it is loaded.
package config

import (
	"runtime"
	"time"
)

// Result store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// QueueSize bounds the in-memory analysis job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the number of remembered request IDs.
	DedupeSize int `koanf:"dedupe_size"`
	// DedupeTTL forgets request IDs after this long; zero keeps them until evicted.
	DedupeTTL time.Duration `koanf:"dedupe_ttl"`

	// MinRecords is the smallest transaction list the API accepts.
	MinRecords int `koanf:"min_records"`
	// MaxRecords caps the transaction list the API accepts.
	MaxRecords int `koanf:"max_records"`
	// MaxListLimit caps GET /analyses?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// Clustering defaults, overridable per request.
	MaxIterations         int      `koanf:"max_iterations"`
	ExploratoryIterations int      `koanf:"exploratory_iterations"`
	MaxK                  int      `koanf:"max_k"`
	DefaultK              int      `koanf:"default_k"`
	ElbowThreshold        float64  `koanf:"elbow_threshold"`
	Tolerance             float64  `koanf:"tolerance"`
	Seed                  *int64   `koanf:"seed"`
	Features              []string `koanf:"features"`
	InsightPolicy         string   `koanf:"insight_policy"`
	Labeling              string   `koanf:"labeling"`
	CategoryTable         string   `koanf:"category_table"`
	NormalizeLogAmount    bool     `koanf:"normalize_log_amount"`
	ParallelSelection     bool     `koanf:"parallel_selection"`

	// Store selects the result store backend: memory or sqlite.
	Store      string `koanf:"store"`
	SQLitePath string `koanf:"sqlite_path"`

	// AMQP completion notifications; disabled when AMQPURL is empty.
	AMQPURL        string `koanf:"amqp_url"`
	AMQPExchange   string `koanf:"amqp_exchange"`
	AMQPRoutingKey string `koanf:"amqp_routing_key"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		ShutdownTimeout:       10 * time.Second,
		QueueSize:             1024,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            50_000,
		DedupeTTL:             24 * time.Hour,
		MinRecords:            5,
		MaxRecords:            100_000,
		MaxListLimit:          100,
		MaxIterations:         300,
		ExploratoryIterations: 100,
		MaxK:                  6,
		DefaultK:              3,
		ElbowThreshold:        0.10,
		Tolerance:             1e-4,
		Features:              DefaultFeatures(),
		InsightPolicy:         "strict",
		Labeling:              "aggregate",
		CategoryTable:         "default",
		Store:                 StoreMemory,
		SQLitePath:            "./data/spendseg.db",
		AMQPExchange:          "spendseg",
		AMQPRoutingKey:        "analysis.completed",
	}
}

// DefaultFeatures lists the features used when none are configured.
func DefaultFeatures() []string {
	return []string{"amount", "category", "date"}
}
