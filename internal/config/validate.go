package config

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	logLevels      = []string{"debug", "info", "warn", "warning", "error"}
	logFormats     = []string{"text", "json"}
	insightPolicies = []string{"strict", "lenient"}
	labelings      = []string{"aggregate", "representative"}
	categoryTables = []string{"default", "compact"}
	stores         = []string{StoreMemory, StoreSQLite}
)

// Validate reports every problem at once, wrapped in ErrInvalidConfig.
func (c *Config) Validate(_ context.Context) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		add("addr must not be empty")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		add("invalid log_level %q: must be one of %v", c.LogLevel, logLevels)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		add("invalid log_format %q: must be one of %v", c.LogFormat, logFormats)
	}
	if c.QueueSize < 1 {
		add("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.WorkerCount < 1 {
		add("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.MinRecords < 1 {
		add("min_records must be positive, got %d", c.MinRecords)
	}
	if c.MaxRecords < c.MinRecords {
		add("max_records %d is below min_records %d", c.MaxRecords, c.MinRecords)
	}
	if c.MaxListLimit < 1 {
		add("max_list_limit must be positive, got %d", c.MaxListLimit)
	}
	if c.MaxIterations < 1 || c.ExploratoryIterations < 1 {
		add("max_iterations and exploratory_iterations must be positive")
	}
	if c.MaxK < 2 {
		add("max_k must be at least 2, got %d", c.MaxK)
	}
	if c.DefaultK < 2 {
		add("default_k must be at least 2, got %d", c.DefaultK)
	}
	if c.ElbowThreshold < 0 {
		add("elbow_threshold must not be negative")
	}
	if c.Tolerance < 0 {
		add("tolerance must not be negative")
	}
	if len(c.Features) == 0 {
		add("features must name at least one feature")
	}
	if !slices.Contains(insightPolicies, c.InsightPolicy) {
		add("invalid insight_policy %q: must be one of %v", c.InsightPolicy, insightPolicies)
	}
	if !slices.Contains(labelings, c.Labeling) {
		add("invalid labeling %q: must be one of %v", c.Labeling, labelings)
	}
	if !slices.Contains(categoryTables, c.CategoryTable) {
		add("invalid category_table %q: must be one of %v", c.CategoryTable, categoryTables)
	}
	if !slices.Contains(stores, c.Store) {
		add("invalid store %q: must be one of %v", c.Store, stores)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		add("sqlite_path must be set when store is sqlite")
	}
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			add("invalid amqp_url: %v", err)
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			add("invalid amqp_url scheme %q: must be amqp or amqps", u.Scheme)
		}
		if c.AMQPExchange == "" {
			add("amqp_exchange must be set when amqp_url is set")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalidConfig, strings.Join(problems, "\n- "))
	}
	return nil
}
