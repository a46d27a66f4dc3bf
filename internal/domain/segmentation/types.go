package segmentation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/elbow"
	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/domain/insights"
	"github.com/okian/spendseg/internal/domain/model"
)

// AlgorithmVersion tags every result with the clustering implementation that produced it.
const AlgorithmVersion = "lloyd-kmeans/elbow-v1"

// Request is one analysis. Zero values select the analyzer defaults.
type Request struct {
	Records []model.Transaction `json:"records"`
	// Features nil selects the default list; an empty list is rejected.
	Features []string `json:"features,omitempty"`
	// K zero selects k automatically.
	K             int    `json:"k,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	Seed          *int64 `json:"seed,omitempty"`
	Policy        string `json:"policy,omitempty"`
	Labeling      string `json:"labeling,omitempty"`
	CategoryTable string `json:"category_table,omitempty"`
}

// Assignment places one record in a 1-based cluster.
type Assignment struct {
	RecordID  string  `json:"record_id"`
	Index     int     `json:"index"`
	ClusterID int     `json:"cluster_id"`
	Distance  float64 `json:"distance"`
}

// ClusterSummary describes one cluster in original units.
type ClusterSummary struct {
	ClusterID        int             `json:"cluster_id"`
	Label            string          `json:"label"`
	Count            int             `json:"count"`
	Total            decimal.Decimal `json:"total"`
	Average          decimal.Decimal `json:"average"`
	DominantCategory string          `json:"dominant_category"`
	Centroid         []float64       `json:"centroid"`
	Members          []string        `json:"members"`
}

// Metadata records how a result was produced.
type Metadata struct {
	K                int                            `json:"k"`
	AutoSelected     bool                           `json:"auto_selected"`
	Inertia          float64                        `json:"inertia"`
	Iterations       int                            `json:"iterations"`
	Converged        bool                           `json:"converged"`
	InertiaTrace     []float64                      `json:"inertia_trace,omitempty"`
	AlgorithmVersion string                         `json:"algorithm_version"`
	Features         []string                       `json:"features"`
	Seed             int64                          `json:"seed"`
	Policy           string                         `json:"policy"`
	Labeling         string                         `json:"labeling"`
	Selection        *elbow.Selection               `json:"selection,omitempty"`
	Normalization    *features.NormalizationContext `json:"normalization,omitempty"`
	Duration         time.Duration                  `json:"duration_ns"`
}

// Result is the complete output of one analysis.
type Result struct {
	ID          uuid.UUID          `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Records     int                `json:"records"`
	Centroids   [][]float64        `json:"centroids"`
	Assignments []Assignment       `json:"assignments"`
	Clusters    []ClusterSummary   `json:"clusters"`
	Insights    []insights.Insight `json:"insights"`
	Metadata    Metadata           `json:"metadata"`
}
