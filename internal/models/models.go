package models

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is one named model's evaluation result considered for promotion.
// It is constructed by the metrics reader and immutable afterwards.
type Candidate struct {
	Name        string             `json:"name"`
	Metrics     map[string]float64 `json:"metrics"`
	ArtifactRef string             `json:"artifactRef"`
	SourcePath  string             `json:"sourcePath"`
}

// Selection is the outcome of ranking a candidate set by one primary metric.
type Selection struct {
	Winner Candidate `json:"winner"`
	Score  float64   `json:"score"`
}

// RegistryEntry is one immutable promotion record. JSON field names match the
// on-disk registry format consumed by downstream tooling.
type RegistryEntry struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Artifact      string    `json:"artifact"`
	MetricsFile   string    `json:"metrics_file"`
	PrimaryMetric string    `json:"primary_metric"`
	PrimaryScore  float64   `json:"primary_score"`
	PromotedAt    time.Time `json:"promoted_at_utc"`
}

// RegistryState is the persisted registry document: the ordered promotion
// history plus the entry currently designated production. Append order is
// promotion order; the most recent production is the last appended entry,
// never max-by-score.
type RegistryState struct {
	Models     []RegistryEntry `json:"models"`
	Production *RegistryEntry  `json:"production"`
}
