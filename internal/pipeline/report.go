package pipeline

import (
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/google/uuid"
)

// RunReport describes what one pipeline run did. Callers check Complete to
// detect rows lost along the way.
type RunReport struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Per-source statistics keyed by source name.
	Clean          map[string]domain.CleanStats `json:"clean"`
	Facts          map[string]domain.FactStats  `json:"facts"`
	MissingSources []string                     `json:"missing_sources,omitempty"`

	Dates           int `json:"dates"`
	Locations       int `json:"locations"`
	FactsBuilt      int `json:"facts_built"`
	FactsLoaded     int `json:"facts_loaded"`
	FailedBatches   int `json:"failed_batches"`
	FailedRows      int `json:"failed_rows"`
	PublishFailures int `json:"publish_failures"`

	Quality domain.QualityReport `json:"quality"`
}

func newRunReport(id uuid.UUID, startedAt time.Time) RunReport {
	return RunReport{
		RunID:     id,
		StartedAt: startedAt,
		Clean:     make(map[string]domain.CleanStats),
		Facts:     make(map[string]domain.FactStats),
	}
}

// Duration is the wall time of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DroppedFacts counts readings that produced no fact, across sources.
func (r RunReport) DroppedFacts() int {
	n := 0
	for _, s := range r.Facts {
		n += s.Dropped()
	}
	return n
}

// Complete reports whether every cleaned reading became a loaded fact.
func (r RunReport) Complete() bool {
	return r.DroppedFacts() == 0 && r.FailedBatches == 0 && r.FactsLoaded == r.FactsBuilt
}
