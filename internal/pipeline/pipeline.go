package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/config"
	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/couchcryptid/climate-warehouse-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Extractor streams the raw rows of one source in chunks of at most
// chunkSize rows. A source with no data returns domain.ErrSourceNotFound.
type Extractor interface {
	Extract(ctx context.Context, src domain.Source, chunkSize int, fn func(domain.RawTable) error) error
}

// Loader writes the star schema to the warehouse. StoredKeys reports the
// dimension keys already loaded so an append run can reuse their ids.
type Loader interface {
	Prepare(ctx context.Context, mode domain.LoadMode) error
	StoredKeys(ctx context.Context) (domain.StoredKeys, error)
	LoadDates(ctx context.Context, rows []domain.DateRow) error
	LoadLocations(ctx context.Context, rows []domain.LocationRow) error
	LoadFacts(ctx context.Context, rows []domain.FactRow) error
}

// FactPublisher announces loaded facts to downstream consumers.
type FactPublisher interface {
	PublishFacts(ctx context.Context, runID uuid.UUID, facts []domain.FactRow) error
}

// Options tunes a pipeline run.
type Options struct {
	Sources      []domain.Source
	ChunkSize    int
	BatchSize    int
	MaxAttempts  int
	Mode         domain.LoadMode
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	Clean     domain.CleanOptions
	Warehouse domain.WarehouseOptions
	Quality   domain.QualityOptions
}

// DefaultOptions processes every source with the stock thresholds.
func DefaultOptions() Options {
	return Options{
		Sources:      domain.Sources(),
		ChunkSize:    500000,
		BatchSize:    50000,
		MaxAttempts:  3,
		Mode:         domain.LoadAppend,
		RetryBackoff: 200 * time.Millisecond,
		MaxBackoff:   5 * time.Second,
		Clean:        domain.DefaultCleanOptions(),
		Warehouse:    domain.DefaultWarehouseOptions(),
		Quality:      domain.DefaultQualityOptions(),
	}
}

// OptionsFromConfig maps service configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.ChunkSize = cfg.ChunkSize
	opts.BatchSize = cfg.LoadBatchSize
	opts.MaxAttempts = cfg.LoadMaxAttempts
	opts.Mode = cfg.LoadMode
	opts.Clean.Missing = cfg.MissingStrategy
	opts.Warehouse = domain.WarehouseOptions{
		CitySample: domain.SamplePolicy{Size: cfg.CitySampleSize, Seed: cfg.SampleSeed},
		FactSample: domain.SamplePolicy{Size: cfg.FactSampleSize, Seed: cfg.SampleSeed},
	}
	opts.Quality = domain.QualityOptions{
		TemperatureRange:  cfg.TemperatureRange,
		MaxMissingPercent: cfg.MaxMissingPercent,
	}
	return opts
}

// Pipeline runs one extract, transform and load pass over the sources.
type Pipeline struct {
	extractor Extractor
	loader    Loader
	publisher FactPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
	ready     atomic.Bool
	last      atomic.Pointer[RunReport]
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, l Loader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if len(opts.Sources) == 0 {
		opts.Sources = domain.Sources()
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MaxBackoff < opts.RetryBackoff {
		opts.MaxBackoff = opts.RetryBackoff
	}
	return &Pipeline{
		extractor: e,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		opts:      opts,
	}
}

// WithPublisher sends every loaded fact batch to pub.
func (p *Pipeline) WithPublisher(pub FactPublisher) *Pipeline {
	p.publisher = pub
	return p
}

// WithClock replaces the clock used for run timestamps, stage timings and
// retry backoff.
func (p *Pipeline) WithClock(c clockwork.Clock) *Pipeline {
	p.clock = c
	return p
}

// CheckReadiness returns nil once a run has completed without failed load
// batches.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// LastReport returns the report of the most recent run, successful or not.
func (p *Pipeline) LastReport() (RunReport, bool) {
	r := p.last.Load()
	if r == nil {
		return RunReport{}, false
	}
	return *r, true
}

// Run extracts and cleans every source, builds the warehouse, and loads it.
// Dimension load failures abort the run. Fact batches that still fail after
// all attempts are reported and skipped.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := newRunReport(uuid.New(), p.clock.Now())
	p.logger.Info("pipeline started",
		"run_id", report.RunID,
		"sources", len(p.opts.Sources),
		"mode", p.opts.Mode,
		"batch_size", p.opts.BatchSize,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, &report)
	report.FinishedAt = p.clock.Now()
	p.last.Store(&report)
	if err != nil {
		p.logger.Error("pipeline failed", "run_id", report.RunID, "error", err)
		return report, err
	}

	p.ready.Store(report.FailedBatches == 0)
	p.logger.Info("pipeline finished",
		"run_id", report.RunID,
		"duration", report.Duration(),
		"dates", report.Dates,
		"locations", report.Locations,
		"facts_built", report.FactsBuilt,
		"facts_loaded", report.FactsLoaded,
		"facts_dropped", report.DroppedFacts(),
		"failed_batches", report.FailedBatches,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *RunReport) error {
	tables, err := p.extract(ctx, report)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w := p.transform(tables, report)

	return p.load(ctx, w, report)
}

// extract reads and cleans each source. Missing sources contribute nothing.
func (p *Pipeline) extract(ctx context.Context, report *RunReport) (map[domain.Source]domain.CleanedTable, error) {
	start := p.clock.Now()
	defer p.observeStage("extract", start)

	cleaner := domain.NewCleaner(p.opts.Clean)
	tables := make(map[domain.Source]domain.CleanedTable, len(p.opts.Sources))
	for _, src := range p.opts.Sources {
		table := domain.CleanedTable{Source: src}
		err := p.extractor.Extract(ctx, src, p.opts.ChunkSize, func(raw domain.RawTable) error {
			chunk := cleaner.Clean(raw, src)
			table.Append(chunk)
			p.metrics.RowsExtracted.WithLabelValues(src.String()).Add(float64(chunk.Stats.RowsIn))
			p.metrics.RowsCleaned.WithLabelValues(src.String()).Add(float64(chunk.Stats.RowsOut))
			p.metrics.RowsDiscarded.WithLabelValues(src.String()).Add(float64(chunk.Stats.Dropped))
			return ctx.Err()
		})
		if errors.Is(err, domain.ErrSourceNotFound) {
			p.logger.Warn("source missing, skipping", "source", src.String(), "error", err)
			report.MissingSources = append(report.MissingSources, src.String())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", src, err)
		}

		tables[src] = table
		report.Clean[src.String()] = table.Stats
		p.logger.Info("source cleaned",
			"source", src.String(),
			"rows_in", table.Stats.RowsIn,
			"rows_out", table.Stats.RowsOut,
			"missing_temperature", table.Stats.MissingTemperature,
			"invalid_dates", table.Stats.InvalidDates,
		)
		if table.Stats.HemisphereMismatches > 0 {
			p.logger.Warn("coordinate sign disagrees with hemisphere",
				"source", src.String(), "rows", table.Stats.HemisphereMismatches)
		}
	}
	return tables, nil
}

// load writes both dimensions and then the facts in batches. In append
// mode the warehouse is first rebased onto the keys already stored.
func (p *Pipeline) load(ctx context.Context, w domain.Warehouse, report *RunReport) error {
	start := p.clock.Now()
	defer p.observeStage("load", start)

	if err := p.loader.Prepare(ctx, p.opts.Mode); err != nil {
		return fmt.Errorf("prepare warehouse: %w", err)
	}
	if p.opts.Mode == domain.LoadAppend {
		stored, err := p.loader.StoredKeys(ctx)
		if err != nil {
			return fmt.Errorf("read stored keys: %w", err)
		}
		w = w.Rebase(stored)
		p.logger.Info("rebased onto stored keys",
			"run_id", report.RunID,
			"stored_dates", len(stored.Dates),
			"stored_locations", len(stored.Locations),
			"new_dates", len(w.Dates),
			"new_locations", len(w.Locations),
		)
	}

	for batch := range slices.Chunk(w.Dates, p.opts.BatchSize) {
		if err := p.withRetry(ctx, "dim_date", func(ctx context.Context) error {
			return p.loader.LoadDates(ctx, batch)
		}); err != nil {
			return fmt.Errorf("load dates: %w", err)
		}
		p.metrics.RowsLoaded.WithLabelValues("dim_date").Add(float64(len(batch)))
	}

	for batch := range slices.Chunk(w.Locations, p.opts.BatchSize) {
		if err := p.withRetry(ctx, "dim_location", func(ctx context.Context) error {
			return p.loader.LoadLocations(ctx, batch)
		}); err != nil {
			return fmt.Errorf("load locations: %w", err)
		}
		p.metrics.RowsLoaded.WithLabelValues("dim_location").Add(float64(len(batch)))
	}

	n := 0
	for batch := range slices.Chunk(w.Facts, p.opts.BatchSize) {
		n++
		err := p.withRetry(ctx, "fact_temperature", func(ctx context.Context) error {
			return p.loader.LoadFacts(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("load facts: %w", err)
			}
			p.logger.Error("fact batch failed, skipping",
				"run_id", report.RunID, "batch", n, "rows", len(batch), "error", err)
			report.FailedBatches++
			report.FailedRows += len(batch)
			continue
		}
		report.FactsLoaded += len(batch)
		p.metrics.RowsLoaded.WithLabelValues("fact_temperature").Add(float64(len(batch)))
		p.publish(ctx, report, batch)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, report *RunReport, batch []domain.FactRow) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishFacts(ctx, report.RunID, batch); err != nil {
		p.logger.Warn("publish facts failed", "run_id", report.RunID, "rows", len(batch), "error", err)
		report.PublishFailures++
		return
	}
	p.metrics.FactsPublished.Add(float64(len(batch)))
}

// withRetry runs fn up to MaxAttempts times with exponential backoff
// between attempts.
func (p *Pipeline) withRetry(ctx context.Context, table string, fn func(context.Context) error) error {
	backoff := p.opts.RetryBackoff
	var err error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		start := p.clock.Now()
		err = fn(ctx)
		p.metrics.LoadBatchDuration.WithLabelValues(table).Observe(p.clock.Since(start).Seconds())
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		p.logger.Warn("load batch attempt failed",
			"table", table, "attempt", attempt, "max_attempts", p.opts.MaxAttempts, "error", err)
		if attempt == p.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(backoff):
		}
		backoff = retry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
	p.metrics.LoadBatchFailures.WithLabelValues(table).Inc()
	return err
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(p.clock.Since(start).Seconds())
}
