package pipeline

import "github.com/couchcryptid/climate-warehouse-etl/internal/domain"

// transform builds the star schema and assesses its quality.
func (p *Pipeline) transform(tables map[domain.Source]domain.CleanedTable, report *RunReport) domain.Warehouse {
	start := p.clock.Now()
	defer p.observeStage("transform", start)

	w := domain.BuildWarehouse(tables, p.opts.Warehouse)
	report.Dates = len(w.Dates)
	report.Locations = len(w.Locations)
	report.FactsBuilt = len(w.Facts)
	p.metrics.DimensionRows.WithLabelValues("date").Set(float64(len(w.Dates)))
	p.metrics.DimensionRows.WithLabelValues("location").Set(float64(len(w.Locations)))

	cleanStats := make(map[domain.Source]domain.CleanStats, len(tables))
	for src, t := range tables {
		cleanStats[src] = t.Stats
	}
	for _, src := range p.opts.Sources {
		s, ok := w.FactStats[src]
		if !ok {
			continue
		}
		report.Facts[src.String()] = s
		p.metrics.FactsBuilt.WithLabelValues(src.String()).Add(float64(s.Emitted))
		p.metrics.FactsDropped.WithLabelValues(src.String(), "missing_date").Add(float64(s.MissingDate))
		p.metrics.FactsDropped.WithLabelValues(src.String(), "missing_location").Add(float64(s.MissingLocation))
		p.metrics.FactsDropped.WithLabelValues(src.String(), "sampled_out").Add(float64(s.SampledOut))
		if s.MissingDate+s.MissingLocation > 0 {
			p.logger.Warn("readings without dimension keys dropped",
				"source", src.String(),
				"missing_date", s.MissingDate,
				"missing_location", s.MissingLocation,
			)
		}
	}

	report.Quality = domain.AssessQuality(w, cleanStats, p.opts.Quality)
	if !report.Quality.Clean() {
		p.logger.Warn("data quality thresholds breached",
			"out_of_range_temperatures", report.Quality.OutOfRangeTemperatures,
			"invalid_coordinates", report.Quality.InvalidCoordinates,
			"excessive_missing", report.Quality.ExcessiveMissing,
		)
	}
	return w
}
