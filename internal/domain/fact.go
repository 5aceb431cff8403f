package domain

// FactRow is one temperature reading keyed to both dimensions.
type FactRow struct {
	DateID                    int      `json:"date_id"`
	LocationID                int      `json:"location_id"`
	AvgTemperature            *float64 `json:"avg_temperature"`
	AvgTemperatureUncertainty *float64 `json:"avg_temperature_uncertainty"`
	LandMaxTemperature        *float64 `json:"land_max_temperature,omitempty"`
	LandMinTemperature        *float64 `json:"land_min_temperature,omitempty"`
	SourceFile                string   `json:"source_file"`
}

// FieldMapping names the measurement columns copied into a fact. An empty
// name leaves the fact attribute null.
type FieldMapping struct {
	AvgTemperature            string
	AvgTemperatureUncertainty string
	LandMaxTemperature        string
	LandMinTemperature        string
}

// FieldMappingFor returns the column mapping of a source. Only the global
// source carries land max and min temperatures.
func FieldMappingFor(src Source) FieldMapping {
	if src == SourceGlobal {
		return FieldMapping{
			AvgTemperature:            ColumnLandAverageTemperature,
			AvgTemperatureUncertainty: ColumnLandAverageTemperatureUncertainty,
			LandMaxTemperature:        ColumnLandMaxTemperature,
			LandMinTemperature:        ColumnLandMinTemperature,
		}
	}
	return FieldMapping{
		AvgTemperature:            ColumnAverageTemperature,
		AvgTemperatureUncertainty: ColumnAverageTemperatureUncertainty,
	}
}

// FactStats counts how the readings of one source fared during assembly.
// A reading resolving neither key counts as MissingDate.
type FactStats struct {
	Input           int `json:"input"`
	SampledOut      int `json:"sampled_out"`
	Emitted         int `json:"emitted"`
	MissingDate     int `json:"missing_date"`
	MissingLocation int `json:"missing_location"`
}

// Dropped is the number of readings that produced no fact.
func (s FactStats) Dropped() int {
	return s.SampledOut + s.MissingDate + s.MissingLocation
}

// BuildFacts joins readings to the dimension key maps. Readings whose date or
// place has no key are skipped and counted; assembly never fails. Output
// order follows input order.
func BuildFacts(table CleanedTable, dates DateIndex, locations LocationIndex, mapping FieldMapping) ([]FactRow, FactStats) {
	stats := FactStats{Input: len(table.Readings)}
	facts := make([]FactRow, 0, len(table.Readings))
	for i := range table.Readings {
		r := &table.Readings[i]
		dateID, ok := dates.Lookup(r.Date)
		if !ok {
			stats.MissingDate++
			continue
		}
		locationID, ok := locations.Lookup(r.Place)
		if !ok {
			stats.MissingLocation++
			continue
		}
		facts = append(facts, FactRow{
			DateID:                    dateID,
			LocationID:                locationID,
			AvgTemperature:            r.Measurements.Get(mapping.AvgTemperature),
			AvgTemperatureUncertainty: r.Measurements.Get(mapping.AvgTemperatureUncertainty),
			LandMaxTemperature:        r.Measurements.Get(mapping.LandMaxTemperature),
			LandMinTemperature:        r.Measurements.Get(mapping.LandMinTemperature),
			SourceFile:                r.SourceFile,
		})
	}
	stats.Emitted = len(facts)
	return facts, stats
}
