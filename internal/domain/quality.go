package domain

import (
	"math"

	"github.com/golang/geo/s2"
)

// TemperatureRange is the plausible band for an average temperature in
// degrees Celsius.
type TemperatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range, inclusive.
func (r TemperatureRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// QualityOptions sets the thresholds AssessQuality checks against.
type QualityOptions struct {
	TemperatureRange  TemperatureRange
	MaxMissingPercent float64
}

// DefaultQualityOptions accepts -60..50 °C and up to 50% missing readings.
func DefaultQualityOptions() QualityOptions {
	return QualityOptions{
		TemperatureRange:  TemperatureRange{Min: -60, Max: 50},
		MaxMissingPercent: 50,
	}
}

// QualityReport summarizes data-quality signals of a built warehouse. It is
// informational; nothing is removed because of it.
type QualityReport struct {
	OutOfRangeTemperatures int                `json:"out_of_range_temperatures"`
	InvalidCoordinates     int                `json:"invalid_coordinates"`
	HemisphereMismatches   int                `json:"hemisphere_mismatches"`
	UnreferencedDates      int                `json:"unreferenced_dates"`
	UnreferencedLocations  int                `json:"unreferenced_locations"`
	MissingPercent         map[string]float64 `json:"missing_percent"`
	ExcessiveMissing       []string           `json:"excessive_missing,omitempty"`
}

// Clean reports whether no threshold was breached.
func (q QualityReport) Clean() bool {
	return q.OutOfRangeTemperatures == 0 && q.InvalidCoordinates == 0 && len(q.ExcessiveMissing) == 0
}

// AssessQuality checks facts against the temperature range, city locations
// for valid coordinates, each source's missing-temperature share, and
// dimension rows no fact references.
func AssessQuality(w Warehouse, clean map[Source]CleanStats, opts QualityOptions) QualityReport {
	q := QualityReport{MissingPercent: make(map[string]float64)}

	usedDates := make(map[int]struct{}, len(w.Dates))
	usedLocations := make(map[int]struct{}, len(w.Locations))
	for _, f := range w.Facts {
		usedDates[f.DateID] = struct{}{}
		usedLocations[f.LocationID] = struct{}{}
		if f.AvgTemperature != nil && !opts.TemperatureRange.Contains(*f.AvgTemperature) {
			q.OutOfRangeTemperatures++
		}
	}
	for _, d := range w.Dates {
		if _, ok := usedDates[d.DateID]; !ok {
			q.UnreferencedDates++
		}
	}
	for _, l := range w.Locations {
		if _, ok := usedLocations[l.LocationID]; !ok {
			q.UnreferencedLocations++
		}
		if l.Granularity == GranularityCity && !ValidCoordinates(l.Latitude, l.Longitude) {
			q.InvalidCoordinates++
		}
	}

	for _, src := range Sources() {
		s, ok := clean[src]
		if !ok || s.RowsIn == 0 {
			continue
		}
		q.HemisphereMismatches += s.HemisphereMismatches
		pct := math.Round(float64(s.MissingTemperature)/float64(s.RowsIn)*10000) / 100
		q.MissingPercent[src.String()] = pct
		if pct > opts.MaxMissingPercent {
			q.ExcessiveMissing = append(q.ExcessiveMissing, src.String())
		}
	}
	return q
}

// ValidCoordinates reports whether both values are present and describe a
// point on the sphere.
func ValidCoordinates(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	return s2.LatLngFromDegrees(*lat, *lon).IsValid()
}
