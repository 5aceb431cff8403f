package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownSource is returned when a source name is not one of the five
// supported extracts.
var ErrUnknownSource = errors.New("unknown source")

// ErrSourceNotFound signals that a known source has no data to read. The
// pipeline treats it as zero rows for that source.
var ErrSourceNotFound = errors.New("source not found")

// Source identifies one of the temperature extracts.
type Source int

const (
	SourceGlobal Source = iota + 1
	SourceCountry
	SourceState
	SourceMajorCity
	SourceCity
)

// Granularity is the geographic aggregation level of a record.
type Granularity string

const (
	GranularityGlobal  Granularity = "global"
	GranularityCountry Granularity = "country"
	GranularityState   Granularity = "state"
	GranularityCity    Granularity = "city"
)

// Sources returns every source in processing order. Location ids depend on
// this order.
func Sources() []Source {
	return []Source{SourceGlobal, SourceCountry, SourceState, SourceMajorCity, SourceCity}
}

// ParseSource maps a source name ("global", "country", "state",
// "major_city", "city") to its Source.
func ParseSource(name string) (Source, error) {
	for _, s := range Sources() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

func (s Source) String() string {
	switch s {
	case SourceGlobal:
		return "global"
	case SourceCountry:
		return "country"
	case SourceState:
		return "state"
	case SourceMajorCity:
		return "major_city"
	case SourceCity:
		return "city"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Valid reports whether s is one of the declared sources.
func (s Source) Valid() bool {
	return s >= SourceGlobal && s <= SourceCity
}

// Granularity returns the location level rows from this source describe.
// Major cities are ordinary city rows.
func (s Source) Granularity() Granularity {
	switch s {
	case SourceGlobal:
		return GranularityGlobal
	case SourceCountry:
		return GranularityCountry
	case SourceState:
		return GranularityState
	case SourceMajorCity, SourceCity:
		return GranularityCity
	default:
		return ""
	}
}

// FileName is the default extract file name for the source.
func (s Source) FileName() string {
	switch s {
	case SourceGlobal:
		return "GlobalTemperatures.csv"
	case SourceCountry:
		return "GlobalLandTemperaturesByCountry.csv"
	case SourceState:
		return "GlobalLandTemperaturesByState.csv"
	case SourceMajorCity:
		return "GlobalLandTemperaturesByMajorCity.csv"
	case SourceCity:
		return "GlobalLandTemperaturesByCity.csv"
	default:
		return ""
	}
}
