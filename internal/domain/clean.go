package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MissingStrategy decides what cleaning does with rows whose primary
// temperature is missing.
type MissingStrategy string

const (
	// MissingKeep preserves the row with a null temperature. A gap in the
	// record is itself information.
	MissingKeep MissingStrategy = "keep"
	// MissingDrop removes the row.
	MissingDrop MissingStrategy = "drop"
	// MissingFlag keeps the row and marks Reading.TemperatureMissing.
	MissingFlag MissingStrategy = "flag"
)

// ParseMissingStrategy validates a strategy name. Empty means MissingKeep.
func ParseMissingStrategy(s string) (MissingStrategy, error) {
	switch MissingStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingKeep:
		return MissingKeep, nil
	case MissingDrop:
		return MissingDrop, nil
	case MissingFlag:
		return MissingFlag, nil
	default:
		return "", fmt.Errorf("unknown missing value strategy %q", s)
	}
}

// CleanOptions configures a Cleaner.
type CleanOptions struct {
	Missing MissingStrategy
	// CoordinateCacheSize bounds the coordinate parse cache. Zero disables it.
	CoordinateCacheSize int
}

// DefaultCleanOptions keeps missing values and caches 4096 coordinate pairs.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{Missing: MissingKeep, CoordinateCacheSize: 4096}
}

// Cleaner standardizes raw source tables into readings.
type Cleaner struct {
	missing MissingStrategy
	coords  *CoordinateParser
}

// NewCleaner creates a Cleaner. An empty strategy means MissingKeep.
func NewCleaner(opts CleanOptions) *Cleaner {
	missing := opts.Missing
	if missing == "" {
		missing = MissingKeep
	}
	return &Cleaner{
		missing: missing,
		coords:  NewCoordinateParser(opts.CoordinateCacheSize),
	}
}

// Clean cleans a table from the named source with the default options.
// Unknown source names return ErrUnknownSource.
func Clean(table RawTable, sourceName string) (CleanedTable, error) {
	src, err := ParseSource(sourceName)
	if err != nil {
		return CleanedTable{}, err
	}
	return NewCleaner(DefaultCleanOptions()).Clean(table, src), nil
}

// NormalizeColumnName lowercases a header and replaces spaces and hyphens
// with underscores.
func NormalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// columns maps normalized column names to their index in a row.
type columns map[string]int

func newColumns(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		name := NormalizeColumnName(h)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

// text returns the trimmed cell, with "" and "nan" collapsed to "".
func (c columns) text(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return normalizeText(row[i])
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// Clean converts one raw table of src into readings. It never fails: bad
// values become nulls and are counted in the returned stats.
func (c *Cleaner) Clean(table RawTable, src Source) CleanedTable {
	cols := newColumns(table.Header)
	hasCoords := cols.has(ColumnLatitude) && cols.has(ColumnLongitude)

	var measured []string
	for name := range cols {
		var probe Measurements
		if probe.set(name, nil) {
			measured = append(measured, name)
		}
	}

	out := CleanedTable{
		Source:   src,
		Readings: make([]Reading, 0, len(table.Rows)),
	}
	for _, row := range table.Rows {
		out.Stats.RowsIn++

		r := Reading{
			Date:       ParseDate(cols.text(row, ColumnDate)),
			Source:     src,
			SourceFile: src.String(),
		}
		if r.Date.IsZero() {
			out.Stats.InvalidDates++
		}

		r.Place = c.place(cols, row, src, hasCoords, &out.Stats)

		for _, name := range measured {
			r.Measurements.set(name, parseMeasurement(cols.text(row, name)))
		}

		if r.Measurements.Primary(src) == nil {
			out.Stats.MissingTemperature++
			switch c.missing {
			case MissingDrop:
				out.Stats.Dropped++
				continue
			case MissingFlag:
				r.TemperatureMissing = true
			}
		}

		out.Readings = append(out.Readings, r)
		out.Stats.RowsOut++
	}
	return out
}

func (c *Cleaner) place(cols columns, row []string, src Source, hasCoords bool, stats *CleanStats) Place {
	switch src {
	case SourceCountry:
		return CountryPlace{Country: cols.text(row, ColumnCountry)}
	case SourceState:
		return StatePlace{
			State:   cols.text(row, ColumnState),
			Country: cols.text(row, ColumnCountry),
		}
	case SourceMajorCity, SourceCity:
		p := CityPlace{
			City:    cols.text(row, ColumnCity),
			Country: cols.text(row, ColumnCountry),
		}
		if hasCoords {
			latRaw := cols.text(row, ColumnLatitude)
			lonRaw := cols.text(row, ColumnLongitude)
			coords, consistent := c.coords.Parse(latRaw, lonRaw)
			if (latRaw != "" && coords.Latitude == nil) || (lonRaw != "" && coords.Longitude == nil) {
				stats.InvalidCoordinates++
			}
			if !consistent {
				stats.HemisphereMismatches++
			}
			p.Coordinates = coords
		}
		return p
	default:
		return GlobalPlace{}
	}
}

func parseMeasurement(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
