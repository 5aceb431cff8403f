package domain

import (
	"fmt"
	"strings"
)

// LoadMode controls how a loader treats existing warehouse tables.
type LoadMode string

const (
	// LoadAppend inserts into existing tables. Dimension ids are rebased onto
	// the stored natural keys first; see Warehouse.Rebase.
	LoadAppend LoadMode = "append"
	// LoadReplace drops and recreates the tables first.
	LoadReplace LoadMode = "replace"
)

// ParseLoadMode validates a load mode name. Empty means LoadAppend.
func ParseLoadMode(s string) (LoadMode, error) {
	switch LoadMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LoadAppend:
		return LoadAppend, nil
	case LoadReplace:
		return LoadReplace, nil
	default:
		return "", fmt.Errorf("unknown load mode %q", s)
	}
}

// WarehouseOptions configures BuildWarehouse.
type WarehouseOptions struct {
	// CitySample bounds the city source's contribution to the location
	// dimension.
	CitySample SamplePolicy
	// FactSample pre-samples every non-global source before fact assembly.
	FactSample SamplePolicy
}

// DefaultWarehouseOptions samples 1000 cities with seed 42 and keeps every
// fact.
func DefaultWarehouseOptions() WarehouseOptions {
	return WarehouseOptions{CitySample: SamplePolicy{Size: 1000, Seed: 42}}
}

// Warehouse is the star schema built from one set of cleaned tables.
type Warehouse struct {
	Dates     []DateRow
	Locations []LocationRow
	Facts     []FactRow
	FactStats map[Source]FactStats
}

// BuildWarehouse builds both dimensions, finalizes their key maps and then
// assembles facts for every present source in processing order. The date
// dimension covers every cleaned reading, sampled or not.
func BuildWarehouse(tables map[Source]CleanedTable, opts WarehouseOptions) Warehouse {
	w := Warehouse{
		Dates:     BuildDateDimension(CollectDates(tables)),
		Locations: BuildLocationDimension(tables, LocationOptions{CitySample: opts.CitySample}),
		FactStats: make(map[Source]FactStats, len(tables)),
	}
	dates := NewDateIndex(w.Dates)
	locations := NewLocationIndex(w.Locations)

	for _, src := range Sources() {
		t, ok := tables[src]
		if !ok {
			continue
		}
		input := len(t.Readings)
		if src != SourceGlobal {
			t.Readings = SampleReadings(t.Readings, opts.FactSample)
		}
		facts, stats := BuildFacts(t, dates, locations, FieldMappingFor(src))
		stats.Input = input
		stats.SampledOut = input - len(t.Readings)
		w.Facts = append(w.Facts, facts...)
		w.FactStats[src] = stats
	}
	return w
}

// StoredKeys maps the natural keys already present in a warehouse to their
// surrogate ids.
type StoredKeys struct {
	Dates     map[Date]int
	Locations map[LocationKey]int
}

// Rebase renumbers w against keys already stored. Dates and places that are
// stored keep their stored id and are removed from the dimensions; new ones
// get ids above the stored maximum in build order. Facts follow their
// dimension rows.
func (w Warehouse) Rebase(stored StoredKeys) Warehouse {
	if len(stored.Dates) == 0 && len(stored.Locations) == 0 {
		return w
	}
	out := Warehouse{FactStats: w.FactStats}

	dateIDs := make(map[int]int, len(w.Dates))
	next := maxID(stored.Dates)
	for _, d := range w.Dates {
		if id, ok := stored.Dates[d.FullDate]; ok {
			dateIDs[d.DateID] = id
			continue
		}
		next++
		dateIDs[d.DateID] = next
		d.DateID = next
		out.Dates = append(out.Dates, d)
	}

	locationIDs := make(map[int]int, len(w.Locations))
	next = maxID(stored.Locations)
	for _, l := range w.Locations {
		if id, ok := stored.Locations[l.Key()]; ok {
			locationIDs[l.LocationID] = id
			continue
		}
		next++
		locationIDs[l.LocationID] = next
		l.LocationID = next
		out.Locations = append(out.Locations, l)
	}

	out.Facts = make([]FactRow, len(w.Facts))
	for i, f := range w.Facts {
		f.DateID = dateIDs[f.DateID]
		f.LocationID = locationIDs[f.LocationID]
		out.Facts[i] = f
	}
	return out
}

func maxID[K comparable](ids map[K]int) int {
	m := 0
	for _, id := range ids {
		m = max(m, id)
	}
	return m
}
