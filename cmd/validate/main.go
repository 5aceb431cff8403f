// Command validate reads a directory of temperature CSV extracts, builds the
// star schema in memory and checks the warehouse invariants phase by phase:
// date dimension, location dimension, fact keys and coordinate consistency.
// It exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data/mock
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data/mock", "directory containing the five source CSV files")
	citySample := flag.Int("city-sample", 1000, "city location sample size (0 disables sampling)")
	seed := flag.Int64("seed", 42, "sampling seed")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := domain.DefaultWarehouseOptions()
	opts.CitySample = domain.SamplePolicy{Size: *citySample, Seed: *seed}
	if code := run(*dataDir, opts); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string, opts domain.WarehouseOptions) int {
	fmt.Println("=== Climate Warehouse Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.DiscardHandler)
	extractor := csvsource.NewExtractor(csvsource.DefaultPaths(dataDir), logger)

	// ── Inventory ──
	for _, src := range domain.Sources() {
		info, err := extractor.Info(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: inspect %s: %v\n", src, err)
			return 1
		}
		if !info.Exists {
			fmt.Printf("  %-11s missing (%s)\n", src, info.Path)
			continue
		}
		fmt.Printf("  %-11s %8d rows %10d bytes  %s\n", src, info.Rows, info.Size, info.Path)
	}
	fmt.Println()

	// ── Build the warehouse ──
	tables, err := extractAll(extractor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	w := domain.BuildWarehouse(tables, opts)

	phases := []*phase{
		validateDateDimension(w.Dates),
		validateLocationDimension(w.Locations),
		validateFactKeys(w),
		validateCoordinates(w.Locations, tables),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d dates, %d locations, %d facts\n", len(w.Dates), len(w.Locations), len(w.Facts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// extractAll reads and cleans every source present on disk.
func extractAll(e *csvsource.Extractor) (map[domain.Source]domain.CleanedTable, error) {
	cleaner := domain.NewCleaner(domain.DefaultCleanOptions())
	tables := make(map[domain.Source]domain.CleanedTable)
	for _, src := range domain.Sources() {
		table := domain.CleanedTable{Source: src}
		err := e.Extract(context.Background(), src, 500000, func(raw domain.RawTable) error {
			table.Append(cleaner.Clean(raw, src))
			return nil
		})
		if errors.Is(err, domain.ErrSourceNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", src, err)
		}
		tables[src] = table
	}
	return tables, nil
}

// ── Phases ──

func validateDateDimension(rows []domain.DateRow) *phase {
	p := &phase{name: "Date dimension"}
	seen := make(map[domain.Date]bool, len(rows))
	for i, r := range rows {
		if r.DateID != i+1 {
			p.errorf("row %d: date_id %d, want %d", i, r.DateID, i+1)
		}
		if r.FullDate.IsZero() {
			p.errorf("date_id %d: null full_date", r.DateID)
			continue
		}
		if seen[r.FullDate] {
			p.errorf("date_id %d: duplicate full_date %s", r.DateID, r.FullDate)
		}
		seen[r.FullDate] = true
		if i > 0 && !rows[i-1].FullDate.Before(r.FullDate) {
			p.errorf("date_id %d: %s not after %s", r.DateID, r.FullDate, rows[i-1].FullDate)
		}
		if want := domain.NewDateRow(r.DateID, r.FullDate); r != want {
			p.errorf("date_id %d: attributes %+v, want %+v", r.DateID, r, want)
		}
		if r.Quarter < 1 || r.Quarter > 4 {
			p.errorf("date_id %d: quarter %d out of range", r.DateID, r.Quarter)
		}
	}
	return p
}

func validateLocationDimension(rows []domain.LocationRow) *phase {
	p := &phase{name: "Location dimension"}
	globals := 0
	seen := make(map[domain.LocationKey]int, len(rows))
	for i, r := range rows {
		if r.LocationID != i+1 {
			p.errorf("row %d: location_id %d, want %d", i, r.LocationID, i+1)
		}
		if prev, ok := seen[r.Key()]; ok {
			p.errorf("location_id %d: duplicates location_id %d (%+v)", r.LocationID, prev, r.Key())
		}
		seen[r.Key()] = r.LocationID

		switch r.Granularity {
		case domain.GranularityGlobal:
			globals++
			if r.City != "" || r.State != "" || r.Country != "" {
				p.errorf("location_id %d: global row carries names", r.LocationID)
			}
		case domain.GranularityCountry:
			if r.Country == "" || r.State != "" || r.City != "" {
				p.errorf("location_id %d: malformed country row %+v", r.LocationID, r.Key())
			}
		case domain.GranularityState:
			if r.State == "" || r.City != "" {
				p.errorf("location_id %d: malformed state row %+v", r.LocationID, r.Key())
			}
		case domain.GranularityCity:
			if r.City == "" || r.State != "" {
				p.errorf("location_id %d: malformed city row %+v", r.LocationID, r.Key())
			}
		default:
			p.errorf("location_id %d: unknown granularity %q", r.LocationID, r.Granularity)
		}
	}
	if len(rows) > 0 && globals != 1 {
		p.errorf("found %d global rows, want exactly 1", globals)
	}
	if len(rows) > 0 && rows[0].Granularity != domain.GranularityGlobal {
		p.errorf("first location is %q, want global", rows[0].Granularity)
	}
	return p
}

func validateFactKeys(w domain.Warehouse) *phase {
	p := &phase{name: "Fact keys"}
	dates := make(map[int]bool, len(w.Dates))
	for _, d := range w.Dates {
		dates[d.DateID] = true
	}
	locations := make(map[int]bool, len(w.Locations))
	for _, l := range w.Locations {
		locations[l.LocationID] = true
	}
	for i, f := range w.Facts {
		if !dates[f.DateID] {
			p.errorf("fact %d: date_id %d not in dim_date", i, f.DateID)
		}
		if !locations[f.LocationID] {
			p.errorf("fact %d: location_id %d not in dim_location", i, f.LocationID)
		}
		if f.SourceFile == "" {
			p.errorf("fact %d: empty source_file", i)
		}
	}
	for _, src := range domain.Sources() {
		s := w.FactStats[src]
		if s.Emitted+s.Dropped() != s.Input {
			p.errorf("%s: emitted %d + dropped %d != input %d", src, s.Emitted, s.Dropped(), s.Input)
		}
	}
	return p
}

// validateCoordinates checks that every city location's raw coordinates
// parse back to its numeric values and that the sign matches the
// hemisphere letter.
func validateCoordinates(rows []domain.LocationRow, tables map[domain.Source]domain.CleanedTable) *phase {
	p := &phase{name: "Coordinate consistency"}
	for _, r := range rows {
		if r.Granularity != domain.GranularityCity || (r.LatitudeRaw == "" && r.LongitudeRaw == "") {
			continue
		}
		checkAxis(p, r.LocationID, r.LatitudeRaw, r.Latitude, r.HemisphereNS, domain.AxisLatitude)
		checkAxis(p, r.LocationID, r.LongitudeRaw, r.Longitude, r.HemisphereEW, domain.AxisLongitude)
		if r.Latitude != nil && r.Longitude != nil && !domain.ValidCoordinates(r.Latitude, r.Longitude) {
			p.errorf("location_id %d: (%v, %v) is not a valid point", r.LocationID, *r.Latitude, *r.Longitude)
		}
	}
	for _, src := range domain.Sources() {
		if n := tables[src].Stats.HemisphereMismatches; n > 0 {
			p.errorf("%s: %d rows where the sign disagrees with the hemisphere", src, n)
		}
	}
	return p
}

func checkAxis(p *phase, id int, raw string, v *float64, hemi string, axis domain.Axis) {
	if raw == "" {
		return
	}
	if v == nil {
		p.errorf("location_id %d: %q did not parse", id, raw)
		return
	}
	if got := domain.Hemisphere(raw, axis); got != hemi {
		p.errorf("location_id %d: hemisphere %q, raw %q implies %q", id, hemi, raw, got)
	}
	back := domain.ParseCoordinate(domain.FormatCoordinate(*v, axis))
	if back == nil || math.Abs(*back-*v) > 1e-9 {
		p.errorf("location_id %d: %v does not round-trip through %q", id, *v, domain.FormatCoordinate(*v, axis))
	}
}
