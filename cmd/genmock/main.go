// Command genmock writes small deterministic CSV fixtures for all five
// temperature sources in the Kaggle column layout. Cleaned through the real
// domain package, the fixtures produce a known warehouse shape that the
// pipeline tests assert against.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -months 12 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
)

var startDate = time.Date(1899, time.July, 1, 0, 0, 0, 0, time.UTC)

type place struct {
	city, state, country string
	lat, lon             float64
	base                 float64 // mean temperature
}

var (
	countries = []place{
		{country: "Brazil", base: 25},
		{country: "Åland", base: 5},
		{country: "Chile", base: 9},
	}
	states = []place{
		{state: "Acre", country: "Brazil", base: 25},
		{state: "Texas", country: "United States", base: 18},
	}
	majorCities = []place{
		{city: "Rio De Janeiro", country: "Brazil", lat: -23.31, lon: -42.82, base: 23},
		{city: "Santiago", country: "Chile", lat: -32.95, lon: -69.89, base: 14},
	}
	cities = []place{
		{city: "Rio De Janeiro", country: "Brazil", lat: -23.31, lon: -42.82, base: 23},
		{city: "Århus", country: "Denmark", lat: 57.05, lon: 10.33, base: 8},
		{city: "Abidjan", country: "Côte D'Ivoire", lat: 5.63, lon: -3.23, base: 27},
	}
)

var headers = map[domain.Source][]string{
	domain.SourceGlobal: {
		"dt", "LandAverageTemperature", "LandAverageTemperatureUncertainty",
		"LandMaxTemperature", "LandMaxTemperatureUncertainty",
		"LandMinTemperature", "LandMinTemperatureUncertainty",
		"LandAndOceanAverageTemperature", "LandAndOceanAverageTemperatureUncertainty",
	},
	domain.SourceCountry:   {"dt", "AverageTemperature", "AverageTemperatureUncertainty", "Country"},
	domain.SourceState:     {"dt", "AverageTemperature", "AverageTemperatureUncertainty", "State", "Country"},
	domain.SourceMajorCity: {"dt", "AverageTemperature", "AverageTemperatureUncertainty", "City", "Country", "Latitude", "Longitude"},
	domain.SourceCity:      {"dt", "AverageTemperature", "AverageTemperatureUncertainty", "City", "Country", "Latitude", "Longitude"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", filepath.Join("data", "mock"), "output directory for the CSV fixtures")
	months := flag.Int("months", 12, "number of monthly readings per place")
	seed := flag.Int64("seed", 42, "random seed for temperature noise")
	flag.Parse()

	if *months < 1 {
		flag.Usage()
		return fmt.Errorf("invalid -months: must be >= 1")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	g := generator{rnd: rand.New(rand.NewSource(*seed)), months: *months} //nolint:gosec // fixture data, not security
	tables := map[domain.Source]domain.RawTable{
		domain.SourceGlobal:    g.global(),
		domain.SourceCountry:   g.rows(domain.SourceCountry, countries),
		domain.SourceState:     g.rows(domain.SourceState, states),
		domain.SourceMajorCity: g.rows(domain.SourceMajorCity, majorCities),
		domain.SourceCity:      g.rows(domain.SourceCity, cities),
	}

	cleaned := make(map[domain.Source]domain.CleanedTable, len(tables))
	for _, src := range domain.Sources() {
		path := filepath.Join(*out, src.FileName())
		if err := writeCSV(path, tables[src]); err != nil {
			return fmt.Errorf("writing %s: %w", src, err)
		}
		log.Printf("%s: %d rows -> %s", src, len(tables[src].Rows), path)
		cleaned[src] = domain.NewCleaner(domain.DefaultCleanOptions()).Clean(tables[src], src)
	}

	printStats(domain.BuildWarehouse(cleaned, domain.DefaultWarehouseOptions()))
	return nil
}

type generator struct {
	rnd    *rand.Rand
	months int
}

// missing reports whether the reading for month m of the i-th place is
// left blank.
func missing(i, m int) bool {
	return (m+i)%7 == 3
}

func (g generator) temperature(base float64, m int) float64 {
	season := 6 * math.Sin(2*math.Pi*float64(m)/12)
	return round3(base + season + g.rnd.NormFloat64())
}

func (g generator) uncertainty() float64 {
	return round3(0.1 + g.rnd.Float64()*2)
}

func (g generator) global() domain.RawTable {
	t := domain.RawTable{Header: headers[domain.SourceGlobal]}
	for m := range g.months {
		dt := startDate.AddDate(0, m, 0).Format("2006-01-02")
		if missing(0, m) {
			t.Rows = append(t.Rows, []string{dt, "", "", "", "", "", "", "", ""})
			continue
		}
		avg := g.temperature(8, m)
		t.Rows = append(t.Rows, []string{
			dt,
			num(avg), num(g.uncertainty()),
			num(avg + 6), num(g.uncertainty()),
			num(avg - 6), num(g.uncertainty()),
			num(avg + 7), num(g.uncertainty()),
		})
	}
	return t
}

func (g generator) rows(src domain.Source, places []place) domain.RawTable {
	t := domain.RawTable{Header: headers[src]}
	for i, p := range places {
		for m := range g.months {
			dt := startDate.AddDate(0, m, 0).Format("2006-01-02")
			avg, unc := "", ""
			if !missing(i, m) {
				avg = num(g.temperature(p.base, m))
				unc = num(g.uncertainty())
			}
			row := []string{dt, avg, unc}
			switch src.Granularity() {
			case domain.GranularityCountry:
				row = append(row, p.country)
			case domain.GranularityState:
				row = append(row, p.state, p.country)
			case domain.GranularityCity:
				row = append(row, p.city, p.country,
					domain.FormatCoordinate(p.lat, domain.AxisLatitude),
					domain.FormatCoordinate(p.lon, domain.AxisLongitude))
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

func writeCSV(path string, t domain.RawTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printStats(w domain.Warehouse) {
	fmt.Printf("\ndim_date:         %d rows\n", len(w.Dates))
	fmt.Printf("dim_location:     %d rows\n", len(w.Locations))
	fmt.Printf("fact_temperature: %d rows\n", len(w.Facts))
	for _, src := range domain.Sources() {
		s := w.FactStats[src]
		fmt.Printf("  %-10s emitted=%d dropped=%d\n", src, s.Emitted, s.Dropped())
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
