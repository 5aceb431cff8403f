package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestRun_MockDataPasses(t *testing.T) {
	code := run(filepath.Join("..", "..", "data", "mock"), domain.DefaultWarehouseOptions())
	assert.Equal(t, 0, code)
}

func TestRun_EmptyDirectoryPasses(t *testing.T) {
	assert.Equal(t, 0, run(t.TempDir(), domain.DefaultWarehouseOptions()))
}

func TestValidateDateDimension(t *testing.T) {
	good := domain.BuildDateDimension([]domain.Date{
		domain.NewDate(1899, time.December, 1),
		domain.NewDate(1900, time.January, 1),
	})
	assert.True(t, validateDateDimension(good).passed())

	bad := []domain.DateRow{good[1], good[0]}
	p := validateDateDimension(bad)
	assert.False(t, p.passed())
	assert.NotEmpty(t, p.errors)

	tampered := append([]domain.DateRow(nil), good...)
	tampered[1].Century = 19
	assert.False(t, validateDateDimension(tampered).passed())
}

func TestValidateLocationDimension(t *testing.T) {
	good := []domain.LocationRow{
		{LocationID: 1, Granularity: domain.GranularityGlobal},
		{LocationID: 2, Granularity: domain.GranularityCountry, Country: "Chile"},
		{LocationID: 3, Granularity: domain.GranularityCity, City: "Santiago", Country: "Chile"},
	}
	assert.True(t, validateLocationDimension(good).passed())

	dup := append(good, domain.LocationRow{LocationID: 4, Granularity: domain.GranularityCountry, Country: "Chile"})
	assert.False(t, validateLocationDimension(dup).passed())

	twoGlobals := []domain.LocationRow{
		{LocationID: 1, Granularity: domain.GranularityGlobal},
		{LocationID: 2, Granularity: domain.GranularityGlobal, Country: "x"},
	}
	p := validateLocationDimension(twoGlobals)
	assert.Contains(t, p.errors, "found 2 global rows, want exactly 1")
}

func TestValidateFactKeys(t *testing.T) {
	w := domain.Warehouse{
		Dates:     domain.BuildDateDimension([]domain.Date{domain.NewDate(2000, time.January, 1)}),
		Locations: []domain.LocationRow{{LocationID: 1, Granularity: domain.GranularityGlobal}},
		Facts: []domain.FactRow{
			{DateID: 1, LocationID: 1, SourceFile: "global"},
			{DateID: 2, LocationID: 1, SourceFile: "global"},
		},
		FactStats: map[domain.Source]domain.FactStats{
			domain.SourceGlobal: {Input: 2, Emitted: 2},
		},
	}
	p := validateFactKeys(w)
	assert.Equal(t, []string{"fact 1: date_id 2 not in dim_date"}, p.errors)
}

func TestValidateCoordinates(t *testing.T) {
	rows := []domain.LocationRow{
		{
			LocationID: 2, Granularity: domain.GranularityCity, City: "Århus", Country: "Denmark",
			Latitude: ptr(57.05), Longitude: ptr(10.33), LatitudeRaw: "57.05N", LongitudeRaw: "10.33E",
			HemisphereNS: "N", HemisphereEW: "E",
		},
	}
	assert.True(t, validateCoordinates(rows, nil).passed())

	rows[0].HemisphereNS = "S"
	assert.False(t, validateCoordinates(rows, nil).passed())

	mismatched := map[domain.Source]domain.CleanedTable{
		domain.SourceCity: {Stats: domain.CleanStats{HemisphereMismatches: 3}},
	}
	p := validateCoordinates(nil, mismatched)
	assert.Equal(t, []string{"city: 3 rows where the sign disagrees with the hemisphere"}, p.errors)
}
