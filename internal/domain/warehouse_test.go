package domain

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanAll(t *testing.T, raw map[string]RawTable) map[Source]CleanedTable {
	t.Helper()
	out := make(map[Source]CleanedTable, len(raw))
	for name, table := range raw {
		cleaned, err := Clean(table, name)
		require.NoError(t, err)
		out[cleaned.Source] = cleaned
	}
	return out
}

func TestBuildWarehouse_GlobalAndBrazil(t *testing.T) {
	tables := cleanAll(t, map[string]RawTable{
		"global": {
			Header: []string{"dt", "LandAverageTemperature", "LandAverageTemperatureUncertainty"},
			Rows:   [][]string{{"2010-01-01", "3.5", "0.05"}},
		},
		"country": {
			Header: []string{"dt", "AverageTemperature", "AverageTemperatureUncertainty", "Country"},
			Rows:   [][]string{{"2010-01-01", "10.5", "0.2", "Brazil"}},
		},
	})

	w := BuildWarehouse(tables, DefaultWarehouseOptions())

	require.Len(t, w.Dates, 1)
	assert.Equal(t, NewDate(2010, 1, 1), w.Dates[0].FullDate)
	dateID := w.Dates[0].DateID

	require.Len(t, w.Facts, 2)
	globalID, ok := NewLocationIndex(w.Locations).Lookup(GlobalPlace{})
	require.True(t, ok)
	brazilID, ok := NewLocationIndex(w.Locations).Lookup(CountryPlace{Country: "Brazil"})
	require.True(t, ok)
	assert.NotEqual(t, globalID, brazilID)

	byLocation := map[int]FactRow{}
	for _, f := range w.Facts {
		assert.Equal(t, dateID, f.DateID)
		byLocation[f.LocationID] = f
	}
	require.Len(t, byLocation, 2)
	assert.InDelta(t, 3.5, *byLocation[globalID].AvgTemperature, 1e-9)
	assert.InDelta(t, 10.5, *byLocation[brazilID].AvgTemperature, 1e-9)

	assert.Equal(t, FactStats{Input: 1, Emitted: 1}, w.FactStats[SourceGlobal])
	assert.Equal(t, FactStats{Input: 1, Emitted: 1}, w.FactStats[SourceCountry])
	_, ok = w.FactStats[SourceCity]
	assert.False(t, ok, "absent sources have no stats")
}

func TestBuildWarehouse_NoSources(t *testing.T) {
	w := BuildWarehouse(nil, DefaultWarehouseOptions())
	assert.Empty(t, w.Dates)
	assert.Empty(t, w.Facts)
	require.Len(t, w.Locations, 1)
	assert.Equal(t, GranularityGlobal, w.Locations[0].Granularity)
}

func TestBuildWarehouse_DroppedDateRow(t *testing.T) {
	tables := cleanAll(t, map[string]RawTable{
		"country": {
			Header: []string{"dt", "AverageTemperature", "Country"},
			Rows: [][]string{
				{"2010-01-01", "10.5", "Brazil"},
				{"", "9.0", "Brazil"},
			},
		},
	})

	w := BuildWarehouse(tables, DefaultWarehouseOptions())
	assert.Len(t, w.Facts, 1)
	stats := w.FactStats[SourceCountry]
	assert.Equal(t, 2, stats.Input)
	assert.Equal(t, 1, stats.MissingDate)
	assert.Equal(t, 1, stats.Dropped())
}

func TestBuildWarehouse_FactSampleSparesGlobal(t *testing.T) {
	var global, country [][]string
	for i := 0; i < 30; i++ {
		dt := fmt.Sprintf("%d-01-01", 1900+i)
		global = append(global, []string{dt, "1.0"})
		country = append(country, []string{dt, "2.0", "Chile"})
	}
	tables := cleanAll(t, map[string]RawTable{
		"global":  {Header: []string{"dt", "LandAverageTemperature"}, Rows: global},
		"country": {Header: []string{"dt", "AverageTemperature", "Country"}, Rows: country},
	})
	opts := WarehouseOptions{FactSample: SamplePolicy{Size: 5, Seed: 42}}

	w := BuildWarehouse(tables, opts)
	assert.Len(t, w.Dates, 30, "dates come from every reading, sampled or not")
	assert.Equal(t, FactStats{Input: 30, Emitted: 30}, w.FactStats[SourceGlobal])
	assert.Equal(t, FactStats{Input: 30, SampledOut: 25, Emitted: 5}, w.FactStats[SourceCountry])
	assert.Len(t, w.Facts, 35)

	again := BuildWarehouse(tables, opts)
	assert.Equal(t, w.Facts, again.Facts)
}

func TestBuildWarehouse_UnsampledCityFactsDrop(t *testing.T) {
	var rows [][]string
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{"2000-01-01", "5.0", fmt.Sprintf("Town%d", i), "Chile", "33.45S", "70.66W"})
	}
	tables := cleanAll(t, map[string]RawTable{
		"city": {Header: []string{"dt", "AverageTemperature", "City", "Country", "Latitude", "Longitude"}, Rows: rows},
	})

	w := BuildWarehouse(tables, WarehouseOptions{CitySample: SamplePolicy{Size: 3, Seed: 42}})
	assert.Len(t, w.Locations, 4)
	assert.Len(t, w.Facts, 3)
	assert.Equal(t, 7, w.FactStats[SourceCity].MissingLocation)
}

func TestParseLoadMode(t *testing.T) {
	m, err := ParseLoadMode("")
	require.NoError(t, err)
	assert.Equal(t, LoadAppend, m)
	m, err = ParseLoadMode("Replace")
	require.NoError(t, err)
	assert.Equal(t, LoadReplace, m)
	_, err = ParseLoadMode("upsert")
	assert.Error(t, err)
}

func TestWarehouse_Rebase(t *testing.T) {
	tables := cleanAll(t, map[string]RawTable{
		"country": {
			Header: []string{"dt", "AverageTemperature", "Country"},
			Rows: [][]string{
				{"2009-12-01", "2", "Brazil"},
				{"2010-01-01", "1", "Brazil"},
				{"2010-01-01", "3", "Chile"},
			},
		},
	})
	w := BuildWarehouse(tables, DefaultWarehouseOptions())

	t.Run("no stored keys leaves ids alone", func(t *testing.T) {
		assert.Empty(t, cmp.Diff(w, w.Rebase(StoredKeys{})))
	})

	t.Run("stored keys keep their ids", func(t *testing.T) {
		stored := StoredKeys{
			Dates: map[Date]int{NewDate(2010, 1, 1): 1},
			Locations: map[LocationKey]int{
				{Granularity: GranularityGlobal}:                     1,
				{Granularity: GranularityCountry, Country: "Brazil"}: 5,
			},
		}
		got := w.Rebase(stored)

		require.Len(t, got.Dates, 1)
		assert.Equal(t, NewDate(2009, 12, 1), got.Dates[0].FullDate)
		assert.Equal(t, 2, got.Dates[0].DateID)

		require.Len(t, got.Locations, 1)
		assert.Equal(t, "Chile", got.Locations[0].Country)
		assert.Equal(t, 6, got.Locations[0].LocationID)

		type key struct{ date, location int }
		temps := map[key]float64{}
		for _, f := range got.Facts {
			temps[key{f.DateID, f.LocationID}] = *f.AvgTemperature
		}
		assert.Equal(t, map[key]float64{
			{2, 5}: 2,
			{1, 5}: 1,
			{1, 6}: 3,
		}, temps)
		assert.Equal(t, w.FactStats, got.FactStats)
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		before := BuildWarehouse(tables, DefaultWarehouseOptions())
		w.Rebase(StoredKeys{Dates: map[Date]int{NewDate(2010, 1, 1): 9}})
		assert.Empty(t, cmp.Diff(before, w))
	})
}
