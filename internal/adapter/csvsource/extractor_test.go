package csvsource

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countryCSV = "dt,AverageTemperature,AverageTemperatureUncertainty,Country\n" +
	"1743-11-01,4.384,2.294,Åland\n" +
	"1743-12-01,,,Åland\n" +
	"1744-01-01,,,Åland\n" +
	"2010-01-01,10.5,0.2,Brazil\n" +
	"2010-02-01,11.5,0.2,\"Bonaire, Saint Eustatius And Saba\"\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func collect(t *testing.T, e *Extractor, src domain.Source, chunkSize int) []domain.RawTable {
	t.Helper()
	var chunks []domain.RawTable
	err := e.Extract(context.Background(), src, chunkSize, func(tbl domain.RawTable) error {
		chunks = append(chunks, tbl)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func TestExtract_Chunks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", countryCSV)
	e := NewExtractor(map[domain.Source]string{domain.SourceCountry: path}, slog.Default())

	chunks := collect(t, e, domain.SourceCountry, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Rows, 2)
	assert.Len(t, chunks[1].Rows, 2)
	assert.Len(t, chunks[2].Rows, 1)
	for _, c := range chunks {
		assert.Equal(t, []string{"dt", "AverageTemperature", "AverageTemperatureUncertainty", "Country"}, c.Header)
	}
	assert.Equal(t, "Bonaire, Saint Eustatius And Saba", chunks[2].Rows[0][3])
	assert.Equal(t, "Åland", chunks[0].Rows[0][3])
}

func TestExtract_SingleChunk(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", countryCSV)
	e := NewExtractor(map[domain.Source]string{domain.SourceCountry: path}, slog.Default())

	chunks := collect(t, e, domain.SourceCountry, 500000)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Rows, 5)
}

func TestExtract_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "global.csv", "\ufeffdt,LandAverageTemperature\n1750-01-01,3.034\n")
	e := NewExtractor(map[domain.Source]string{domain.SourceGlobal: path}, slog.Default())

	chunks := collect(t, e, domain.SourceGlobal, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "dt", chunks[0].Header[0])

	cleaned := domain.NewCleaner(domain.CleanOptions{}).Clean(chunks[0], domain.SourceGlobal)
	assert.Equal(t, domain.NewDate(1750, 1, 1), cleaned.Readings[0].Date)
}

func TestExtract_RaggedRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", "dt,AverageTemperature,Country\n2000-01-01,1.0\n2000-02-01,2.0,Chile,extra\n")
	e := NewExtractor(map[domain.Source]string{domain.SourceCountry: path}, slog.Default())

	chunks := collect(t, e, domain.SourceCountry, 10)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Rows[0], 2)
	assert.Len(t, chunks[0].Rows[1], 4)
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor(DefaultPaths(t.TempDir()), slog.Default())
	err := e.Extract(context.Background(), domain.SourceCity, 10, func(domain.RawTable) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceNotFound))
}

func TestExtract_UnconfiguredSource(t *testing.T) {
	e := NewExtractor(map[domain.Source]string{}, slog.Default())
	err := e.Extract(context.Background(), domain.SourceState, 10, func(domain.RawTable) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestExtract_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "state.csv", "")
	e := NewExtractor(map[domain.Source]string{domain.SourceState: path}, slog.Default())
	assert.Empty(t, collect(t, e, domain.SourceState, 10))
}

func TestExtract_CallbackErrorStops(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", countryCSV)
	e := NewExtractor(map[domain.Source]string{domain.SourceCountry: path}, slog.Default())

	boom := errors.New("boom")
	calls := 0
	err := e.Extract(context.Background(), domain.SourceCountry, 1, func(domain.RawTable) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestExtract_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", countryCSV)
	e := NewExtractor(map[domain.Source]string{domain.SourceCountry: path}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Extract(ctx, domain.SourceCountry, 1, func(domain.RawTable) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths("/data")
	assert.Len(t, paths, 5)
	assert.Equal(t, filepath.Join("/data", "GlobalLandTemperaturesByMajorCity.csv"), paths[domain.SourceMajorCity])
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "country.csv", "\ufeff"+countryCSV)
	e := NewExtractor(map[domain.Source]string{
		domain.SourceCountry: path,
		domain.SourceCity:    filepath.Join(dir, "missing.csv"),
	}, slog.Default())

	info, err := e.Info(domain.SourceCountry)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, 5, info.Rows)
	assert.Equal(t, int64(len(countryCSV)+3), info.Size)
	assert.Equal(t, "dt", info.Columns[0])
	assert.Len(t, info.Columns, 4)

	missing, err := e.Info(domain.SourceCity)
	require.NoError(t, err)
	assert.False(t, missing.Exists)
	assert.Zero(t, missing.Rows)

	none, err := e.Info(domain.SourceGlobal)
	require.NoError(t, err)
	assert.False(t, none.Exists)
}
