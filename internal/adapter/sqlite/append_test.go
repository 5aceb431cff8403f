package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/couchcryptid/climate-warehouse-etl/internal/observability"
	"github.com/couchcryptid/climate-warehouse-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countryRows [][]string

func (c countryRows) Extract(_ context.Context, src domain.Source, _ int, fn func(domain.RawTable) error) error {
	if src != domain.SourceCountry {
		return fmt.Errorf("%s: %w", src, domain.ErrSourceNotFound)
	}
	return fn(domain.RawTable{
		Header: []string{"dt", "AverageTemperature", "Country"},
		Rows:   c,
	})
}

func runAppend(t *testing.T, l *Loader, rows countryRows) {
	t.Helper()
	p := pipeline.New(rows, l, slog.Default(), observability.NewMetricsForTesting(), pipeline.DefaultOptions())
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Complete())
}

func TestAppendRuns_DifferentDates(t *testing.T) {
	l := openTest(t)

	runAppend(t, l, countryRows{{"2010-01-01", "1", "Brazil"}})
	runAppend(t, l, countryRows{
		{"2009-12-01", "2", "Brazil"},
		{"2010-01-01", "3", "Chile"},
	})

	rows, err := l.db.Query(`SELECT d.full_date, loc.country, f.avg_temperature
		FROM fact_temperature f
		JOIN dim_date d ON d.date_id = f.date_id
		JOIN dim_location loc ON loc.location_id = f.location_id
		ORDER BY f.avg_temperature`)
	require.NoError(t, err)
	defer rows.Close()

	type fact struct {
		date    string
		country string
		temp    float64
	}
	var got []fact
	for rows.Next() {
		var f fact
		require.NoError(t, rows.Scan(&f.date, &f.country, &f.temp))
		got = append(got, f)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []fact{
		{"2010-01-01", "Brazil", 1},
		{"2009-12-01", "Brazil", 2},
		{"2010-01-01", "Chile", 3},
	}, got)
	assert.Equal(t, [3]int64{2, 3, 3}, counts(t, l), "global, Brazil and Chile")
}

func TestAppendRuns_SameInputTwice(t *testing.T) {
	l := openTest(t)
	input := countryRows{{"2010-01-01", "1", "Brazil"}, {"2010-02-01", "2", "Brazil"}}

	runAppend(t, l, input)
	first, err := l.StoredKeys(context.Background())
	require.NoError(t, err)
	runAppend(t, l, input)
	second, err := l.StoredKeys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, [3]int64{2, 2, 4}, counts(t, l))
}
