package postgres

import (
	"testing"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestInsertStatement(t *testing.T) {
	got := insertStatement(`"climate"."dim_date"`, []string{"date_id", "full_date"})
	assert.Equal(t,
		`INSERT INTO "climate"."dim_date" (date_id, full_date) VALUES ($1, $2)`,
		got)
}

func TestCreateStatements(t *testing.T) {
	stmts := createStatements("climate")
	require.Len(t, stmts, 4)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "climate"`, stmts[0])
	assert.Contains(t, stmts[1], `"climate"."dim_date"`)
	assert.Contains(t, stmts[2], `"climate"."dim_location"`)
	assert.Contains(t, stmts[3], `"climate"."fact_temperature"`)
	assert.Contains(t, stmts[3], `REFERENCES "climate"."dim_date" (date_id)`)
}

func TestCreateStatements_QuotesSchema(t *testing.T) {
	stmts := createStatements(`we"ird`)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "we""ird"`, stmts[0])
}

func TestDropStatements_FactFirst(t *testing.T) {
	stmts := dropStatements("climate")
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "climate"."fact_temperature"`,
		`DROP TABLE IF EXISTS "climate"."dim_location"`,
		`DROP TABLE IF EXISTS "climate"."dim_date"`,
	}, stmts)
}

func TestDateValues(t *testing.T) {
	row := domain.NewDateRow(4, domain.NewDate(2013, time.August, 1))
	vals := dateValues(row)
	require.Len(t, vals, len(dateColumns))
	assert.Equal(t, 4, vals[0])
	assert.Equal(t, time.Date(2013, time.August, 1, 0, 0, 0, 0, time.UTC), vals[1])
	assert.Equal(t, "August", vals[4])
	assert.Equal(t, 21, vals[7])
	assert.Equal(t, true, vals[8])
}

func TestLocationValues_NullsEmptyText(t *testing.T) {
	row := domain.LocationRow{LocationID: 2, Granularity: domain.GranularityCountry, Country: "Brazil"}
	vals := locationValues(row)
	require.Len(t, vals, len(locationColumns))
	assert.Equal(t, "country", vals[1])
	assert.Equal(t, pgtype.Text{}, vals[2])
	assert.Equal(t, pgtype.Text{String: "Brazil", Valid: true}, vals[4])
	assert.Nil(t, vals[5].(*float64))
}

func TestFactValues(t *testing.T) {
	row := domain.FactRow{DateID: 1, LocationID: 2, AvgTemperature: ptr(3.5), SourceFile: "country"}
	vals := factValues(row)
	require.Len(t, vals, len(factColumns))
	assert.Equal(t, 3.5, *vals[2].(*float64))
	assert.Equal(t, "country", vals[6])
}
