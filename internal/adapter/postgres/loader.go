// Package postgres loads the star schema into PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Table names inside the warehouse schema.
const (
	TableDate     = "dim_date"
	TableLocation = "dim_location"
	TableFact     = "fact_temperature"
)

var (
	dateColumns = []string{
		"date_id", "full_date", "year", "month", "month_name",
		"quarter", "decade", "century", "is_modern_era",
	}
	locationColumns = []string{
		"location_id", "granularity", "city", "state", "country",
		"latitude", "longitude", "latitude_raw", "longitude_raw",
		"hemisphere_ns", "hemisphere_ew",
	}
	factColumns = []string{
		"date_id", "location_id", "avg_temperature", "avg_temperature_uncertainty",
		"land_max_temperature", "land_min_temperature", "source_file",
	}
)

// Loader writes dimensions and facts into one Postgres schema.
// It implements pipeline.Loader.
type Loader struct {
	pool   *pgxpool.Pool
	schema string
	logger *slog.Logger
}

// Connect opens a connection pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn, schema string, logger *slog.Logger) (*Loader, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return NewLoader(pool, schema, logger), nil
}

// NewLoader wraps an existing pool.
func NewLoader(pool *pgxpool.Pool, schema string, logger *slog.Logger) *Loader {
	return &Loader{pool: pool, schema: schema, logger: logger}
}

// Prepare creates the schema and tables. Replace mode drops the tables
// first.
func (l *Loader) Prepare(ctx context.Context, mode domain.LoadMode) error {
	stmts := createStatements(l.schema)
	if mode == domain.LoadReplace {
		stmts = append(dropStatements(l.schema), stmts...)
	}
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("exec %q: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("warehouse prepared", "schema", l.schema, "mode", string(mode))
	return nil
}

// LoadDates inserts date rows. The batch runs as one implicit transaction,
// so a key that is already stored fails all of it.
func (l *Loader) LoadDates(ctx context.Context, rows []domain.DateRow) error {
	sql := insertStatement(l.table(TableDate), dateColumns)
	b := &pgx.Batch{}
	for i := range rows {
		b.Queue(sql, dateValues(rows[i])...)
	}
	return l.sendBatch(ctx, b)
}

// LoadLocations inserts location rows. A location id that is already
// stored fails the batch.
func (l *Loader) LoadLocations(ctx context.Context, rows []domain.LocationRow) error {
	sql := insertStatement(l.table(TableLocation), locationColumns)
	b := &pgx.Batch{}
	for i := range rows {
		b.Queue(sql, locationValues(rows[i])...)
	}
	return l.sendBatch(ctx, b)
}

// LoadFacts bulk-copies fact rows.
func (l *Loader) LoadFacts(ctx context.Context, rows []domain.FactRow) error {
	if len(rows) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return factValues(rows[i]), nil
	})
	n, err := l.pool.CopyFrom(ctx, pgx.Identifier{l.schema, TableFact}, factColumns, src)
	if err != nil {
		return fmt.Errorf("copy facts: %w", err)
	}
	l.logger.Debug("facts copied", "rows", n)
	return nil
}

// StoredKeys reads the natural keys of both dimensions with their ids.
func (l *Loader) StoredKeys(ctx context.Context) (domain.StoredKeys, error) {
	keys := domain.StoredKeys{
		Dates:     map[domain.Date]int{},
		Locations: map[domain.LocationKey]int{},
	}

	rows, err := l.pool.Query(ctx, "SELECT date_id, full_date FROM "+l.table(TableDate))
	if err != nil {
		return keys, fmt.Errorf("query stored dates: %w", err)
	}
	var (
		id       int
		fullDate time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &fullDate}, func() error {
		keys.Dates[domain.DateOf(fullDate)] = id
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("read stored dates: %w", err)
	}

	rows, err = l.pool.Query(ctx, `SELECT location_id, granularity,
		coalesce(city, ''), coalesce(state, ''), coalesce(country, '') FROM `+l.table(TableLocation))
	if err != nil {
		return keys, fmt.Errorf("query stored locations: %w", err)
	}
	var (
		granularity string
		k           domain.LocationKey
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &granularity, &k.City, &k.State, &k.Country}, func() error {
		k.Granularity = domain.Granularity(granularity)
		keys.Locations[k] = id
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("read stored locations: %w", err)
	}
	return keys, nil
}

// Count returns the number of rows in one warehouse table.
func (l *Loader) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := l.pool.QueryRow(ctx, "SELECT count(*) FROM "+l.table(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CheckReadiness pings the warehouse.
func (l *Loader) CheckReadiness(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

func (l *Loader) Close() {
	l.pool.Close()
}

func (l *Loader) sendBatch(ctx context.Context, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if err := l.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (l *Loader) table(name string) string {
	return pgx.Identifier{l.schema, name}.Sanitize()
}

func createStatements(schema string) []string {
	date := pgx.Identifier{schema, TableDate}.Sanitize()
	location := pgx.Identifier{schema, TableLocation}.Sanitize()
	fact := pgx.Identifier{schema, TableFact}.Sanitize()
	return []string{
		"CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + date + ` (
			date_id       INTEGER PRIMARY KEY,
			full_date     DATE NOT NULL UNIQUE,
			year          INTEGER NOT NULL,
			month         INTEGER NOT NULL,
			month_name    TEXT NOT NULL,
			quarter       INTEGER NOT NULL,
			decade        INTEGER NOT NULL,
			century       INTEGER NOT NULL,
			is_modern_era BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + location + ` (
			location_id   INTEGER PRIMARY KEY,
			granularity   TEXT NOT NULL,
			city          TEXT,
			state         TEXT,
			country       TEXT,
			latitude      DOUBLE PRECISION,
			longitude     DOUBLE PRECISION,
			latitude_raw  TEXT,
			longitude_raw TEXT,
			hemisphere_ns CHAR(1),
			hemisphere_ew CHAR(1)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + fact + ` (
			fact_id                     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			date_id                     INTEGER NOT NULL REFERENCES ` + date + ` (date_id),
			location_id                 INTEGER NOT NULL REFERENCES ` + location + ` (location_id),
			avg_temperature             DOUBLE PRECISION,
			avg_temperature_uncertainty DOUBLE PRECISION,
			land_max_temperature        DOUBLE PRECISION,
			land_min_temperature        DOUBLE PRECISION,
			source_file                 TEXT NOT NULL
		)`,
	}
}

// dropStatements removes the tables in dependency order.
func dropStatements(schema string) []string {
	stmts := make([]string, 0, 3)
	for _, t := range []string{TableFact, TableLocation, TableDate} {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+pgx.Identifier{schema, t}.Sanitize())
	}
	return stmts
}

func insertStatement(table string, columns []string) string {
	params := make([]string, len(columns))
	for i := range params {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(params, ", "))
}

func dateValues(r domain.DateRow) []any {
	return []any{
		r.DateID, r.FullDate.Time(), r.Year, r.Month, r.MonthName,
		r.Quarter, r.Decade, r.Century, r.IsModernEra,
	}
}

func locationValues(r domain.LocationRow) []any {
	return []any{
		r.LocationID, string(r.Granularity), text(r.City), text(r.State), text(r.Country),
		r.Latitude, r.Longitude, text(r.LatitudeRaw), text(r.LongitudeRaw),
		text(r.HemisphereNS), text(r.HemisphereEW),
	}
}

func factValues(r domain.FactRow) []any {
	return []any{
		r.DateID, r.LocationID, r.AvgTemperature, r.AvgTemperatureUncertainty,
		r.LandMaxTemperature, r.LandMinTemperature, r.SourceFile,
	}
}

// text maps an empty string to NULL.
func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
