// Package sqlite loads the star schema into a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Table names.
const (
	TableDate     = "dim_date"
	TableLocation = "dim_location"
	TableFact     = "fact_temperature"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dim_date (
		date_id       INTEGER PRIMARY KEY,
		full_date     TEXT NOT NULL UNIQUE,
		year          INTEGER NOT NULL,
		month         INTEGER NOT NULL,
		month_name    TEXT NOT NULL,
		quarter       INTEGER NOT NULL,
		decade        INTEGER NOT NULL,
		century       INTEGER NOT NULL,
		is_modern_era INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dim_location (
		location_id   INTEGER PRIMARY KEY,
		granularity   TEXT NOT NULL,
		city          TEXT,
		state         TEXT,
		country       TEXT,
		latitude      REAL,
		longitude     REAL,
		latitude_raw  TEXT,
		longitude_raw TEXT,
		hemisphere_ns TEXT,
		hemisphere_ew TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS fact_temperature (
		fact_id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		date_id                     INTEGER NOT NULL REFERENCES dim_date (date_id),
		location_id                 INTEGER NOT NULL REFERENCES dim_location (location_id),
		avg_temperature             REAL,
		avg_temperature_uncertainty REAL,
		land_max_temperature        REAL,
		land_min_temperature        REAL,
		source_file                 TEXT NOT NULL
	)`,
}

const (
	insertDate = `INSERT INTO dim_date
		(date_id, full_date, year, month, month_name, quarter, decade, century, is_modern_era)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertLocation = `INSERT INTO dim_location
		(location_id, granularity, city, state, country, latitude, longitude,
		 latitude_raw, longitude_raw, hemisphere_ns, hemisphere_ew)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertFact = `INSERT INTO fact_temperature
		(date_id, location_id, avg_temperature, avg_temperature_uncertainty,
		 land_max_temperature, land_min_temperature, source_file)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Loader writes the star schema with database/sql.
// It implements pipeline.Loader.
type Loader struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at dsn. Use ":memory:" for a
// throwaway database.
func Open(dsn string, logger *slog.Logger) (*Loader, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Loader{db: db, logger: logger}, nil
}

// Prepare creates the tables. Replace mode drops them first.
func (l *Loader) Prepare(ctx context.Context, mode domain.LoadMode) error {
	err := l.transaction(ctx, func(tx *sql.Tx) error {
		if mode == domain.LoadReplace {
			for _, t := range []string{TableFact, TableLocation, TableDate} {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
					return fmt.Errorf("drop %s: %w", t, err)
				}
			}
		}
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("warehouse prepared", "driver", "sqlite", "mode", string(mode))
	return nil
}

// LoadDates inserts date rows. An id or full_date that is already stored
// fails the batch.
func (l *Loader) LoadDates(ctx context.Context, rows []domain.DateRow) error {
	return l.insert(ctx, TableDate, insertDate, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.DateID, r.FullDate.String(), r.Year, r.Month, r.MonthName,
			r.Quarter, r.Decade, r.Century, r.IsModernEra,
		}
	})
}

// LoadLocations inserts location rows. An id that is already stored fails
// the batch.
func (l *Loader) LoadLocations(ctx context.Context, rows []domain.LocationRow) error {
	return l.insert(ctx, TableLocation, insertLocation, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.LocationID, string(r.Granularity), nullString(r.City), nullString(r.State), nullString(r.Country),
			nullFloat(r.Latitude), nullFloat(r.Longitude), nullString(r.LatitudeRaw), nullString(r.LongitudeRaw),
			nullString(r.HemisphereNS), nullString(r.HemisphereEW),
		}
	})
}

// LoadFacts inserts fact rows in one transaction.
func (l *Loader) LoadFacts(ctx context.Context, rows []domain.FactRow) error {
	return l.insert(ctx, TableFact, insertFact, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.DateID, r.LocationID, nullFloat(r.AvgTemperature), nullFloat(r.AvgTemperatureUncertainty),
			nullFloat(r.LandMaxTemperature), nullFloat(r.LandMinTemperature), r.SourceFile,
		}
	})
}

// StoredKeys reads the natural keys of both dimensions with their ids.
func (l *Loader) StoredKeys(ctx context.Context) (domain.StoredKeys, error) {
	keys := domain.StoredKeys{
		Dates:     map[domain.Date]int{},
		Locations: map[domain.LocationKey]int{},
	}

	rows, err := l.db.QueryContext(ctx, "SELECT date_id, full_date FROM dim_date")
	if err != nil {
		return keys, fmt.Errorf("query stored dates: %w", err)
	}
	for rows.Next() {
		var (
			id   int
			raw  string
			date domain.Date
		)
		if err := rows.Scan(&id, &raw); err != nil {
			_ = rows.Close()
			return keys, fmt.Errorf("scan stored date: %w", err)
		}
		if err := date.UnmarshalText([]byte(raw)); err != nil {
			_ = rows.Close()
			return keys, fmt.Errorf("parse stored date %d: %w", id, err)
		}
		keys.Dates[date] = id
	}
	if err := rows.Close(); err != nil {
		return keys, fmt.Errorf("read stored dates: %w", err)
	}
	if err := rows.Err(); err != nil {
		return keys, fmt.Errorf("read stored dates: %w", err)
	}

	rows, err = l.db.QueryContext(ctx, `SELECT location_id, granularity,
		coalesce(city, ''), coalesce(state, ''), coalesce(country, '') FROM dim_location`)
	if err != nil {
		return keys, fmt.Errorf("query stored locations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id          int
			granularity string
			k           domain.LocationKey
		)
		if err := rows.Scan(&id, &granularity, &k.City, &k.State, &k.Country); err != nil {
			return keys, fmt.Errorf("scan stored location: %w", err)
		}
		k.Granularity = domain.Granularity(granularity)
		keys.Locations[k] = id
	}
	if err := rows.Err(); err != nil {
		return keys, fmt.Errorf("read stored locations: %w", err)
	}
	return keys, nil
}

// Count returns the number of rows in one warehouse table.
func (l *Loader) Count(ctx context.Context, table string) (int64, error) {
	switch table {
	case TableDate, TableLocation, TableFact:
	default:
		return 0, fmt.Errorf("count: unknown table %q", table)
	}
	var n int64
	if err := l.db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CheckReadiness pings the database.
func (l *Loader) CheckReadiness(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *Loader) Close() error {
	return l.db.Close()
}

func (l *Loader) insert(ctx context.Context, table, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	return l.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare insert %s: %w", table, err)
		}
		defer stmt.Close()
		for i := range n {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return fmt.Errorf("insert %s: %w", table, err)
			}
		}
		return nil
	})
}

func (l *Loader) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
