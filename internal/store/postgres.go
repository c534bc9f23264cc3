package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"energy_forecast/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS measurements (
	building_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	energy DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION,
	PRIMARY KEY (building_id, ts)
)`

const (
	upsertQuery = `INSERT INTO measurements (building_id, ts, energy, temperature) VALUES ($1, $2, $3, $4)
ON CONFLICT (building_id, ts) DO UPDATE SET energy = EXCLUDED.energy, temperature = EXCLUDED.temperature`
	sinceQuery = `SELECT building_id, ts, energy, temperature FROM measurements
WHERE building_id = $1 AND ts >= $2 ORDER BY ts ASC`
	tailQuery = `SELECT building_id, ts, energy, temperature FROM (
SELECT building_id, ts, energy, temperature FROM measurements WHERE building_id = $1 ORDER BY ts DESC LIMIT $2
) t ORDER BY ts ASC`
	countQuery = `SELECT COUNT(*) FROM measurements`
)

type PostgresConfig struct {
	DSN            string
	MaxConnections int
	MaxIdle        int
}

// PostgresStore keeps measurements in a single table with a
// (building_id, ts) primary key.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a connection pool. It does not dial; call Ping or Migrate.
func NewPostgres(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgresFromDB(db), nil
}

func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the measurements table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create measurements table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Upsert writes all measurements in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, ms []model.Measurement) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		var temp sql.NullFloat64
		if m.Temperature != nil {
			temp = sql.NullFloat64{Float64: *m.Temperature, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, m.BuildingID, m.Timestamp.UTC(), m.Energy, temp); err != nil {
			return 0, fmt.Errorf("upsert %s at %s: %w", m.BuildingID, m.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(ms), nil
}

func (s *PostgresStore) Since(ctx context.Context, buildingID string, since time.Time) ([]model.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, sinceQuery, buildingID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return scanMeasurements(rows)
}

func (s *PostgresStore) Tail(ctx context.Context, buildingID string, n int) ([]model.Measurement, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, tailQuery, buildingID, n)
	if err != nil {
		return nil, fmt.Errorf("query history tail: %w", err)
	}
	return scanMeasurements(rows)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count measurements: %w", err)
	}
	return n, nil
}

func scanMeasurements(rows *sql.Rows) ([]model.Measurement, error) {
	defer rows.Close()
	var out []model.Measurement
	for rows.Next() {
		var (
			m    model.Measurement
			temp sql.NullFloat64
		)
		if err := rows.Scan(&m.BuildingID, &m.Timestamp, &m.Energy, &temp); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		if temp.Valid {
			m.Temperature = model.Temp(temp.Float64)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read measurements: %w", err)
	}
	return out, nil
}
