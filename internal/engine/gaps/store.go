package gaps

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// DefaultHistoryLimit is the number of runs ListRuns returns by default.
const DefaultHistoryLimit = 10

// timeLayout sorts lexically in SQLite.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RunStore persists finished run reports.
type RunStore interface {
	SaveRun(ctx context.Context, r RunReport) error
	// ListRuns returns the most recent runs, newest first. channel matches
	// either the requested channel or the resolved channel id; empty lists all.
	ListRuns(ctx context.Context, channel string, limit int) ([]RunReport, error)
	Close() error
}

// OpenRunStore opens PostgreSQL when c.DatabaseURL is set, otherwise the
// SQLite database runs.db under c.DataDir.
func OpenRunStore(ctx context.Context, c engine.Config) (RunStore, error) {
	if c.DatabaseURL != "" {
		return OpenPostgresStore(ctx, c.DatabaseURL)
	}
	return OpenSQLiteStore(filepath.Join(c.DataDir, "runs.db"))
}

// --- SQLite ---

var sqliteSchema = []string{`CREATE TABLE IF NOT EXISTS gap_runs (
	run_id       TEXT PRIMARY KEY,
	channel      TEXT NOT NULL,
	channel_id   TEXT NOT NULL,
	backend      TEXT NOT NULL,
	mode         TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	report       TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS gap_runs_generated_at ON gap_runs (generated_at)`,
}

// SQLiteStore is the default single-file run store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("run store: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("run store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run store: init schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, r RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("run store: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gap_runs (run_id, channel, channel_id, backend, mode, generated_at, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Channel, r.ChannelID, r.Backend, string(r.Mode), r.GeneratedAt.UTC().Format(timeLayout), string(data))
	if err != nil {
		return fmt.Errorf("run store: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, channel string, limit int) ([]RunReport, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM gap_runs
		 WHERE ? = '' OR channel = ? OR channel_id = ?
		 ORDER BY generated_at DESC LIMIT ?`,
		channel, channel, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("run store: query: %w", err)
	}
	defer rows.Close()

	var out []RunReport
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("run store: scan: %w", err)
		}
		r, err := decodeReport([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- PostgreSQL ---

const postgresSchema = `CREATE TABLE IF NOT EXISTS gap_runs (
	run_id       TEXT PRIMARY KEY,
	channel      TEXT NOT NULL,
	channel_id   TEXT NOT NULL,
	backend      TEXT NOT NULL,
	mode         TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	report       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS gap_runs_generated_at ON gap_runs (generated_at DESC)`

// PostgresStore keeps run history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects a pgx pool and creates the schema.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run store: init schema: %w", err)
	}
	slog.Info("run store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, r RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("run store: marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO gap_runs (run_id, channel, channel_id, backend, mode, generated_at, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report`,
		r.RunID, r.Channel, r.ChannelID, r.Backend, string(r.Mode), r.GeneratedAt, data)
	if err != nil {
		return fmt.Errorf("run store: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, channel string, limit int) ([]RunReport, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM gap_runs
		 WHERE $1 = '' OR channel = $1 OR channel_id = $1
		 ORDER BY generated_at DESC LIMIT $2`,
		channel, limit)
	if err != nil {
		return nil, fmt.Errorf("run store: query: %w", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("run store: scan: %w", err)
	}
	out := make([]RunReport, 0, len(raws))
	for _, raw := range raws {
		r, err := decodeReport(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func decodeReport(raw []byte) (RunReport, error) {
	var r RunReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return RunReport{}, fmt.Errorf("run store: decode report: %w", err)
	}
	r.GeneratedAt = r.GeneratedAt.In(time.UTC)
	return r, nil
}
