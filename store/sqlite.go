package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// fixed width so that timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	scenario     TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	gamma        REAL NOT NULL,
	theta        REAL NOT NULL,
	mode         TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	status       TEXT NOT NULL,
	generations  INTEGER NOT NULL,
	sweeps       INTEGER NOT NULL,
	duration_ns  INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	policy       TEXT NOT NULL,
	run_values   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS runs_fingerprint ON runs(fingerprint);
`

// SQLiteLedger records runs in a sqlite database
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = &SQLiteLedger{}

// OpenSQLite opens (or creates) the ledger at path, ":memory:" keeps it in memory
func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// an in-memory database exists once per connection
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteLedger{db: db}, nil
}

func currentSchemaVersion(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'schema_meta'
	`).Scan(&count)
	if err != nil || count == 0 {
		return 0, err
	}
	var ver int
	err = db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return ver, err
}

func migrate(db *sql.DB) error {
	ver, err := currentSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	if ver == schemaVersion {
		return nil
	}
	if ver > schemaVersion {
		return fmt.Errorf("schema version %d is newer than %d", ver, schemaVersion)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM schema_meta"); err != nil {
		return err
	}
	if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Save(ctx context.Context, r *Run) error {
	policy, err := json.Marshal(r.Policy)
	if err != nil {
		return err
	}
	values, err := json.Marshal(r.Values)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, fingerprint, gamma, theta, mode, seed, status,
			generations, sweeps, duration_ns, created_at, policy, run_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Scenario, r.Fingerprint, r.Gamma, r.Theta, r.Mode, int64(r.Seed), r.Status,
		r.Generations, r.Sweeps, int64(r.Duration), r.CreatedAt.UTC().Format(timeLayout),
		string(policy), string(values))
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

const selectRuns = `
	SELECT id, scenario, fingerprint, gamma, theta, mode, seed, status,
		generations, sweeps, duration_ns, created_at, policy, run_values
	FROM runs`

type scanner interface {
	Scan(...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		seed       int64
		durationNs int64
		createdAt  string
		policy     string
		values     string
	)
	err := row.Scan(&r.ID, &r.Scenario, &r.Fingerprint, &r.Gamma, &r.Theta, &r.Mode, &seed, &r.Status,
		&r.Generations, &r.Sweeps, &durationNs, &createdAt, &policy, &values)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	r.Duration = time.Duration(durationNs)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(policy), &r.Policy); err != nil {
		return nil, fmt.Errorf("run %s policy: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
		return nil, fmt.Errorf("run %s values: %w", r.ID, err)
	}
	return &r, nil
}

func (l *SQLiteLedger) Get(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(l.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (l *SQLiteLedger) List(ctx context.Context, limit int) ([]*Run, error) {
	query := selectRuns + " ORDER BY created_at DESC, id"
	args := make([]interface{}, 0)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
