package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store persists backend definitions — id, host, port, and the raw probe
// spec to rebuild on restart — never health history (spec.md Non-goal:
// "persistence of health history"). Schema-on-init follows
// pkg/database.DB.InitSchema's convention of a single idempotent CREATE
// TABLE IF NOT EXISTS.
type Store struct {
	db *sqlx.DB
}

type backendRow struct {
	ID             string `db:"id"`
	DisplayName    string `db:"display_name"`
	Host           string `db:"host"`
	Port           int    `db:"port"`
	URL            string `db:"url"`
	Request        string `db:"request"`
	TimeoutMillis  int64  `db:"timeout_ms"`
	IntervalMillis int64  `db:"interval_ms"`
	Window         int    `db:"window_size"`
	Threshold      int    `db:"threshold"`
	Initial        int    `db:"initial_good"`
	ExpectedStatus int    `db:"expected_status"`
	CreatedAt      time.Time `db:"created_at"`
}

// NewStore opens (and creates if necessary) a sqlite-backed Store at path.
// Pass ":memory:" for a throwaway store, matching pkg/database.NewDB's
// in-memory special case.
func NewStore(path string) (*Store, error) {
	connStr := path
	if path != ":memory:" {
		connStr += "?_journal_mode=WAL&_sync=NORMAL&_foreign_keys=ON"
	}

	db, err := sqlx.Connect("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("probe: failed to open store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS probe_backends (
		id             TEXT PRIMARY KEY,
		display_name   TEXT NOT NULL,
		host           TEXT NOT NULL,
		port           INTEGER NOT NULL,
		url            TEXT NOT NULL DEFAULT '',
		request        TEXT NOT NULL DEFAULT '',
		timeout_ms     INTEGER NOT NULL DEFAULT 0,
		interval_ms    INTEGER NOT NULL DEFAULT 0,
		window_size    INTEGER NOT NULL DEFAULT 0,
		threshold      INTEGER NOT NULL DEFAULT 0,
		initial_good   INTEGER NOT NULL DEFAULT 0,
		expected_status INTEGER NOT NULL DEFAULT 0,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts backend's definition and the raw spec used to build it.
func (s *Store) Save(ctx context.Context, backend *Backend, raw RawSpec) error {
	initial := 0
	if raw.Initial != nil {
		initial = *raw.Initial
	}
	row := backendRow{
		ID:             backend.ID,
		DisplayName:    backend.DisplayName,
		Host:           backend.Host,
		Port:           backend.Port,
		URL:            raw.URL,
		Request:        raw.Request,
		TimeoutMillis:  raw.Timeout.Milliseconds(),
		IntervalMillis: raw.Interval.Milliseconds(),
		Window:         raw.Window,
		Threshold:      raw.Threshold,
		Initial:        initial,
		ExpectedStatus: raw.ExpectedStatus,
	}

	const stmt = `
	INSERT INTO probe_backends
		(id, display_name, host, port, url, request, timeout_ms, interval_ms, window_size, threshold, initial_good, expected_status)
	VALUES
		(:id, :display_name, :host, :port, :url, :request, :timeout_ms, :interval_ms, :window_size, :threshold, :initial_good, :expected_status)
	ON CONFLICT(id) DO UPDATE SET
		display_name = excluded.display_name,
		host = excluded.host,
		port = excluded.port,
		url = excluded.url,
		request = excluded.request,
		timeout_ms = excluded.timeout_ms,
		interval_ms = excluded.interval_ms,
		window_size = excluded.window_size,
		threshold = excluded.threshold,
		initial_good = excluded.initial_good,
		expected_status = excluded.expected_status;`

	_, err := s.db.NamedExecContext(ctx, stmt, row)
	return err
}

// Delete removes a backend definition by id. Not finding one is not an
// error, unlike Poller.Remove, which reports an unknown backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM probe_backends WHERE id = ?`, id)
	return err
}

// List returns every declared backend, in insertion order.
func (s *Store) List(ctx context.Context) ([]backendRow, error) {
	var rows []backendRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM probe_backends ORDER BY created_at ASC`)
	return rows, err
}

// LoadAll reconstructs (Backend, Spec) pairs for every declared backend, for
// use at startup to repopulate a fresh Poller (spec.md §9: backend
// definitions survive restart even though health history does not).
func (s *Store) LoadAll(ctx context.Context) ([]*Backend, []Spec, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	backends := make([]*Backend, 0, len(rows))
	specs := make([]Spec, 0, len(rows))
	for _, r := range rows {
		initial := r.Initial
		raw := RawSpec{
			URL:            r.URL,
			Request:        r.Request,
			Timeout:        time.Duration(r.TimeoutMillis) * time.Millisecond,
			Interval:       time.Duration(r.IntervalMillis) * time.Millisecond,
			Window:         r.Window,
			Threshold:      r.Threshold,
			Initial:        &initial,
			ExpectedStatus: r.ExpectedStatus,
		}
		spec, err := NewSpec(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("probe: rebuilding spec for %s: %w", r.ID, err)
		}
		backends = append(backends, NewBackend(r.ID, r.DisplayName, r.Host, r.Port))
		specs = append(specs, spec)
	}
	return backends, specs, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
