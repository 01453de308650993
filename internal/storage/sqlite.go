package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/netpulse/internal/checker"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT    NOT NULL DEFAULT '',
    probe          TEXT    NOT NULL,
    kind           TEXT    NOT NULL CHECK(kind IN ('ping', 'http', 'dns', 'ssl')),
    target         TEXT    NOT NULL,
    successful     INTEGER NOT NULL CHECK(successful IN (0, 1)),
    latency_ms     REAL    NOT NULL,
    error          TEXT    NOT NULL DEFAULT '',
    status_code    INTEGER,
    ip             TEXT,
    days_remaining INTEGER,
    issuer         TEXT,
    checked_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_probe ON results(probe);
CREATE INDEX IF NOT EXISTS idx_results_checked_at ON results(checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_probe_checked ON results(probe, checked_at DESC);
`

// timeLayout is fixed width so checked_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `id, run_id, probe, kind, target, successful, latency_ms, error,
	status_code, ip, days_remaining, issuer, checked_at`

// Record is a stored probe result. Kind-specific fields are zero for other
// kinds.
type Record struct {
	ID            int64
	RunID         string
	Probe         string
	Kind          string
	Target        string
	Successful    bool
	LatencyMs     float64
	Error         string
	StatusCode    int
	IP            string
	DaysRemaining int
	Issuer        string
	CheckedAt     time.Time
}

// Status returns "up" for a successful result and "down" otherwise.
func (r Record) Status() string {
	if r.Successful {
		return "up"
	}
	return "down"
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A second connection to ":memory:" would be a separate empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertResult persists one probe result under runID.
func (d *DB) InsertResult(ctx context.Context, runID, probe string, r checker.Result) error {
	base := r.Base()
	var (
		statusCode sql.NullInt64
		ip         sql.NullString
		days       sql.NullInt64
		issuer     sql.NullString
	)
	switch v := r.(type) {
	case checker.HTTPResult:
		statusCode = sql.NullInt64{Int64: int64(v.StatusCode), Valid: v.StatusCode != 0}
	case checker.DNSResult:
		ip = sql.NullString{String: v.IP, Valid: v.Successful}
	case checker.SSLResult:
		// An expired certificate still reports its days and issuer.
		reached := v.Error == ""
		days = sql.NullInt64{Int64: int64(v.DaysRemaining), Valid: reached}
		issuer = sql.NullString{String: v.Issuer, Valid: reached}
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO results (run_id, probe, kind, target, successful, latency_ms, error,
			status_code, ip, days_remaining, issuer, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		probe,
		string(r.Kind()),
		base.Target,
		base.Successful,
		float64(base.Latency)/float64(time.Millisecond),
		base.Error,
		statusCode,
		ip,
		days,
		issuer,
		base.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting result for %q: %w", probe, err)
	}
	return nil
}

// LatestResult returns the most recent result for the given probe, or nil if none.
func (d *DB) LatestResult(ctx context.Context, probe string) (*Record, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM results WHERE probe = ? ORDER BY checked_at DESC, id DESC LIMIT 1`,
		probe,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest result for %q: %w", probe, err)
	}
	return rec, nil
}

// ProbeHistory returns paginated result history for a probe, newest first,
// plus the total count.
func (d *DB) ProbeHistory(ctx context.Context, probe string, limit, offset int) ([]Record, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE probe = ?`, probe,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting results for %q: %w", probe, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM results WHERE probe = ? ORDER BY checked_at DESC, id DESC LIMIT ? OFFSET ?`,
		probe, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", probe, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// AllLatest returns the most recent result for each probe, ordered by name.
func (d *DB) AllLatest(ctx context.Context) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM results
		WHERE id IN (
			SELECT MAX(id) FROM results GROUP BY probe
		)
		ORDER BY probe
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SuccessPercent returns the percentage of successful results among the
// last N results for a probe.
func (d *DB) SuccessPercent(ctx context.Context, probe string, last int) (float64, error) {
	var total int
	var okCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(successful)
		FROM (
			SELECT successful FROM results WHERE probe = ? ORDER BY checked_at DESC, id DESC LIMIT ?
		)
	`, probe, last).Scan(&total, &okCount)
	if err != nil {
		return 0, fmt.Errorf("calculating success rate for %q: %w", probe, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(okCount.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec        Record
		checkedAt  string
		statusCode sql.NullInt64
		ip         sql.NullString
		days       sql.NullInt64
		issuer     sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Probe, &rec.Kind, &rec.Target, &rec.Successful,
		&rec.LatencyMs, &rec.Error, &statusCode, &ip, &days, &issuer, &checkedAt)
	if err != nil {
		return nil, err
	}
	rec.StatusCode = int(statusCode.Int64)
	rec.IP = ip.String
	rec.DaysRemaining = int(days.Int64)
	rec.Issuer = issuer.String

	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing checked_at %q: %w", checkedAt, err)
		}
	}
	rec.CheckedAt = t
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return recs, nil
}
