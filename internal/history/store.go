// Package history persists scored triage requests in SQLite.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS triage_requests (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	created_at    TEXT NOT NULL,
	location      TEXT NOT NULL,
	symptoms      TEXT NOT NULL,
	cpu           REAL NOT NULL,
	memory        REAL NOT NULL,
	degraded      INTEGER NOT NULL,
	features_json TEXT NOT NULL,
	wires_json    TEXT NOT NULL,
	score         REAL NOT NULL,
	weighted_sum  REAL NOT NULL,
	tier          TEXT NOT NULL,
	overridden    INTEGER NOT NULL,
	reason        TEXT,
	advice        TEXT,
	advice_error  TEXT
);

CREATE INDEX IF NOT EXISTS triage_requests_tier ON triage_requests(tier);
`

const selectColumns = `id, created_at, location, symptoms, cpu, memory, degraded,
	features_json, wires_json, score, weighted_sum, tier, overridden, reason, advice, advice_error`

// #endregion schema

// #region store-struct
// Store manages triage history in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens (creating if needed) a SQLite database and runs migrations.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region record
// Record inserts e, assigning an ID and timestamp when absent, and returns
// the stored entry.
func (s *Store) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	featJSON, err := json.Marshal(e.Features)
	if err != nil {
		return Entry{}, fmt.Errorf("history: marshal features: %w", err)
	}
	wireJSON, err := json.Marshal(e.Wires)
	if err != nil {
		return Entry{}, fmt.Errorf("history: marshal wires: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO triage_requests (id, created_at, location, symptoms, cpu, memory, degraded,
			features_json, wires_json, score, weighted_sum, tier, overridden, reason, advice, advice_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.Format(time.RFC3339Nano), e.Location, e.Symptoms,
		e.Sample.CPU, e.Sample.Memory, e.Sample.Degraded,
		string(featJSON), string(wireJSON),
		e.Verdict.Score, e.Verdict.WeightedSum, string(e.Verdict.Tier), e.Verdict.Overridden,
		nullIfEmpty(e.Verdict.Reason), nullIfEmpty(e.Advice), nullIfEmpty(e.AdviceErr),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("history: insert: %w", err)
	}
	return e, nil
}

// SetAdvice attaches the advisory outcome to a recorded entry.
func (s *Store) SetAdvice(id, advice, adviceErr string) error {
	res, err := s.db.Exec(
		`UPDATE triage_requests SET advice = ?, advice_error = ? WHERE id = ?`,
		nullIfEmpty(advice), nullIfEmpty(adviceErr), id,
	)
	if err != nil {
		return fmt.Errorf("history: set advice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: set advice: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// #endregion record

// #region read
// Get retrieves one entry by ID.
func (s *Store) Get(id string) (Entry, error) {
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM triage_requests WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM triage_requests ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries per tier.
func (s *Store) Count() (map[urgency.Tier]int, error) {
	rows, err := s.db.Query(`SELECT tier, COUNT(*) FROM triage_requests GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("history: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[urgency.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("history: scan count: %w", err)
		}
		counts[urgency.Tier(tier)] = n
	}
	return counts, rows.Err()
}

// #endregion read

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var createdStr, featJSON, wireJSON, tier string
	var reason, advice, adviceErr sql.NullString

	err := sc.Scan(&e.ID, &createdStr, &e.Location, &e.Symptoms,
		&e.Sample.CPU, &e.Sample.Memory, &e.Sample.Degraded,
		&featJSON, &wireJSON, &e.Verdict.Score, &e.Verdict.WeightedSum, &tier, &e.Verdict.Overridden,
		&reason, &advice, &adviceErr)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	e.Verdict.Tier = urgency.Tier(tier)
	e.Verdict.Reason = reason.String
	e.Advice = advice.String
	e.AdviceErr = adviceErr.String
	if err := json.Unmarshal([]byte(featJSON), &e.Features); err != nil {
		return Entry{}, fmt.Errorf("unmarshal features: %w", err)
	}
	if err := json.Unmarshal([]byte(wireJSON), &e.Wires); err != nil {
		return Entry{}, fmt.Errorf("unmarshal wires: %w", err)
	}
	return e, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
