package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantaleap/ascent/internal/services"
)

// SQLiteCache is the durable process-local mirror of every assessment this
// installation has seen or created. It serves reads when the remote store is
// unreachable and takes a copy of every write.
type SQLiteCache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS assessments (
	session_id      TEXT PRIMARY KEY,
	team            TEXT NOT NULL,
	submitter_name  TEXT NOT NULL DEFAULT '',
	suggested_stage INTEGER NOT NULL,
	assessed_stage  INTEGER,
	scores          TEXT NOT NULL,
	finalized       INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);
`

func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if path == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error { return c.db.Close() }

// Upsert replaces the row keyed by session ID, or appends it.
func (c *SQLiteCache) Upsert(rec *services.AssessmentRecord) error {
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO assessments
			(session_id, team, submitter_name, suggested_stage, assessed_stage, scores, finalized, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			team = excluded.team,
			submitter_name = excluded.submitter_name,
			suggested_stage = excluded.suggested_stage,
			assessed_stage = excluded.assessed_stage,
			scores = excluded.scores,
			finalized = excluded.finalized,
			created_at = excluded.created_at`,
		rec.SessionID, rec.Team, rec.SubmitterName, rec.SuggestedStage,
		toNullInt(rec.AssessedStage), string(scores), boolToInt64(rec.Finalized),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// List returns every cached record.
func (c *SQLiteCache) List() ([]*services.AssessmentRecord, error) {
	rows, err := c.db.Query(`
		SELECT session_id, team, submitter_name, suggested_stage, assessed_stage, scores, finalized, created_at
		FROM assessments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*services.AssessmentRecord{}
	for rows.Next() {
		var (
			rec       services.AssessmentRecord
			assessed  sql.NullInt64
			scores    string
			finalized int64
			createdAt string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Team, &rec.SubmitterName,
			&rec.SuggestedStage, &assessed, &scores, &finalized, &createdAt); err != nil {
			return nil, err
		}
		if assessed.Valid {
			v := int(assessed.Int64)
			rec.AssessedStage = &v
		}
		if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", rec.SessionID, err)
		}
		rec.Finalized = finalized != 0
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("decode created_at for %s: %w", rec.SessionID, err)
		}
		rec.CreatedAt = ts
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Remove deletes by session ID. Deleting a missing row is a no-op.
func (c *SQLiteCache) Remove(sessionID string) error {
	_, err := c.db.Exec(`DELETE FROM assessments WHERE session_id = ?`, sessionID)
	return err
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
