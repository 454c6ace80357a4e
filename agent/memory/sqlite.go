package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the default on-disk backend.
type SQLiteConfig struct {
	Path      string `envconfig:"PATH" split_words:"true" default:"chat_memory.db"`
	Retention int    `envconfig:"RETENTION" split_words:"true" default:"200"`
}

// SQLiteBackend persists turns in a local SQLite table keyed by
// (session_id, seq).
type SQLiteBackend struct {
	db        *sql.DB
	retention int
}

func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL keeps concurrent readers cheap while appends hold the write lock;
	// busy_timeout makes writers from other sessions queue instead of failing
	// with SQLITE_BUSY. The _pragma form is the modernc driver's syntax.
	dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	backend := &SQLiteBackend{db: db, retention: retention}
	if err := backend.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		customer_ids TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Append(ctx context.Context, sessionID string, turn Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, sessionID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	ids, err := json.Marshal(turn.CustomerIDs)
	if err != nil {
		return fmt.Errorf("marshal customer ids: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, query, response, customer_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, next, turn.Query, turn.Response, string(ids), turn.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id = ? AND seq <= ?`,
		sessionID, next-int64(s.retention))
	if err != nil {
		return fmt.Errorf("trim turns: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteBackend) List(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, query, response, customer_ids, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn      Turn
			rawIDs    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&turn.Seq, &turn.Query, &turn.Response, &rawIDs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		if rawIDs.Valid && rawIDs.String != "" {
			if err := json.Unmarshal([]byte(rawIDs.String), &turn.CustomerIDs); err != nil {
				return nil, fmt.Errorf("unmarshal customer ids: %w", err)
			}
		}
		turn.CreatedAt = time.Unix(createdAt, 0).UTC()
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *SQLiteBackend) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
