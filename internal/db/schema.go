package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// note: as per SQLites's manual suggestions, we do not use 'AUTOINCREMENT' on
// the 'INTEGER PRIMARY KEY' columns. The default behaviour of such columns is
// nearly identical anyway, with less overhead.
var schema_stmts = []string{
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA foreign_keys=ON;`,
	`CREATE TABLE IF NOT EXISTS evals (
		fen_key TEXT PRIMARY KEY,
		engine TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		movetime_ms INTEGER NOT NULL DEFAULT 0,
		score_cp INTEGER NOT NULL DEFAULT 0,
		mate INTEGER NOT NULL DEFAULT 0,
		is_mate INTEGER NOT NULL DEFAULT 0,
		best_move TEXT NOT NULL DEFAULT '',
		pv TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		source_url TEXT NOT NULL DEFAULT '',
		white TEXT NOT NULL DEFAULT '',
		black TEXT NOT NULL DEFAULT '',
		white_elo TEXT NOT NULL DEFAULT '',
		black_elo TEXT NOT NULL DEFAULT '',
		avg_elo INTEGER NOT NULL DEFAULT 0,
		result TEXT NOT NULL DEFAULT '*',
		engine TEXT NOT NULL DEFAULT '',
		movetime_ms INTEGER NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT 0,
		pgn TEXT NOT NULL DEFAULT '',
		annotated_pgn TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT ''
		CHECK (result IN ('*', '1-0', '0-1', '1/2-1/2'))
	);`,
	`CREATE TABLE IF NOT EXISTS moves (
		analysis_id INTEGER NOT NULL REFERENCES analyses(id) ON UPDATE CASCADE ON DELETE CASCADE,
		ply INTEGER NOT NULL,
		uci TEXT NOT NULL,
		san TEXT NOT NULL,
		fen_before TEXT NOT NULL,
		fen_after TEXT NOT NULL,
		score_before INTEGER NOT NULL DEFAULT 0,
		score_after INTEGER NOT NULL DEFAULT 0,
		loss INTEGER NOT NULL DEFAULT 0,
		quality TEXT NOT NULL,
		best_uci TEXT NOT NULL DEFAULT '',
		best_san TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (analysis_id, ply)
		CHECK (quality IN ('excellent', 'good', 'inaccurate', 'mistake', 'blunder'))
	);`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_evals_engine ON evals(engine);`,
}

type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// keep it predictable; one process owns the file.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, stmt := range schema_stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
