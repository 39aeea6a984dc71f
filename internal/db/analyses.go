package db

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertAnalysis stores an analysis and its moves in one transaction and
// returns the new analysis ID.
func (s *Store) InsertAnalysis(ctx context.Context, a Analysis, moves []Move) (id int64, err error) {
	if a.Result == "" {
		a.Result = "*"
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO analyses (source_url, white, black, white_elo, black_elo, avg_elo, result,
			engine, movetime_ms, depth, pgn, annotated_pgn, output_path)
		VALUES (:source_url, :white, :black, :white_elo, :black_elo, :avg_elo, :result,
			:engine, :movetime_ms, :depth, :pgn, :annotated_pgn, :output_path)
	`, a)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, m := range moves {
		m.AnalysisID = id
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO moves (analysis_id, ply, uci, san, fen_before, fen_after, score_before,
				score_after, loss, quality, best_uci, best_san, comment)
			VALUES (:analysis_id, :ply, :uci, :san, :fen_before, :fen_after, :score_before,
				:score_after, :loss, :quality, :best_uci, :best_san, :comment)
		`, m); err != nil {
			return 0, fmt.Errorf("insert move %d: %w", m.Ply, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) AnalysisByID(ctx context.Context, id int64) (Analysis, error) {
	var a Analysis
	err := s.db.GetContext(ctx, &a, `
		SELECT id, created_at, source_url, white, black, white_elo, black_elo, avg_elo, result,
			engine, movetime_ms, depth, pgn, annotated_pgn, output_path
		FROM analyses
		WHERE id = ?
	`, id)
	return a, err
}

// LatestAnalysis returns sql.ErrNoRows when nothing was analysed yet.
func (s *Store) LatestAnalysis(ctx context.Context) (Analysis, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM analyses ORDER BY id DESC LIMIT 1`); err != nil {
		return Analysis{}, err
	}
	return s.AnalysisByID(ctx, id)
}

func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []AnalysisSummary
	err := s.db.SelectContext(ctx, &out, `
		SELECT a.id, a.created_at, a.white, a.black, a.avg_elo, a.result, a.engine,
			COUNT(m.ply) AS plies,
			COALESCE(SUM(CASE WHEN m.quality = 'blunder' THEN 1 ELSE 0 END), 0) AS blunders
		FROM analyses a
		LEFT JOIN moves m ON m.analysis_id = a.id
		GROUP BY a.id
		ORDER BY a.id DESC
		LIMIT ?
	`, limit)
	return out, err
}

func (s *Store) MovesByAnalysis(ctx context.Context, id int64) ([]Move, error) {
	var out []Move
	err := s.db.SelectContext(ctx, &out, `
		SELECT analysis_id, ply, uci, san, fen_before, fen_after, score_before, score_after,
			loss, quality, best_uci, best_san, comment
		FROM moves
		WHERE analysis_id = ?
		ORDER BY ply ASC
	`, id)
	return out, err
}

// DeleteAnalysis removes an analysis and, through the cascade, its moves.
func (s *Store) DeleteAnalysis(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
