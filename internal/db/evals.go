package db

import "context"

// find an evaluation by its position key
func (s *Store) EvalByKey(ctx context.Context, key string) (Eval, error) {
	var e Eval
	err := s.db.GetContext(ctx, &e, `
		SELECT fen_key, engine, depth, movetime_ms, score_cp, mate, is_mate, best_move, pv, updated_at
		FROM evals
		WHERE fen_key = ?
	`, key)
	return e, err
}

// insert or update an evaluation
func (s *Store) UpsertEval(ctx context.Context, e Eval) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO evals (fen_key, engine, depth, movetime_ms, score_cp, mate, is_mate, best_move, pv)
		VALUES (:fen_key, :engine, :depth, :movetime_ms, :score_cp, :mate, :is_mate, :best_move, :pv)
		ON CONFLICT(fen_key) DO UPDATE SET
			engine = excluded.engine,
			depth = excluded.depth,
			movetime_ms = excluded.movetime_ms,
			score_cp = excluded.score_cp,
			mate = excluded.mate,
			is_mate = excluded.is_mate,
			best_move = excluded.best_move,
			pv = excluded.pv,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	`, e)
	return err
}

func (s *Store) CountEvals(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM evals`)
	return n, err
}
