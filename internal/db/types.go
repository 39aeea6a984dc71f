package db

import "time"

type Eval struct {
	FENKey     string `db:"fen_key"`
	Engine     string `db:"engine"`
	Depth      int    `db:"depth"`
	MovetimeMS int64  `db:"movetime_ms"`
	ScoreCP    int    `db:"score_cp"`
	Mate       int    `db:"mate"`
	IsMate     bool   `db:"is_mate"`
	BestMove   string `db:"best_move"`
	PV         string `db:"pv"`
	UpdatedAt  string `db:"updated_at"`
}

type Analysis struct {
	ID           int64  `db:"id"`
	CreatedAt    string `db:"created_at"`
	SourceURL    string `db:"source_url"`
	White        string `db:"white"`
	Black        string `db:"black"`
	WhiteElo     string `db:"white_elo"`
	BlackElo     string `db:"black_elo"`
	AvgElo       int    `db:"avg_elo"`
	Result       string `db:"result"`
	Engine       string `db:"engine"`
	MovetimeMS   int64  `db:"movetime_ms"`
	Depth        int    `db:"depth"`
	PGN          string `db:"pgn"`
	AnnotatedPGN string `db:"annotated_pgn"`
	OutputPath   string `db:"output_path"`
}

// AnalysisSummary is a list row; it leaves out the PGN texts.
type AnalysisSummary struct {
	ID        int64  `db:"id"`
	CreatedAt string `db:"created_at"`
	White     string `db:"white"`
	Black     string `db:"black"`
	AvgElo    int    `db:"avg_elo"`
	Result    string `db:"result"`
	Engine    string `db:"engine"`
	Plies     int    `db:"plies"`
	Blunders  int    `db:"blunders"`
}

type Move struct {
	AnalysisID  int64  `db:"analysis_id"`
	Ply         int    `db:"ply"`
	UCI         string `db:"uci"`
	SAN         string `db:"san"`
	FENBefore   string `db:"fen_before"`
	FENAfter    string `db:"fen_after"`
	ScoreBefore int    `db:"score_before"`
	ScoreAfter  int    `db:"score_after"`
	Loss        int    `db:"loss"`
	Quality     string `db:"quality"`
	BestUCI     string `db:"best_uci"`
	BestSAN     string `db:"best_san"`
	Comment     string `db:"comment"`
}

// ParseTime reads the timestamps sqlite writes for created_at and updated_at.
func ParseTime(ts string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05.000Z", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
