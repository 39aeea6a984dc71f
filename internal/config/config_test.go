package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KIBITZ_DATA_DIR", "/tmp/kb")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, filepath.Join("/tmp/kb", "games"), cfg.GamesDir)
	assert.Equal(t, filepath.Join("/tmp/kb", "analyses"), cfg.AnalysesDir)
	assert.Equal(t, filepath.Join("/tmp/kb", "kibitz.sqlite"), cfg.DBPath)
	assert.Equal(t, "/usr/games/stockfish", cfg.Engine.Path)
	assert.Equal(t, time.Second, cfg.Engine.Movetime)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.True(t, cfg.Analysis.ScaleByElo)
	assert.Equal(t, 1000, cfg.Analysis.DefaultElo)
	assert.Equal(t, 10000, cfg.Analysis.MateScore)
	assert.Equal(t, "https://api.chess.com/pub", cfg.ChessCom.BaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KIBITZ_ENGINE_PATH", "/opt/sf")
	t.Setenv("KIBITZ_ENGINE_ARGS", "--foo,--bar")
	t.Setenv("KIBITZ_ENGINE_DEPTH", "14")
	t.Setenv("KIBITZ_ENGINE_WORKERS", "0")
	t.Setenv("KIBITZ_GAMES_DIR", "/srv/pgn")
	t.Setenv("KIBITZ_SCALE_BY_ELO", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/sf", cfg.Engine.Path)
	assert.Equal(t, []string{"--foo", "--bar"}, cfg.Engine.Args)
	assert.Equal(t, 14, cfg.Engine.Depth)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.Equal(t, "/srv/pgn", cfg.GamesDir)
	assert.False(t, cfg.Analysis.ScaleByElo)
}

func TestUsernameFallsBackToUnprefixedVar(t *testing.T) {
	t.Setenv("CHESS_USERNAME", "corentin_mrchd")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "corentin_mrchd", cfg.Username)

	t.Setenv("KIBITZ_CHESS_USERNAME", "someone_else")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "someone_else", cfg.Username)
}

func TestValidate(t *testing.T) {
	t.Setenv("KIBITZ_ENGINE_MOVETIME", "0s")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("KIBITZ_ENGINE_DEPTH", "8")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("KIBITZ_ENGINE_DEPTH", "abc")
	_, err = Load()
	require.Error(t, err)
}
