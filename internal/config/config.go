package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "KIBITZ"

type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`
	GamesDir    string `envconfig:"GAMES_DIR"`
	AnalysesDir string `envconfig:"ANALYSES_DIR"`
	DBPath      string `envconfig:"DB_PATH"`
	Verbose     bool   `envconfig:"VERBOSE"`

	// KIBITZ_CHESS_USERNAME, or plain CHESS_USERNAME as exported by older wrappers.
	Username string `envconfig:"CHESS_USERNAME"`

	// embedded so the section fields keep their flat KIBITZ_* names
	ChessCom
	Engine
	Analysis
}

type ChessCom struct {
	BaseURL   string        `envconfig:"CHESSCOM_URL" default:"https://api.chess.com/pub"`
	UserAgent string        `envconfig:"CHESSCOM_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	Timeout   time.Duration `envconfig:"CHESSCOM_TIMEOUT" default:"15s"`
}

type Engine struct {
	Path     string        `envconfig:"ENGINE_PATH" default:"/usr/games/stockfish"`
	Args     []string      `envconfig:"ENGINE_ARGS"`
	Movetime time.Duration `envconfig:"ENGINE_MOVETIME" default:"1s"`
	Depth    int           `envconfig:"ENGINE_DEPTH"`
	Workers  int           `envconfig:"ENGINE_WORKERS" default:"1"`
	Hash     int           `envconfig:"ENGINE_HASH" default:"128"`
	Threads  int           `envconfig:"ENGINE_THREADS" default:"1"`
}

type Analysis struct {
	ScaleByElo     bool   `envconfig:"SCALE_BY_ELO" default:"true"`
	DefaultElo     int    `envconfig:"DEFAULT_ELO" default:"1000"`
	ThresholdsFile string `envconfig:"THRESHOLDS_FILE"`
	MateScore      int    `envconfig:"MATE_SCORE" default:"10000"`
}

// Load reads the KIBITZ_* environment and fills the paths derived from DataDir.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.GamesDir == "" {
		c.GamesDir = filepath.Join(c.DataDir, "games")
	}
	if c.AnalysesDir == "" {
		c.AnalysesDir = filepath.Join(c.DataDir, "analyses")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "kibitz.sqlite")
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = 1
	}
}

func (c Config) Validate() error {
	if c.Engine.Depth < 0 {
		return fmt.Errorf("engine depth must not be negative")
	}
	if c.Engine.Depth == 0 && c.Engine.Movetime <= 0 {
		return fmt.Errorf("engine needs a depth or a positive movetime")
	}
	if c.Analysis.MateScore <= 0 {
		return fmt.Errorf("mate score must be positive")
	}
	return nil
}
