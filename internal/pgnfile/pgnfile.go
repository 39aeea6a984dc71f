// Package pgnfile keeps downloaded and annotated games on disk.
package pgnfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/notnil/chess"
)

var (
	ErrNoGames   = errors.New("no PGN file found")
	ErrEmptyGame = errors.New("PGN does not contain a valid game")
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Save writes pgn to dir/game_<id>.pgn.
func Save(dir, gameID, pgn string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create games dir: %w", err)
	}
	id := unsafeName.ReplaceAllString(gameID, "_")
	if id == "" {
		id = time.Now().UTC().Format("20060102_150405")
	}
	path := filepath.Join(dir, "game_"+id+".pgn")
	if err := os.WriteFile(path, []byte(pgn), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Latest returns the most recently modified .pgn file in dir. A missing dir
// is created so the user knows where to drop games.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create games dir: %w", err)
		}
		return "", fmt.Errorf("%w: created %s, put a PGN file there", ErrNoGames, dir)
	}
	if err != nil {
		return "", fmt.Errorf("read games dir: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pgn") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		files = append(files, candidate{path: filepath.Join(dir, e.Name()), mod: info.ModTime()})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoGames, dir)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path > files[j].path
		}
		return files[i].mod.After(files[j].mod)
	})
	return files[0].path, nil
}

func ReadGame(path string) (*chess.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGame(string(data))
}

// ParseGame decodes the first game of a PGN text.
func ParseGame(pgn string) (*chess.Game, error) {
	if strings.TrimSpace(pgn) == "" {
		return nil, ErrEmptyGame
	}
	scanner := chess.NewScanner(strings.NewReader(pgn))
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmptyGame, err)
		}
		return nil, ErrEmptyGame
	}
	game := scanner.Next()
	if game == nil || len(game.Moves()) == 0 {
		return nil, ErrEmptyGame
	}
	return game, nil
}

// WriteAnalysis stores an annotated game as analyzed_game_<timestamp>.pgn.
// An existing file is never overwritten; later analyses within the same
// second get a _2, _3, ... suffix.
func WriteAnalysis(dir string, now time.Time, pgn string) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create analyses dir: %w", err)
	}
	base := "analyzed_game_" + now.Format("20060102_150405")
	var f *os.File
	for n := 1; ; n++ {
		name := base + ".pgn"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.pgn", base, n)
		}
		path = filepath.Join(dir, name)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if _, err := f.WriteString(pgn); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
