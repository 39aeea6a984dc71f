// Package chesscom reads players' game archives from the public chess.com API.
package chesscom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"kibitz/internal/config"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found on chess.com")
)

type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chess.com: %s returned HTTP %d", e.URL, e.Code)
}

type Player struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

type Game struct {
	URL       string `json:"url"`
	PGN       string `json:"pgn"`
	EndTime   int64  `json:"end_time"`
	TimeClass string `json:"time_class"`
	Rules     string `json:"rules"`
	White     Player `json:"white"`
	Black     Player `json:"black"`
}

// ID is the trailing path segment of the game URL, e.g. 137711514442.
func (g Game) ID() string {
	u := strings.TrimRight(g.URL, "/")
	if u == "" {
		return ""
	}
	return path.Base(u)
}

type monthlyArchive struct {
	Games []Game `json:"games"`
}

type archiveList struct {
	Archives []string `json:"archives"`
}

type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client

	log *zap.Logger
}

func New(cfg config.ChessCom, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		UserAgent: cfg.UserAgent,
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

// Archives lists the monthly archive URLs of a player, oldest first.
func (c *Client) Archives(ctx context.Context, user string) ([]string, error) {
	var out archiveList
	u := fmt.Sprintf("%s/player/%s/games/archives", c.BaseURL, url.PathEscape(strings.ToLower(user)))
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out.Archives, nil
}

func (c *Client) MonthlyGames(ctx context.Context, user string, year, month int) ([]Game, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	u := fmt.Sprintf("%s/player/%s/games/%04d/%02d", c.BaseURL, url.PathEscape(strings.ToLower(user)), year, month)
	return c.gamesAt(ctx, u)
}

// FindGame looks for the game with the given id in each user's archive for
// that month, in order, and returns the first hit that carries a PGN.
func (c *Client) FindGame(ctx context.Context, users []string, year, month int, id string) (Game, error) {
	if len(users) == 0 {
		return Game{}, fmt.Errorf("no username given")
	}
	var lastErr error
	for _, user := range users {
		games, err := c.MonthlyGames(ctx, user, year, month)
		if err != nil {
			c.log.Warn("archive lookup failed", zap.String("user", user), zap.Error(err))
			lastErr = err
			continue
		}
		for _, g := range games {
			if !strings.HasSuffix(g.URL, id) {
				continue
			}
			if strings.TrimSpace(g.PGN) == "" {
				c.log.Warn("game has no PGN", zap.String("url", g.URL))
				break
			}
			return g, nil
		}
		c.log.Info("game not in archive",
			zap.String("user", user), zap.String("game", id),
			zap.Int("year", year), zap.Int("month", month))
	}
	if lastErr != nil && !errors.Is(lastErr, ErrPlayerNotFound) {
		return Game{}, fmt.Errorf("%w: %s (last error: %v)", ErrGameNotFound, id, lastErr)
	}
	return Game{}, fmt.Errorf("%w: %s in %04d-%02d", ErrGameNotFound, id, year, month)
}

// LatestGame returns the most recent game with a PGN, walking back through
// the archives while the newest months are empty.
func (c *Client) LatestGame(ctx context.Context, user string) (Game, error) {
	archives, err := c.Archives(ctx, user)
	if err != nil {
		return Game{}, err
	}
	for i := len(archives) - 1; i >= 0; i-- {
		games, err := c.gamesAt(ctx, archives[i])
		if err != nil {
			return Game{}, err
		}
		for j := len(games) - 1; j >= 0; j-- {
			if strings.TrimSpace(games[j].PGN) != "" {
				return games[j], nil
			}
		}
	}
	return Game{}, fmt.Errorf("%w: %s has no games", ErrGameNotFound, user)
}

func (c *Client) gamesAt(ctx context.Context, u string) ([]Game, error) {
	var out monthlyArchive
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out.Games, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("GET", zap.String("url", u))
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chess.com request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}
