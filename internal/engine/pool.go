package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	Path    string
	Args    []string
	Workers int
	Hash    int
	Threads int
}

// Pool hands out idle engines. A nil slot in idle means the engine there
// died or was never started and is (re)started on the next borrow.
type Pool struct {
	cfg  PoolConfig
	log  *zap.Logger
	idle chan *UCIEngine

	mu     sync.Mutex
	live   map[*UCIEngine]struct{}
	closed bool
	name   string
}

func NewPool(ctx context.Context, cfg PoolConfig, log *zap.Logger) (*Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &Pool{
		cfg:  cfg,
		log:  log,
		idle: make(chan *UCIEngine, cfg.Workers),
		live: make(map[*UCIEngine]struct{}),
	}
	// start one engine eagerly so a bad path fails fast.
	first, err := p.start(ctx)
	if err != nil {
		return nil, err
	}
	p.idle <- first
	for i := 1; i < cfg.Workers; i++ {
		p.idle <- nil
	}
	return p, nil
}

// Name of the engine behind the pool, used as cache key component.
func (p *Pool) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *Pool) start(ctx context.Context) (*UCIEngine, error) {
	e := NewUCIEngine(p.cfg.Path, p.cfg.Args)
	if err := e.Start(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := p.configure(ctx, e); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("engine init: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = e.Close()
		return nil, errPoolClosed
	}
	p.live[e] = struct{}{}
	if p.name == "" {
		p.name = e.Name()
	}
	p.log.Debug("engine started", zap.String("name", e.Name()), zap.String("path", p.cfg.Path))
	return e, nil
}

var errPoolClosed = errors.New("engine pool closed")

func (p *Pool) discard(e *UCIEngine) {
	if e == nil {
		return
	}
	p.mu.Lock()
	delete(p.live, e)
	p.mu.Unlock()
	_ = e.Close()
}

// Evaluate analyses fen on an idle engine. An engine that fails is replaced
// and the search retried once on the fresh process.
func (p *Pool) Evaluate(ctx context.Context, fen string, limit Limit) (Info, error) {
	var e *UCIEngine
	select {
	case e = <-p.idle:
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if e == nil {
			var err error
			if e, err = p.start(ctx); err != nil {
				p.idle <- nil
				return Info{}, err
			}
		}
		info, err := e.Analyse(ctx, fen, limit)
		if err == nil {
			p.idle <- e
			return info, nil
		}
		if ctx.Err() != nil {
			if errors.Is(err, ErrExited) || errors.Is(err, errStopTimeout) {
				p.log.Warn("engine not reusable after cancel", zap.String("fen", fen), zap.Error(err))
				p.discard(e)
				e = nil
			}
			// a cleanly stopped engine goes back as is.
			p.idle <- e
			return Info{}, ctx.Err()
		}
		p.log.Warn("engine failed, restarting", zap.String("fen", fen), zap.Error(err))
		p.discard(e)
		e = nil
		lastErr = err
	}
	p.idle <- nil
	return Info{}, fmt.Errorf("analyse %q: %w", fen, lastErr)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	live := make([]*UCIEngine, 0, len(p.live))
	for e := range p.live {
		live = append(live, e)
	}
	p.live = map[*UCIEngine]struct{}{}
	p.mu.Unlock()

	var errs []error
	for _, e := range live {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// configure applies Hash and Threads and resets the engine with ucinewgame.
func (p *Pool) configure(ctx context.Context, e *UCIEngine) error {
	if p.cfg.Hash > 0 {
		if err := e.SetOption("Hash", p.cfg.Hash); err != nil {
			return err
		}
	}
	if p.cfg.Threads > 0 {
		if err := e.SetOption("Threads", p.cfg.Threads); err != nil {
			return err
		}
	}
	return e.NewGame(ctx)
}
