package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotStarted = errors.New("engine not started")
	ErrExited     = errors.New("engine process exited")

	errReadTimeout = errors.New("timeout")
)

type UCIEngine struct {
	path string
	args []string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	errMu   sync.Mutex
	readErr error

	name string

	closeOnce sync.Once
	closeErr  error
}

func NewUCIEngine(path string, args []string) *UCIEngine {
	return &UCIEngine{path: path, args: args}
}

// Name is the "id name" the engine reported during the handshake.
func (e *UCIEngine) Name() string {
	if e.name == "" {
		return binaryName(e.path)
	}
	return e.name
}

func (e *UCIEngine) Start(ctx context.Context) error {
	// the process outlives the ctx of Start; Close ends it.
	e.cmd = exec.Command(e.path, e.args...)
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return err
	}
	e.stdin = stdin
	e.lines = make(chan string, 256)

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.path, err)
	}
	go e.readLoop(stdout)

	if err := e.Send("uci"); err != nil {
		return err
	}
	for {
		line, err := e.readLineTimeout(ctx, 5*time.Second)
		if err != nil {
			return fmt.Errorf("uci handshake: %w", err)
		}
		if strings.HasPrefix(line, "id name ") {
			e.name = strings.TrimSpace(strings.TrimPrefix(line, "id name "))
		}
		if strings.HasPrefix(line, "uciok") {
			return nil
		}
	}
}

func (e *UCIEngine) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		e.lines <- strings.TrimSpace(sc.Text())
	}
	e.errMu.Lock()
	if err := sc.Err(); err != nil {
		e.readErr = err
	} else {
		e.readErr = ErrExited
	}
	e.errMu.Unlock()
	close(e.lines)
}

func (e *UCIEngine) exitErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.readErr == nil {
		return ErrExited
	}
	return e.readErr
}

func (e *UCIEngine) Close() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		if e.stdin != nil {
			_ = e.Send("quit")
			_ = e.stdin.Close()
		}

		// stdout has to be read to EOF before Wait.
		drained := make(chan struct{})
		go func() {
			for range e.lines {
			}
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(2 * time.Second):
			_ = e.cmd.Process.Kill()
			<-drained
		}
		e.closeErr = e.cmd.Wait()
	})
	return e.closeErr
}

func (e *UCIEngine) Send(line string) error {
	if e.stdin == nil {
		return ErrNotStarted
	}
	_, err := io.WriteString(e.stdin, line+"\n")
	return err
}

// ReadLine blocks until the engine prints a line or exits.
func (e *UCIEngine) ReadLine() (string, error) {
	if e.lines == nil {
		return "", ErrNotStarted
	}
	line, ok := <-e.lines
	if !ok {
		return "", e.exitErr()
	}
	return line, nil
}

func (e *UCIEngine) readLineTimeout(ctx context.Context, timeout time.Duration) (string, error) {
	if e.lines == nil {
		return "", ErrNotStarted
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
		return "", fmt.Errorf("%w after %s", errReadTimeout, timeout)
	case line, ok := <-e.lines:
		if !ok {
			return "", e.exitErr()
		}
		return line, nil
	}
}

func (e *UCIEngine) ReadUntilPrefix(ctx context.Context, prefix string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return "", fmt.Errorf("timeout waiting for %q", prefix)
		}
		line, err := e.readLineTimeout(ctx, left)
		if err != nil {
			return "", fmt.Errorf("waiting for %q: %w", prefix, err)
		}
		if strings.HasPrefix(line, prefix) {
			return line, nil
		}
	}
}

func (e *UCIEngine) IsReady(ctx context.Context) error {
	if err := e.Send("isready"); err != nil {
		return err
	}
	_, err := e.ReadUntilPrefix(ctx, "readyok", 5*time.Second)
	return err
}

func (e *UCIEngine) NewGame(ctx context.Context) error {
	if err := e.Send("ucinewgame"); err != nil {
		return err
	}
	return e.IsReady(ctx)
}

func (e *UCIEngine) SetOption(name string, value any) error {
	return e.Send(fmt.Sprintf("setoption name %s value %v", name, value))
}

func binaryName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == "/" || base == "" {
		return "engine"
	}
	return base
}
