// Package bridge runs the main loop tying the local terminal, the hook
// interceptor, and the wrapped shell together: terminal keys go through
// interception and encoding into the PTY, PTY output goes verbatim back to
// the terminal.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/user/chatshell/internal/hook"
	"github.com/user/chatshell/internal/key"
	"github.com/user/chatshell/internal/pty"
	"github.com/user/chatshell/internal/term"
)

// State tracks loop progress through its lifecycle.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Surface is the local terminal the user types on. *term.Terminal is the
// production implementation.
type Surface interface {
	EnterRawMode() error
	LeaveRawMode() error
	Size() (cols, rows int, err error)
	PollEvent(timeout time.Duration) bool
	ReadEvent() (term.Event, bool)
	Write(p []byte) (int, error)
	Err() error
}

// Shell is the wrapped process behind the PTY. *pty.Session is the
// production implementation.
type Shell interface {
	Output() <-chan []byte
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	Alive() bool
	Teardown() error
}

// Interceptor resolves consume-versus-pass for each key event.
type Interceptor interface {
	Process(ev key.Event) hook.Result
}

// Observer receives a copy of everything the terminal shows. Optional.
type Observer interface {
	Output(p []byte)
	Resize(cols, rows uint16)
}

const defaultPollTimeout = 50 * time.Millisecond

type Bridge struct {
	term    Surface
	shell   Shell
	hooks   Interceptor
	mirror  Observer
	logger  *slog.Logger
	running atomic.Bool
	state   atomic.Int32

	pollTimeout time.Duration
}

type Options struct {
	// Mirror receives output copies; nil disables mirroring.
	Mirror Observer
	// PollTimeout bounds one terminal poll. Zero means the default.
	PollTimeout time.Duration
	Logger      *slog.Logger
}

func New(surface Surface, shell Shell, hooks Interceptor, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Bridge{
		term:        surface,
		shell:       shell,
		hooks:       hooks,
		mirror:      opts.Mirror,
		logger:      logger,
		pollTimeout: pollTimeout,
	}
}

// CurrentState reports the loop's lifecycle state.
func (b *Bridge) CurrentState() State {
	return State(b.state.Load())
}

// Run drives the loop until the shell exits, a shutdown signal arrives, or
// an I/O failure occurs. Teardown runs on every exit path; only I/O
// failures are returned.
func (b *Bridge) Run(ctx context.Context) error {
	b.running.Store(true)
	b.state.Store(int32(StateRunning))

	// The signal watcher only flips the shared flag; the loop notices on
	// its next tick.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case sig := <-sigCh:
			if b.running.CompareAndSwap(true, false) {
				b.logger.Info("shutdown signal received", "signal", sig)
			}
		case <-ctx.Done():
			b.running.Store(false)
		}
	}()

	// Seed the child with the terminal's current dimensions before any
	// keys can reach it.
	if cols, rows, err := b.term.Size(); err == nil {
		b.applyResize(cols, rows)
	}

	ioErr := b.loop(ctx)

	b.state.Store(int32(StateDraining))
	b.drainRemaining()
	if err := b.shell.Teardown(); err != nil {
		b.logger.Warn("shell teardown failed", "error", err)
	}
	if err := b.term.LeaveRawMode(); err != nil {
		b.logger.Warn("terminal restore failed", "error", err)
	}
	b.state.Store(int32(StateTerminated))

	return ioErr
}

func (b *Bridge) loop(ctx context.Context) error {
	for b.running.Load() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := b.term.Err(); err != nil {
			return fmt.Errorf("terminal input failed: %w", err)
		}

		if b.term.PollEvent(b.pollTimeout) {
			ev, ok := b.term.ReadEvent()
			if ok {
				if err := b.handleEvent(ev); err != nil {
					return err
				}
			}
		}

		if eof, err := b.forwardOutput(); err != nil {
			return err
		} else if eof {
			return nil
		}

		if !b.shell.Alive() {
			// Exited; whatever output is still buffered is flushed by
			// the drain phase.
			return nil
		}
	}
	return nil
}

func (b *Bridge) handleEvent(ev term.Event) error {
	switch ev.Type {
	case term.EventResize:
		// Never intercepted, never deferred behind key handling.
		b.applyResize(ev.Cols, ev.Rows)
	case term.EventKey:
		// Action failures are already reported where they happen, inside
		// the registry scan.
		res := b.hooks.Process(ev.Key)
		if res.Consumed {
			return nil
		}
		encoded := key.Encode(ev.Key)
		if len(encoded) == 0 {
			return nil
		}
		if _, err := b.shell.Write(encoded); err != nil {
			if errors.Is(err, pty.ErrClosed) {
				return nil
			}
			return fmt.Errorf("shell write failed: %w", err)
		}
	}
	return nil
}

func (b *Bridge) applyResize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	if err := b.shell.Resize(uint16(cols), uint16(rows)); err != nil && !errors.Is(err, pty.ErrClosed) {
		b.logger.Warn("resize failed", "cols", cols, "rows", rows, "error", err)
	}
	if b.mirror != nil {
		b.mirror.Resize(uint16(cols), uint16(rows))
	}
}

// forwardOutput relays everything currently buffered from the shell to the
// terminal, in production order. Returns eof=true once the output channel
// closes.
func (b *Bridge) forwardOutput() (eof bool, err error) {
	for {
		select {
		case chunk, ok := <-b.shell.Output():
			if !ok {
				return true, nil
			}
			if err := b.write(chunk); err != nil {
				return false, err
			}
		default:
			return false, nil
		}
	}
}

func (b *Bridge) write(chunk []byte) error {
	if _, err := b.term.Write(chunk); err != nil {
		return fmt.Errorf("terminal write failed: %w", err)
	}
	if b.mirror != nil {
		b.mirror.Output(chunk)
	}
	return nil
}

const drainTimeout = 500 * time.Millisecond

// drainRemaining flushes output produced between the loop's last tick and
// the child's exit. When the child already exited it waits, bounded, for
// the reader to deliver its tail; on signal shutdown the child is still
// alive and only already-buffered output is flushed.
func (b *Bridge) drainRemaining() {
	if b.shell.Alive() {
		b.forwardOutput()
		return
	}
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case chunk, ok := <-b.shell.Output():
			if !ok {
				return
			}
			if err := b.write(chunk); err != nil {
				return
			}
		case <-deadline.C:
			return
		}
	}
}
