// Package term is the terminal surface: raw-mode control, decoded input
// events, resize notifications, and verbatim output writes.
package term

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	xterm "golang.org/x/term"

	"github.com/user/chatshell/internal/key"
)

// EventType distinguishes the kind of event produced by the surface.
type EventType int

const (
	// EventKey carries a decoded key press.
	EventKey EventType = iota
	// EventResize carries the new terminal geometry.
	EventResize
)

// Event is a single terminal input event.
type Event struct {
	Type EventType
	Key  key.Event
	Cols int
	Rows int
}

// Terminal wraps the controlling terminal. PollEvent/ReadEvent are meant to
// be called from a single goroutine; the input decoder and resize watcher
// feed the shared event queue from their own goroutines.
type Terminal struct {
	in  *os.File
	out *os.File

	events  chan Event
	pending *Event

	rawMu    sync.Mutex
	raw      bool
	oldState *xterm.State

	winch     chan os.Signal
	stop      chan struct{}
	closeOnce sync.Once

	errMu   sync.Mutex
	readErr error
}

// New wraps the given input and output files and starts the input decoder
// and resize watcher.
func New(in, out *os.File) *Terminal {
	t := &Terminal{
		in:     in,
		out:    out,
		events: make(chan Event, 64),
		winch:  make(chan os.Signal, 1),
		stop:   make(chan struct{}),
	}

	signal.Notify(t.winch, syscall.SIGWINCH)
	go t.readLoop()
	go t.winchLoop()

	return t
}

// EnterRawMode switches the terminal to raw input. Calling it while already
// raw is a no-op.
func (t *Terminal) EnterRawMode() error {
	t.rawMu.Lock()
	defer t.rawMu.Unlock()

	if t.raw {
		return nil
	}
	state, err := xterm.MakeRaw(int(t.in.Fd()))
	if err != nil {
		return fmt.Errorf("term: enable raw mode: %w", err)
	}
	t.oldState = state
	t.raw = true
	return nil
}

// LeaveRawMode restores the saved terminal state. Idempotent.
func (t *Terminal) LeaveRawMode() error {
	t.rawMu.Lock()
	defer t.rawMu.Unlock()

	if !t.raw {
		return nil
	}
	if err := xterm.Restore(int(t.in.Fd()), t.oldState); err != nil {
		return fmt.Errorf("term: disable raw mode: %w", err)
	}
	t.raw = false
	return nil
}

// Size returns the terminal geometry as (columns, rows).
func (t *Terminal) Size() (cols, rows int, err error) {
	cols, rows, err = xterm.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("term: get size: %w", err)
	}
	return cols, rows, nil
}

// PollEvent waits up to timeout for an event to become ready without
// consuming it.
func (t *Terminal) PollEvent(timeout time.Duration) bool {
	if t.pending != nil {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-t.events:
		t.pending = &ev
		return true
	case <-timer.C:
		return false
	}
}

// ReadEvent consumes exactly one ready event. The second return is false
// when no event is ready.
func (t *Terminal) ReadEvent() (Event, bool) {
	if t.pending != nil {
		ev := *t.pending
		t.pending = nil
		return ev, true
	}
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Write forwards bytes verbatim to the terminal. *os.File writes are
// unbuffered, so the data is flushed before Write returns.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// Err returns the first input read failure, if any.
func (t *Terminal) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.readErr
}

// Close stops the resize watcher and restores the terminal state. The input
// reader exits with the process; stdin reads cannot be interrupted portably.
func (t *Terminal) Close() {
	t.closeOnce.Do(func() {
		signal.Stop(t.winch)
		close(t.stop)
		_ = t.LeaveRawMode()
	})
}

func (t *Terminal) readLoop() {
	var dec decoder
	buf := make([]byte, 256)
	for {
		n, err := t.in.Read(buf)
		if n > 0 {
			for _, kev := range dec.feed(buf[:n]) {
				select {
				case t.events <- Event{Type: EventKey, Key: kev}:
				case <-t.stop:
					return
				}
			}
		}
		if err != nil {
			t.errMu.Lock()
			t.readErr = err
			t.errMu.Unlock()
			return
		}
	}
}

func (t *Terminal) winchLoop() {
	for {
		select {
		case <-t.winch:
			cols, rows, err := t.Size()
			if err != nil {
				continue
			}
			select {
			case t.events <- Event{Type: EventResize, Cols: cols, Rows: rows}:
			case <-t.stop:
				return
			}
		case <-t.stop:
			return
		}
	}
}
