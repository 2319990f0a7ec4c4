// Package pty owns the pseudo-terminal session: spawning the shell child,
// pumping its output, and tearing the pair down exactly once.
package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

// ErrClosed is returned by operations on a session whose master handle has
// been released.
var ErrClosed = errors.New("pty: session is closed")

// State is the lifecycle state of a session's child process.
type State int

const (
	// Running means the child has been spawned and its exit status has not
	// been collected yet.
	Running State = iota
	// Exited means the child terminated on its own and was reaped.
	Exited
	// Killed means the child was forcefully terminated during teardown.
	Killed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	}
	return "unknown"
}

// gracePeriod is how long teardown waits after SIGTERM before escalating
// to SIGKILL.
const gracePeriod = 100 * time.Millisecond

// Session wraps an interactive shell running inside a PTY. The master
// handle is exclusively owned by the Session; all reads flow through the
// Output channel and all writes through Write.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File

	output chan []byte
	done   chan struct{}

	mu     sync.Mutex
	state  State
	killed bool
	closed bool

	teardownOnce sync.Once
}

// Spawn allocates a PTY pair and starts argv inside it with the given
// initial window size. The child inherits the parent environment plus env
// entries in "KEY=VALUE" form. Spawn failure leaves nothing to clean up.
func Spawn(argv []string, env []string, cols, rows uint16) (*Session, error) {
	if len(argv) == 0 {
		return nil, errors.New("pty: argv must not be empty")
	}
	if cols == 0 || rows == 0 {
		cols, rows = 80, 24
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, err
	}

	s := &Session{
		cmd:    cmd,
		ptmx:   ptmx,
		output: make(chan []byte, 64),
		done:   make(chan struct{}),
		state:  Running,
	}

	go s.readPump()
	go s.waitExit()

	return s, nil
}

// readPump reads from the PTY master and delivers output in production
// order on the output channel. It runs until the master returns an error,
// which covers both child exit (EIO/EOF) and teardown closing the handle.
func (s *Session) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.output <- chunk
		}
		if err != nil {
			close(s.output)
			return
		}
	}
}

// waitExit reaps the child. After it runs, Alive reports false forever.
func (s *Session) waitExit() {
	_ = s.cmd.Wait()

	s.mu.Lock()
	if s.killed {
		s.state = Killed
	} else {
		s.state = Exited
	}
	s.mu.Unlock()

	close(s.done)
}

// Output returns the ordered stream of bytes the shell produced. The
// channel is closed once the child side of the PTY is gone; a closed
// channel is the EOF signal.
func (s *Session) Output() <-chan []byte { return s.output }

// Write sends bytes to the shell's input.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.ptmx.Write(p)
}

// Resize applies the window size to the PTY. The most recent call wins, and
// the size is in effect before any bytes written afterwards reach the shell.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows})
}

// Size returns the PTY's current window size.
func (s *Session) Size() (cols, rows uint16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, 0, ErrClosed
	}
	ws, err := creackpty.GetsizeFull(s.ptmx)
	if err != nil {
		return 0, 0, err
	}
	return ws.Cols, ws.Rows, nil
}

// Signal delivers sig to the child process.
func (s *Session) Signal(sig os.Signal) error {
	if s.cmd.Process == nil {
		return errors.New("pty: no child process")
	}
	return s.cmd.Process.Signal(sig)
}

// Pid returns the child's process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Alive reports whether the child's exit status has not yet been collected.
// It never blocks and is safe to call repeatedly after teardown.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// CurrentState returns the session's lifecycle state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Teardown terminates the child and releases the master handle. If the
// child is still alive it gets SIGTERM, a bounded grace period, then
// SIGKILL. The master is closed exactly once regardless of path; calling
// Teardown again is a no-op.
func (s *Session) Teardown() error {
	var err error
	s.teardownOnce.Do(func() {
		if s.Alive() {
			_ = s.Signal(syscall.SIGTERM)

			select {
			case <-s.done:
			case <-time.After(gracePeriod):
			}

			if s.Alive() {
				s.mu.Lock()
				s.killed = true
				s.mu.Unlock()
				_ = s.Signal(syscall.SIGKILL)
			}
		}

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.ptmx.Close()
	})
	return err
}
