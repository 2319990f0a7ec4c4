// Package hook matches key events against configured key patterns and
// dispatches the bound actions. A consumed event never reaches the wrapped
// program; everything else passes through untouched.
package hook

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/chatshell/internal/key"
)

// Hook binds a key pattern to an action.
type Hook struct {
	Name        string
	Pattern     string
	Action      Action
	Description string
	Enabled     bool
}

// Result reports how an event was handled.
type Result struct {
	// Consumed is true when a hook claimed the event; the event's bytes
	// must not be forwarded to the child.
	Consumed bool
	// Hook is the hook that claimed the event, nil on pass-through.
	Hook *Hook
	// Errs collects action failures from matching hooks that did not
	// consume the event.
	Errs []error
}

// Runner executes a hook's action and reports whether the key was
// consumed. *Executor is the production implementation.
type Runner interface {
	Run(h *Hook) (consumed bool, err error)
}

// Registry holds hooks in registration order. First match that consumes
// wins.
type Registry struct {
	mu     sync.Mutex
	order  []string
	hooks  map[string]*Hook
	exec   Runner
	logger *slog.Logger
}

func NewRegistry(exec Runner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hooks:  make(map[string]*Hook),
		exec:   exec,
		logger: logger,
	}
}

// Add registers a hook. The pattern and action are validated now so a bad
// config entry surfaces at startup instead of silently never matching.
func (r *Registry) Add(h Hook) error {
	if h.Name == "" {
		return fmt.Errorf("hook name cannot be empty")
	}
	if _, _, err := key.ParsePattern(h.Pattern); err != nil {
		return fmt.Errorf("hook %q: %w", h.Name, err)
	}
	if err := h.Action.Validate(); err != nil {
		return fmt.Errorf("hook %q: %w", h.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[h.Name]; exists {
		return fmt.Errorf("hook %q already registered", h.Name)
	}
	r.order = append(r.order, h.Name)
	r.hooks[h.Name] = &h
	return nil
}

// Remove drops a hook by name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[name]; !exists {
		return false
	}
	delete(r.hooks, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetEnabled toggles a hook without losing its registration slot.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, exists := r.hooks[name]
	if !exists {
		return false
	}
	h.Enabled = enabled
	return true
}

// List returns copies of all hooks in registration order.
func (r *Registry) List() []Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Hook, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.hooks[name])
	}
	return out
}

// Process scans hooks in registration order, running the action of every
// enabled hook whose pattern matches, until one reports it consumed the
// event. A failing action is logged and treated as non-consuming; the
// scan carries on to the next hook.
func (r *Registry) Process(ev key.Event) Result {
	r.mu.Lock()
	ordered := make([]*Hook, 0, len(r.order))
	for _, name := range r.order {
		ordered = append(ordered, r.hooks[name])
	}
	r.mu.Unlock()

	var result Result
	for _, h := range ordered {
		if !h.Enabled {
			continue
		}
		if !key.MatchesPattern(ev, h.Pattern) {
			continue
		}
		r.logger.Debug("hook triggered", "hook", h.Name, "pattern", h.Pattern, "action", h.Action.String())
		consumed, err := r.exec.Run(h)
		if err != nil {
			r.logger.Error("hook action failed", "hook", h.Name, "action", h.Action.String(), "error", err)
			result.Errs = append(result.Errs, fmt.Errorf("hook %q: %w", h.Name, err))
			continue
		}
		if consumed {
			result.Consumed = true
			result.Hook = h
			return result
		}
	}
	return result
}
