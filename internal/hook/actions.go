package hook

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/user/chatshell/internal/history"
	"github.com/user/chatshell/internal/llm"
	"github.com/user/chatshell/internal/popup"
)

// ActionKind selects the dispatch family of an action string.
type ActionKind string

const (
	// ActionCmd runs a shell command and shows its combined output.
	ActionCmd ActionKind = "cmd"
	// ActionFn invokes a named built-in display function.
	ActionFn ActionKind = "fn"
	// ActionBuiltin invokes a named terminal control function.
	ActionBuiltin ActionKind = "builtin"
	// ActionLLM drives the assistant conversation.
	ActionLLM ActionKind = "llm"
)

// Action is a parsed "kind:value" action string.
type Action struct {
	Kind  ActionKind
	Value string
}

// ParseAction splits an action string on its first colon. A string without
// a recognized prefix is treated as a bare shell command.
func ParseAction(raw string) Action {
	kind, value, found := strings.Cut(raw, ":")
	if found {
		switch ActionKind(kind) {
		case ActionCmd, ActionFn, ActionBuiltin, ActionLLM:
			return Action{Kind: ActionKind(kind), Value: value}
		}
	}
	return Action{Kind: ActionCmd, Value: raw}
}

func (a Action) String() string {
	return string(a.Kind) + ":" + a.Value
}

// Validate rejects actions that could never dispatch, so a config typo
// surfaces at registration instead of on first keypress.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionCmd:
		if strings.TrimSpace(a.Value) == "" {
			return fmt.Errorf("empty command action")
		}
	case ActionFn:
		switch a.Value {
		case "show_help", "show_time":
		default:
			return fmt.Errorf("unknown function %q", a.Value)
		}
	case ActionBuiltin:
		switch a.Value {
		case "clear_screen", "show_config":
		default:
			return fmt.Errorf("unknown builtin %q", a.Value)
		}
	case ActionLLM:
		switch a.Value {
		case "prompt", "reset":
		default:
			return fmt.Errorf("unknown llm action %q", a.Value)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

const commandTimeout = 30 * time.Second

// Executor runs hook actions against its collaborators. Surface is
// required; Assistant and Store are optional and their actions degrade
// gracefully when absent.
type Executor struct {
	Surface   popup.Surface
	Assistant *llm.Client
	Store     *history.Store
	// ListHooks supplies the current hook set for show_help and
	// show_config. Wired after registry construction.
	ListHooks func() []Hook
	Logger    *slog.Logger
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run executes a hook's action and reports whether it consumed the key.
func (e *Executor) Run(h *Hook) (consumed bool, err error) {
	defer e.record(h, &consumed, &err)

	switch h.Action.Kind {
	case ActionCmd:
		return e.runCommand(h.Action.Value)
	case ActionFn:
		return e.runFunction(h.Action.Value)
	case ActionBuiltin:
		return e.runBuiltin(h.Action.Value)
	case ActionLLM:
		return e.runLLM(h.Action.Value)
	}
	return false, fmt.Errorf("unknown action kind %q", h.Action.Kind)
}

func (e *Executor) record(h *Hook, consumed *bool, errp *error) {
	if e.Store == nil {
		return
	}
	inv := history.Invocation{
		HookName: h.Name,
		Pattern:  h.Pattern,
		Action:   h.Action.String(),
		Consumed: *consumed,
	}
	if *errp != nil {
		inv.Err = (*errp).Error()
	}
	if err := e.Store.RecordInvocation(context.Background(), inv); err != nil {
		e.logger().Warn("failed to record hook invocation", "hook", h.Name, "error", err)
	}
}

func (e *Executor) runCommand(command string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
	body := strings.TrimRight(string(out), "\n")
	if err != nil {
		if body == "" {
			body = err.Error()
		} else {
			body += "\n\n" + err.Error()
		}
		if showErr := popup.Show(e.Surface, "Command failed", body); showErr != nil {
			return false, showErr
		}
		return true, nil
	}
	if body == "" {
		body = "(no output)"
	}
	return true, popup.Show(e.Surface, command, body)
}

func (e *Executor) runFunction(name string) (bool, error) {
	switch name {
	case "show_help":
		return true, popup.Show(e.Surface, "Hooks", e.helpText())
	case "show_time":
		return true, popup.Show(e.Surface, "Time", time.Now().Format("Mon Jan 2 15:04:05 MST 2006"))
	}
	return false, fmt.Errorf("unknown function %q", name)
}

func (e *Executor) runBuiltin(name string) (bool, error) {
	switch name {
	case "clear_screen":
		_, err := e.Surface.Write([]byte("\x1b[2J\x1b[H"))
		return err == nil, err
	case "show_config":
		return true, popup.Show(e.Surface, "Configuration", e.configText())
	}
	return false, fmt.Errorf("unknown builtin %q", name)
}

func (e *Executor) helpText() string {
	hooks := e.listHooks()
	if len(hooks) == 0 {
		return "No hooks registered."
	}
	var sb strings.Builder
	for _, h := range hooks {
		desc := h.Description
		if desc == "" {
			desc = h.Action.String()
		}
		state := ""
		if !h.Enabled {
			state = " (disabled)"
		}
		fmt.Fprintf(&sb, "%-12s %s%s\n", h.Pattern, desc, state)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (e *Executor) configText() string {
	hooks := e.listHooks()
	var sb strings.Builder
	fmt.Fprintf(&sb, "hooks: %d registered\n", len(hooks))
	for _, h := range hooks {
		fmt.Fprintf(&sb, "  %s: %s -> %s enabled=%v\n", h.Name, h.Pattern, h.Action.String(), h.Enabled)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (e *Executor) listHooks() []Hook {
	if e.ListHooks == nil {
		return nil
	}
	return e.ListHooks()
}
