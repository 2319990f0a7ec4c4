package hook

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/user/chatshell/internal/key"
)

// fakeRunner records dispatch order and returns scripted outcomes per hook
// name.
type fakeRunner struct {
	calls    []string
	consume  map[string]bool
	failWith map[string]error
}

func (f *fakeRunner) Run(h *Hook) (bool, error) {
	f.calls = append(f.calls, h.Name)
	if err := f.failWith[h.Name]; err != nil {
		return false, err
	}
	return f.consume[h.Name], nil
}

func newTestRegistry(runner *fakeRunner) *Registry {
	return NewRegistry(runner, slog.Default())
}

func ctrlSemicolon() key.Event {
	return key.NewRuneEvent(';', key.ModCtrl)
}

func TestAddValidatesPatternAndAction(t *testing.T) {
	reg := newTestRegistry(&fakeRunner{})

	cases := []Hook{
		{Name: "", Pattern: "ctrl+a", Action: ParseAction("cmd:true"), Enabled: true},
		{Name: "bad-pattern", Pattern: "a", Action: ParseAction("cmd:true"), Enabled: true},
		{Name: "bad-mod", Pattern: "meta+a", Action: ParseAction("cmd:true"), Enabled: true},
		{Name: "bad-fn", Pattern: "ctrl+a", Action: ParseAction("fn:nonsense"), Enabled: true},
		{Name: "bad-builtin", Pattern: "ctrl+a", Action: ParseAction("builtin:nonsense"), Enabled: true},
		{Name: "empty-cmd", Pattern: "ctrl+a", Action: ParseAction("cmd:"), Enabled: true},
	}
	for _, h := range cases {
		if err := reg.Add(h); err == nil {
			t.Errorf("Add(%q) accepted an invalid hook", h.Name)
		}
	}

	ok := Hook{Name: "good", Pattern: "ctrl+a", Action: ParseAction("fn:show_time"), Enabled: true}
	if err := reg.Add(ok); err != nil {
		t.Fatalf("Add(good): %v", err)
	}
	if err := reg.Add(ok); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestProcessRegistrationOrderShortCircuits(t *testing.T) {
	runner := &fakeRunner{consume: map[string]bool{"first": true, "second": true}}
	reg := newTestRegistry(runner)

	for _, name := range []string{"first", "second"} {
		if err := reg.Add(Hook{Name: name, Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}

	res := reg.Process(ctrlSemicolon())
	if !res.Consumed {
		t.Fatal("event not consumed")
	}
	if res.Hook == nil || res.Hook.Name != "first" {
		t.Errorf("consumed by %+v, want first", res.Hook)
	}
	if len(runner.calls) != 1 {
		t.Errorf("calls = %v, second hook must never run", runner.calls)
	}
}

func TestProcessPassThroughWhenNothingMatches(t *testing.T) {
	runner := &fakeRunner{consume: map[string]bool{"hook": true}}
	reg := newTestRegistry(runner)
	reg.Add(Hook{Name: "hook", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true})

	// Same character without the modifier must pass through.
	res := reg.Process(key.NewRuneEvent(';', key.ModNone))
	if res.Consumed {
		t.Error("plain ';' was consumed")
	}
	if len(runner.calls) != 0 {
		t.Errorf("action ran for a non-matching event: %v", runner.calls)
	}
}

func TestProcessFailingActionContinuesScan(t *testing.T) {
	runner := &fakeRunner{
		consume:  map[string]bool{"fallback": true},
		failWith: map[string]error{"broken": errors.New("boom")},
	}
	var logBuf bytes.Buffer
	reg := NewRegistry(runner, slog.New(slog.NewTextHandler(&logBuf, nil)))
	reg.Add(Hook{Name: "broken", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true})
	reg.Add(Hook{Name: "fallback", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true})

	res := reg.Process(ctrlSemicolon())
	if !res.Consumed {
		t.Fatal("fallback hook did not consume")
	}
	if res.Hook.Name != "fallback" {
		t.Errorf("consumed by %q", res.Hook.Name)
	}
	if len(res.Errs) != 1 {
		t.Errorf("Errs = %v", res.Errs)
	}
	if len(runner.calls) != 2 {
		t.Errorf("calls = %v", runner.calls)
	}
	// The registry is the one place a failing action gets reported.
	if !strings.Contains(logBuf.String(), "boom") {
		t.Error("action failure never logged")
	}
}

func TestProcessNonConsumingActionContinuesScan(t *testing.T) {
	runner := &fakeRunner{consume: map[string]bool{"first": false, "second": true}}
	reg := newTestRegistry(runner)
	reg.Add(Hook{Name: "first", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true})
	reg.Add(Hook{Name: "second", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: true})

	res := reg.Process(ctrlSemicolon())
	if !res.Consumed || res.Hook.Name != "second" {
		t.Errorf("result = %+v", res)
	}
}

func TestDisabledHookSkipped(t *testing.T) {
	runner := &fakeRunner{consume: map[string]bool{"hook": true}}
	reg := newTestRegistry(runner)
	reg.Add(Hook{Name: "hook", Pattern: "ctrl+;", Action: ParseAction("cmd:true"), Enabled: false})

	if res := reg.Process(ctrlSemicolon()); res.Consumed {
		t.Error("disabled hook consumed the event")
	}

	if !reg.SetEnabled("hook", true) {
		t.Fatal("SetEnabled returned false")
	}
	if res := reg.Process(ctrlSemicolon()); !res.Consumed {
		t.Error("re-enabled hook did not consume")
	}

	if reg.SetEnabled("missing", true) {
		t.Error("SetEnabled found a hook that does not exist")
	}
}

func TestRemoveAndList(t *testing.T) {
	reg := newTestRegistry(&fakeRunner{})
	reg.Add(Hook{Name: "a", Pattern: "ctrl+a", Action: ParseAction("cmd:true"), Enabled: true})
	reg.Add(Hook{Name: "b", Pattern: "ctrl+b", Action: ParseAction("cmd:true"), Enabled: true})

	if !reg.Remove("a") {
		t.Fatal("Remove(a) returned false")
	}
	if reg.Remove("a") {
		t.Error("second Remove(a) returned true")
	}

	hooks := reg.List()
	if len(hooks) != 1 || hooks[0].Name != "b" {
		t.Errorf("List = %+v", hooks)
	}
}
