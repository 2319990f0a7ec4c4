package term

import (
	"testing"

	"github.com/user/chatshell/internal/key"
)

func feedAll(p []byte) []key.Event {
	var d decoder
	return d.feed(p)
}

func TestDecodePlainRunes(t *testing.T) {
	events := feedAll([]byte("ab;"))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	want := []rune{'a', 'b', ';'}
	for i, ev := range events {
		if ev.Key != key.KeyRune || ev.Rune != want[i] || ev.Mods != key.ModNone {
			t.Errorf("event %d = %+v, want rune %q", i, ev, want[i])
		}
	}
}

func TestDecodeControlBytes(t *testing.T) {
	cases := []struct {
		in   byte
		want key.Event
	}{
		{0x01, key.NewRuneEvent('a', key.ModCtrl)},
		{0x03, key.NewRuneEvent('c', key.ModCtrl)},
		{0x1a, key.NewRuneEvent('z', key.ModCtrl)},
		{'\r', key.NewSpecialEvent(key.KeyEnter, key.ModNone)},
		{'\t', key.NewSpecialEvent(key.KeyTab, key.ModNone)},
		{127, key.NewSpecialEvent(key.KeyBackspace, key.ModNone)},
	}
	for _, tc := range cases {
		events := feedAll([]byte{tc.in})
		if len(events) != 1 || events[0] != tc.want {
			t.Errorf("decode(%#x) = %+v, want %+v", tc.in, events, tc.want)
		}
	}
}

func TestDecodeEscapeSequences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want key.Event
	}{
		{"up", "\x1b[A", key.NewSpecialEvent(key.KeyUp, key.ModNone)},
		{"down", "\x1b[B", key.NewSpecialEvent(key.KeyDown, key.ModNone)},
		{"home", "\x1b[H", key.NewSpecialEvent(key.KeyHome, key.ModNone)},
		{"delete", "\x1b[3~", key.NewSpecialEvent(key.KeyDelete, key.ModNone)},
		{"pageup", "\x1b[5~", key.NewSpecialEvent(key.KeyPageUp, key.ModNone)},
		{"f1-ss3", "\x1bOP", key.NewSpecialEvent(key.KeyF1, key.ModNone)},
		{"f5", "\x1b[15~", key.NewSpecialEvent(key.KeyF5, key.ModNone)},
		{"f12", "\x1b[24~", key.NewSpecialEvent(key.KeyF12, key.ModNone)},
		{"ctrl-right", "\x1b[1;5C", key.NewSpecialEvent(key.KeyRight, key.ModCtrl)},
		{"shift-tab", "\x1b[Z", key.NewSpecialEvent(key.KeyTab, key.ModShift)},
	}
	for _, tc := range cases {
		events := feedAll([]byte(tc.in))
		if len(events) != 1 || events[0] != tc.want {
			t.Errorf("%s: decode(%q) = %+v, want %+v", tc.name, tc.in, events, tc.want)
		}
	}
}

func TestDecodeAltPrefix(t *testing.T) {
	events := feedAll([]byte{27, 'a'})
	if len(events) != 1 || events[0] != key.NewRuneEvent('a', key.ModAlt) {
		t.Errorf("decode(ESC a) = %+v, want alt+'a'", events)
	}
}

func TestDecodeBareEscape(t *testing.T) {
	events := feedAll([]byte{27})
	if len(events) != 1 || events[0] != key.NewSpecialEvent(key.KeyEscape, key.ModNone) {
		t.Errorf("decode(ESC) = %+v, want Escape", events)
	}
}

// A CSI sequence split across two reads decodes once the tail arrives.
func TestDecodeSplitSequence(t *testing.T) {
	var d decoder
	if events := d.feed([]byte{27, '['}); len(events) != 0 {
		t.Fatalf("partial CSI produced events: %+v", events)
	}
	events := d.feed([]byte{'A'})
	if len(events) != 1 || events[0] != key.NewSpecialEvent(key.KeyUp, key.ModNone) {
		t.Errorf("completed CSI = %+v, want Up", events)
	}
}

func TestDecodeUnknownCSIDropped(t *testing.T) {
	// Mouse reports and other unmapped CSI input must vanish, not leak
	// runes into the stream.
	events := feedAll([]byte("\x1b[99~x"))
	if len(events) != 1 || events[0] != key.NewRuneEvent('x', key.ModNone) {
		t.Errorf("decode = %+v, want just 'x'", events)
	}
}

func TestDecodeMixedChunk(t *testing.T) {
	events := feedAll([]byte("a\x1b[Ab"))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0] != key.NewRuneEvent('a', key.ModNone) ||
		events[1] != key.NewSpecialEvent(key.KeyUp, key.ModNone) ||
		events[2] != key.NewRuneEvent('b', key.ModNone) {
		t.Errorf("unexpected events: %+v", events)
	}
}
