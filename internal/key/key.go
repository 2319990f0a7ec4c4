// Package key defines the logical key event model, the wire encoding that
// turns events into shell-bound bytes, and combination-pattern matching.
package key

// Modifier is a bitmask of modifier keys held during an event.
type Modifier uint8

const (
	ModNone  Modifier = 0
	ModCtrl  Modifier = 1 << 0
	ModAlt   Modifier = 1 << 1
	ModShift Modifier = 1 << 2
)

// Has reports whether all modifiers in m are set.
func (mod Modifier) Has(m Modifier) bool { return mod&m == m }

// Key identifies a logical keyboard key. Printable characters use KeyRune
// with the character carried in Event.Rune.
type Key int

const (
	KeyNone Key = iota
	KeyRune

	KeyEnter
	KeyTab
	KeyBackspace
	KeyEscape

	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
	KeyInsert

	// KeyF1..KeyF12 must stay contiguous; encoding computes the function
	// key number from the offset.
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// Event is a single decoded key press. Events are immutable values; they are
// produced once per terminal input poll and never mutated.
type Event struct {
	Key  Key
	Rune rune
	Mods Modifier
}

// NewRuneEvent builds an event for a printable character.
func NewRuneEvent(r rune, mods Modifier) Event {
	return Event{Key: KeyRune, Rune: r, Mods: mods}
}

// NewSpecialEvent builds an event for a non-character key.
func NewSpecialEvent(k Key, mods Modifier) Event {
	return Event{Key: k, Mods: mods}
}

// IsFunction reports whether k is one of the F1..F12 keys.
func (k Key) IsFunction() bool { return k >= KeyF1 && k <= KeyF12 }

// FunctionNumber returns n for KeyFn, or 0 if k is not a function key.
func (k Key) FunctionNumber() int {
	if !k.IsFunction() {
		return 0
	}
	return int(k-KeyF1) + 1
}
