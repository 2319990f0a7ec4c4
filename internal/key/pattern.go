package key

import (
	"fmt"
	"strings"
	"unicode"
)

// ParsePattern parses a combination pattern of the form "mod+mod+...+key".
// Modifier names come from {ctrl, alt, shift} and at least one modifier is
// required. The key name must be one of the fixed table: ";", "enter",
// "tab", "space", "esc", "backspace", or a single ASCII letter. Names are
// case-insensitive.
func ParsePattern(pattern string) (Modifier, string, error) {
	parts := strings.Split(strings.ToLower(pattern), "+")
	if len(parts) < 2 {
		return ModNone, "", fmt.Errorf("key: pattern %q needs at least one modifier", pattern)
	}

	var mods Modifier
	for _, part := range parts[:len(parts)-1] {
		switch part {
		case "ctrl":
			mods |= ModCtrl
		case "alt":
			mods |= ModAlt
		case "shift":
			mods |= ModShift
		default:
			return ModNone, "", fmt.Errorf("key: unknown modifier %q in pattern %q", part, pattern)
		}
	}

	name := parts[len(parts)-1]
	if !validKeyName(name) {
		return ModNone, "", fmt.Errorf("key: unknown key name %q in pattern %q", name, pattern)
	}
	return mods, name, nil
}

func validKeyName(name string) bool {
	switch name {
	case ";", "enter", "tab", "space", "esc", "backspace":
		return true
	}
	if len(name) == 1 {
		r := rune(name[0])
		return r < 128 && unicode.IsLetter(r)
	}
	return false
}

// MatchesPattern reports whether the event matches the combination pattern.
// Matching requires exact modifier-set equality, not subset containment, and
// fails closed: unparseable patterns and unrecognized key names never match.
func MatchesPattern(e Event, pattern string) bool {
	mods, name, err := ParsePattern(pattern)
	if err != nil {
		return false
	}
	if e.Mods != mods {
		return false
	}

	switch name {
	case ";":
		return e.Key == KeyRune && e.Rune == ';'
	case "enter":
		return e.Key == KeyEnter
	case "tab":
		return e.Key == KeyTab
	case "space":
		return e.Key == KeyRune && e.Rune == ' '
	case "esc":
		return e.Key == KeyEscape
	case "backspace":
		return e.Key == KeyBackspace
	}

	// Single letter, matched case-insensitively.
	return e.Key == KeyRune && unicode.ToLower(e.Rune) == rune(name[0])
}
