package term

import (
	"unicode/utf8"

	"github.com/user/chatshell/internal/key"
)

// csiTable maps the bytes following ESC [ to a decoded key. Sequences not
// listed here are dropped rather than forwarded as garbage runes.
var csiTable = map[string]key.Event{
	"A": key.NewSpecialEvent(key.KeyUp, key.ModNone),
	"B": key.NewSpecialEvent(key.KeyDown, key.ModNone),
	"C": key.NewSpecialEvent(key.KeyRight, key.ModNone),
	"D": key.NewSpecialEvent(key.KeyLeft, key.ModNone),
	"H": key.NewSpecialEvent(key.KeyHome, key.ModNone),
	"F": key.NewSpecialEvent(key.KeyEnd, key.ModNone),
	"Z": key.NewSpecialEvent(key.KeyTab, key.ModShift),

	"1~": key.NewSpecialEvent(key.KeyHome, key.ModNone),
	"2~": key.NewSpecialEvent(key.KeyInsert, key.ModNone),
	"3~": key.NewSpecialEvent(key.KeyDelete, key.ModNone),
	"4~": key.NewSpecialEvent(key.KeyEnd, key.ModNone),
	"5~": key.NewSpecialEvent(key.KeyPageUp, key.ModNone),
	"6~": key.NewSpecialEvent(key.KeyPageDown, key.ModNone),

	"11~": key.NewSpecialEvent(key.KeyF1, key.ModNone),
	"12~": key.NewSpecialEvent(key.KeyF2, key.ModNone),
	"13~": key.NewSpecialEvent(key.KeyF3, key.ModNone),
	"14~": key.NewSpecialEvent(key.KeyF4, key.ModNone),
	"15~": key.NewSpecialEvent(key.KeyF5, key.ModNone),
	"17~": key.NewSpecialEvent(key.KeyF6, key.ModNone),
	"18~": key.NewSpecialEvent(key.KeyF7, key.ModNone),
	"19~": key.NewSpecialEvent(key.KeyF8, key.ModNone),
	"20~": key.NewSpecialEvent(key.KeyF9, key.ModNone),
	"21~": key.NewSpecialEvent(key.KeyF10, key.ModNone),
	"23~": key.NewSpecialEvent(key.KeyF11, key.ModNone),
	"24~": key.NewSpecialEvent(key.KeyF12, key.ModNone),

	// xterm-style modified arrows: ESC [ 1 ; mod X
	"1;2A": key.NewSpecialEvent(key.KeyUp, key.ModShift),
	"1;2B": key.NewSpecialEvent(key.KeyDown, key.ModShift),
	"1;2C": key.NewSpecialEvent(key.KeyRight, key.ModShift),
	"1;2D": key.NewSpecialEvent(key.KeyLeft, key.ModShift),
	"1;3A": key.NewSpecialEvent(key.KeyUp, key.ModAlt),
	"1;3B": key.NewSpecialEvent(key.KeyDown, key.ModAlt),
	"1;3C": key.NewSpecialEvent(key.KeyRight, key.ModAlt),
	"1;3D": key.NewSpecialEvent(key.KeyLeft, key.ModAlt),
	"1;5A": key.NewSpecialEvent(key.KeyUp, key.ModCtrl),
	"1;5B": key.NewSpecialEvent(key.KeyDown, key.ModCtrl),
	"1;5C": key.NewSpecialEvent(key.KeyRight, key.ModCtrl),
	"1;5D": key.NewSpecialEvent(key.KeyLeft, key.ModCtrl),
}

// ss3Table maps the byte following ESC O.
var ss3Table = map[byte]key.Event{
	'P': key.NewSpecialEvent(key.KeyF1, key.ModNone),
	'Q': key.NewSpecialEvent(key.KeyF2, key.ModNone),
	'R': key.NewSpecialEvent(key.KeyF3, key.ModNone),
	'S': key.NewSpecialEvent(key.KeyF4, key.ModNone),
	'H': key.NewSpecialEvent(key.KeyHome, key.ModNone),
	'F': key.NewSpecialEvent(key.KeyEnd, key.ModNone),
}

// decoder turns raw terminal input bytes into key events. A sequence split
// across reads is carried over to the next feed; a bare ESC at the end of a
// chunk is reported as the Escape key, since raw-mode reads deliver whole
// sequences in one chunk.
type decoder struct {
	carry []byte
}

func (d *decoder) feed(p []byte) []key.Event {
	buf := p
	if len(d.carry) > 0 {
		buf = append(d.carry, p...)
		d.carry = nil
	}

	var events []key.Event
	for len(buf) > 0 {
		ev, n, incomplete := decodeOne(buf)
		if incomplete {
			if len(buf) == 1 && buf[0] == 27 {
				events = append(events, key.NewSpecialEvent(key.KeyEscape, key.ModNone))
				return events
			}
			d.carry = append([]byte(nil), buf...)
			return events
		}
		if ev != nil {
			events = append(events, *ev)
		}
		buf = buf[n:]
	}
	return events
}

// decodeOne decodes the first event in buf. It returns the event (nil for
// recognized-but-dropped sequences), the number of bytes consumed, and
// whether the buffer ends mid-sequence.
func decodeOne(buf []byte) (*key.Event, int, bool) {
	b := buf[0]

	if b == 27 {
		return decodeEscape(buf)
	}

	switch b {
	case '\r':
		return evp(key.NewSpecialEvent(key.KeyEnter, key.ModNone)), 1, false
	case '\n':
		return evp(key.NewRuneEvent('j', key.ModCtrl)), 1, false
	case '\t':
		return evp(key.NewSpecialEvent(key.KeyTab, key.ModNone)), 1, false
	case 127, 8:
		return evp(key.NewSpecialEvent(key.KeyBackspace, key.ModNone)), 1, false
	case 0:
		return evp(key.NewRuneEvent(' ', key.ModCtrl)), 1, false
	}

	if b < 27 {
		return evp(key.NewRuneEvent(rune('a'+b-1), key.ModCtrl)), 1, false
	}
	switch b {
	case 28:
		return evp(key.NewRuneEvent('\\', key.ModCtrl)), 1, false
	case 29:
		return evp(key.NewRuneEvent(']', key.ModCtrl)), 1, false
	case 30:
		return evp(key.NewRuneEvent('^', key.ModCtrl)), 1, false
	case 31:
		return evp(key.NewRuneEvent('_', key.ModCtrl)), 1, false
	}

	r, n := utf8.DecodeRune(buf)
	if r == utf8.RuneError && n == 1 {
		if !utf8.FullRune(buf) {
			return nil, 0, true
		}
		// Invalid byte, skip it.
		return nil, 1, false
	}
	var mods key.Modifier
	if r >= 'A' && r <= 'Z' {
		mods = key.ModShift
	}
	return evp(key.NewRuneEvent(r, mods)), n, false
}

func decodeEscape(buf []byte) (*key.Event, int, bool) {
	if len(buf) == 1 {
		return nil, 0, true
	}

	switch buf[1] {
	case '[':
		return decodeCSI(buf)
	case 'O':
		if len(buf) < 3 {
			return nil, 0, true
		}
		if ev, ok := ss3Table[buf[2]]; ok {
			return &ev, 3, false
		}
		return nil, 3, false
	}

	// ESC + printable rune is the alt prefix.
	r, n := utf8.DecodeRune(buf[1:])
	if r == utf8.RuneError && n == 1 && !utf8.FullRune(buf[1:]) {
		return nil, 0, true
	}
	if r == 27 {
		// ESC ESC: report one Escape, consume one.
		return evp(key.NewSpecialEvent(key.KeyEscape, key.ModNone)), 1, false
	}
	return evp(key.NewRuneEvent(r, key.ModAlt)), 1 + n, false
}

func decodeCSI(buf []byte) (*key.Event, int, bool) {
	// buf starts with ESC [. The sequence ends at the first final byte
	// in 0x40..0x7e.
	for i := 2; i < len(buf); i++ {
		b := buf[i]
		if b >= 0x40 && b <= 0x7e {
			seq := string(buf[2 : i+1])
			if ev, ok := csiTable[seq]; ok {
				return &ev, i + 1, false
			}
			// Recognized CSI shape but no mapping: drop it.
			return nil, i + 1, false
		}
	}
	return nil, 0, true
}

func evp(e key.Event) *key.Event { return &e }
