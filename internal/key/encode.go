package key

import "unicode/utf8"

// Encode translates an event into the byte sequence an interactive shell
// expects to read for that key. The table is fixed and total: every event
// maps to some sequence, and an empty result means the key has no wire
// representation and must be dropped, never written.
func Encode(e Event) []byte {
	switch e.Key {
	case KeyRune:
		return encodeRune(e)
	case KeyEnter:
		return []byte{'\r'}
	case KeyTab:
		return []byte{'\t'}
	case KeyBackspace:
		return []byte{127}
	case KeyEscape:
		return []byte{27}
	case KeyUp:
		return []byte{27, '[', 'A'}
	case KeyDown:
		return []byte{27, '[', 'B'}
	case KeyRight:
		return []byte{27, '[', 'C'}
	case KeyLeft:
		return []byte{27, '[', 'D'}
	case KeyHome:
		return []byte{27, '[', 'H'}
	case KeyEnd:
		return []byte{27, '[', 'F'}
	case KeyPageUp:
		return []byte{27, '[', '5', '~'}
	case KeyPageDown:
		return []byte{27, '[', '6', '~'}
	case KeyDelete:
		return []byte{27, '[', '3', '~'}
	case KeyInsert:
		return []byte{27, '[', '2', '~'}
	}

	if e.Key.IsFunction() {
		return encodeFunction(e.Key.FunctionNumber())
	}
	return nil
}

func encodeRune(e Event) []byte {
	if e.Mods.Has(ModCtrl) {
		// Only ctrl+letter has a control byte; everything else drops.
		r := e.Rune
		switch {
		case r >= 'a' && r <= 'z':
			return []byte{byte(r-'a') + 1}
		case r >= 'A' && r <= 'Z':
			return []byte{byte(r-'A') + 1}
		}
		return nil
	}

	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], e.Rune)
	if e.Mods.Has(ModAlt) {
		return append([]byte{27}, buf[:n]...)
	}
	return append([]byte(nil), buf[:n]...)
}

func encodeFunction(n int) []byte {
	switch {
	case n >= 1 && n <= 4:
		return []byte{27, 'O', byte(80 + n - 1)}
	case n >= 5 && n <= 12:
		return []byte{27, '[', '1', byte(53 + n - 5), '~'}
	}
	return nil
}
