// Package popup draws transient message and input overlays directly onto the
// wrapped terminal with control sequences, without taking over the screen.
package popup

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/chatshell/internal/key"
	"github.com/user/chatshell/internal/term"
)

// Surface is the slice of the terminal the popup needs. The bridge loop is
// parked inside the hook action while a popup is open, so the popup may
// consume input events without racing it. Err reports a dead input reader;
// popups bail out instead of polling a surface that can never deliver.
type Surface interface {
	Size() (cols, rows int, err error)
	Write(p []byte) (int, error)
	PollEvent(timeout time.Duration) bool
	ReadEvent() (term.Event, bool)
	Err() error
}

const pollInterval = 50 * time.Millisecond

type box struct {
	x, y          int // top-left, 1-based screen coordinates
	width, height int
	title         string
	lines         []string
}

// Show displays a centered message popup and blocks until ESC is pressed.
func Show(s Surface, title, content string) error {
	b, err := layout(s, title, content, 0)
	if err != nil {
		return err
	}
	if err := draw(s, b, ""); err != nil {
		return err
	}
	if err := waitForClose(s); err != nil {
		clear(s, b)
		return err
	}
	return clear(s, b)
}

// Input displays a popup with a single-line input field. It returns the
// entered text and true on Enter, or false when cancelled with ESC or
// Ctrl+C.
func Input(s Surface, title, content string) (string, bool, error) {
	b, err := layout(s, title, content, 1)
	if err != nil {
		return "", false, err
	}

	var input strings.Builder
	if err := draw(s, b, input.String()); err != nil {
		return "", false, err
	}

	for {
		if !s.PollEvent(pollInterval) {
			if err := s.Err(); err != nil {
				clear(s, b)
				return "", false, fmt.Errorf("popup: terminal input gone: %w", err)
			}
			continue
		}
		ev, ok := s.ReadEvent()
		if !ok || ev.Type != term.EventKey {
			continue
		}
		k := ev.Key
		switch {
		case k.Key == key.KeyEnter:
			if err := clear(s, b); err != nil {
				return "", false, err
			}
			return input.String(), true, nil
		case k.Key == key.KeyEscape, k.Key == key.KeyRune && k.Rune == 'c' && k.Mods.Has(key.ModCtrl):
			if err := clear(s, b); err != nil {
				return "", false, err
			}
			return "", false, nil
		case k.Key == key.KeyBackspace:
			if input.Len() > 0 {
				text := input.String()
				_, size := utf8.DecodeLastRuneInString(text)
				input.Reset()
				input.WriteString(text[:len(text)-size])
			}
		case k.Key == key.KeyRune && k.Mods&key.ModCtrl == 0 && k.Mods&key.ModAlt == 0:
			if input.Len() < b.width-4 {
				input.WriteRune(k.Rune)
			}
		}
		if err := drawInputLine(s, b, input.String()); err != nil {
			return "", false, err
		}
	}
}

func layout(s Surface, title, content string, inputRows int) (box, error) {
	cols, rows, err := s.Size()
	if err != nil {
		return box{}, err
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	width := len(title)
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	width += 4
	if inputRows > 0 && width < 60 {
		width = 60
	}
	if width > cols {
		width = cols
	}
	height := len(lines) + 2 + inputRows
	if height > rows {
		height = rows
	}

	return box{
		x:      (cols-width)/2 + 1,
		y:      (rows-height)/2 + 1,
		width:  width,
		height: height,
		title:  title,
		lines:  lines,
	}, nil
}

func draw(s Surface, b box, input string) error {
	var sb strings.Builder
	sb.WriteString("\x1b7")       // save cursor
	sb.WriteString("\x1b[44;37m") // white on blue

	// Top border with centered title.
	title := " " + b.title + " "
	if len(title) > b.width-2 {
		title = title[:b.width-2]
	}
	pad := b.width - 2 - len(title)
	fmt.Fprintf(&sb, "\x1b[%d;%dH", b.y, b.x)
	sb.WriteString("┌" + strings.Repeat("─", pad/2) + title + strings.Repeat("─", pad-pad/2) + "┐")

	row := b.y + 1
	for _, line := range b.lines {
		if row >= b.y+b.height-1 {
			break
		}
		if len(line) > b.width-4 {
			line = line[:b.width-4]
		}
		fmt.Fprintf(&sb, "\x1b[%d;%dH", row, b.x)
		sb.WriteString("│ " + line + strings.Repeat(" ", b.width-4-len(line)) + " │")
		row++
	}
	for ; row < b.y+b.height-1; row++ {
		fmt.Fprintf(&sb, "\x1b[%d;%dH", row, b.x)
		sb.WriteString("│" + strings.Repeat(" ", b.width-2) + "│")
	}

	fmt.Fprintf(&sb, "\x1b[%d;%dH", b.y+b.height-1, b.x)
	sb.WriteString("└" + strings.Repeat("─", b.width-2) + "┘")

	sb.WriteString("\x1b[0m\x1b8") // reset colors, restore cursor
	if _, err := s.Write([]byte(sb.String())); err != nil {
		return err
	}
	if input != "" || hasInputRow(b) {
		return drawInputLine(s, b, input)
	}
	return nil
}

func hasInputRow(b box) bool {
	return b.height >= len(b.lines)+3
}

func drawInputLine(s Surface, b box, input string) error {
	if !hasInputRow(b) {
		return nil
	}
	row := b.y + b.height - 2
	avail := b.width - 6
	if len(input) > avail {
		input = input[len(input)-avail:]
	}
	text := fmt.Sprintf("\x1b7\x1b[44;37m\x1b[%d;%dH│ > %s%s │\x1b[0m\x1b[%d;%dH",
		row, b.x, input, strings.Repeat(" ", avail-len(input)), row, b.x+4+len(input))
	_, err := s.Write([]byte(text))
	return err
}

func waitForClose(s Surface) error {
	for {
		if !s.PollEvent(pollInterval) {
			if err := s.Err(); err != nil {
				return fmt.Errorf("popup: terminal input gone: %w", err)
			}
			continue
		}
		ev, ok := s.ReadEvent()
		if !ok {
			continue
		}
		if ev.Type == term.EventKey && (ev.Key.Key == key.KeyEscape || ev.Key.Key == key.KeyEnter) {
			return nil
		}
	}
}

// clear erases the popup region. The shell owns the screen contents, so the
// best this can do is blank the rows; the next shell redraw repaints them.
func clear(s Surface, b box) error {
	var sb strings.Builder
	sb.WriteString("\x1b7")
	for row := b.y; row < b.y+b.height; row++ {
		fmt.Fprintf(&sb, "\x1b[%d;%dH%s", row, b.x, strings.Repeat(" ", b.width))
	}
	sb.WriteString("\x1b8")
	_, err := s.Write([]byte(sb.String()))
	return err
}
