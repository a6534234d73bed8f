package tty

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/pkg/cga"
)

// EscapePolicy decides what happens when an unsupported escape sequence shows up.
type EscapePolicy int

const (
	// PolicyAbort returns the error and stops the replay.
	PolicyAbort EscapePolicy = iota
	// PolicySkip logs the sequence, drops it and keeps going.
	PolicySkip
)

func (p EscapePolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	default:
		return "abort"
	}
}

type state int

const (
	stateOutside state = iota
	stateEscape
	stateCSI
	stateOSC
)

const (
	esc = 0x1B
	bel = 0x07
	can = 0x18
	sub = 0x19
)

// Terminal feeds runes through the escape sequence state machine into its Screen.
type Terminal struct {
	*Screen
	Policy EscapePolicy

	state   state
	params  strings.Builder
	last    rune
	skipped int
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		Screen: NewScreen(width, height),
		Policy: PolicyAbort,
	}
}

// Skipped is the number of sequences dropped under PolicySkip.
func (t *Terminal) Skipped() int {
	return t.skipped
}

// Write implements io.Writer. p is decoded as UTF-8.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.WriteString(string(p))
}

// WriteString feeds s rune by rune and stops at the first error.
func (t *Terminal) WriteString(s string) (int, error) {
	for i, r := range s {
		if err := t.Feed(r); err != nil {
			return i, err
		}
	}
	return len(s), nil
}

// ignored runes are dropped whatever the state is.
func ignored(r rune) bool {
	switch r {
	case 0x13, 0x14, 0x15, 0x26:
		return true
	}
	return false
}

// Feed processes one rune.
func (t *Terminal) Feed(r rune) error {
	var err error
	switch {
	case ignored(r):
	case t.state == stateOutside:
		if r == esc {
			t.state = stateEscape
		} else {
			t.Screen.WriteRune(r)
		}
	case t.state == stateEscape:
		err = t.escape(r)
	case t.state == stateCSI:
		err = t.csi(r)
	case t.state == stateOSC:
		// OSC ends with BEL or ST (ESC \)
		if r == bel || (r == '\\' && t.last == esc) {
			t.state = stateOutside
		}
	}
	t.last = r

	if err != nil {
		return t.fail(err)
	}
	return nil
}

func (t *Terminal) fail(err error) error {
	t.state = stateOutside
	t.params.Reset()
	if t.Policy == PolicySkip {
		t.skipped++
		log.Warnf("Skipping %s", err)
		return nil
	}
	return err
}

func (t *Terminal) escape(r rune) error {
	switch r {
	case ']':
		t.state = stateOSC
	case '[':
		t.state = stateCSI
		t.params.Reset()
	case can, sub:
		t.state = stateOutside
	default:
		return &EscapeError{Seq: string(r)}
	}
	return nil
}

// toInt parses s like a loose integer literal, returning def when it is not one.
func toInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func (t *Terminal) csi(r rune) error {
	param := t.params.String()
	n := toInt(param, 1)
	matched := true

	switch r {
	case 'A':
		t.MoveUp(n)
	case 'B', 'e':
		t.MoveDown(n)
	case 'C', 'a':
		t.MoveRight(n)
	case 'D':
		t.MoveLeft(n)
	case 'd', '`':
		t.MoveTo(n-1, 0)
	case 'E':
		t.MoveDown(n)
		t.Screen.WriteRune('\r')
	case 'F':
		t.MoveUp(n)
		t.Screen.WriteRune('\r')
	case 'G':
		t.SetCol(n - 1)
	case 'H':
		row, col := 1, 1
		parts := strings.Split(param, ";")
		switch len(parts) {
		case 1:
			row = toInt(parts[0], 1)
		case 2:
			row = toInt(parts[0], 1)
			col = toInt(parts[1], 1)
		}
		t.MoveTo(row-1, col-1)
	case 'J':
		mode := toInt(param, 0)
		t.Clear(mode)
		if mode == 2 {
			t.MoveTo(0, 0)
		}
	case 'K':
		t.EraseLine(toInt(param, 0))
	case 'h', 'l':
		// bracketed paste mode has no visible effect
		if param != "?2004" {
			return &EscapeError{Seq: "[" + param + string(r)}
		}
	case 'm':
		t.sgr(param)
	case 's':
		t.SaveCursor()
	case 'u':
		t.RestoreCursor()
	case 'S', 'T', 'f', 'i', 'n':
		return &EscapeError{Seq: "[" + param + string(r)}
	default:
		matched = false
	}

	if matched {
		t.state = stateOutside
		t.params.Reset()
	} else {
		// Unknown final bytes are kept as parameters until a known command arrives.
		t.params.WriteRune(r)
	}
	return nil
}

// sgr applies Select Graphic Rendition parameters in order.
func (t *Terminal) sgr(param string) {
	pen := t.Pen()
	for _, p := range strings.Split(param, ";") {
		code, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		switch {
		case code == 0:
			pen = DefaultPen()
		case code == 1:
			pen.Fg = pen.Fg.WithIntensity(true)
		case code == 2, code == 21, code == 22:
			pen.Fg = pen.Fg.WithIntensity(false)
		case code == 5:
			pen.Bg = pen.Bg.WithIntensity(true)
		case code == 7:
			pen.Attr = pen.Attr.With(cga.Inverse)
		case code == 25:
			pen.Bg = pen.Bg.WithIntensity(false)
		case code == 27:
			pen.Attr = pen.Attr.Without(cga.Inverse)
		case code >= 30 && code <= 37:
			pen.Fg = pen.Fg.WithHue(cga.FromStandard(code - 30))
		case code >= 40 && code <= 47:
			pen.Bg = pen.Bg.WithHue(cga.FromStandard(code - 40))
		case code >= 90 && code <= 97:
			pen.Fg = cga.FromStandard(code - 82).WithIntensity(true)
		case code >= 100 && code <= 107:
			pen.Bg = cga.FromStandard(code - 92).WithIntensity(true)
		}
	}
	t.SetPen(pen)
}
