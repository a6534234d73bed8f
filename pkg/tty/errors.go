package tty

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedEscape is returned when the terminal meets an escape sequence it does not emulate.
var ErrUnsupportedEscape = errors.New("unsupported escape sequence")

// EscapeError describes the offending sequence. Seq is the text after ESC.
type EscapeError struct {
	Seq string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("%s: ESC %s", ErrUnsupportedEscape, strconv.Quote(e.Seq))
}

func (e *EscapeError) Unwrap() error {
	return ErrUnsupportedEscape
}
