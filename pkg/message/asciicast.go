// Inspiration from https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
// First line is the header, every following line is an event: [time, type, data]
package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tidwall/gjson"
)

var ErrMalformedRecord = errors.New("malformed record")

// RecordError points at the offending line of a cast. Line is 1 based.
type RecordError struct {
	Line   int
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s at line %d: %s", ErrMalformedRecord, e.Line, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

type Header struct {
	Version   int
	Width     uint
	Height    uint
	Timestamp int64
	Title     string
	// Raw is the header line as recorded, including fields tcast does not read
	Raw string
}

type AsciiCastEventType string

const (
	// read from stdin
	EIn AsciiCastEventType = "i"
	// write to stdout
	EOut AsciiCastEventType = "o"
	// winsize change
	ESize AsciiCastEventType = "s"
)

type Event struct {
	Time float64
	Type AsciiCastEventType
	Data string
}

type Cast struct {
	Header Header
	Events []Event
}

// Duration is the time of the last event.
func (c *Cast) Duration() float64 {
	if len(c.Events) == 0 {
		return 0
	}
	return c.Events[len(c.Events)-1].Time
}

// Outputs returns the output events in log order.
func (c *Cast) Outputs() []Event {
	var out []Event
	for _, e := range c.Events {
		if e.Type == EOut {
			out = append(out, e)
		}
	}
	return out
}

// Resize overrides the recorded terminal size. Zero keeps the recorded value.
func (c *Cast) Resize(width, height uint) {
	if width > 0 {
		c.Header.Width = width
	}
	if height > 0 {
		c.Header.Height = height
	}
}

func positiveInt(v gjson.Result) (uint, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if f < 1 || f != math.Trunc(f) {
		return 0, false
	}
	return uint(f), true
}

func ParseHeader(line []byte) (Header, error) {
	var h Header
	if !gjson.ValidBytes(line) {
		return h, errors.New("header is not valid JSON")
	}
	v := gjson.ParseBytes(line)
	if !v.IsObject() {
		return h, errors.New("header is not an object")
	}

	width, ok := positiveInt(v.Get("width"))
	if !ok {
		return h, errors.New("header width must be a positive integer")
	}
	height, ok := positiveInt(v.Get("height"))
	if !ok {
		return h, errors.New("header height must be a positive integer")
	}

	h = Header{
		Version:   int(v.Get("version").Int()),
		Width:     width,
		Height:    height,
		Timestamp: v.Get("timestamp").Int(),
		Title:     v.Get("title").String(),
		Raw:       string(line),
	}
	return h, nil
}

func ParseEvent(line []byte) (Event, error) {
	var e Event
	if !gjson.ValidBytes(line) {
		return e, errors.New("event is not valid JSON")
	}
	v := gjson.ParseBytes(line)
	if !v.IsArray() {
		return e, errors.New("event is not an array")
	}
	fields := v.Array()
	if len(fields) != 3 {
		return e, fmt.Errorf("event has %d fields, want 3", len(fields))
	}
	if fields[0].Type != gjson.Number {
		return e, errors.New("event time is not a number")
	}
	if fields[1].Type != gjson.String || fields[2].Type != gjson.String {
		return e, errors.New("event type and data must be strings")
	}

	e = Event{
		Time: fields[0].Float(),
		Type: AsciiCastEventType(fields[1].String()),
		Data: fields[2].String(),
	}
	return e, nil
}

// ParseCast reads a whole cast. Blank lines are skipped, anything else that does not
// parse fails with a *RecordError.
func ParseCast(r io.Reader) (*Cast, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var cast *Cast
	lineNo := 0
	for scanner.Scan() {
		lineNo += 1
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if cast == nil {
			header, err := ParseHeader(line)
			if err != nil {
				return nil, &RecordError{Line: lineNo, Reason: err.Error()}
			}
			cast = &Cast{Header: header}
			continue
		}

		event, err := ParseEvent(line)
		if err != nil {
			return nil, &RecordError{Line: lineNo, Reason: err.Error()}
		}
		cast.Events = append(cast.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cast: %w", err)
	}
	if cast == nil {
		return nil, &RecordError{Line: lineNo, Reason: "missing header"}
	}
	return cast, nil
}
