package message

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCast = `{"version": 2, "width": 80, "height": 24, "timestamp": 1504467315, "title": "Demo", "env": {"TERM": "xterm-256color"}}
[0.248848, "o", "\u001b[1;31mHello \u001b[32mWorld!\u001b[0m\n"]
[1.001376, "i", "ls\r"]
[1.5, "o", "a.txt\r\n"]
`

func TestParseCast(t *testing.T) {
	cast, err := ParseCast(strings.NewReader(sampleCast))
	require.NoError(t, err)

	assert.Equal(t, 2, cast.Header.Version)
	assert.Equal(t, uint(80), cast.Header.Width)
	assert.Equal(t, uint(24), cast.Header.Height)
	assert.Equal(t, int64(1504467315), cast.Header.Timestamp)
	assert.Equal(t, "Demo", cast.Header.Title)
	assert.Contains(t, cast.Header.Raw, `"TERM": "xterm-256color"`)

	require.Len(t, cast.Events, 3)
	assert.Equal(t, Event{Time: 0.248848, Type: EOut, Data: "\x1b[1;31mHello \x1b[32mWorld!\x1b[0m\n"}, cast.Events[0])
	assert.Equal(t, Event{Time: 1.001376, Type: EIn, Data: "ls\r"}, cast.Events[1])
	assert.Equal(t, 1.5, cast.Duration())
	assert.Len(t, cast.Outputs(), 2)
}

func TestParseCastSkipsBlankLines(t *testing.T) {
	cast, err := ParseCast(strings.NewReader("\n{\"width\": 2, \"height\": 1}\n\n[0, \"o\", \"x\"]\n  \n"))
	require.NoError(t, err)
	assert.Len(t, cast.Events, 1)
}

func TestParseCastMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"empty", "", 0},
		{"header not json", "width=80\n", 1},
		{"header not object", "[1, 2]\n", 1},
		{"missing width", `{"height": 24}`, 1},
		{"zero height", `{"width": 80, "height": 0}`, 1},
		{"fractional width", `{"width": 80.5, "height": 24}`, 1},
		{"string width", `{"width": "80", "height": 24}`, 1},
		{"event not array", "{\"width\": 8, \"height\": 2}\n{\"t\": 1}\n", 2},
		{"short event", "{\"width\": 8, \"height\": 2}\n[1, \"o\"]\n", 2},
		{"long event", "{\"width\": 8, \"height\": 2}\n[1, \"o\", \"a\", \"b\"]\n", 2},
		{"time not number", "{\"width\": 8, \"height\": 2}\n[\"1\", \"o\", \"a\"]\n", 2},
		{"data not string", "{\"width\": 8, \"height\": 2}\n[0, \"o\", \"a\"]\n[1, \"o\", 5]\n", 3},
		{"broken json", "{\"width\": 8, \"height\": 2}\n[1, \"o\", \"a\"\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCast(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)

			var recErr *RecordError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, tt.line, recErr.Line)
		})
	}
}

func TestResize(t *testing.T) {
	cast, err := ParseCast(strings.NewReader(sampleCast))
	require.NoError(t, err)

	cast.Resize(100, 0)
	assert.Equal(t, uint(100), cast.Header.Width)
	assert.Equal(t, uint(24), cast.Header.Height)
}

func TestReadCastFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "demo.cast")
	require.NoError(t, os.WriteFile(plain, []byte(sampleCast), 0644))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleCast))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	compressed := filepath.Join(dir, "demo.cast.gz")
	require.NoError(t, os.WriteFile(compressed, buf.Bytes(), 0644))

	want, err := ReadCastFile(plain)
	require.NoError(t, err)
	got, err := ReadCastFile(compressed)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ReadCastFile(filepath.Join(dir, "missing.cast"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrapUnwrap(t *testing.T) {
	msg, err := Wrap(TProgress, Progress{Frame: 3, Total: 10})
	require.NoError(t, err)

	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	got, err := Unwrap(payload)
	require.NoError(t, err)
	assert.Equal(t, TProgress, got.Type)

	var p Progress
	require.NoError(t, ToStruct(got.Data, &p))
	assert.Equal(t, Progress{Frame: 3, Total: 10}, p)
}

func TestNewGZReader(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleCast))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := NewGZReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	cast, err := ParseCast(r)
	require.NoError(t, err)
	assert.NotEmpty(t, cast.Events)
	assert.NoError(t, r.Close())

	// shorter than the magic
	r, err = NewGZReader(bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	_, err = ParseCast(r)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
