package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/tty"
)

func out(t float64, data string) message.Event {
	return message.Event{Time: t, Type: message.EOut, Data: data}
}

func in(t float64, data string) message.Event {
	return message.Event{Time: t, Type: message.EIn, Data: data}
}

func newCast(width, height uint, events ...message.Event) *message.Cast {
	return &message.Cast{
		Header: message.Header{Version: 2, Width: width, Height: height},
		Events: events,
	}
}

type recorded struct {
	index int
	snap  *tty.Snapshot
}

type collector struct {
	frames []recorded
}

func (c *collector) WriteFrame(f Frame) error {
	screen, ok := f.View.(*tty.Screen)
	if !ok {
		return errors.New("unexpected view")
	}
	c.frames = append(c.frames, recorded{index: f.Index, snap: screen.Snapshot()})
	return nil
}

func (c *collector) indexes() []int {
	var idx []int
	for _, f := range c.frames {
		idx = append(idx, f.index)
	}
	return idx
}

func TestInferFPS(t *testing.T) {
	events := []message.Event{out(0, "a"), out(0.1, "b"), out(0.3, "c")}
	assert.Equal(t, 10, InferFPS(events, 0))
}

func TestInferFPSSingleEvent(t *testing.T) {
	assert.Equal(t, 0, InferFPS([]message.Event{out(1, "a")}, 0))
	assert.Equal(t, 0, InferFPS(nil, 0))
}

func TestInferFPSIgnoresNoiseAndInput(t *testing.T) {
	events := []message.Event{out(0, "a"), in(0.2, "x"), out(0.01, "b"), out(0.5, "c"), out(1.5, "d")}
	// 0.01 is under the noise floor and does not move the reference, so 0.5 is measured from 0
	assert.Equal(t, 2, InferFPS(events, 0))
}

func TestInferFPSClipsToIdleLimit(t *testing.T) {
	events := []message.Event{out(0, "a"), out(2, "b"), out(5, "c")}
	assert.Equal(t, 1, InferFPS(events, 0))
	assert.Equal(t, 4, InferFPS(events, 0.25))
	// clipping below the noise floor leaves nothing
	assert.Equal(t, 0, InferFPS(events, 0.05))
}

func TestInferFPSRoundsUp(t *testing.T) {
	events := []message.Event{out(0, "a"), out(0.3, "b")}
	assert.Equal(t, 4, InferFPS(events, 0))
}

func TestDegenerateRate(t *testing.T) {
	p := New(newCast(10, 2, out(0, "a")), Options{})
	_, err := p.Run(context.Background(), &collector{})
	assert.ErrorIs(t, err, ErrDegenerateRate)

	p = New(newCast(10, 2, out(0, "a"), out(1, "b")), Options{FPS: 5})
	_, err = p.Run(context.Background(), &collector{})
	assert.NoError(t, err)
}

func TestRunUsesInferredRate(t *testing.T) {
	p := New(newCast(10, 2, out(0, "a"), out(0.1, "b"), out(0.3, "c")), Options{})
	stats, err := p.Run(context.Background(), &collector{})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.FPS)
	assert.Equal(t, 10, stats.Frames)
	assert.Equal(t, 3, stats.Events)
}

func TestWindows(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0, "a"), out(0.05, "b"), out(0.1, "c"), out(0.35, "d")), Options{FPS: 10})
	stats, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	require.Equal(t, 10, stats.Frames)
	require.Len(t, c.frames, 10)
	assert.Equal(t, "ab", c.frames[0].snap.Text()[0])
	assert.Equal(t, "abc", c.frames[1].snap.Text()[0])
	assert.Equal(t, "abc", c.frames[2].snap.Text()[0])
	assert.Equal(t, "abcd", c.frames[3].snap.Text()[0])
	assert.Equal(t, "abcd", c.frames[9].snap.Text()[0])
}

func TestEveryOutputAppliedOnce(t *testing.T) {
	events := []message.Event{
		out(0, "1"), in(0.05, "x"), out(0.1, "2"), in(0.1, "y"), in(0.2, "z"),
		out(0.25, "3"), {Time: 0.3, Type: message.ESize, Data: "80x24"}, out(0.9, "4"), out(2, "5"),
	}
	c := &collector{}
	p := New(newCast(20, 2, events...), Options{FPS: 4})
	stats, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Events)
	last := c.frames[len(c.frames)-1].snap
	assert.Equal(t, "12345", last.Text()[0])
	assert.Equal(t, last.Text(), p.Terminal().Text())
}

func TestLastEventOnWholeSecond(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0, "a"), out(1, "b")), Options{FPS: 2})
	stats, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, "ab", c.frames[1].snap.Text()[0])
}

func TestIdleFrameCapping(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0, "a"), out(5, "b")), Options{FPS: 10, IdleTimeLimit: 1})
	stats, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 50, stats.Frames)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 49}, c.indexes())
	assert.Equal(t, 11, stats.Emitted)
	assert.Equal(t, 39, stats.Dropped)
	assert.Equal(t, "ab", c.frames[len(c.frames)-1].snap.Text()[0])
}

func TestIdleCapResetsAfterActivity(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0, "a"), out(1, "b"), out(2, "c")), Options{FPS: 4, IdleTimeLimit: 0.5})
	_, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	// max idle frames is 2: one idle frame is kept after each event
	assert.Equal(t, []int{0, 1, 4, 5, 7}, c.indexes())
}

func TestNoIdleLimitKeepsEverything(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0, "a"), out(5, "b")), Options{FPS: 10})
	stats, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 50, stats.Emitted)
	assert.Equal(t, 0, stats.Dropped)
}

func TestBellLastsOneFrame(t *testing.T) {
	c := &collector{}
	p := New(newCast(10, 2, out(0.15, "\a"), out(0.95, "x")), Options{FPS: 10})
	_, err := p.Run(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, c.frames, 10)
	for i, f := range c.frames {
		assert.Equal(t, i == 1, f.snap.Bell(), "frame %d", i)
	}
}

func TestDeterministic(t *testing.T) {
	cast := newCast(8, 3,
		out(0, "\x1b[1;31mhello\x1b[0m\r\n"),
		out(0.2, "world\a"),
		out(0.5, "\x1b[2J\x1b[3;3Hxy"),
		out(1.7, "\x1b[7mz\x1b[27m\n\n\n"),
	)
	opts := Options{FPS: 10, IdleTimeLimit: 0.3}

	first := &collector{}
	_, err := New(cast, opts).Run(context.Background(), first)
	require.NoError(t, err)

	p := New(cast, opts)
	second := &collector{}
	_, err = p.Run(context.Background(), second)
	require.NoError(t, err)
	third := &collector{}
	_, err = p.Run(context.Background(), third)
	require.NoError(t, err)

	assert.Equal(t, first.frames, second.frames)
	assert.Equal(t, first.frames, third.frames)
}

func TestProgressCalledForEveryFrame(t *testing.T) {
	var calls []int
	c := &collector{}
	opts := Options{
		FPS:           10,
		IdleTimeLimit: 0.2,
		Progress: func(frame, total int) error {
			assert.Equal(t, 20, total)
			// progress runs before the window is applied
			if n := len(c.frames); n > 0 {
				assert.Less(t, c.frames[n-1].index, frame)
			}
			calls = append(calls, frame)
			return nil
		},
	}
	stats, err := New(newCast(10, 2, out(0, "a"), out(1.5, "b")), opts).Run(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, calls, 20)
	for i, f := range calls {
		assert.Equal(t, i, f)
	}
	assert.Equal(t, 20, stats.Emitted+stats.Dropped)
	assert.NotZero(t, stats.Dropped)
}

func TestProgressErrorAborts(t *testing.T) {
	stop := errors.New("stop")
	c := &collector{}
	opts := Options{
		FPS: 10,
		Progress: func(frame, total int) error {
			if frame == 3 {
				return stop
			}
			return nil
		},
	}
	stats, err := New(newCast(10, 2, out(0, "a"), out(1, "b")), opts).Run(context.Background(), c)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, stats.Emitted)
	assert.Len(t, c.frames, 3)
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(newCast(10, 2, out(0, "a"), out(1, "b")), Options{FPS: 10}).Run(ctx, &collector{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSinkErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	sink := FrameSinkFunc(func(f Frame) error {
		if f.Index == 2 {
			return boom
		}
		return nil
	})
	_, err := New(newCast(10, 2, out(0, "a"), out(1, "b")), Options{FPS: 10}).Run(context.Background(), sink)
	assert.ErrorIs(t, err, boom)
}

func TestUnsupportedEscapeAbortsReplay(t *testing.T) {
	cast := newCast(10, 2, out(0, "a"), out(0.5, "\x1b[6n"), out(1, "b"))

	c := &collector{}
	_, err := New(cast, Options{FPS: 10}).Run(context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, tty.ErrUnsupportedEscape)
	assert.Len(t, c.frames, 5)

	c = &collector{}
	stats, err := New(cast, Options{FPS: 10, Policy: tty.PolicySkip}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedEscapes)
	assert.Equal(t, "ab", c.frames[len(c.frames)-1].snap.Text()[0])
}

func TestEmptyCast(t *testing.T) {
	stats, err := New(newCast(10, 2), Options{FPS: 10}).Run(context.Background(), &collector{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Frames)
}

func TestScreenAt(t *testing.T) {
	cast := newCast(10, 2, out(0, "a"), in(0.5, "q"), out(1, "b"), out(2, "c"))

	term, err := ScreenAt(cast, 1, tty.PolicyAbort)
	require.NoError(t, err)
	assert.Equal(t, "ab", term.Text()[0])

	_, err = ScreenAt(newCast(10, 2, out(0, "\x1b7")), 1, tty.PolicyAbort)
	assert.ErrorIs(t, err, tty.ErrUnsupportedEscape)
}
