package playback

/***
Replays a cast through the terminal emulator and slices it into frames.

Frame f covers the window [f/fps, (f+1)/fps). Every output event recorded before the
end of the window is applied, in log order, exactly once. A window with no events is
idle, and once more than the idle limit's worth of idle frames pile up in a row the
rest are dropped so long pauses stay short in the video.
***/
import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/internal/cfg"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/tty"
)

var ErrDegenerateRate = errors.New("frame rate is zero: no usable delay between output events, set the fps explicitly")

// Frame is handed to a FrameSink for every emitted window.
// View is the live screen and is only valid until WriteFrame returns.
type Frame struct {
	Index int
	Time  float64
	View  tty.View
}

type FrameSink interface {
	WriteFrame(Frame) error
}

type FrameSinkFunc func(Frame) error

func (f FrameSinkFunc) WriteFrame(frame Frame) error {
	return f(frame)
}

// ProgressFunc runs before each frame's events are applied, dropped frames included.
// Returning an error stops the replay.
type ProgressFunc func(frame, total int) error

type Options struct {
	// FPS of the output. 0 infers it from the cast.
	FPS int
	// IdleTimeLimit caps pauses, in seconds. 0 or less keeps every idle frame.
	IdleTimeLimit float64
	Policy        tty.EscapePolicy
	Progress      ProgressFunc
}

type Stats struct {
	FPS            int
	Frames         int
	Emitted        int
	Dropped        int
	Events         int
	SkippedEscapes int
}

// Playback owns the terminal for one replay. Events are taken in log order and
// never sorted: a cast whose times go backwards is replayed as written.
type Playback struct {
	cast       *message.Cast
	opts       Options
	term       *tty.Terminal
	offset     int
	idleFrames int
}

func New(cast *message.Cast, opts Options) *Playback {
	return &Playback{
		cast: cast,
		opts: opts,
	}
}

// InferFPS picks the rate that gives every distinct output a frame of its own.
// Deltas are clipped to idleTimeLimit when it is positive, and deltas under
// cfg.FPS_NOISE_FLOOR are ignored. It returns 0 when nothing qualifies.
func InferFPS(events []message.Event, idleTimeLimit float64) int {
	minDelta := -1.0
	last := 0.0
	started := false
	for _, e := range events {
		if e.Type != message.EOut {
			continue
		}
		if !started {
			last = e.Time
			started = true
			continue
		}
		delta := e.Time - last
		if idleTimeLimit > 0 {
			delta = math.Min(delta, idleTimeLimit)
		}
		if delta >= cfg.FPS_NOISE_FLOOR {
			if minDelta < 0 || delta < minDelta {
				minDelta = delta
			}
			last = e.Time
		}
	}
	if minDelta <= 0 {
		return 0
	}
	// the epsilon keeps 1/0.1 from turning into 11 on float noise
	return int(math.Ceil(1/minDelta - 1e-9))
}

// FPS resolves the frame rate of the replay.
func (p *Playback) FPS() (int, error) {
	fps := p.opts.FPS
	if fps <= 0 {
		fps = InferFPS(p.cast.Events, p.opts.IdleTimeLimit)
	}
	if fps <= 0 {
		return 0, ErrDegenerateRate
	}
	return fps, nil
}

// FrameCount is the number of windows for the given rate.
func (p *Playback) FrameCount(fps int) int {
	return int(math.Ceil(p.cast.Duration())) * fps
}

func (p *Playback) maxIdleFrames(fps, numFrames int) int {
	if p.opts.IdleTimeLimit <= 0 {
		return numFrames + 1
	}
	return int(p.opts.IdleTimeLimit*float64(fps) + 0.5)
}

func (p *Playback) reset() {
	p.term = tty.NewTerminal(int(p.cast.Header.Width), int(p.cast.Header.Height))
	p.term.Policy = p.opts.Policy
	p.offset = 0
	p.idleFrames = 0
}

// Terminal is the terminal of the last Run.
func (p *Playback) Terminal() *tty.Terminal {
	return p.term
}

// Run replays the whole cast, calling sink for every frame that is not dropped.
// Each Run starts from a blank terminal, so running twice gives the same frames.
func (p *Playback) Run(ctx context.Context, sink FrameSink) (Stats, error) {
	fps, err := p.FPS()
	if err != nil {
		return Stats{}, err
	}
	p.reset()

	numFrames := p.FrameCount(fps)
	maxIdle := p.maxIdleFrames(fps, numFrames)
	stats := Stats{FPS: fps, Frames: numFrames}
	log.Printf("Playback of %d events at %d fps: %d frames, max idle frames %d", len(p.cast.Events), fps, numFrames, maxIdle)

	for frame := 0; frame < numFrames; frame++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if p.opts.Progress != nil {
			if err := p.opts.Progress(frame, numFrames); err != nil {
				return stats, err
			}
		}

		start := float64(frame) / float64(fps)
		end := float64(frame+1) / float64(fps)
		applied, err := p.advance(end, frame == numFrames-1)
		stats.Events += applied
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", frame, err)
		}

		emit := true
		if applied == 0 {
			p.idleFrames += 1
			// drop this frame to stay within the idle time limit
			if p.idleFrames >= maxIdle {
				emit = false
			}
		} else {
			p.idleFrames = 0
		}

		if emit {
			if err := sink.WriteFrame(Frame{Index: frame, Time: start, View: p.term.Screen}); err != nil {
				return stats, fmt.Errorf("frame %d: %w", frame, err)
			}
			stats.Emitted += 1
		} else {
			stats.Dropped += 1
		}
		p.term.ClearBell()
	}

	stats.SkippedEscapes = p.term.Skipped()
	log.Printf("Playback done: %d emitted, %d dropped, %d events, %d skipped escapes", stats.Emitted, stats.Dropped, stats.Events, stats.SkippedEscapes)
	return stats, nil
}

// advance applies the output events recorded before end. The last window also takes
// events that land exactly on its end, so a cast ending on a whole second loses nothing.
func (p *Playback) advance(end float64, closed bool) (int, error) {
	applied := 0
	events := p.cast.Events
	for p.offset < len(events) {
		e := events[p.offset]
		if e.Type != message.EOut {
			p.offset += 1
			continue
		}
		if e.Time > end || (e.Time == end && !closed) {
			break
		}
		p.offset += 1
		applied += 1
		if _, err := p.term.WriteString(e.Data); err != nil {
			return applied, fmt.Errorf("event %d at %.3fs: %w", p.offset-1, e.Time, err)
		}
	}
	return applied, nil
}

// ScreenAt replays every output event up to and including time t.
func ScreenAt(cast *message.Cast, t float64, policy tty.EscapePolicy) (*tty.Terminal, error) {
	term := tty.NewTerminal(int(cast.Header.Width), int(cast.Header.Height))
	term.Policy = policy
	for i, e := range cast.Events {
		if e.Type != message.EOut {
			continue
		}
		if e.Time > t {
			break
		}
		if _, err := term.WriteString(e.Data); err != nil {
			return term, fmt.Errorf("event %d at %.3fs: %w", i, e.Time, err)
		}
	}
	return term, nil
}
