// Package viewer plays a cast back inside the current terminal.
package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/pkg/cga"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/playback"
	"github.com/qnkhuat/tcast/pkg/render"
	"github.com/qnkhuat/tcast/pkg/tty"
)

var ErrQuit = errors.New("playback stopped by user")

// Viewer draws frames on a tcell screen. The screen is owned by the caller.
type Viewer struct {
	screen   tcell.Screen
	interval time.Duration
	last     time.Time

	quit     chan struct{}
	quitOnce sync.Once
}

func New(screen tcell.Screen) *Viewer {
	return &Viewer{
		screen: screen,
		quit:   make(chan struct{}),
	}
}

// SetFPS paces WriteFrame to fps frames per second. 0 disables pacing.
func (v *Viewer) SetFPS(fps int) {
	if fps <= 0 {
		v.interval = 0
		return
	}
	v.interval = time.Second / time.Duration(fps)
}

func (v *Viewer) Quit() {
	v.quitOnce.Do(func() {
		close(v.quit)
	})
}

func (v *Viewer) Done() <-chan struct{} {
	return v.quit
}

// HandleEvent reacts to one screen event. It returns false once the viewer should stop.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventKey:
		if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC || (e.Key() == tcell.KeyRune && e.Rune() == 'q') {
			v.Quit()
			return false
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) pollEvents() {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		if !v.HandleEvent(ev) {
			return
		}
	}
}

// Play replays cast on the screen until it ends, ctx is done or the user quits.
func (v *Viewer) Play(ctx context.Context, cast *message.Cast, opts playback.Options) (playback.Stats, error) {
	p := playback.New(cast, opts)
	fps, err := p.FPS()
	if err != nil {
		return playback.Stats{}, err
	}
	v.SetFPS(fps)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go v.pollEvents()
	go func() {
		select {
		case <-v.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	stats, err := p.Run(ctx, v)
	select {
	case <-v.quit:
		log.Printf("Playback stopped after %d frames", stats.Emitted)
		return stats, ErrQuit
	default:
	}
	return stats, err
}

// WriteFrame implements playback.FrameSink.
func (v *Viewer) WriteFrame(f playback.Frame) error {
	select {
	case <-v.quit:
		return ErrQuit
	default:
	}

	if err := v.Draw(f.View); err != nil {
		return err
	}
	v.screen.Show()

	if v.interval > 0 {
		if wait := time.Until(v.last.Add(v.interval)); wait > 0 {
			select {
			case <-time.After(wait):
			case <-v.quit:
				return ErrQuit
			}
		}
		v.last = time.Now()
	}
	return nil
}

func rgb(c cga.Color) (tcell.Color, error) {
	r, g, b, err := c.RGB()
	if err != nil {
		return tcell.ColorDefault, err
	}
	return tcell.NewRGBColor(int32(r), int32(g), int32(b)), nil
}

func style(fg, bg cga.Color) (tcell.Style, error) {
	f, err := rgb(fg)
	if err != nil {
		return tcell.StyleDefault, err
	}
	b, err := rgb(bg)
	if err != nil {
		return tcell.StyleDefault, err
	}
	return tcell.StyleDefault.Foreground(f).Background(b), nil
}

// Draw paints view at the top left corner of the screen with the same colors
// the image renderer would use.
func (v *Viewer) Draw(view tty.View) error {
	width, height := view.Size()
	pen := view.Pen()
	bell := view.Bell()
	cursorRow, cursorCol := view.Cursor()
	showCursor := view.CursorVisible()

	fill := pen.Bg
	if bell {
		fill = pen.Fg
	}
	blank, err := style(pen.Fg, fill)
	if err != nil {
		return err
	}
	block, err := style(pen.Bg, pen.Fg)
	if err != nil {
		return err
	}

	v.screen.Clear()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			onCursor := showCursor && cursorRow == y && cursorCol == x
			cl := view.Cell(y, x)
			if !cl.Set {
				st := blank
				if onCursor {
					st = block
				}
				v.screen.SetContent(x, y, ' ', nil, st)
				continue
			}
			fg, bg := render.CellColors(cl, bell, onCursor)
			st, err := style(fg, bg)
			if err != nil {
				return err
			}
			v.screen.SetContent(x, y, cl.Glyph, nil, st)
		}
	}
	return nil
}
