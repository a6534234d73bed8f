// Package render turns terminal frames into images.
//
// The image has a one cell margin on every side, so a width x height terminal
// becomes (width+2)*cellWidth by (height+2)*cellHeight pixels.
package render

import (
	"image"

	"github.com/qnkhuat/tcast/pkg/cga"
	"github.com/qnkhuat/tcast/pkg/playback"
	"github.com/qnkhuat/tcast/pkg/tty"
)

// Bounds is the image rectangle for a width x height terminal.
func Bounds(width, height, cellWidth, cellHeight int) image.Rectangle {
	return image.Rect(0, 0, (width+2)*cellWidth, (height+2)*cellHeight)
}

// CellColors resolves the colors a set cell is drawn with. The bell, the inverse
// attribute and the cursor each swap foreground and background, in that order.
func CellColors(cl tty.Cell, bell, cursor bool) (fg, bg cga.Color) {
	fg, bg = cl.Fg, cl.Bg
	if bell {
		fg, bg = bg, fg
	}
	if cl.Attr.Has(cga.Inverse) {
		fg, bg = bg, fg
	}
	if cursor {
		fg, bg = bg, fg
	}
	return fg, bg
}

// Draw paints v onto c.
//
// The whole frame is filled with the pen background, or the pen foreground while
// the bell rings. Set cells are then drawn with CellColors, and a cursor that sits
// on no set cell becomes a block in the pen foreground.
func Draw(c Canvas, v tty.View, cellWidth, cellHeight int) error {
	width, height := v.Size()
	pen := v.Pen()
	bell := v.Bell()

	fill := pen.Bg
	if bell {
		fill = pen.Fg
	}
	bounds := Bounds(width, height, cellWidth, cellHeight)
	if err := c.FillRect(bounds.Min, bounds.Max, fill); err != nil {
		return err
	}

	cursorRow, cursorCol := v.Cursor()
	showCursor := v.CursorVisible()
	cursorDrawn := false
	cell := image.Pt(cellWidth, cellHeight)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			cl := v.Cell(y, x)
			if !cl.Set {
				continue
			}
			onCursor := showCursor && cursorRow == y && cursorCol == x
			if onCursor {
				cursorDrawn = true
			}
			fg, bg := CellColors(cl, bell, onCursor)

			pos := image.Pt(cellWidth*(x+1), cellHeight*(y+1))
			if err := c.FillRect(pos, pos.Add(cell), bg); err != nil {
				return err
			}
			if err := c.DrawGlyph(pos, cl.Glyph, fg); err != nil {
				return err
			}
		}
	}

	if showCursor && !cursorDrawn {
		pos := image.Pt(cellWidth*(cursorCol+1), cellHeight*(cursorRow+1))
		if err := c.FillRect(pos, pos.Add(cell), pen.Fg); err != nil {
			return err
		}
	}
	return nil
}

// ImageSink takes finished frames in emission order.
type ImageSink interface {
	WriteImage(seq int, img image.Image) error
}

// Renderer is a playback.FrameSink that rasterizes every frame it gets.
type Renderer struct {
	font  *Font
	sink  ImageSink
	count int
}

func NewRenderer(f *Font, sink ImageSink) *Renderer {
	return &Renderer{font: f, sink: sink}
}

// Rendered is the number of frames handed to the sink so far.
func (r *Renderer) Rendered() int {
	return r.count
}

func (r *Renderer) WriteFrame(f playback.Frame) error {
	cellWidth, cellHeight := r.font.Metrics()
	width, height := f.View.Size()
	img := image.NewRGBA(Bounds(width, height, cellWidth, cellHeight))
	if err := Draw(NewImageCanvas(img, r.font), f.View, cellWidth, cellHeight); err != nil {
		return err
	}
	if err := r.sink.WriteImage(r.count, img); err != nil {
		return err
	}
	r.count += 1
	return nil
}
