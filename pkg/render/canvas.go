package render

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/qnkhuat/tcast/pkg/cga"
)

// Canvas receives the draw commands of one frame.
type Canvas interface {
	// FillRect paints [min, max) with c.
	FillRect(min, max image.Point, c cga.Color) error
	// DrawGlyph draws r with its cell's top left corner at pos.
	DrawGlyph(pos image.Point, r rune, c cga.Color) error
}

// ImageCanvas draws into an RGBA image.
type ImageCanvas struct {
	img  *image.RGBA
	font *Font
}

func NewImageCanvas(img *image.RGBA, f *Font) *ImageCanvas {
	return &ImageCanvas{img: img, font: f}
}

func (c *ImageCanvas) Image() *image.RGBA {
	return c.img
}

func (c *ImageCanvas) FillRect(min, max image.Point, col cga.Color) error {
	px, err := col.Pixel()
	if err != nil {
		return err
	}
	draw.Draw(c.img, image.Rectangle{Min: min, Max: max}, image.NewUniform(px), image.Point{}, draw.Src)
	return nil
}

func (c *ImageCanvas) DrawGlyph(pos image.Point, r rune, col cga.Color) error {
	px, err := col.Pixel()
	if err != nil {
		return err
	}
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(px),
		Face: c.font.face,
		Dot:  fixed.P(pos.X, pos.Y+c.font.ascent),
	}
	d.DrawString(string(r))
	return nil
}
