package render

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"

	"github.com/qnkhuat/tcast/internal/cfg"
)

// Font is a monospace face with a fixed cell size.
type Font struct {
	face   font.Face
	width  int
	height int
	ascent int
}

// NewFont measures face using 'X' as the representative glyph.
func NewFont(face font.Face) *Font {
	advance, ok := face.GlyphAdvance('X')
	if !ok {
		advance = face.Metrics().Height / 2
	}
	m := face.Metrics()
	return &Font{
		face:   face,
		width:  advance.Ceil(),
		height: m.Height.Ceil(),
		ascent: m.Ascent.Ceil(),
	}
}

// BasicFont is the 7x13 bitmap face, no parsing involved.
func BasicFont() *Font {
	return NewFont(basicfont.Face7x13)
}

// GoMonoFont renders Go Mono at size points.
func GoMonoFont(size float64) (*Font, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse Go Mono: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     cfg.DEFAULT_FONT_DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create Go Mono face: %w", err)
	}
	return NewFont(face), nil
}

// LoadFont picks the bitmap face for size 0 and Go Mono otherwise.
func LoadFont(size float64) (*Font, error) {
	if size <= 0 {
		return BasicFont(), nil
	}
	return GoMonoFont(size)
}

// Metrics returns the cell size in pixels.
func (f *Font) Metrics() (cellWidth, cellHeight int) {
	return f.width, f.height
}

func (f *Font) Face() font.Face {
	return f.face
}
