// Package cga implements the 16 color CGA palette used by the replay terminal.
//
// A Color is a 4 bit value: the low three bits select the hue and the fourth bit
// is the intensity. Bright variants are derived by toggling intensity, so there is
// no separate table for them.
package cga

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

var ErrUnknownColor = errors.New("unknown color")

type Color uint8

const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	Gray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

const (
	hueMask       Color = 0b0111
	intensityMask Color = 0b1000
	valueMask     Color = 0b1111
)

var palette = [16][3]uint8{
	Black:        {0x00, 0x00, 0x00},
	Blue:         {0x00, 0x00, 0xFF},
	Green:        {0x00, 0xFF, 0x00},
	Cyan:         {0x00, 0xFF, 0xFF},
	Red:          {0xFF, 0x00, 0x00},
	Magenta:      {0xAA, 0x00, 0xAA},
	Brown:        {0xAA, 0x55, 0x00},
	Gray:         {0xAA, 0xAA, 0xAA},
	DarkGray:     {0x55, 0x55, 0x55},
	LightBlue:    {0x55, 0x55, 0xFF},
	LightGreen:   {0x55, 0xFF, 0x55},
	LightCyan:    {0x55, 0xFF, 0xFF},
	LightRed:     {0xFF, 0x55, 0x55},
	LightMagenta: {0xFF, 0x55, 0xFF},
	Yellow:       {0xFF, 0xFF, 0x55},
	White:        {0xFF, 0xFF, 0xFF},
}

var names = [16]string{
	"BLACK", "BLUE", "GREEN", "CYAN", "RED", "MAGENTA", "BROWN", "GRAY",
	"DARK_GRAY", "LIGHT_BLUE", "LIGHT_GREEN", "LIGHT_CYAN", "LIGHT_RED", "LIGHT_MAGENTA", "YELLOW", "WHITE",
}

// ANSI X.364 color order (black, red, green, yellow, blue, magenta, cyan, white) to CGA order.
var standardToCGA = [8]Color{0, 4, 2, 6, 1, 5, 3, 7}

// FromStandard maps an ANSI color index to its CGA hue. Only the low three bits of i
// are used, intensity is never set.
func FromStandard(i int) Color {
	return standardToCGA[((i%8)+8)%8]
}

func (c Color) Hue() Color {
	return c & hueMask
}

func (c Color) Intense() bool {
	return c&intensityMask != 0
}

func (c Color) WithIntensity(on bool) Color {
	if on {
		return c | intensityMask
	}
	return c &^ intensityMask
}

// WithHue replaces the hue bits and keeps intensity.
func (c Color) WithHue(hue Color) Color {
	return c&intensityMask | hue&hueMask
}

func (c Color) And(o Color) Color {
	return c & o
}

func (c Color) Or(o Color) Color {
	return c | o
}

// Not complements the four color bits.
func (c Color) Not() Color {
	return ^c & valueMask
}

func (c Color) Valid() bool {
	return c <= valueMask
}

// RGB resolves c to its palette entry.
func (c Color) RGB() (r, g, b uint8, err error) {
	if !c.Valid() {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrUnknownColor, uint8(c))
	}
	p := palette[c]
	return p[0], p[1], p[2], nil
}

// Pixel resolves c into an image color.
func (c Color) Pixel() (color.RGBA, error) {
	r, g, b, err := c.RGB()
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

func (c Color) Colorful() (colorful.Color, error) {
	rgba, err := c.Pixel()
	if err != nil {
		return colorful.Color{}, err
	}
	cf, _ := colorful.MakeColor(rgba)
	return cf, nil
}

// Hex returns the #rrggbb form of c, or an empty string for invalid colors.
func (c Color) Hex() string {
	cf, err := c.Colorful()
	if err != nil {
		return ""
	}
	return cf.Hex()
}

func (c Color) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Color(%d)", uint8(c))
	}
	return names[c]
}

// Attribute holds per cell rendering flags.
type Attribute uint8

const (
	Plain   Attribute = 0
	Inverse Attribute = 1 << 0
)

func (a Attribute) Has(flag Attribute) bool {
	return a&flag != 0
}

func (a Attribute) With(flag Attribute) Attribute {
	return a | flag
}

func (a Attribute) Without(flag Attribute) Attribute {
	return a &^ flag
}
