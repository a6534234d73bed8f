package tty

import (
	"strings"

	"github.com/qnkhuat/tcast/pkg/cga"
)

// Cell is a single character position. Set is false for a cell that was never
// written or has been cleared.
type Cell struct {
	Glyph rune
	Fg    cga.Color
	Bg    cga.Color
	Attr  cga.Attribute
	Set   bool
}

// Pen is the style applied to newly written cells.
type Pen struct {
	Fg   cga.Color
	Bg   cga.Color
	Attr cga.Attribute
}

func DefaultPen() Pen {
	return Pen{Fg: cga.Gray, Bg: cga.Black, Attr: cga.Plain}
}

// View is the read-only state a renderer needs to draw one frame.
type View interface {
	Size() (width, height int)
	Cell(row, col int) Cell
	Cursor() (row, col int)
	CursorVisible() bool
	Bell() bool
	Pen() Pen
}

type position struct {
	row, col int
}

// Screen is a fixed size grid of cells with a cursor and a pen.
// It is owned by a single replay and is not safe for concurrent use.
type Screen struct {
	width      int
	height     int
	rows       [][]Cell
	row        int
	col        int
	pen        Pen
	bell       bool
	hideCursor bool
	saved      *position
}

func NewScreen(width, height int) *Screen {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	s := &Screen{
		width:  width,
		height: height,
		pen:    DefaultPen(),
	}
	s.rows = make([][]Cell, height)
	for i := range s.rows {
		s.rows[i] = make([]Cell, width)
	}
	return s
}

// constrain clamps n to [lo, hi).
func constrain(n, lo, hi int) int {
	if n < lo {
		n = lo
	}
	if n > hi-1 {
		n = hi - 1
	}
	return n
}

func (s *Screen) Size() (int, int) {
	return s.width, s.height
}

func (s *Screen) Cell(row, col int) Cell {
	if row < 0 || row >= s.height || col < 0 || col >= s.width {
		return Cell{}
	}
	return s.rows[row][col]
}

func (s *Screen) Cursor() (int, int) {
	return s.row, s.col
}

func (s *Screen) CursorVisible() bool {
	return !s.hideCursor
}

func (s *Screen) SetCursorVisible(visible bool) {
	s.hideCursor = !visible
}

func (s *Screen) Bell() bool {
	return s.bell
}

func (s *Screen) ClearBell() {
	s.bell = false
}

func (s *Screen) Pen() Pen {
	return s.pen
}

func (s *Screen) SetPen(p Pen) {
	s.pen = p
}

// WriteRune puts r at the cursor with the current pen. Line feed, carriage return,
// backspace, delete and bell are handled structurally. The cursor wraps at the
// right edge and the screen scrolls at the bottom.
func (s *Screen) WriteRune(r rune) {
	switch r {
	case '\n':
		s.col = 0
		s.row++
	case '\r':
		s.col = 0
	case '\b':
		if s.col > 0 {
			s.deleteCell(s.col - 1)
			s.col--
		}
	case 0x7F:
		s.deleteCell(s.col)
	case 0x07:
		s.bell = true
	default:
		if s.row >= 0 && s.row < s.height && s.col >= 0 && s.col < s.width {
			s.rows[s.row][s.col] = Cell{
				Glyph: r,
				Fg:    s.pen.Fg,
				Bg:    s.pen.Bg,
				Attr:  s.pen.Attr,
				Set:   true,
			}
		}
		s.col++
	}

	if s.col >= s.width {
		s.col = 0
		s.row++
	}
	if s.row >= s.height {
		s.scroll(s.row - s.height + 1)
		s.row = s.height - 1
	}
}

// deleteCell removes the cell at col in the cursor row, shifting the rest left.
func (s *Screen) deleteCell(col int) {
	if s.row < 0 || s.row >= s.height || col < 0 || col >= s.width {
		return
	}
	line := s.rows[s.row]
	copy(line[col:], line[col+1:])
	line[s.width-1] = Cell{}
}

func (s *Screen) scroll(n int) {
	if n <= 0 {
		return
	}
	if n > s.height {
		n = s.height
	}
	rows := make([][]Cell, 0, s.height)
	rows = append(rows, s.rows[n:]...)
	for len(rows) < s.height {
		rows = append(rows, make([]Cell, s.width))
	}
	s.rows = rows
}

func (s *Screen) blankRow(row int) {
	s.blankCells(row, 0, s.width)
}

// blankCells clears [from, to) in row.
func (s *Screen) blankCells(row, from, to int) {
	if row < 0 || row >= s.height {
		return
	}
	if from < 0 {
		from = 0
	}
	if to > s.width {
		to = s.width
	}
	for i := from; i < to; i++ {
		s.rows[row][i] = Cell{}
	}
}

// Clear erases part of the screen.
// 0 clears from the cursor to the end of the screen, 1 from the start of the screen
// through the cursor, 2 the whole screen. The cursor does not move.
func (s *Screen) Clear(mode int) {
	switch mode {
	case 1:
		for r := 0; r < s.row; r++ {
			s.blankRow(r)
		}
		s.blankCells(s.row, 0, s.col+1)
	case 2:
		for r := 0; r < s.height; r++ {
			s.blankRow(r)
		}
	default:
		s.blankCells(s.row, s.col, s.width)
		for r := s.row + 1; r < s.height; r++ {
			s.blankRow(r)
		}
	}
}

// EraseLine is Clear restricted to the cursor row.
func (s *Screen) EraseLine(mode int) {
	switch mode {
	case 1:
		s.blankCells(s.row, 0, s.col+1)
	case 2:
		s.blankRow(s.row)
	default:
		s.blankCells(s.row, s.col, s.width)
	}
}

func (s *Screen) MoveUp(n int) {
	s.row = constrain(s.row-n, 0, s.height)
}

func (s *Screen) MoveDown(n int) {
	s.row = constrain(s.row+n, 0, s.height)
}

func (s *Screen) MoveLeft(n int) {
	s.col = constrain(s.col-n, 0, s.width)
}

func (s *Screen) MoveRight(n int) {
	s.col = constrain(s.col+n, 0, s.width)
}

func (s *Screen) SetRow(row int) {
	s.row = constrain(row, 0, s.height)
}

func (s *Screen) SetCol(col int) {
	s.col = constrain(col, 0, s.width)
}

// MoveTo places the cursor at the zero based row and column, clamped to the grid.
func (s *Screen) MoveTo(row, col int) {
	s.SetRow(row)
	s.SetCol(col)
}

func (s *Screen) SaveCursor() {
	s.saved = &position{row: s.row, col: s.col}
}

// RestoreCursor returns to the last saved position. Without one it does nothing.
func (s *Screen) RestoreCursor() {
	if s.saved == nil {
		return
	}
	s.MoveTo(s.saved.row, s.saved.col)
}

// Text returns the screen contents, one string per row with trailing blanks removed.
func (s *Screen) Text() []string {
	return viewText(s)
}

func viewText(v View) []string {
	width, height := v.Size()
	lines := make([]string, height)
	var b strings.Builder
	for r := 0; r < height; r++ {
		b.Reset()
		for c := 0; c < width; c++ {
			cell := v.Cell(r, c)
			if cell.Set {
				b.WriteRune(cell.Glyph)
			} else {
				b.WriteByte(' ')
			}
		}
		lines[r] = strings.TrimRight(b.String(), " ")
	}
	return lines
}
