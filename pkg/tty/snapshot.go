package tty

// Snapshot is an immutable copy of a screen. It implements View.
type Snapshot struct {
	width  int
	height int
	cells  []Cell
	row    int
	col    int
	pen    Pen
	bell   bool
	hidden bool
}

// Snapshot copies the current state. Use it when a frame must outlive the next write.
func (s *Screen) Snapshot() *Snapshot {
	snap := &Snapshot{
		width:  s.width,
		height: s.height,
		cells:  make([]Cell, 0, s.width*s.height),
		row:    s.row,
		col:    s.col,
		pen:    s.pen,
		bell:   s.bell,
		hidden: s.hideCursor,
	}
	for _, line := range s.rows {
		snap.cells = append(snap.cells, line...)
	}
	return snap
}

func (s *Snapshot) Size() (int, int) {
	return s.width, s.height
}

func (s *Snapshot) Cell(row, col int) Cell {
	if row < 0 || row >= s.height || col < 0 || col >= s.width {
		return Cell{}
	}
	return s.cells[row*s.width+col]
}

func (s *Snapshot) Cursor() (int, int) {
	return s.row, s.col
}

func (s *Snapshot) CursorVisible() bool {
	return !s.hidden
}

func (s *Snapshot) Bell() bool {
	return s.bell
}

func (s *Snapshot) Pen() Pen {
	return s.pen
}

func (s *Snapshot) Text() []string {
	return viewText(s)
}
