package layout

// Matrix is the physical pixel buffer: Width = chain length x panel width,
// Height = parallel chains x panel height.
type Matrix struct {
	Width, Height int
	// XFlipEveryRow reverses odd rows for strips wired back and forth.
	XFlipEveryRow bool
}

// Index maps x,y -> linear LED index (0..N-1)
func (m Matrix) Index(x, y int) int {
	xx := x
	if m.XFlipEveryRow && y%2 == 1 {
		xx = m.Width - 1 - x
	}
	return y*m.Width + xx
}

func (m Matrix) Count() int {
	return m.Width * m.Height
}

// Contains reports whether (x, y) is inside the buffer.
func (m Matrix) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}
