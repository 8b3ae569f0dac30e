// Package grid maps a rectangular visible canvas onto a chained and parallel
// grid of identical LED panels.
//
// The hardware addresses panels from the far end of the chain, while a
// topology lists chain order from the panel nearest the signal source. The
// mapper inverts that order when it computes the horizontal offset.
package grid

// Name identifies the mapping strategy to the host driver.
const Name = "PanelGrid"

// Mapper translates visible canvas coordinates to matrix coordinates. It is
// immutable and safe for concurrent use.
type Mapper struct {
	width, height int
	panelW        int
	panelH        int
	chain         int
	parallel      int
	rows, cols    int
	panels        []Panel
}

// New validates t and builds a Mapper. A failed validation returns a
// *ConfigError.
func New(t Topology) (*Mapper, error) {
	parallel, err := t.Validate()
	if err != nil {
		return nil, err
	}
	panels := make([]Panel, len(t.Panels))
	copy(panels, t.Panels)
	return &Mapper{
		width:    t.Width,
		height:   t.Height,
		panelW:   t.PanelWidth,
		panelH:   t.PanelHeight,
		chain:    t.ChainLength,
		parallel: parallel,
		rows:     t.Height / t.PanelHeight,
		cols:     t.Width / t.PanelWidth,
		panels:   panels,
	}, nil
}

func (m *Mapper) Name() string       { return Name }
func (m *Mapper) Width() int         { return m.width }
func (m *Mapper) Height() int        { return m.height }
func (m *Mapper) Rows() int          { return m.rows }
func (m *Mapper) Cols() int          { return m.cols }
func (m *Mapper) ChainLength() int   { return m.chain }
func (m *Mapper) ParallelCount() int { return m.parallel }

// MatrixSize is the physical buffer size the mapper addresses.
func (m *Mapper) MatrixSize() (width, height int) {
	return m.chain * m.panelW, m.parallel * m.panelH
}

// VisibleSize reports the canvas callers render into. The physical size is
// ignored.
func (m *Mapper) VisibleSize(matrixWidth, matrixHeight int) (int, int) {
	return m.width, m.height
}

// MapVisibleToMatrix returns the matrix coordinate for a visible pixel, or
// (-1, -1) when the pixel is outside the canvas.
func (m *Mapper) MapVisibleToMatrix(x, y int) (int, int) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return -1, -1
	}
	p := m.panels[(y/m.panelH)*m.cols+x/m.panelW]
	px, py := rotate(p.Rotate, x%m.panelW, y%m.panelH, m.panelW, m.panelH)

	xOff := (m.chain - 1 - p.Order) * m.panelW
	yOff := p.Parallel * m.panelH
	return xOff + px, yOff + py
}

// rotate applies a clockwise rotation to a panel-local coordinate. 90 and
// 270 assume w == h.
func rotate(r Rotation, x, y, w, h int) (int, int) {
	switch r {
	case Rotate90:
		return h - 1 - y, x
	case Rotate180:
		return w - 1 - x, h - 1 - y
	case Rotate270:
		return y, w - 1 - x
	}
	return x, y
}
