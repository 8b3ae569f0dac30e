package grid

import "fmt"

// Rotation is a clockwise panel rotation in degrees.
type Rotation int

// Supported rotations.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

func (r Rotation) valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// Panel describes one physical panel. Panels are stored by their position in
// the visible row-major grid; Order is the position along the signal chain.
type Panel struct {
	Order    int
	Rotate   Rotation
	Parallel int
}

// Topology is the static description of a panel grid.
type Topology struct {
	Width, Height           int // visible canvas, pixels
	PanelWidth, PanelHeight int
	ChainLength             int
	Panels                  []Panel
}

// ConfigError reports a topology that cannot be mapped.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("grid: invalid %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the topology and returns the derived parallel chain count.
func (t Topology) Validate() (parallelCount int, err error) {
	if t.PanelWidth <= 0 || t.PanelHeight <= 0 {
		return 0, configErrorf("panel size", "%dx%d must be positive", t.PanelWidth, t.PanelHeight)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return 0, configErrorf("canvas size", "%dx%d must be positive", t.Width, t.Height)
	}
	if t.ChainLength <= 0 {
		return 0, configErrorf("chain length", "%d must be positive", t.ChainLength)
	}
	if t.Width%t.PanelWidth != 0 {
		return 0, configErrorf("canvas width", "%d is not a multiple of panel width %d", t.Width, t.PanelWidth)
	}
	if t.Height%t.PanelHeight != 0 {
		return 0, configErrorf("canvas height", "%d is not a multiple of panel height %d", t.Height, t.PanelHeight)
	}
	rows, cols := t.Height/t.PanelHeight, t.Width/t.PanelWidth
	if len(t.Panels) != rows*cols {
		return 0, configErrorf("panels", "got %d panels, want %d (%d rows x %d cols)", len(t.Panels), rows*cols, rows, cols)
	}

	maxParallel := -1
	for i, p := range t.Panels {
		if !p.Rotate.valid() {
			return 0, configErrorf(panelField(i, "rotate"), "%d is not one of 0, 90, 180, 270", p.Rotate)
		}
		if (p.Rotate == Rotate90 || p.Rotate == Rotate270) && t.PanelWidth != t.PanelHeight {
			return 0, configErrorf(panelField(i, "rotate"), "%d needs a square panel, have %dx%d", p.Rotate, t.PanelWidth, t.PanelHeight)
		}
		if p.Order < 0 || p.Order >= t.ChainLength {
			return 0, configErrorf(panelField(i, "order"), "%d outside chain of length %d", p.Order, t.ChainLength)
		}
		if p.Parallel < 0 {
			return 0, configErrorf(panelField(i, "parallel"), "%d is negative", p.Parallel)
		}
		if p.Parallel > maxParallel {
			maxParallel = p.Parallel
		}
	}

	// Parallel chains must be numbered 0..n-1 with no gaps.
	n := maxParallel + 1
	seen := make([]bool, n)
	for _, p := range t.Panels {
		seen[p.Parallel] = true
	}
	for i, ok := range seen {
		if !ok {
			return 0, configErrorf("parallel", "no panel on parallel chain %d of %d", i, n)
		}
	}
	return n, nil
}

// Collision is a pair of visible panels that share a chain slot.
type Collision struct {
	First, Second int // visible grid indices
	Order         int
	Parallel      int
}

// Collisions lists panels wired to the same (order, parallel) slot. Such
// panels draw over each other on the hardware.
func (t Topology) Collisions() []Collision {
	type slot struct{ order, parallel int }
	first := make(map[slot]int, len(t.Panels))
	var out []Collision
	for i, p := range t.Panels {
		s := slot{p.Order, p.Parallel}
		if j, ok := first[s]; ok {
			out = append(out, Collision{First: j, Second: i, Order: p.Order, Parallel: p.Parallel})
			continue
		}
		first[s] = i
	}
	return out
}

func panelField(i int, name string) string {
	return fmt.Sprintf("panels[%d].%s", i, name)
}
