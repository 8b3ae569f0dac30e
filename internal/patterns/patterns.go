// Package patterns draws test images on the visible canvas. Each one goes
// through the installed pixel mapper, so a wrong chain order or rotation
// shows up on the hardware.
package patterns

import (
	"fmt"
	"math"

	"github.com/coreman2200/fbmatrix/internal/matrix"
)

type Kind string

const (
	None        Kind = ""
	PanelSweep  Kind = "panel_sweep"
	RGBChannels Kind = "rgb_channels"
	Rainbow     Kind = "rainbow"
	IndexSweep  Kind = "index_sweep"
)

// Kinds lists the selectable patterns.
func Kinds() []Kind {
	return []Kind{PanelSweep, RGBChannels, Rainbow, IndexSweep}
}

// Parse maps a pattern name to its Kind. "" and "none" select no pattern.
func Parse(name string) (Kind, error) {
	if name == "" || name == "none" {
		return None, nil
	}
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown pattern %q", name)
}

// Plan describes a pattern run. PanelWidth and PanelHeight size the cells
// PanelSweep walks; FramesPerStep slows a step down to several frames.
type Plan struct {
	Kind          Kind
	PanelWidth    int
	PanelHeight   int
	FramesPerStep int
	Loop          bool
}

type Runner struct {
	plan  Plan
	step  int
	frame int
}

func NewRunner(plan Plan) *Runner {
	if plan.FramesPerStep <= 0 {
		plan.FramesPerStep = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step clears c and draws the next frame; returns false when complete.
func (r *Runner) Step(c *matrix.Canvas) bool {
	c.Clear()
	w, h := c.Width(), c.Height()
	if w == 0 || h == 0 {
		return false
	}

	var steps int // 0 means endless
	switch r.plan.Kind {
	case PanelSweep:
		pw, ph := r.cell(w, h)
		cols, rows := w/pw, h/ph
		steps = cols * rows
		if !r.wrap(steps) {
			return false
		}
		col, row := r.step%cols, r.step/cols
		drawPanel(c, col*pw, row*ph, pw, ph)
	case RGBChannels:
		switch r.step % 3 {
		case 0:
			c.Fill(255, 0, 0)
		case 1:
			c.Fill(0, 255, 0)
		case 2:
			c.Fill(0, 0, 255)
		}
	case Rainbow:
		phase := float64(r.step) * 0.01
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				u := float64(x) / float64(max(1, w-1))
				v := float64(y) / float64(max(1, h-1))
				rr, gg, bb := hsvToRGB(math.Mod(u+v+phase, 1.0), 1.0, 1.0)
				c.SetPixel(x, y, byte(rr*255), byte(gg*255), byte(bb*255))
			}
		}
	case IndexSweep:
		steps = w * h
		if !r.wrap(steps) {
			return false
		}
		c.SetPixel(r.step%w, r.step/w, 255, 255, 255)
	default:
		return false
	}

	r.frame++
	if r.frame >= r.plan.FramesPerStep {
		r.frame = 0
		r.step++
	}
	return true
}

// wrap restarts a finite pattern when looping; false means it is done.
func (r *Runner) wrap(steps int) bool {
	if r.step < steps {
		return true
	}
	if !r.plan.Loop {
		return false
	}
	r.step = 0
	return true
}

func (r *Runner) cell(w, h int) (int, int) {
	pw, ph := r.plan.PanelWidth, r.plan.PanelHeight
	if pw <= 0 || pw > w {
		pw = w
	}
	if ph <= 0 || ph > h {
		ph = h
	}
	return pw, ph
}

// drawPanel outlines one panel and marks its visible top-left corner. The
// red edge runs along the top and the green edge down the left side, so the
// panel's rotation is readable on the hardware.
func drawPanel(c *matrix.Canvas, x0, y0, w, h int) {
	for x := 0; x < w; x++ {
		c.SetPixel(x0+x, y0, 255, 0, 0)
		c.SetPixel(x0+x, y0+h-1, 0, 0, 255)
	}
	for y := 1; y < h-1; y++ {
		c.SetPixel(x0, y0+y, 0, 255, 0)
		c.SetPixel(x0+w-1, y0+y, 0, 0, 255)
	}
	n := max(1, min(w, h)/4)
	for y := 0; y < n; y++ {
		for x := 0; x < n-y; x++ {
			c.SetPixel(x0+x, y0+y, 255, 255, 255)
		}
	}
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
