package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/fbmatrix/internal/diagnostics"
	"github.com/coreman2200/fbmatrix/internal/led"
	"github.com/coreman2200/fbmatrix/internal/matrix"
	"github.com/coreman2200/fbmatrix/internal/patterns"
	"github.com/coreman2200/fbmatrix/internal/power"
)

// Publisher receives every frame after it reaches the driver.
type Publisher interface {
	PublishFrame(rgb []byte)
	PushDiag(d diag.Diagnostic)
}

type Options struct {
	FPS        int
	Brightness float64
	Pattern    patterns.Kind
	// PanelWidth and PanelHeight size the cells of the panel sweep.
	PanelWidth  int
	PanelHeight int
	Limiter     power.Limiter
}

// Core owns the canvas and runs the refresh loop.
type Core struct {
	canvas *matrix.Canvas
	drv    led.Driver
	pub    Publisher

	mu         sync.Mutex
	opts       Options
	runner     *patterns.Runner
	brightness float64
	out        []byte
}

func NewCore(canvas *matrix.Canvas, drv led.Driver, opts Options) *Core {
	if opts.FPS <= 0 {
		opts.FPS = 40
	}
	c := &Core{
		canvas:     canvas,
		drv:        drv,
		opts:       opts,
		brightness: clamp(opts.Brightness, 0, 1),
		out:        make([]byte, len(canvas.Bytes())),
	}
	c.runner = c.newRunner(opts.Pattern)
	return c
}

// SetPublisher attaches the preview server. Call before Run.
func (c *Core) SetPublisher(p Publisher) { c.pub = p }

func (c *Core) newRunner(k patterns.Kind) *patterns.Runner {
	if k == patterns.None {
		return nil
	}
	plan := patterns.Plan{
		Kind:        k,
		PanelWidth:  c.opts.PanelWidth,
		PanelHeight: c.opts.PanelHeight,
		Loop:        true,
	}
	switch k {
	case patterns.PanelSweep, patterns.RGBChannels:
		plan.FramesPerStep = c.opts.FPS // one step per second
	case patterns.IndexSweep:
		plan.Loop = false
	}
	return patterns.NewRunner(plan)
}

func (c *Core) SetPattern(name string) error {
	k, err := patterns.Parse(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.runner = c.newRunner(k)
	c.mu.Unlock()
	log.Info().Str("pattern", name).Msg("pattern selected")
	return nil
}

func (c *Core) Pattern() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return ""
	}
	return string(c.runner.Kind())
}

func (c *Core) SetBrightness(v float64) {
	c.mu.Lock()
	c.brightness = clamp(v, 0, 1)
	c.mu.Unlock()
}

func (c *Core) Brightness() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness
}

// Frame draws and outputs one frame.
func (c *Core) Frame() error {
	var done patterns.Kind
	c.mu.Lock()
	if c.runner != nil && !c.runner.Step(c.canvas) {
		done = c.runner.Kind()
		c.runner = nil
		c.canvas.Clear()
	}
	scale(c.out, c.canvas.Bytes(), c.brightness)
	c.mu.Unlock()
	// PushDiag can block on slow clients; never call it with c.mu held.
	if done != patterns.None && c.pub != nil {
		c.pub.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.PatternDone, Summary: "Pattern complete", Detail: string(done)})
	}
	c.opts.Limiter.Apply(c.out)

	if err := c.drv.Write(c.out); err != nil {
		return err
	}
	if c.pub != nil {
		c.pub.PublishFrame(c.out)
	}
	return nil
}

// Run refreshes at the configured rate until ctx is done, then blanks the
// display.
func (c *Core) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(c.opts.FPS))
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.canvas.Clear()
			c.mu.Unlock()
			for i := range c.out {
				c.out[i] = 0
			}
			return c.drv.Write(c.out)
		case <-ticker.C:
			if err := c.Frame(); err != nil {
				failures++
				// log the first failure and then once a second
				if failures == 1 || failures%c.opts.FPS == 0 {
					log.Warn().Err(err).Int("failures", failures).Msg("driver write failed")
					if c.pub != nil {
						c.pub.PushDiag(diag.Diagnostic{Severity: diag.Err, Code: diag.DriverWrite, Summary: "Driver write failed", Detail: err.Error()})
					}
				}
				continue
			}
			failures = 0
		}
	}
}

func scale(dst, src []byte, k float64) {
	if k >= 1 {
		copy(dst, src)
		return
	}
	for i, v := range src {
		dst[i] = byte(float64(v) * k)
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
