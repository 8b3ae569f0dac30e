package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/fbmatrix/internal/grid"
	"github.com/coreman2200/fbmatrix/internal/power"
)

type Panel struct {
	Order    int `yaml:"order"`
	Rotate   int `yaml:"rotate"`
	Parallel int `yaml:"parallel"`
}

type PowerCfg struct {
	LimitAmps float64 `yaml:"limit_amps"` // 0 disables the budget
	ChannelMA float64 `yaml:"channel_ma"`
	WhiteCap  float64 `yaml:"white_cap"` // R+G+B cap per LED, 0..3
	Knee      float64 `yaml:"knee,omitempty"`
}

// Limiter converts the power section for the refresh loop.
func (p PowerCfg) Limiter() power.Limiter {
	return power.Limiter{
		WhiteCap:  p.WhiteCap,
		ChannelMA: p.ChannelMA,
		BudgetMA:  p.LimitAmps * 1000,
		Knee:      p.Knee,
	}
}

type SPI struct {
	Dev string `yaml:"dev"` // "" picks the first port, or e.g. /dev/spidev0.0
}

type Config struct {
	DisplayWidth  int     `yaml:"display_width"`
	DisplayHeight int     `yaml:"display_height"`
	PanelWidth    int     `yaml:"panel_width"`
	PanelHeight   int     `yaml:"panel_height"`
	ChainLength   int     `yaml:"chain_length"`
	ParallelCount int     `yaml:"parallel_count,omitempty"`
	Panels        []Panel `yaml:"panels,omitempty"` // row-major over the visible grid

	Driver     string  `yaml:"driver"` // "sim" | "nrz"
	FPS        int     `yaml:"fps"`
	Brightness float64 `yaml:"brightness"`
	Serpentine bool    `yaml:"serpentine"`
	Pattern    string  `yaml:"pattern,omitempty"`

	Power PowerCfg `yaml:"power"`
	SPI   SPI      `yaml:"spi,omitempty"`
}

// Default is a single 32x32 panel at 40Hz.
func Default() *Config {
	return &Config{
		DisplayWidth:  32,
		DisplayHeight: 32,
		PanelWidth:    32,
		PanelHeight:   32,
		ChainLength:   1,
		Driver:        "sim",
		FPS:           40,
		Brightness:    0.8,
		Power:         PowerCfg{ChannelMA: 20},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// HasTransformer reports whether a panel list is configured. Without one the
// display is driven as a single unmapped buffer.
func (c *Config) HasTransformer() bool {
	return len(c.Panels) > 0
}

// Topology converts the panel section for grid.New.
func (c *Config) Topology() grid.Topology {
	t := grid.Topology{
		Width:       c.DisplayWidth,
		Height:      c.DisplayHeight,
		PanelWidth:  c.PanelWidth,
		PanelHeight: c.PanelHeight,
		ChainLength: c.ChainLength,
		Panels:      make([]grid.Panel, len(c.Panels)),
	}
	for i, p := range c.Panels {
		t.Panels[i] = grid.Panel{Order: p.Order, Rotate: grid.Rotation(p.Rotate), Parallel: p.Parallel}
	}
	return t
}

// MatrixSize is the physical buffer the driver is sized for.
func (c *Config) MatrixSize() (width, height int) {
	parallel := c.ParallelCount
	if parallel <= 0 {
		parallel = 1
	}
	return c.ChainLength * c.PanelWidth, parallel * c.PanelHeight
}

// Mapper builds the panel mapper and checks it against the declared
// parallel_count. Returns nil, nil when no panels are configured.
func (c *Config) Mapper() (*grid.Mapper, error) {
	if !c.HasTransformer() {
		return nil, nil
	}
	m, err := grid.New(c.Topology())
	if err != nil {
		return nil, err
	}
	if c.ParallelCount > 0 && c.ParallelCount != m.ParallelCount() {
		return nil, &grid.ConfigError{
			Field:  "parallel_count",
			Reason: fmt.Sprintf("declared %d but panels use %d", c.ParallelCount, m.ParallelCount()),
		}
	}
	return m, nil
}

// Validate checks runtime options. Panel geometry is checked by Mapper.
func (c *Config) Validate() error {
	if c.PanelWidth <= 0 || c.PanelHeight <= 0 || c.ChainLength <= 0 {
		return fmt.Errorf("panel_width, panel_height and chain_length must be positive")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		return fmt.Errorf("brightness must be within 0..1, got %v", c.Brightness)
	}
	if c.Power.LimitAmps < 0 || c.Power.WhiteCap < 0 || c.Power.WhiteCap > 3 {
		return fmt.Errorf("power: limit_amps must be >= 0 and white_cap within 0..3")
	}
	switch c.Driver {
	case "sim", "nrz":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	return nil
}
