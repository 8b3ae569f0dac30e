package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/fbmatrix/internal/app"
	"github.com/coreman2200/fbmatrix/internal/config"
	diag "github.com/coreman2200/fbmatrix/internal/diagnostics"
	"github.com/coreman2200/fbmatrix/internal/grid"
	"github.com/coreman2200/fbmatrix/internal/layout"
	"github.com/coreman2200/fbmatrix/internal/led"
	"github.com/coreman2200/fbmatrix/internal/matrix"
	"github.com/coreman2200/fbmatrix/internal/patterns"
	"github.com/coreman2200/fbmatrix/internal/ws"
)

func main() {
	// ---- Flags (config file overrides where set) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "sim", "driver: nrz | sim")
		spiDev     = flag.String("spi", "", "SPI port name for the nrz driver (empty for the first port)")
		fps        = flag.Int("fps", 40, "target frames per second")
		brightness = flag.Float64("brightness", 0.8, "global brightness 0..1")
		pattern    = flag.String("pattern", string(patterns.PanelSweep), "startup pattern: panel_sweep | rgb_channels | rainbow | index_sweep | none")
		addr       = flag.String("addr", ":8080", "HTTP listen address for the preview server")
		level      = flag.String("log-level", "info", "log level")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*level); err != nil {
		log.Warn().Err(err).Str("level", *level).Msg("bad log level; using info")
	} else {
		zerolog.SetGlobalLevel(lvl)
	}

	// ---- Config (flags given on the command line override the file) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults and flags")
		cfg = config.Default()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "spi":
			cfg.SPI.Dev = *spiDev
		case "fps":
			cfg.FPS = *fps
		case "brightness":
			cfg.Brightness = *brightness
		case "pattern":
			cfg.Pattern = *pattern
		}
	})
	if cfg.Pattern == "" {
		cfg.Pattern = *pattern
	}
	if *simOnly {
		cfg.Driver = "sim"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("invalid config")
	}

	log.Info().
		Int("display_width", cfg.DisplayWidth).
		Int("display_height", cfg.DisplayHeight).
		Int("panel_width", cfg.PanelWidth).
		Int("panel_height", cfg.PanelHeight).
		Int("chain_length", cfg.ChainLength).
		Int("parallel_count", cfg.ParallelCount).
		Int("panels", len(cfg.Panels)).
		Msg("using config values")

	// ---- Pixel mapper ----
	mapper, err := cfg.Mapper()
	if err != nil {
		var cerr *grid.ConfigError
		if errors.As(err, &cerr) {
			log.Fatal().Str("field", cerr.Field).Str("reason", cerr.Reason).Msg("invalid panel topology")
		}
		log.Fatal().Err(err).Msg("invalid panel topology")
	}
	mw, mh := cfg.MatrixSize()
	if mapper != nil {
		mw, mh = mapper.MatrixSize()
	}
	phys := layout.Matrix{Width: mw, Height: mh, XFlipEveryRow: cfg.Serpentine}
	canvas := matrix.NewCanvas(phys)
	var collisions []grid.Collision
	if mapper != nil {
		canvas.ApplyPixelMapper(mapper)
		collisions = cfg.Topology().Collisions()
		for _, c := range collisions {
			log.Warn().
				Int("panel", c.First).Int("other", c.Second).
				Int("order", c.Order).Int("parallel", c.Parallel).
				Msg("two panels share a chain slot; they will draw over each other")
		}
	}

	// ---- Driver ----
	var drv led.Driver
	selected := cfg.Driver
	switch selected {
	case "nrz":
		d, err := led.OpenNRZ(cfg.SPI.Dev, phys.Count())
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "nrz").
				Str("dev", cfg.SPI.Dev).
				Msg("NRZ init failed; falling back to SIM")
			selected = "sim"
			drv = led.NewSim(phys.Count())
		} else {
			drv = d
		}
	default:
		drv = led.NewSim(phys.Count())
	}

	// ---- Refresh loop & preview server ----
	kind, err := patterns.Parse(cfg.Pattern)
	if err != nil {
		log.Warn().Err(err).Msg("no startup pattern")
	}
	core := app.NewCore(canvas, drv, app.Options{
		FPS:         cfg.FPS,
		Brightness:  cfg.Brightness,
		Pattern:     kind,
		PanelWidth:  cfg.PanelWidth,
		PanelHeight: cfg.PanelHeight,
		Limiter:     cfg.Power.Limiter(),
	})

	info := ws.Info{
		VisibleWidth:  canvas.Width(),
		VisibleHeight: canvas.Height(),
		MatrixWidth:   mw,
		MatrixHeight:  mh,
		PanelWidth:    cfg.PanelWidth,
		PanelHeight:   cfg.PanelHeight,
		ChainLength:   cfg.ChainLength,
		ParallelCount: mh / cfg.PanelHeight,
		Serpentine:    cfg.Serpentine,
		Driver:        selected,
	}
	if mapper != nil {
		info.Mapper = mapper.Name()
	}
	preview := ws.NewServer(info, core)
	core.SetPublisher(preview)
	for _, c := range collisions {
		preview.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: diag.TopologyShared, Summary: "Two panels share a chain slot",
			Evidence: map[string]any{"panel": c.First, "other": c.Second, "order": c.Order, "parallel": c.Parallel},
		})
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      preview.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", *addr).Str("instance", preview.ID().String()).Msg("preview server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("preview server stopped")
		}
	}()

	log.Info().Str("driver", selected).Int("fps", cfg.FPS).Msg("press Ctrl-C to quit")
	if err := core.Run(ctx); err != nil {
		log.Warn().Err(err).Msg("final clear failed")
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := drv.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close")
	}
}
