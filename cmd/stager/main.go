package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/Stager/internal/config"
	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/status"
	"github.com/cjeanneret/Stager/internal/web"
)

// snapshotPeriod is how often the web clients get the loop state.
const snapshotPeriod = 100 * time.Millisecond

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4); -1 keeps the config value")
	power := flag.Float64("power", 0, "override drive power while moving (0-1]; 0 keeps the config value")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateCLIOverrides(*debugLevel, *power); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *debugLevel, *power)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg, webPort.port()); err != nil {
		log.Fatalf("stager: %v", err)
	}
}

// run assembles the machine and blocks until ctx is cancelled or the control
// loop fails.
func run(ctx context.Context, cfg *config.Config, port int) error {
	sinks := []io.Writer{os.Stdout}

	if cfg.Status.SerialPort != "" {
		serial, err := status.OpenSerial(cfg.Status.SerialPort, cfg.Status.SerialBaud)
		if err != nil {
			return err
		}
		defer serial.Close()
		sinks = append(sinks, serial)
	}

	var broadcaster *web.Broadcaster
	if port > 0 {
		broadcaster = web.NewBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, broadcaster.Writer()))
		sinks = append(sinks, broadcaster.Writer())
	}

	r, err := newRig(cfg, io.MultiWriter(sinks...))
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			debug.Error(fmt.Errorf("closing hardware: %w", err))
		}
	}()

	var srv *web.Server
	if broadcaster != nil {
		srv, err = web.NewServer(fmt.Sprintf(":%d", port), broadcaster, r.loop.Snapshot, web.StageViews(r.table), r.pressFunc())
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.loop.Run(gctx) })
	if srv != nil {
		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error { return broadcaster.WatchSnapshots(gctx, snapshotPeriod, r.loop.Snapshot) })
	}

	debug.Section("Ready")
	return g.Wait()
}

// validateCLIOverrides checks CLI overrides. The sentinel values (-1 for
// debug, 0 for power) mean "use config".
func validateCLIOverrides(debugLevel int, power float64) error {
	if debugLevel != -1 && (debugLevel < debug.LevelOff || debugLevel > debug.LevelTrace) {
		return fmt.Errorf("debug must be between 0 and 4, got %d", debugLevel)
	}
	if power != 0 {
		if math.IsNaN(power) || math.IsInf(power, 0) || power < 0 || power > 1 {
			return fmt.Errorf("power must be between 0 and 1, got %g", power)
		}
	}
	return nil
}

// applyOverrides mutates cfg with the CLI overrides that are set.
func applyOverrides(cfg *config.Config, debugLevel int, power float64) {
	if debugLevel >= 0 {
		cfg.Defaults.DebugLevel = debugLevel
	}
	if power > 0 {
		cfg.Stepper.Power = power
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
