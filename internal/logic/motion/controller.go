package motion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
	"github.com/cjeanneret/Stager/internal/logic/control"
)

// Input is one digital input pin and its wiring.
type Input struct {
	Pin       int  // BCM pin. 0 = not wired, always reads inactive.
	ActiveLow bool // switch pulls the line to ground when closed
}

// Config holds the input wiring and the loop period.
type Config struct {
	Button     Input
	StartLimit Input
	EndLimit   Input
	Interval   time.Duration // tick period. 0 defaults to 500µs.
}

// Snapshot is what observers (web, tests) may see of the running loop.
type Snapshot struct {
	Mode        string `json:"mode"`
	StageIndex  int    `json:"stage_index"`
	TargetDelta int64  `json:"target_delta"`
	Direction   string `json:"direction"`
	Position    int64  `json:"position"`
	Ticks       uint64 `json:"ticks"`
}

// Controller is the cooperative scheduler: it samples the inputs, runs one
// state machine tick, and publishes a snapshot, at a fixed cadence.
// It's the intermediate layer between the control logic and the GPIO.
type Controller struct {
	gpio     gpio.Driver
	machine  *control.Machine
	pos      control.Position
	cfg      Config
	interval time.Duration

	mu    sync.Mutex
	snap  Snapshot
	ticks uint64
}

func NewController(g gpio.Driver, m *control.Machine, pos control.Position, cfg Config) *Controller {
	for _, in := range []Input{cfg.Button, cfg.StartLimit, cfg.EndLimit} {
		if in.Pin <= 0 {
			continue
		}
		mode := gpio.Input
		if in.ActiveLow {
			mode = gpio.InputPullUp
		}
		_ = g.SetupPin(in.Pin, mode)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Microsecond
	}

	c := &Controller{
		gpio:     g,
		machine:  m,
		pos:      pos,
		cfg:      cfg,
		interval: interval,
	}
	c.publish()
	return c
}

func (c *Controller) read(in Input) (bool, error) {
	if in.Pin <= 0 {
		return false, nil
	}
	l, err := c.gpio.ReadPin(in.Pin)
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", in.Pin, err)
	}
	return gpio.Active(l, in.ActiveLow), nil
}

// TickOnce samples all inputs at now and runs one control cycle.
func (c *Controller) TickOnce(now time.Time) error {
	var in control.Inputs
	var err error
	if in.Button, err = c.read(c.cfg.Button); err != nil {
		return err
	}
	if in.StartLimit, err = c.read(c.cfg.StartLimit); err != nil {
		return err
	}
	if in.EndLimit, err = c.read(c.cfg.EndLimit); err != nil {
		return err
	}
	in.Now = now

	err = c.machine.Tick(in)
	c.ticks++
	c.publish()
	return err
}

func (c *Controller) publish() {
	ctx := c.machine.Context()
	snap := Snapshot{
		Mode:        ctx.Mode.String(),
		StageIndex:  ctx.StageIndex,
		TargetDelta: ctx.TargetDelta,
		Direction:   ctx.Direction.String(),
		Position:    c.pos.Read(),
		Ticks:       c.ticks,
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// Snapshot returns the state published after the last tick.
// Safe to call from any goroutine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Run ticks until ctx is cancelled or a tick fails, then stops the machine
// (actuator disabled, ready lamp off).
func (c *Controller) Run(ctx context.Context) error {
	debug.Info("Control loop running every %v", c.interval)
	if err := c.machine.Start(); err != nil {
		return fmt.Errorf("start control: %w", err)
	}
	c.publish()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var runErr error
	for runErr == nil {
		select {
		case <-ctx.Done():
			debug.Info("Control loop stopping")
			return c.stop(nil)
		case now := <-ticker.C:
			if err := c.TickOnce(now); err != nil {
				runErr = fmt.Errorf("control tick: %w", err)
			}
		}
	}
	return c.stop(runErr)
}

func (c *Controller) stop(cause error) error {
	if err := c.machine.Stop(); err != nil {
		debug.Error(fmt.Errorf("stop control: %w", err))
	}
	c.publish()
	return cause
}
