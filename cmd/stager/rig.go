package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/Stager/internal/config"
	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/hw/encoder"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
	"github.com/cjeanneret/Stager/internal/hw/indicator"
	"github.com/cjeanneret/Stager/internal/hw/sim"
	"github.com/cjeanneret/Stager/internal/hw/stepper"
	"github.com/cjeanneret/Stager/internal/logic/control"
	"github.com/cjeanneret/Stager/internal/logic/motion"
	"github.com/cjeanneret/Stager/internal/logic/stage"
	"github.com/cjeanneret/Stager/internal/status"
)

// pressHold is how long a simulated press keeps the button down.
// It must outlast the debounce window.
const pressHold = 200 * time.Millisecond

// rig is the assembled machine: hardware (real or simulated) plus the
// control loop driving it.
type rig struct {
	driver  gpio.Driver
	counter *encoder.Counter
	plant   *sim.Plant // nil on real hardware
	watcher *encoder.Watcher
	table   *stage.Table
	machine *control.Machine
	loop    *motion.Controller

	cfg *config.Config
}

// newRig builds every component from cfg. Status lines go to sink.
func newRig(cfg *config.Config, sink io.Writer) (*rig, error) {
	table, err := cfg.StageTable()
	if err != nil {
		return nil, fmt.Errorf("stage table: %w", err)
	}
	debug.Stages(table.Len())
	for i, s := range table.Stages() {
		debug.Stage(i, s.Start, s.Stop, s.Direction().String())
	}

	r := &rig{
		counter: encoder.NewCounter(),
		table:   table,
		cfg:     cfg,
	}

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	if cfg.Defaults.MockGPIO {
		r.plant = sim.New(sim.Config{
			StepPin:         cfg.Stepper.StepPin,
			DirPin:          cfg.Stepper.DirPin,
			EnablePin:       cfg.Stepper.EnablePin,
			CountsPerStep:   cfg.Encoder.CountsPerStep,
			StartLimitPin:       cfg.Inputs.StartLimit.Pin,
			EndLimitPin:         cfg.Inputs.EndLimit.Pin,
			MinCount:            cfg.Sim.MinCount,
			MaxCount:            cfg.Sim.MaxCount,
			StartLimitActiveLow: cfg.Inputs.StartLimit.ActiveLow,
			EndLimitActiveLow:   cfg.Inputs.EndLimit.ActiveLow,
		}, r.counter)
		r.driver = r.plant
	} else {
		drv, err := gpio.NewRPiRealDriver()
		if err != nil {
			return nil, fmt.Errorf("init GPIO: %w", err)
		}
		r.driver = drv
		r.watcher, err = encoder.Watch(cfg.Encoder.Chip, cfg.Encoder.PinA, cfg.Encoder.PinB, r.counter)
		if err != nil {
			drv.Close()
			return nil, fmt.Errorf("init encoder: %w", err)
		}
	}

	motor := stepper.NewStepper(r.driver, stepper.Config{
		StepPin:    cfg.Stepper.StepPin,
		DirPin:     cfg.Stepper.DirPin,
		EnablePin:  cfg.Stepper.EnablePin,
		PowerPin:   cfg.Stepper.PowerPin,
		StepRate:   cfg.Stepper.StepRateHz,
		PulseWidth: cfg.StepPulse(),
	})
	debug.PrintStruct("Stepper config", cfg.Stepper)

	r.machine = control.New(stage.NewController(table), r.counter, motor, control.Config{
		Power:     cfg.Stepper.Power,
		Indicator: indicator.NewLED(r.driver, cfg.Indicator.ReadyPin),
		Reporter:  status.NewReporter(sink),
	})

	r.loop = motion.NewController(r.driver, r.machine, r.counter, motion.Config{
		Button:     input(cfg.Inputs.Button),
		StartLimit: input(cfg.Inputs.StartLimit),
		EndLimit:   input(cfg.Inputs.EndLimit),
		Interval:   cfg.TickInterval(),
	})
	return r, nil
}

func input(in config.InputConfig) motion.Input {
	return motion.Input{Pin: in.Pin, ActiveLow: in.ActiveLow}
}

// press simulates the operator button. Only the simulated plant has one.
func (r *rig) press() error {
	if r.plant == nil {
		return errors.New("no simulated plant")
	}
	r.plant.Press(r.cfg.Inputs.Button.Pin, r.cfg.Inputs.Button.ActiveLow, pressHold)
	return nil
}

// pressFunc returns press when running simulated, nil otherwise.
func (r *rig) pressFunc() func() error {
	if r.plant == nil {
		return nil
	}
	return r.press
}

// Close releases the encoder lines and the GPIO driver.
func (r *rig) Close() error {
	var errs []error
	if r.watcher != nil {
		errs = append(errs, r.watcher.Close())
	}
	errs = append(errs, r.driver.Close())
	return errors.Join(errs...)
}
