package stepper

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
	"github.com/cjeanneret/Stager/internal/logic/stage"
)

// Config holds the hardware configuration for a step/dir stepper driver.
type Config struct {
	StepPin    int
	DirPin     int
	EnablePin  int           // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	PowerPin   int           // PWM pin setting the driver current reference. 0 = not used.
	StepRate   float64       // maximum steps per second. <= 0 = unlimited.
	PulseWidth time.Duration // STEP high time. 0 defaults to 5µs.
}

// Stepper drives one motor one increment at a time.
// It guarantees that back-to-back Step calls never exceed Config.StepRate,
// so callers can issue steps as fast as their loop runs.
type Stepper struct {
	gpio    gpio.Driver
	cfg     Config
	pulse   time.Duration
	limiter *rate.Limiter
	dir     stage.Direction
	dirSet  bool
}

// NewStepper creates a new stepper motor controller. The driver starts disabled.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)
	_ = g.WritePin(cfg.StepPin, gpio.Low)

	pulse := cfg.PulseWidth
	if pulse <= 0 {
		pulse = 5 * time.Microsecond
	}

	limit := rate.Inf
	if cfg.StepRate > 0 {
		limit = rate.Limit(cfg.StepRate)
	}

	s := &Stepper{
		gpio:    g,
		cfg:     cfg,
		pulse:   pulse,
		limiter: rate.NewLimiter(limit, 1),
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.High) // disabled until the first move
	}

	return s
}

// Step advances the motor by exactly one increment in dir, waiting first if
// the previous step was too recent for the configured rate.
func (s *Stepper) Step(dir stage.Direction) error {
	if !s.dirSet || dir != s.dir {
		level := gpio.High
		if dir == stage.Reverse {
			level = gpio.Low
		}
		if err := s.gpio.WritePin(s.cfg.DirPin, level); err != nil {
			return err
		}
		s.dir = dir
		s.dirSet = true
	}

	if d := s.limiter.Reserve().Delay(); d > 0 {
		time.Sleep(d)
	}
	return s.stepPulse()
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.pulse)
	return s.gpio.WritePin(s.cfg.StepPin, gpio.Low)
}

// Enable turns on the motor driver at the given power (0.0 to 1.0, clamped).
// Power is applied through PowerPin when one is wired.
func (s *Stepper) Enable(power float64) error {
	if power < 0 {
		power = 0
	}
	if power > 1 {
		power = 1
	}
	debug.Verbose("Stepper: enable at power %.2f", power)

	if s.cfg.PowerPin > 0 {
		if err := s.gpio.WritePWM(s.cfg.PowerPin, power); err != nil {
			return fmt.Errorf("set stepper power: %w", err)
		}
	}
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel, no holding torque.
func (s *Stepper) Disable() error {
	debug.Verbose("Stepper: disable")

	if s.cfg.PowerPin > 0 {
		if err := s.gpio.WritePWM(s.cfg.PowerPin, 0); err != nil {
			return fmt.Errorf("clear stepper power: %w", err)
		}
	}
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
