// Package sim is a simulated machine for running Stager on a PC: a GPIO
// driver whose step pulses turn a virtual shaft, which in turn emits
// quadrature edges into the encoder decoder, and whose input pins can be
// pressed from code.
package sim

import (
	"sync"
	"time"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
)

// quadrature is the forward A/B sequence, indexed by shaft position mod 4.
var quadrature = [4][2]bool{
	{false, false},
	{false, true},
	{true, true},
	{true, false},
}

// Decoder receives the channel levels after each encoder edge.
type Decoder interface {
	Seed(a, b bool)
	Decode(a, b bool) int
}

// Config wires the plant to the same pins the real hardware uses.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // 0 = driver always enabled
	CountsPerStep int // encoder counts per motor step, default 1

	// Travel limits in absolute shaft counts. When MaxCount > MinCount the
	// plant closes StartLimitPin at or below MinCount and EndLimitPin at or
	// above MaxCount.
	StartLimitPin       int
	EndLimitPin         int
	MinCount            int64
	MaxCount            int64
	StartLimitActiveLow bool
	EndLimitActiveLow   bool
}

// Plant implements gpio.Driver. Edges are delivered to the decoder inline,
// at the instant of the step pulse, like an interrupt preempting the writer.
type Plant struct {
	mu     sync.Mutex
	cfg    Config
	dec    Decoder
	levels map[int]gpio.Level
	duty   map[int]float64
	shaft  int64
	steps  int64
}

// New builds a plant with the shaft at 0 and seeds dec with the matching
// channel levels.
func New(cfg Config, dec Decoder) *Plant {
	if cfg.CountsPerStep <= 0 {
		cfg.CountsPerStep = 1
	}
	p := &Plant{
		cfg:    cfg,
		dec:    dec,
		levels: make(map[int]gpio.Level),
		duty:   make(map[int]float64),
	}
	dec.Seed(quadrature[0][0], quadrature[0][1])
	p.updateLimits()
	debug.Info("Using SIMULATED plant (development mode)")
	return p
}

func (p *Plant) SetupPin(pin int, mode gpio.PinMode) error {
	debug.GPIO("SetupPin (sim)", pin, mode)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.levels[pin]; !ok && mode == gpio.InputPullUp {
		p.levels[pin] = gpio.High
	}
	return nil
}

func (p *Plant) WritePin(pin int, level gpio.Level) error {
	debug.GPIO("WritePin (sim)", pin, level)
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.levels[pin]
	p.levels[pin] = level
	if pin == p.cfg.StepPin && prev == gpio.Low && level == gpio.High && p.enabled() {
		p.step()
	}
	return nil
}

func (p *Plant) ReadPin(pin int) (gpio.Level, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[pin], nil
}

func (p *Plant) WritePWM(pin int, duty float64) error {
	debug.GPIO("WritePWM (sim)", pin, duty)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty[pin] = duty
	return nil
}

func (p *Plant) Close() error {
	debug.Trace("GPIO Close (sim)")
	return nil
}

// enabled reports whether the driver's active-low enable line is asserted.
func (p *Plant) enabled() bool {
	if p.cfg.EnablePin <= 0 {
		return true
	}
	return p.levels[p.cfg.EnablePin] == gpio.Low
}

func (p *Plant) step() {
	sign := int64(1)
	if p.levels[p.cfg.DirPin] == gpio.Low {
		sign = -1
	}
	for i := 0; i < p.cfg.CountsPerStep; i++ {
		p.shaft += sign
		q := quadrature[((p.shaft%4)+4)%4]
		p.dec.Decode(q[0], q[1])
	}
	p.steps++
	p.updateLimits()
}

func (p *Plant) updateLimits() {
	if p.cfg.MaxCount <= p.cfg.MinCount {
		return
	}
	if p.cfg.StartLimitPin > 0 {
		p.levels[p.cfg.StartLimitPin] = switchLevel(p.shaft <= p.cfg.MinCount, p.cfg.StartLimitActiveLow)
	}
	if p.cfg.EndLimitPin > 0 {
		p.levels[p.cfg.EndLimitPin] = switchLevel(p.shaft >= p.cfg.MaxCount, p.cfg.EndLimitActiveLow)
	}
}

func switchLevel(closed, activeLow bool) gpio.Level {
	if activeLow {
		return gpio.Level(!closed)
	}
	return gpio.Level(closed)
}

// SetInput drives an input pin to level.
func (p *Plant) SetInput(pin int, level gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[pin] = level
}

// Press drives pin to the active level for d, then releases it.
func (p *Plant) Press(pin int, activeLow bool, d time.Duration) {
	debug.Verbose("Sim: pressing pin %d for %v", pin, d)
	p.SetInput(pin, gpio.Level(!activeLow))
	time.AfterFunc(d, func() {
		p.SetInput(pin, gpio.Level(activeLow))
	})
}

// Shaft returns the absolute shaft position in encoder counts.
func (p *Plant) Shaft() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shaft
}

// Steps returns the number of step pulses the motor has taken.
func (p *Plant) Steps() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}

// Duty returns the last PWM duty written to pin.
func (p *Plant) Duty(pin int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty[pin]
}
