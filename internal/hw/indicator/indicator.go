package indicator

import (
	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
)

// LED is the "ready" lamp: lit while the controller is idle and waiting for
// the operator, dark while the actuator is moving.
// Wiring: GPIO -> resistor -> LED -> GND (active HIGH).
type LED struct {
	gpio gpio.Driver
	pin  int
	lit  bool
}

// NewLED configures pin as an output and starts with the lamp off.
// A pin of 0 returns nil: no indicator is wired.
func NewLED(g gpio.Driver, pin int) *LED {
	if pin <= 0 {
		return nil
	}
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)

	return &LED{
		gpio: g,
		pin:  pin,
	}
}

// SetReady lights or clears the lamp. Repeated calls with the same value do
// not touch the pin. A nil LED ignores the call.
func (l *LED) SetReady(ready bool) error {
	if l == nil || l.lit == ready {
		return nil
	}
	level := gpio.Low
	if ready {
		level = gpio.High
	}
	debug.Verbose("Indicator: ready=%v (pin %d -> %v)", ready, l.pin, level)
	if err := l.gpio.WritePin(l.pin, level); err != nil {
		return err
	}
	l.lit = ready
	return nil
}

// Ready reports whether the lamp is lit.
func (l *LED) Ready() bool {
	return l != nil && l.lit
}
