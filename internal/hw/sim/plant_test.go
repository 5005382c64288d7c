package sim

import (
	"testing"
	"time"

	"github.com/cjeanneret/Stager/internal/hw/encoder"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
)

const (
	stepPin   = 17
	dirPin    = 27
	enablePin = 5
	startPin  = 23
	endPin    = 24
)

func newPlant(cfg Config) (*Plant, *encoder.Counter) {
	c := encoder.NewCounter()
	cfg.StepPin = stepPin
	cfg.DirPin = dirPin
	cfg.EnablePin = enablePin
	return New(cfg, c), c
}

func pulse(p *Plant, n int) {
	for i := 0; i < n; i++ {
		p.WritePin(stepPin, gpio.High)
		p.WritePin(stepPin, gpio.Low)
	}
}

func TestPlant_StepsFeedEncoder(t *testing.T) {
	p, c := newPlant(Config{CountsPerStep: 4})
	p.WritePin(enablePin, gpio.Low)
	p.WritePin(dirPin, gpio.High)

	pulse(p, 10)
	if c.Read() != 40 {
		t.Errorf("encoder count = %d, want 40", c.Read())
	}
	if p.Steps() != 10 || p.Shaft() != 40 {
		t.Errorf("steps=%d shaft=%d, want 10 and 40", p.Steps(), p.Shaft())
	}

	p.WritePin(dirPin, gpio.Low)
	pulse(p, 15)
	if c.Read() != -20 {
		t.Errorf("encoder count after reversing = %d, want -20", c.Read())
	}
}

func TestPlant_DisabledDriverDoesNotMove(t *testing.T) {
	p, c := newPlant(Config{})
	p.WritePin(enablePin, gpio.High)
	pulse(p, 5)
	if p.Steps() != 0 || c.Read() != 0 {
		t.Errorf("disabled driver moved: steps=%d count=%d", p.Steps(), c.Read())
	}
}

func TestPlant_OnlyRisingEdgesStep(t *testing.T) {
	p, _ := newPlant(Config{})
	p.WritePin(enablePin, gpio.Low)
	p.WritePin(stepPin, gpio.High)
	p.WritePin(stepPin, gpio.High)
	p.WritePin(stepPin, gpio.Low)
	if p.Steps() != 1 {
		t.Errorf("steps = %d, want 1", p.Steps())
	}
}

func TestPlant_Limits(t *testing.T) {
	p, _ := newPlant(Config{
		StartLimitPin:       startPin,
		EndLimitPin:         endPin,
		MinCount:            0,
		MaxCount:            10,
		StartLimitActiveLow: true,
		EndLimitActiveLow:   true,
	})
	// shaft at 0: start limit closed (active low)
	if l, _ := p.ReadPin(startPin); l != gpio.Low {
		t.Error("start limit should be closed at MinCount")
	}
	if l, _ := p.ReadPin(endPin); l != gpio.High {
		t.Error("end limit should be open at MinCount")
	}

	p.WritePin(enablePin, gpio.Low)
	p.WritePin(dirPin, gpio.High)
	pulse(p, 10)
	if l, _ := p.ReadPin(startPin); l != gpio.High {
		t.Error("start limit should open once off MinCount")
	}
	if l, _ := p.ReadPin(endPin); l != gpio.Low {
		t.Error("end limit should close at MaxCount")
	}
}

func TestPlant_LimitPolarityPerSwitch(t *testing.T) {
	p, _ := newPlant(Config{
		StartLimitPin:       startPin,
		EndLimitPin:         endPin,
		MinCount:            0,
		MaxCount:            10,
		StartLimitActiveLow: true,
		EndLimitActiveLow:   false,
	})
	// shaft at 0: start closed (active low), end open (active high)
	if l, _ := p.ReadPin(startPin); l != gpio.Low {
		t.Error("active-low start limit should read LOW when closed")
	}
	if l, _ := p.ReadPin(endPin); l != gpio.Low {
		t.Error("active-high end limit should read LOW when open")
	}

	p.WritePin(enablePin, gpio.Low)
	p.WritePin(dirPin, gpio.High)
	pulse(p, 10)
	if l, _ := p.ReadPin(startPin); l != gpio.High {
		t.Error("active-low start limit should read HIGH when open")
	}
	if l, _ := p.ReadPin(endPin); l != gpio.High {
		t.Error("active-high end limit should read HIGH when closed")
	}
}

func TestPlant_PressReleases(t *testing.T) {
	p, _ := newPlant(Config{})
	p.SetupPin(22, gpio.InputPullUp)
	if l, _ := p.ReadPin(22); l != gpio.High {
		t.Fatal("pull-up input should idle HIGH")
	}

	p.Press(22, true, 20*time.Millisecond)
	if l, _ := p.ReadPin(22); l != gpio.Low {
		t.Error("pressed active-low input should read LOW")
	}
	time.Sleep(60 * time.Millisecond)
	if l, _ := p.ReadPin(22); l != gpio.High {
		t.Error("input should be released after the press duration")
	}
}

func TestPlant_PWM(t *testing.T) {
	p, _ := newPlant(Config{})
	p.WritePWM(18, 0.7)
	if p.Duty(18) != 0.7 {
		t.Errorf("duty = %v, want 0.7", p.Duty(18))
	}
}
