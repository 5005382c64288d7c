package main

import (
	"bytes"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/Stager/internal/config"
	"github.com/cjeanneret/Stager/internal/hw/gpio"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_Unset(t *testing.T) {
	if err := validateCLIOverrides(-1, 0); err != nil {
		t.Errorf("unset overrides should be valid, got: %v", err)
	}
}

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []struct {
		name  string
		debug int
		power float64
	}{
		{"debug_off", 0, 0},
		{"debug_trace", 4, 0},
		{"power_full", -1, 1},
		{"power_small", -1, 0.01},
		{"both", 2, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.debug, tc.power); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		debug int
		power float64
	}{
		{"debug_5", 5, 0},
		{"debug_-2", -2, 0},
		{"power_over_1", -1, 1.5},
		{"power_negative", -1, -0.2},
		{"power_NaN", -1, math.NaN()},
		{"power_+Inf", -1, math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.debug, tc.power); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- applyOverrides ----------

func TestApplyOverrides(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, 3, 0.4)
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug level = %d, want 3", cfg.Defaults.DebugLevel)
	}
	if cfg.Stepper.Power != 0.4 {
		t.Errorf("power = %v, want 0.4", cfg.Stepper.Power)
	}
}

func TestApplyOverrides_UnsetLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, -1, 0)
	if cfg.Defaults.DebugLevel != 1 || cfg.Stepper.Power != 0.8 {
		t.Errorf("config changed: debug=%d power=%v", cfg.Defaults.DebugLevel, cfg.Stepper.Power)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- rig ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Stepper: config.StepperConfig{
			StepPin: 17, DirPin: 27, EnablePin: 5, PowerPin: 18,
			Power: 0.8, PulseUs: 1,
		},
		Encoder: config.EncoderConfig{Chip: "gpiochip0", PinA: 20, PinB: 21, CountsPerStep: 1},
		Inputs: config.InputsConfig{
			Button:     config.InputConfig{Pin: 22, ActiveLow: true},
			StartLimit: config.InputConfig{Pin: 23, ActiveLow: true},
			EndLimit:   config.InputConfig{Pin: 24, ActiveLow: true},
		},
		Indicator: config.IndicatorConfig{ReadyPin: 26},
		Stages: []config.StageConfig{
			{Start: 0, Stop: 30},
			{Start: 30, Stop: 0},
		},
		Sim:      config.SimConfig{MinCount: -100, MaxCount: 1000},
		Defaults: config.DefaultsConfig{TickIntervalUs: 500, DebugLevel: 1, MockGPIO: true},
	}
}

// syncBuffer is a bytes.Buffer safe for the reporter and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewRig_Simulated(t *testing.T) {
	var out syncBuffer
	r, err := newRig(newTestConfig(), &out)
	if err != nil {
		t.Fatalf("newRig: %v", err)
	}
	defer r.Close()

	if r.plant == nil {
		t.Fatal("mock_gpio should build the simulated plant")
	}
	if r.table.Len() != 2 {
		t.Errorf("stage count = %d, want 2", r.table.Len())
	}
	if r.pressFunc() == nil {
		t.Error("simulated rig should expose a press function")
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := r.loop.TickOnce(now); err != nil {
		t.Fatalf("TickOnce: %v", err)
	}
	// Idle at boot: ready lamp lit.
	if l, _ := r.driver.ReadPin(26); l != gpio.High {
		t.Error("ready lamp should be lit when idle")
	}

	if err := r.press(); err != nil {
		t.Fatalf("press: %v", err)
	}
	for i := 0; i < 200 && r.loop.Snapshot().StageIndex == 0; i++ {
		now = now.Add(10 * time.Millisecond)
		if err := r.loop.TickOnce(now); err != nil {
			t.Fatalf("TickOnce: %v", err)
		}
		time.Sleep(time.Millisecond) // let the press release on its timer
	}

	if idx := r.loop.Snapshot().StageIndex; idx != 1 {
		t.Fatalf("stage index = %d, want 1 after the first stage", idx)
	}
	got := out.String()
	if !strings.Contains(got, "stage 0: start=0 stop=30 dir=forward") {
		t.Errorf("status output missing motion start line:\n%s", got)
	}
	if !strings.Contains(got, "stage 0: arrived count=") {
		t.Errorf("status output missing arrival line:\n%s", got)
	}
}

func TestNewRig_EmptyStages(t *testing.T) {
	cfg := newTestConfig()
	cfg.Stages = nil
	if _, err := newRig(cfg, nil); err == nil {
		t.Error("expected error for empty stage table, got nil")
	}
}

func TestNewRig_SimulatedLimitPolarity(t *testing.T) {
	cfg := newTestConfig()
	cfg.Inputs.EndLimit.ActiveLow = false
	r, err := newRig(cfg, nil)
	if err != nil {
		t.Fatalf("newRig: %v", err)
	}
	defer r.Close()

	// Shaft at 0 sits between the simulated limits: both switches open.
	if l, _ := r.driver.ReadPin(cfg.Inputs.StartLimit.Pin); l != gpio.High {
		t.Error("open active-low start limit should read HIGH")
	}
	if l, _ := r.driver.ReadPin(cfg.Inputs.EndLimit.Pin); l != gpio.Low {
		t.Error("open active-high end limit should read LOW")
	}
}
