package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/Stager/internal/logic/stage"
)

// StepperConfig holds the configuration for the step/dir motor driver.
type StepperConfig struct {
	StepPin    int     `yaml:"step_pin"`
	DirPin     int     `yaml:"dir_pin"`
	EnablePin  int     `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	PowerPin   int     `yaml:"power_pin"`  // PWM pin for the current reference. 0 = not used.
	Power      float64 `yaml:"power"`      // drive power while moving, 0.0-1.0
	StepRateHz float64 `yaml:"step_rate_hz"`
	PulseUs    int     `yaml:"pulse_us"` // STEP high time in microseconds
}

// EncoderConfig describes the quadrature encoder lines.
type EncoderConfig struct {
	Chip          string `yaml:"chip"`            // gpiochip device, e.g. "gpiochip0"
	PinA          int    `yaml:"pin_a"`           // channel A line offset
	PinB          int    `yaml:"pin_b"`           // channel B line offset
	CountsPerStep int    `yaml:"counts_per_step"` // used by the simulated plant only
}

// InputConfig is one digital input.
type InputConfig struct {
	Pin       int  `yaml:"pin"`
	ActiveLow bool `yaml:"active_low"` // switch closes to ground (internal pull-up enabled)
}

// InputsConfig groups the operator button and the travel limit switches.
type InputsConfig struct {
	Button     InputConfig `yaml:"button"`
	StartLimit InputConfig `yaml:"start_limit"`
	EndLimit   InputConfig `yaml:"end_limit"`
}

// IndicatorConfig describes the ready lamp.
type IndicatorConfig struct {
	ReadyPin int `yaml:"ready_pin"` // 0 = no lamp
}

// StageConfig is one stage in encoder counts.
type StageConfig struct {
	Start int64 `yaml:"start"`
	Stop  int64 `yaml:"stop"`
}

// StatusConfig selects the optional serial status console.
type StatusConfig struct {
	SerialPort string `yaml:"serial_port"` // e.g. "/dev/ttyUSB0". Empty = disabled.
	SerialBaud int    `yaml:"serial_baud"`
}

// SimConfig shapes the simulated plant used with mock_gpio.
type SimConfig struct {
	MinCount int64 `yaml:"min_count"` // start limit closes at or below this shaft count
	MaxCount int64 `yaml:"max_count"` // end limit closes at or above this shaft count
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	TickIntervalUs int  `yaml:"tick_interval_us"` // control loop period
	DebugLevel     int  `yaml:"debug_level"`      // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO       bool `yaml:"mock_gpio"`        // use the simulated plant (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Stepper   StepperConfig   `yaml:"stepper"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Inputs    InputsConfig    `yaml:"inputs"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Stages    []StageConfig   `yaml:"stages"`
	Status    StatusConfig    `yaml:"status"`
	Sim       SimConfig       `yaml:"sim"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 64 << 10

// ValidateConfigPath checks that path is a .yaml file inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	if cfg.Stepper.StepPin <= 0 || cfg.Stepper.DirPin <= 0 {
		return nil, fmt.Errorf("stepper.step_pin and stepper.dir_pin are required")
	}
	if cfg.Stepper.Power < 0 || cfg.Stepper.Power > 1 {
		return nil, fmt.Errorf("stepper.power must be between 0 and 1, got %.2f", cfg.Stepper.Power)
	}
	if cfg.Stepper.Power == 0 {
		cfg.Stepper.Power = 1 // full power
	}
	if cfg.Stepper.StepRateHz < 0 {
		return nil, fmt.Errorf("stepper.step_rate_hz must be >= 0, got %.2f", cfg.Stepper.StepRateHz)
	}
	if cfg.Stepper.StepRateHz == 0 {
		cfg.Stepper.StepRateHz = 500 // reasonable default for an A4988 at 1/16
	}
	if cfg.Stepper.PulseUs <= 0 {
		cfg.Stepper.PulseUs = 5
	}
	if cfg.Encoder.PinA <= 0 || cfg.Encoder.PinB <= 0 {
		return nil, fmt.Errorf("encoder.pin_a and encoder.pin_b are required")
	}
	if cfg.Encoder.PinA == cfg.Encoder.PinB {
		return nil, fmt.Errorf("encoder.pin_a and encoder.pin_b must differ, both are %d", cfg.Encoder.PinA)
	}
	if cfg.Encoder.Chip == "" {
		cfg.Encoder.Chip = "gpiochip0"
	}
	if cfg.Encoder.CountsPerStep <= 0 {
		cfg.Encoder.CountsPerStep = 1
	}
	if cfg.Inputs.Button.Pin <= 0 {
		return nil, fmt.Errorf("inputs.button.pin is required")
	}
	if cfg.Defaults.TickIntervalUs <= 0 {
		cfg.Defaults.TickIntervalUs = 500
	}

	return &cfg, nil
}

// StageTable builds the immutable stage table.
func (c *Config) StageTable() (*stage.Table, error) {
	stages := make([]stage.Stage, len(c.Stages))
	for i, s := range c.Stages {
		stages[i] = stage.Stage{Start: s.Start, Stop: s.Stop}
	}
	return stage.NewTable(stages)
}

// TickInterval returns the control loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Defaults.TickIntervalUs) * time.Microsecond
}

// StepPulse returns the STEP high time.
func (c *Config) StepPulse() time.Duration {
	return time.Duration(c.Stepper.PulseUs) * time.Microsecond
}
