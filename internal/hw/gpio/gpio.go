package gpio

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
	InputPullUp // input with the internal pull-up, for switches to ground
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or the simulated plant for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// WritePWM drives pin with a duty cycle in [0, 1].
	WritePWM(pin int, duty float64) error
	Close() error
}

// Active converts a raw input level into a logical boolean, hiding whether
// the switch pulls the line low or high when closed.
func Active(l Level, activeLow bool) bool {
	if activeLow {
		return l == Low
	}
	return l == High
}
