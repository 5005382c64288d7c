package status

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/cjeanneret/Stager/internal/debug"
)

// DefaultBaud is used when no baud rate is configured.
const DefaultBaud = 9600

// OpenSerial opens a serial console sink (e.g. /dev/ttyUSB0) for status lines.
func OpenSerial(port string, baud int) (io.WriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	debug.Info("Status serial sink on %s at %d baud", port, baud)
	return p, nil
}
