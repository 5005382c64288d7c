//go:build !linux

package encoder

import "errors"

// Watcher is only available on linux, where gpiocdev exposes line events.
type Watcher struct{}

// Watch always fails on this platform. Use mock_gpio to run with the
// simulated plant instead.
func Watch(chip string, pinA, pinB int, c *Counter) (*Watcher, error) {
	return nil, errors.New("encoder: GPIO edge events require linux")
}

func (w *Watcher) Close() error { return nil }
