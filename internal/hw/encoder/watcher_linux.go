//go:build linux

package encoder

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

// Watcher feeds a Counter from kernel edge events on the two encoder lines.
// gpiocdev delivers events from its own goroutine, which is the decoding
// context; the control loop never waits on it.
type Watcher struct {
	lines   *gpiocdev.Lines
	counter *Counter
	pinA    int
	pinB    int

	mu   sync.Mutex
	a, b bool
}

// Watch requests both encoder lines on chip with edge detection on rising
// and falling edges and starts decoding into c.
func Watch(chip string, pinA, pinB int, c *Counter) (*Watcher, error) {
	if pinA == pinB {
		return nil, fmt.Errorf("encoder: channel A and B share line %d", pinA)
	}
	w := &Watcher{counter: c, pinA: pinA, pinB: pinB}

	w.mu.Lock()
	defer w.mu.Unlock()

	lines, err := gpiocdev.RequestLines(chip, []int{pinA, pinB},
		gpiocdev.WithConsumer("stager-encoder"),
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.handle),
	)
	if err != nil {
		return nil, fmt.Errorf("request encoder lines %d,%d on %s: %w", pinA, pinB, chip, err)
	}
	w.lines = lines

	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		_ = lines.Close()
		return nil, fmt.Errorf("read encoder lines: %w", err)
	}
	w.a, w.b = vals[0] != 0, vals[1] != 0
	c.Seed(w.a, w.b)

	debug.Info("Encoder watching %s lines A=%d B=%d", chip, pinA, pinB)
	return w, nil
}

func (w *Watcher) handle(evt gpiocdev.LineEvent) {
	level := evt.Type == gpiocdev.LineEventRisingEdge

	w.mu.Lock()
	defer w.mu.Unlock()
	switch evt.Offset {
	case w.pinA:
		w.a = level
	case w.pinB:
		w.b = level
	default:
		return
	}
	w.counter.Decode(w.a, w.b)
}

// Close releases the encoder lines.
func (w *Watcher) Close() error {
	debug.Trace("Encoder watcher close")
	return w.lines.Close()
}
