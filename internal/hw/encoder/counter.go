// Package encoder decodes a two-channel quadrature encoder into a signed
// position count.
//
// Decoding runs wherever channel edges are delivered (a gpiocdev event
// goroutine on hardware, the simulated plant on a PC), independently of the
// control loop. The loop only reads and resets the count.
package encoder

import "sync/atomic"

// transitions maps (previous<<2 | current) to a count delta, with the channel
// state packed as A<<1 | B. The forward sequence is 00 -> 01 -> 11 -> 10 -> 00.
// Unchanged states and double-bit jumps (noise, bounce) decode to 0.
var transitions = [16]int8{
	0, +1, -1, 0,
	-1, 0, 0, +1,
	+1, 0, 0, -1,
	0, -1, +1, 0,
}

// Counter is a quadrature position counter.
//
// There is a single decoding writer and a single reading control loop. The
// count is an atomic 64-bit word so Read never observes a torn value and
// Reset does not need to pause the decoder.
type Counter struct {
	count atomic.Int64
	state uint8 // last A<<1|B, owned by the decoding context
}

// NewCounter returns a counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

func pack(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 2
	}
	if b {
		s |= 1
	}
	return s
}

// Seed records the channel levels observed at startup without counting.
func (c *Counter) Seed(a, b bool) {
	c.state = pack(a, b)
}

// Decode is called from the decoding context with both channel levels after
// an edge on either channel. It returns the delta applied to the count.
func (c *Counter) Decode(a, b bool) int {
	cur := pack(a, b)
	d := transitions[c.state<<2|cur]
	c.state = cur
	if d != 0 {
		c.count.Add(int64(d))
	}
	return int(d)
}

// Read returns the current count.
func (c *Counter) Read() int64 {
	return c.count.Load()
}

// Reset sets the count to zero.
func (c *Counter) Reset() {
	c.count.Store(0)
}
