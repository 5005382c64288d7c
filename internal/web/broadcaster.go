package web

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/Stager/internal/logic/motion"
)

// Event types carried by the broadcaster.
const (
	EventLog      = "log"
	EventSnapshot = "snapshot"
)

// Event is one message pushed to SSE and WebSocket clients.
type Event struct {
	Type  string           `json:"type"`
	Time  time.Time        `json:"ts"`
	Level string           `json:"level,omitempty"`
	Msg   string           `json:"msg,omitempty"`
	Data  *motion.Snapshot `json:"data,omitempty"`
}

// clientBuf is the per-subscriber queue size.
const clientBuf = 64

// Broadcaster distributes events to any number of streaming clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel of JSON-encoded events and a cleanup function.
// The caller must call the cleanup when done (e.g. on client disconnect).
// Calling it more than once is harmless.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuf)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of live subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends evt to every subscriber. A zero Time is stamped with now.
// Slow clients miss messages instead of blocking the publisher.
func (b *Broadcaster) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- data:
		default:
			// channel full, skip
		}
	}
}

// Log publishes a text line.
func (b *Broadcaster) Log(level, msg string) {
	b.Publish(Event{Type: EventLog, Level: level, Msg: msg})
}

// PublishSnapshot publishes the state of the control loop.
func (b *Broadcaster) PublishSnapshot(s motion.Snapshot) {
	b.Publish(Event{Type: EventSnapshot, Data: &s})
}

// WatchSnapshots samples snapshot every interval and publishes it whenever
// anything other than the tick counter changed. It returns when ctx is done.
func (b *Broadcaster) WatchSnapshots(ctx context.Context, interval time.Duration, snapshot func() motion.Snapshot) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last motion.Snapshot
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := snapshot()
			cmp := s
			cmp.Ticks = last.Ticks
			if first || cmp != last {
				b.PublishSnapshot(s)
				first = false
			}
			last = s
		}
	}
}

// Writer returns an io.Writer that publishes each written line as an
// info log event, for use as a status sink.
func (b *Broadcaster) Writer() *LineWriter {
	return &LineWriter{b: b}
}

// LineWriter wraps Broadcaster as an io.Writer.
type LineWriter struct {
	b *Broadcaster
}

func (w *LineWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.Log("info", msg)
		}
	}
	return len(p), nil
}
