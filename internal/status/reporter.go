// Package status formats control transitions as human-readable lines for
// the operator, on the console, the serial port or the web status stream.
package status

import (
	"fmt"
	"io"
	"sync"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/logic/control"
	"github.com/cjeanneret/Stager/internal/logic/stage"
)

// Reporter writes one line per transition to its sink.
// Write errors are logged and otherwise ignored: reporting never affects control.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter returns a reporter writing to w. A nil w discards.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// MotionStarted reports the stage about to run.
func (r *Reporter) MotionStarted(index int, s stage.Stage) {
	r.printf("stage %d: start=%d stop=%d dir=%s", index, s.Start, s.Stop, s.Direction())
}

// Arrived reports that stage index reached its target.
func (r *Reporter) Arrived(index int, count int64) {
	r.printf("stage %d: arrived count=%d", index, count)
}

// LimitTripped reports an aborted move and the stage it snapped to.
func (r *Reporter) LimitTripped(limit control.Limit, index int) {
	r.printf("%s limit tripped: next stage %d", limit, index)
}

func (r *Reporter) printf(format string, args ...interface{}) {
	if r.w == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.w, line+"\n"); err != nil {
		debug.Error(fmt.Errorf("status sink: %w", err))
	}
}
