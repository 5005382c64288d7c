// Package stage holds the immutable stage table and the cursor that walks it.
package stage

import "fmt"

// Direction is the travel sense of a stage. It is derived from the stage
// positions and never stored on its own.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Stage is one leg of the sequence, expressed in encoder counts.
type Stage struct {
	Start int64
	Stop  int64
}

// Direction returns Forward when Stop is past Start, Reverse otherwise.
func (s Stage) Direction() Direction {
	if s.Stop > s.Start {
		return Forward
	}
	return Reverse
}

// Delta returns the travel distance of the stage in counts.
func (s Stage) Delta() int64 {
	d := s.Stop - s.Start
	if d < 0 {
		return -d
	}
	return d
}

// Table is the ordered, immutable list of stages loaded at startup.
type Table struct {
	stages []Stage
}

// NewTable copies stages into a new table. An empty table is rejected
// because the controller must always have a current stage.
func NewTable(stages []Stage) (*Table, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage table must contain at least one stage")
	}
	cp := make([]Stage, len(stages))
	copy(cp, stages)
	return &Table{stages: cp}, nil
}

// Len returns the number of stages.
func (t *Table) Len() int {
	return len(t.stages)
}

// At returns the stage at index i.
func (t *Table) At(i int) Stage {
	return t.stages[i]
}

// Stages returns a copy of all stages, in order.
func (t *Table) Stages() []Stage {
	cp := make([]Stage, len(t.stages))
	copy(cp, t.stages)
	return cp
}

// Controller holds the current position in a Table.
// The index is always in [0, Len()-1].
type Controller struct {
	table *Table
	index int
}

func NewController(t *Table) *Controller {
	return &Controller{table: t}
}

// Index returns the current stage index.
func (c *Controller) Index() int {
	return c.index
}

// Len returns the number of stages in the underlying table.
func (c *Controller) Len() int {
	return c.table.Len()
}

// Current returns the stage at the current index.
func (c *Controller) Current() Stage {
	return c.table.At(c.index)
}

// Next advances to the following stage, wrapping to 0 after the last one,
// and returns the new current stage.
func (c *Controller) Next() Stage {
	c.index = (c.index + 1) % c.table.Len()
	return c.Current()
}

// GotoStart jumps back to the first stage.
func (c *Controller) GotoStart() {
	c.index = 0
}

// GotoEnd jumps to the last stage, the return leg of the sequence.
func (c *Controller) GotoEnd() {
	c.index = c.table.Len() - 1
}
