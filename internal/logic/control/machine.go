// Package control is the two-state positioning loop.
//
// Idle waits for an operator button edge. Moving steps the actuator toward the
// current stage's target until the encoder count lands inside the tolerance
// window or a travel limit trips. All state lives in one Context owned by the
// Machine; the only concurrent piece is the position counter, which is read
// through the Position interface.
package control

import (
	"time"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/logic/stage"
	"github.com/cjeanneret/Stager/internal/logic/trigger"
)

// Tolerance is the arrival window, in encoder counts, around the target.
const Tolerance = 2

// Mode is the state of the machine.
type Mode int

const (
	Idle Mode = iota
	Moving
)

func (m Mode) String() string {
	if m == Moving {
		return "moving"
	}
	return "idle"
}

// Limit names a travel limit switch.
type Limit int

const (
	StartLimit Limit = iota
	EndLimit
)

func (l Limit) String() string {
	if l == EndLimit {
		return "end"
	}
	return "start"
}

// Context is the complete control state. It is created Idle at stage 0 and
// changed only by transitions.
type Context struct {
	Mode        Mode
	StageIndex  int
	TargetDelta int64
	Direction   stage.Direction
}

// Inputs is one sample of the digital inputs, already converted to logical
// levels, and the monotonic time it was taken.
type Inputs struct {
	Button     bool
	StartLimit bool
	EndLimit   bool
	Now        time.Time
}

// Actuator is the motor the machine drives.
type Actuator interface {
	Enable(power float64) error
	Disable() error
	Step(dir stage.Direction) error
}

// Position is the encoder count. Read must be safe while the decoder runs.
type Position interface {
	Read() int64
	Reset()
}

// Indicator shows whether the controller is ready for the next button press.
type Indicator interface {
	SetReady(ready bool) error
}

// Reporter observes transitions. It has no influence on control.
type Reporter interface {
	MotionStarted(index int, s stage.Stage)
	Arrived(index int, count int64)
	LimitTripped(limit Limit, index int)
}

// Config carries the optional collaborators and the actuator power.
type Config struct {
	Power     float64   // actuator power, 0.0 to 1.0
	Indicator Indicator // nil = no ready lamp
	Reporter  Reporter  // nil = silent
}

// Machine is the control state machine. It is driven by Tick from a single
// goroutine and is not safe for concurrent use.
type Machine struct {
	ctx     Context
	started bool

	stages    *stage.Controller
	pos       Position
	act       Actuator
	indicator Indicator
	report    Reporter
	power     float64

	button     *trigger.Conditioner
	startLimit *trigger.Conditioner
	endLimit   *trigger.Conditioner
}

// New builds a machine at the boot state: Idle, stage 0.
func New(stages *stage.Controller, pos Position, act Actuator, cfg Config) *Machine {
	rep := cfg.Reporter
	if rep == nil {
		rep = nopReporter{}
	}
	return &Machine{
		ctx:        Context{Mode: Idle, StageIndex: stages.Index()},
		stages:     stages,
		pos:        pos,
		act:        act,
		indicator:  cfg.Indicator,
		report:     rep,
		power:      cfg.Power,
		button:     trigger.New(),
		startLimit: trigger.New(),
		endLimit:   trigger.New(),
	}
}

// Context returns a copy of the current control state.
func (m *Machine) Context() Context {
	return m.ctx
}

// Start runs the Idle entry actions. Tick calls it on first use if needed.
func (m *Machine) Start() error {
	m.started = true
	return m.enterIdle()
}

// Stop disables the actuator and clears the ready lamp, leaving the context
// as it is. Used on shutdown.
func (m *Machine) Stop() error {
	if err := m.act.Disable(); err != nil {
		return err
	}
	return m.setReady(false)
}

// Tick runs one control cycle. Returned errors come from actuator or
// indicator I/O; the transition has already been applied when they occur.
func (m *Machine) Tick(in Inputs) error {
	if !m.started {
		if err := m.Start(); err != nil {
			return err
		}
	}
	if m.ctx.Mode == Moving {
		return m.moving(in)
	}
	return m.idle(in)
}

// idle only looks at the button. Limits cannot be exceeded while stationary,
// and leaving their conditioners unpolled means a switch that closed while
// idle still produces its edge once motion starts. enterMoving restarts
// their windows so a candidate left over from the last move cannot commit
// on a single sample.
func (m *Machine) idle(in Inputs) error {
	if !m.button.Poll(in.Button, in.Now) {
		return nil
	}
	return m.enterMoving(m.stages.Current())
}

// moving checks the limits first, then arrival, then steps once.
func (m *Machine) moving(in Inputs) error {
	// Presses during motion are consumed and dropped.
	m.button.Poll(in.Button, in.Now)

	if m.startLimit.Poll(in.StartLimit, in.Now) {
		m.stages.GotoStart()
		return m.abort(StartLimit)
	}
	if m.endLimit.Poll(in.EndLimit, in.Now) {
		m.stages.GotoEnd()
		return m.abort(EndLimit)
	}

	count := m.pos.Read()
	if Arrived(count, m.ctx.TargetDelta) {
		done := m.ctx.StageIndex
		m.stages.Next()
		m.ctx.StageIndex = m.stages.Index()
		debug.Transition(Moving.String(), Idle.String(), "arrived")
		m.report.Arrived(done, count)
		return m.enterIdle()
	}

	return m.act.Step(m.ctx.Direction)
}

func (m *Machine) abort(l Limit) error {
	m.ctx.StageIndex = m.stages.Index()
	debug.Transition(Moving.String(), Idle.String(), l.String()+" limit")
	m.report.LimitTripped(l, m.ctx.StageIndex)
	return m.enterIdle()
}

func (m *Machine) enterIdle() error {
	m.ctx.Mode = Idle
	m.ctx.TargetDelta = 0
	m.ctx.Direction = stage.Forward
	if err := m.act.Disable(); err != nil {
		return err
	}
	return m.setReady(true)
}

func (m *Machine) enterMoving(s stage.Stage) error {
	m.ctx.Mode = Moving
	m.ctx.TargetDelta = s.Delta()
	m.ctx.Direction = s.Direction()
	m.pos.Reset()
	m.startLimit.Restart()
	m.endLimit.Restart()

	debug.Transition(Idle.String(), Moving.String(), "button")
	debug.Stage(m.ctx.StageIndex, s.Start, s.Stop, m.ctx.Direction.String())
	m.report.MotionStarted(m.ctx.StageIndex, s)

	if err := m.setReady(false); err != nil {
		return err
	}
	return m.act.Enable(m.power)
}

func (m *Machine) setReady(ready bool) error {
	if m.indicator == nil {
		return nil
	}
	return m.indicator.SetReady(ready)
}

// Arrived reports whether count is within Tolerance of target.
func Arrived(count, target int64) bool {
	d := count - target
	if d < 0 {
		d = -d
	}
	return d <= Tolerance
}

type nopReporter struct{}

func (nopReporter) MotionStarted(int, stage.Stage) {}
func (nopReporter) Arrived(int, int64)             {}
func (nopReporter) LimitTripped(Limit, int)        {}
