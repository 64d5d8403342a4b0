// Package presence maps bursty editor activity onto one shared animation
// state with a debounced decay back to idle.
package presence

import (
	"fmt"
	"time"
)

type State string

const (
	Idle     State = "idle"
	Typing   State = "typing"
	Thinking State = "thinking"
	Terminal State = "terminal"
)

func (s State) Valid() bool {
	switch s {
	case Idle, Typing, Thinking, Terminal:
		return true
	}
	return false
}

type EventKind int

const (
	TextInserted EventKind = iota + 1
	FocusChanged
	SelectionChanged
	TerminalChanged
	TerminalOutput
)

func (k EventKind) String() string {
	switch k {
	case TextInserted:
		return "textInserted"
	case FocusChanged:
		return "focusChanged"
	case SelectionChanged:
		return "selectionChanged"
	case TerminalChanged:
		return "terminalChanged"
	case TerminalOutput:
		return "terminalOutput"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one activity signal from the host. Lines is only meaningful for
// SelectionChanged.
type Event struct {
	Kind  EventKind
	Lines int
}

type Config struct {
	IdleWindow             time.Duration
	SelectionLineThreshold int
}

func DefaultConfig() Config {
	return Config{IdleWindow: 5 * time.Second, SelectionLineThreshold: 2}
}

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Implementations decide which goroutine f
// runs on; the office runtime routes it back into its event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules with time.AfterFunc.
type WallClock struct{}

func (WallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Machine is not safe for concurrent use; the owner serializes Observe and
// the scheduled decay callbacks.
type Machine struct {
	cfg   Config
	sched Scheduler
	emit  func(State)

	state   State
	gen     uint64
	timer   Timer
	lastAct time.Time
}

func New(cfg Config, sched Scheduler, emit func(State)) *Machine {
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = DefaultConfig().IdleWindow
	}
	if sched == nil {
		sched = WallClock{}
	}
	if emit == nil {
		emit = func(State) {}
	}
	return &Machine{cfg: cfg, sched: sched, emit: emit, state: Idle}
}

func (m *Machine) State() State            { return m.state }
func (m *Machine) LastActivity() time.Time { return m.lastAct }

// target returns the state an event drives toward, or false when the event
// does not count as activity.
func (m *Machine) target(ev Event) (State, bool) {
	switch ev.Kind {
	case TextInserted:
		return Typing, true
	case FocusChanged:
		return Thinking, true
	case SelectionChanged:
		if ev.Lines > m.cfg.SelectionLineThreshold {
			return Thinking, true
		}
		return "", false
	case TerminalChanged, TerminalOutput:
		return Terminal, true
	}
	return "", false
}

// Observe applies one event. Every qualifying event re-arms the idle timer;
// it reports whether the shared state changed (and was emitted).
func (m *Machine) Observe(ev Event, now time.Time) bool {
	next, ok := m.target(ev)
	if !ok {
		return false
	}
	m.lastAct = now
	m.rearm()
	return m.set(next)
}

// Expire is the decay callback for generation gen. A callback from an
// earlier generation is stale and ignored.
func (m *Machine) Expire(gen uint64) bool {
	if gen != m.gen {
		return false
	}
	m.timer = nil
	return m.set(Idle)
}

// Stop cancels any pending decay.
func (m *Machine) Stop() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) rearm() {
	m.Stop()
	gen := m.gen
	m.timer = m.sched.AfterFunc(m.cfg.IdleWindow, func() { m.Expire(gen) })
}

func (m *Machine) set(s State) bool {
	if s == m.state {
		return false
	}
	m.state = s
	m.emit(s)
	return true
}
