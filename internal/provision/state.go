package provision

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// State is a step of the provisioning lifecycle.
type State int

const (
	Created State = iota
	DatabaseStarting
	DatabaseReady
	DumpLoaded
	PrefixResolved
	AdminSeeded
	ConfigurationRehomed
	ApplicationStarting
	ApplicationReady

	// Failed is terminal and reachable from any non-terminal state.
	Failed
)

var stateNames = map[State]string{
	Created:              "created",
	DatabaseStarting:     "database_starting",
	DatabaseReady:        "database_ready",
	DumpLoaded:           "dump_loaded",
	PrefixResolved:       "prefix_resolved",
	AdminSeeded:          "admin_seeded",
	ConfigurationRehomed: "configuration_rehomed",
	ApplicationStarting:  "application_starting",
	ApplicationReady:     "application_ready",
	Failed:               "failed",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return "unknown"
	}

	return name
}

func (s State) Terminal() bool {
	return s == ApplicationReady || s == Failed
}

// Ordinal is exported as a metric. Failed is reported as -1.
func (s State) Ordinal() int {
	if s == Failed {
		return -1
	}

	return int(s)
}

var ErrInvalidTransition = errors.New("invalid state transition")

// Snapshot is a consistent view of the machine.
type Snapshot struct {
	State State

	// Reason is set for Failed only.
	Reason string

	// FailedIn is the last state reached before the failure.
	FailedIn State

	UpdatedAt time.Time
}

// Machine holds the provisioning state. It only moves forward: each Advance
// goes to the immediate successor, and Fail ends the lifecycle.
type Machine struct {
	mu       sync.RWMutex
	state    State
	failedIn State
	reason   string
	updated  time.Time
}

func NewMachine() *Machine {
	return &Machine{
		state:   Created,
		updated: time.Now(),
	}
}

// Advance moves the machine to next, which must directly follow the current state.
func (m *Machine) Advance(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminal() || next == Failed || next != m.state+1 {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", m.state, next)
	}

	m.state = next
	m.updated = time.Now()

	return nil
}

// Fail moves the machine to Failed. It returns false if the lifecycle has already ended.
func (m *Machine) Fail(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminal() {
		return false
	}

	m.failedIn = m.state
	m.state = Failed
	m.reason = reason
	m.updated = time.Now()

	return true
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		State:     m.state,
		Reason:    m.reason,
		FailedIn:  m.failedIn,
		UpdatedAt: m.updated,
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
