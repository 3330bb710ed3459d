package statemachine

import (
	"fmt"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// StringState provides a simple string-based state implementation.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// Table holds the allowed transitions between states.
// Lookups are O(1): map[fromState]map[toState]State.
type Table struct {
	transitions map[string]map[string]State
	order       map[string][]State // preserves declaration order for AllowedTargets
	terminal    map[string]struct{}
}

// Option configures a Table during construction.
type Option func(*Table) error

// NewTable creates a transition table from the given options.
func NewTable(opts ...Option) (*Table, error) {
	t := &Table{
		transitions: make(map[string]map[string]State),
		order:       make(map[string][]State),
		terminal:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	for name := range t.terminal {
		if len(t.transitions[name]) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrTerminalState, name)
		}
	}

	return t, nil
}

// MustNewTable creates a transition table and panics on invalid configuration.
// Transition tables are static, so a broken one is a programming error.
func MustNewTable(opts ...Option) *Table {
	t, err := NewTable(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// WithTransition adds a single allowed transition.
func WithTransition(from, to State) Option {
	return func(t *Table) error {
		return t.add(from, to)
	}
}

// WithTransitions adds transitions from one state to each of the given targets.
func WithTransitions(from State, targets ...State) Option {
	return func(t *Table) error {
		for i, to := range targets {
			if err := t.add(from, to); err != nil {
				return fmt.Errorf("failed to add transition[%d]: %w", i, err)
			}
		}
		return nil
	}
}

// WithTerminal marks a state as terminal. Construction fails if the state
// also has outbound transitions.
func WithTerminal(states ...State) Option {
	return func(t *Table) error {
		for _, s := range states {
			if s == nil {
				return ErrNilState
			}
			t.terminal[s.Name()] = struct{}{}
		}
		return nil
	}
}

func (t *Table) add(from, to State) error {
	if from == nil || to == nil {
		return ErrNilState
	}

	fromName := from.Name()
	if _, ok := t.transitions[fromName]; !ok {
		t.transitions[fromName] = make(map[string]State)
	}
	if _, exists := t.transitions[fromName][to.Name()]; exists {
		return nil
	}

	t.transitions[fromName][to.Name()] = to
	t.order[fromName] = append(t.order[fromName], to)
	return nil
}

// AllowedTargets returns the states reachable from the given state in one step,
// in declaration order. The same-state no-op is not included.
func (t *Table) AllowedTargets(from State) []State {
	if from == nil {
		return nil
	}
	targets := t.order[from.Name()]
	out := make([]State, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether moving from one state to another is allowed.
// Staying in the same state is always allowed.
func (t *Table) CanTransition(from, to State) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Name() == to.Name() {
		return true
	}
	_, ok := t.transitions[from.Name()][to.Name()]
	return ok
}

// Validate returns an *InvalidTransitionError when the transition is not allowed.
func (t *Table) Validate(from, to State) error {
	if from == nil || to == nil {
		return ErrNilState
	}
	if !t.CanTransition(from, to) {
		return NewInvalidTransitionError(from.Name(), to.Name())
	}
	return nil
}

// IsNoop reports whether the transition keeps the machine in the same state.
func (t *Table) IsNoop(from, to State) bool {
	return from != nil && to != nil && from.Name() == to.Name()
}

// IsTerminal reports whether the state has been declared terminal.
func (t *Table) IsTerminal(s State) bool {
	if s == nil {
		return false
	}
	_, ok := t.terminal[s.Name()]
	return ok
}
