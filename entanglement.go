package qkernel

import (
	"fmt"
	"sync"
)

// Outcome is the result of one purification attempt.
type Outcome int

const (
	OutcomeUnresolved Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unresolved"
	}
}

func outcomeOf(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

/*
Entanglement is the outcome cell shared by the two protocol instances of one
purification attempt.

The two memories of a physically entangled pair give correlated results, so
both sides must see the same random draw. Whichever side starts first draws
and writes the outcome; the cell can never be written again. This is a
same-process simulation shortcut: it carries no information in simulated
time, and neither side may act on the other's progress until the classical
result message has arrived.

Every write and read is recorded in a ledger with the simulated time, so the
order in which the parties saw the outcome can be inspected later.
*/
type Entanglement struct {
	ID string

	mu          sync.Mutex
	outcome     Outcome
	stateLedger []StateChange
}

/*
StateChange is one immutable ledger entry: which party wrote or observed the
outcome, when, and what it was.
*/
type StateChange struct {
	Party    string
	Action   string
	Outcome  Outcome
	At       SimTime
	Sequence uint64
}

func NewEntanglement(id string) *Entanglement {
	return &Entanglement{
		ID:          id,
		stateLedger: make([]StateChange, 0, 4),
	}
}

/*
Resolve returns the shared outcome, drawing it first if nobody has yet.

Parameters:
  - party: name of the calling protocol instance
  - at: current simulated time
  - draw: returns true for success; only called on the first resolve
*/
func (e *Entanglement) Resolve(party string, at SimTime, draw func() bool) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.outcome == OutcomeUnresolved {
		e.outcome = outcomeOf(draw())
		e.record(party, "draw", at)
		return e.outcome
	}

	e.record(party, "observe", at)
	return e.outcome
}

// Force writes the outcome without drawing. Fails once decided.
func (e *Entanglement) Force(party string, at SimTime, outcome Outcome) error {
	if outcome == OutcomeUnresolved {
		return fmt.Errorf("%w: cannot force an unresolved outcome", ErrOutcomeUnresolved)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.outcome != OutcomeUnresolved {
		return fmt.Errorf("%w: %s already holds %s", ErrOutcomeResolved, e.ID, e.outcome)
	}

	e.outcome = outcome
	e.record(party, "force", at)
	return nil
}

// Outcome returns the current value of the cell without recording a read.
func (e *Entanglement) Outcome() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// History returns the ledger, oldest first.
func (e *Entanglement) History() []StateChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]StateChange(nil), e.stateLedger...)
}

func (e *Entanglement) record(party, action string, at SimTime) {
	e.stateLedger = append(e.stateLedger, StateChange{
		Party:    party,
		Action:   action,
		Outcome:  e.outcome,
		At:       at,
		Sequence: uint64(len(e.stateLedger)),
	})
}
