// qspace.go
package qkernel

import (
	"fmt"
	"sync"

	"github.com/theapemachine/errnie"
)

/*
	StateTransition records one republish of a key's composite state.

Every change to the key → state mapping appends one transition per affected
key, so the evolution of any qubit's entanglement membership can be replayed.
*/
type StateTransition struct {
	Key      Key
	From     *CompositeState
	To       *CompositeState
	Cause    string
	Sequence uint64
}

// StoreOption configures a StateStore.
type StoreOption func(*StateStore)

/*
	WithStrictRemoval makes Remove and Set refuse to detach a key whose
	composite state is still referenced by other live keys.

Without it, the key is detached anyway and the siblings keep a state whose
member list still names it. RunCircuit treats such members as orphaned axes.
*/
func WithStrictRemoval() StoreOption {
	return func(s *StateStore) {
		s.strictRemoval = true
	}
}

/*
	StateStore is the registry of live qubits and the composite states that own
	them.

It hands out monotonically increasing keys and keeps, for each live key, a
pointer to the CompositeState it belongs to. Keys that share a pointer are
entangled. States are never edited in place: every change builds a new
CompositeState and repoints all of its member keys.

Key features:
  - Allocation of single-qubit kets
  - Forced overwrite of a key set (idealized entanglement generation)
  - Circuit evolution with state merging and axis reordering
  - Transition ledger per key
*/
type StateStore struct {
	mu sync.RWMutex

	states         map[Key]*CompositeState
	leastAvailable Key
	history        []StateTransition
	strictRemoval  bool
}

// NewStateStore returns an empty store.
func NewStateStore(opts ...StoreOption) *StateStore {
	s := &StateStore{
		states: make(map[Key]*CompositeState),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

/*
New allocates a key holding a fresh single-qubit state.

With no arguments the qubit starts in |0⟩. No key is consumed when the
amplitudes are rejected.

Parameters:
  - amplitudes: the |0⟩ and |1⟩ amplitudes

Returns:
  - Key: the new key
  - error: ErrDimensionMismatch or ErrAmplitudeBound
*/
func (s *StateStore) New(amplitudes ...complex128) (Key, error) {
	if len(amplitudes) == 0 {
		amplitudes = Ket0().Amplitudes()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.leastAvailable
	state, err := NewCompositeState(amplitudes, []Key{key})
	if err != nil {
		return 0, err
	}

	s.leastAvailable++
	s.publish(state, "new")
	return key, nil
}

// Get returns the composite state that currently owns key.
func (s *StateStore) Get(key Key) (*CompositeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}
	return state, nil
}

// Exists reports whether key is live.
func (s *StateStore) Exists(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.states[key]
	return ok
}

// Len returns the number of live keys.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}

/*
	Set overwrites the state of exactly the given keys.

Every listed key, new or existing, is repointed to the new state. This models
idealized, instantaneous entanglement generation. Keys that were never
allocated move the allocator past them so they are not handed out later.

A listed key that shares its state with live keys outside the set is split
off: those keys keep the old state, which still names it. With
WithStrictRemoval the call fails with ErrLiveSiblings instead.
*/
func (s *StateStore) Set(keys []Key, amplitudes []complex128) error {
	state, err := NewCompositeState(amplitudes, keys)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listed := make(map[Key]bool, len(keys))
	for _, key := range keys {
		listed[key] = true
	}

	for _, key := range keys {
		old, ok := s.states[key]
		if !ok {
			continue
		}

		var outside []Key
		for _, sibling := range s.siblingsLocked(key, old) {
			if !listed[sibling] {
				outside = append(outside, sibling)
			}
		}
		if len(outside) == 0 {
			continue
		}

		if s.strictRemoval {
			return fmt.Errorf("%w: %d shares its state with %v", ErrLiveSiblings, key, outside)
		}
		errnie.Info("Set - key %d leaves stale member in state of %v", key, outside)
	}

	for _, key := range keys {
		if key >= s.leastAvailable {
			s.leastAvailable = key + 1
		}
	}

	s.publish(state, "set")
	return nil
}

/*
	RunCircuit applies op to the qubits named by keys.

The composite states owning those keys are merged into one joint ket, the axes
are swapped so that keys[i] sits at position i, and op is applied to those
leading axes with the identity on every other member of the merged state.
The result is published as one new CompositeState that every merged key
points to. Nothing is measured.

A member that no longer points at the state listing it, because it was
removed or split off by Set, is an orphaned axis. It keeps its amplitudes in
the merged state under a freshly retired key, so the result never names a key
twice and never pulls a detached key back in.

Parameters:
  - op: operator over len(keys) qubits, in the order of keys
  - keys: the qubits the operator acts on

Returns:
  - error: ErrUnknownKey or ErrDimensionMismatch; the store is unchanged on error
*/
func (s *StateStore) RunCircuit(op Operator, keys []Key) error {
	if len(keys) == 0 || op.Size() != len(keys) {
		return fmt.Errorf("%w: %d-qubit operator on %d keys", ErrDimensionMismatch, op.Size(), len(keys))
	}

	matrix, err := op.Matrix()
	if err != nil {
		return err
	}

	if matrix.Dim() != 1<<op.Size() || !matrix.IsSquare() {
		return fmt.Errorf("%w: %d×%d matrix declared for %d qubits",
			ErrDimensionMismatch, matrix.Dim(), matrix.Dim(), op.Size())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Distinct owning states by identity, in first-encounter order.
	var (
		merged  []*CompositeState
		allKeys []Key
		wanted  = make(map[Key]bool, len(keys))
		retired = s.leastAvailable
	)

	for _, key := range keys {
		if wanted[key] {
			return fmt.Errorf("%w: key %d listed twice", ErrDimensionMismatch, key)
		}
		wanted[key] = true

		state, ok := s.states[key]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownKey, key)
		}

		if containsState(merged, state) {
			continue
		}

		merged = append(merged, state)
		for _, member := range state.keys {
			if s.states[member] != state {
				member, retired = retired, retired+1
			}
			allKeys = append(allKeys, member)
		}
	}

	joint := []complex128{1}
	for _, state := range merged {
		joint = kronVector(joint, state.amplitudes)
	}

	// Swap-sort the requested keys onto the leading axes.
	n := len(allKeys)
	for i, key := range keys {
		j := indexOfKey(allKeys, key)
		if j != i {
			swapQubits(joint, n, i, j)
			allKeys[i], allKeys[j] = allKeys[j], allKeys[i]
		}
	}

	if op.Size() < n {
		matrix = matrix.Kron(Identity(1 << (n - op.Size())))
	}

	out, err := matrix.Apply(joint)
	if err != nil {
		return err
	}

	state, err := NewCompositeState(out, allKeys)
	if err != nil {
		return err
	}

	if len(merged) > 1 {
		errnie.Info("RunCircuit - merged %d states into keys %v", len(merged), allKeys)
	}
	if retired > s.leastAvailable {
		errnie.Info("RunCircuit - retired orphaned axes as keys %d..%d", s.leastAvailable, retired-1)
		s.leastAvailable = retired
	}

	s.publishLive(state, "circuit")
	return nil
}

/*
	Remove deletes key from the store.

Only the mapping is removed. Siblings that shared the key's state keep
pointing at it, so its member list still names the removed key. With
WithStrictRemoval the call fails with ErrLiveSiblings instead.
*/
func (s *StateStore) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}

	siblings := s.siblingsLocked(key, state)
	if len(siblings) > 0 {
		if s.strictRemoval {
			return fmt.Errorf("%w: %d shares its state with %v", ErrLiveSiblings, key, siblings)
		}
		errnie.Info("Remove - key %d leaves stale member in state of %v", key, siblings)
	}

	delete(s.states, key)
	s.recordTransition(key, state, nil, "remove")
	return nil
}

// Siblings returns the other live keys that share key's composite state.
func (s *StateStore) Siblings(key Key) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}
	return s.siblingsLocked(key, state), nil
}

func (s *StateStore) siblingsLocked(key Key, state *CompositeState) []Key {
	var siblings []Key
	for _, member := range state.keys {
		if member == key {
			continue
		}
		if s.states[member] == state {
			siblings = append(siblings, member)
		}
	}
	return siblings
}

// History returns the transitions recorded for key, oldest first.
func (s *StateStore) History(key Key) []StateTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []StateTransition
	for _, transition := range s.history {
		if transition.Key == key {
			history = append(history, transition)
		}
	}
	return history
}

// publish repoints every member of state to it. Callers hold the lock.
func (s *StateStore) publish(state *CompositeState, cause string) {
	for _, key := range state.keys {
		s.recordTransition(key, s.states[key], state, cause)
		s.states[key] = state
	}
}

// publishLive is publish for merged states, which may name retired keys;
// those stay unallocated.
func (s *StateStore) publishLive(state *CompositeState, cause string) {
	for _, key := range state.keys {
		if _, ok := s.states[key]; !ok {
			continue
		}
		s.recordTransition(key, s.states[key], state, cause)
		s.states[key] = state
	}
}

func (s *StateStore) recordTransition(key Key, from, to *CompositeState, cause string) {
	s.history = append(s.history, StateTransition{
		Key:      key,
		From:     from,
		To:       to,
		Cause:    cause,
		Sequence: uint64(len(s.history)),
	})
}

func containsState(states []*CompositeState, state *CompositeState) bool {
	for _, st := range states {
		if st == state {
			return true
		}
	}
	return false
}

func indexOfKey(keys []Key, key Key) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
