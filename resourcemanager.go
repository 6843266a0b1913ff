package qkernel

import (
	"fmt"
	"sync"

	"github.com/theapemachine/errnie"
)

// MemoryState is the occupancy of a memory as the resource manager sees it.
type MemoryState string

const (
	MemoryRaw       MemoryState = "RAW"
	MemoryOccupied  MemoryState = "OCCUPIED"
	MemoryEntangled MemoryState = "ENTANGLED"
)

func (s MemoryState) Valid() bool {
	switch s {
	case MemoryRaw, MemoryOccupied, MemoryEntangled:
		return true
	}
	return false
}

/*
Protocol is an entanglement protocol instance running on a node. Nodes hand it
inbound messages, the resource manager hands it memory expirations.
*/
type Protocol interface {
	Name() string
	ReceivedMessage(src string, msg *Message) error
	MemoryExpire(memory *Memory) error
	Release()
}

/*
ResourceManager is the boundary through which protocols change memory
occupancy. Protocols never set memory state themselves.
*/
type ResourceManager interface {
	Update(protocol Protocol, memory *Memory, state MemoryState) error
}

// MemoryUpdate is one recorded resource-manager transition.
type MemoryUpdate struct {
	Protocol string
	Memory   string
	From     MemoryState
	To       MemoryState
	At       SimTime
}

/*
MemoryManager is a ResourceManager that tracks the state and owning protocol
of every memory on one node.

Update releases the memory from its protocol: once a protocol has reported a
memory as RAW or ENTANGLED it no longer receives that memory's expiration.
*/
type MemoryManager struct {
	mu     sync.Mutex
	clock  Clock
	states map[*Memory]MemoryState
	owners map[*Memory]Protocol
	log    []MemoryUpdate
}

func NewMemoryManager(clock Clock) *MemoryManager {
	return &MemoryManager{
		clock:  clock,
		states: make(map[*Memory]MemoryState),
		owners: make(map[*Memory]Protocol),
	}
}

// Load hands memories to a protocol and marks them OCCUPIED.
func (rm *MemoryManager) Load(protocol Protocol, memories ...*Memory) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, memory := range memories {
		rm.transition(protocol, memory, MemoryOccupied)
		rm.owners[memory] = protocol
	}
}

// Update records a protocol's verdict on one of its memories.
func (rm *MemoryManager) Update(protocol Protocol, memory *Memory, state MemoryState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMemoryState, state)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if owner, ok := rm.owners[memory]; ok && owner != protocol {
		return fmt.Errorf("%w: %s is held by %s, not %s",
			ErrForeignMemory, memory.Name, owner.Name(), protocol.Name())
	}

	if state == MemoryRaw {
		memory.Reset()
	}

	rm.transition(protocol, memory, state)
	delete(rm.owners, memory)
	return nil
}

/*
Expire is the decoherence timer firing for memory. The owning protocol
decides what happens; a memory without an owner simply goes RAW.
*/
func (rm *MemoryManager) Expire(memory *Memory) error {
	rm.mu.Lock()
	owner, ok := rm.owners[memory]
	rm.mu.Unlock()

	if ok {
		return owner.MemoryExpire(memory)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	memory.Reset()
	rm.transition(nil, memory, MemoryRaw)
	return nil
}

// ScheduleExpiration books memory's decoherence on the timeline.
func (rm *MemoryManager) ScheduleExpiration(tl *Timeline, memory *Memory, at SimTime) error {
	return tl.Schedule(at, Process{
		Owner:      memory.Name,
		Activation: "expire",
		Fn:         func() error { return rm.Expire(memory) },
	})
}

// State returns the tracked state of memory, RAW when never seen.
func (rm *MemoryManager) State(memory *Memory) MemoryState {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if state, ok := rm.states[memory]; ok {
		return state
	}
	return MemoryRaw
}

// Owner returns the protocol currently holding memory, if any.
func (rm *MemoryManager) Owner(memory *Memory) (Protocol, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	owner, ok := rm.owners[memory]
	return owner, ok
}

// Log returns a copy of every recorded transition.
func (rm *MemoryManager) Log() []MemoryUpdate {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return append([]MemoryUpdate(nil), rm.log...)
}

func (rm *MemoryManager) transition(protocol Protocol, memory *Memory, state MemoryState) {
	name := ""
	if protocol != nil {
		name = protocol.Name()
	}

	var at SimTime
	if rm.clock != nil {
		at = rm.clock.Now()
	}

	from, ok := rm.states[memory]
	if !ok {
		from = MemoryRaw
	}

	rm.states[memory] = state
	rm.log = append(rm.log, MemoryUpdate{
		Protocol: name,
		Memory:   memory.Name,
		From:     from,
		To:       state,
		At:       at,
	})

	if from != state {
		errnie.Info("MemoryManager - %s %s -> %s (%s)", memory.Name, from, state, name)
	}
}
