package qkernel

import (
	"fmt"
	"math/rand/v2"

	"github.com/theapemachine/errnie"
)

/*
Role is the tagged variant of a BBPSSW instance: Primary holds the kept and the
measured memory, Secondary holds only the kept one.
*/
type Role interface {
	Kept() *Memory
	Memories() []*Memory
	isRole()
}

// Primary is the two-memory side that performs the local measurement.
type Primary struct {
	KeptMemo *Memory
	MeasMemo *Memory
}

func (r Primary) Kept() *Memory { return r.KeptMemo }

func (r Primary) Memories() []*Memory { return []*Memory{r.KeptMemo, r.MeasMemo} }

func (Primary) isRole() {}

// Secondary is the single-memory side.
type Secondary struct {
	KeptMemo *Memory
}

func (r Secondary) Kept() *Memory { return r.KeptMemo }

func (r Secondary) Memories() []*Memory { return []*Memory{r.KeptMemo} }

func (Secondary) isRole() {}

// Status is where a BBPSSW instance is in its lifecycle.
type Status int

const (
	StatusUnlinked Status = iota
	StatusReady
	StatusResolving
	StatusResolved
	StatusExpired
	StatusReleased
)

func (s Status) String() string {
	switch s {
	case StatusUnlinked:
		return "UNLINKED"
	case StatusReady:
		return "READY"
	case StatusResolving:
		return "RESOLVING"
	case StatusResolved:
		return "RESOLVED"
	case StatusExpired:
		return "EXPIRED"
	case StatusReleased:
		return "RELEASED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// SuccessProbability is p(F) from Dür and Briegel (2007), p. 14.
func SuccessProbability(f float64) float64 {
	return f*f + 2*f*(1-f)/3 + 5*((1-f)/3)*((1-f)/3)
}

// ImprovedFidelity is the fidelity after a successful round, Dür and Briegel
// (2007) eq. 18.
func ImprovedFidelity(f float64) float64 {
	return (f*f + ((1-f)/3)*((1-f)/3)) / SuccessProbability(f)
}

// BBPSSWOption configures a BBPSSW instance.
type BBPSSWOption func(*BBPSSW)

// WithRand sets the random source used for the shared outcome draw.
func WithRand(rng *rand.Rand) BBPSSWOption {
	return func(p *BBPSSW) {
		p.rng = rng
	}
}

// WithResourceManager overrides the owning node's resource manager.
func WithResourceManager(rm ResourceManager) BBPSSWOption {
	return func(p *BBPSSW) {
		p.resources = rm
	}
}

/*
BBPSSW is one side of a BBPSSW entanglement purification attempt.

Two instances, one per node, are linked for the lifetime of the attempt. The
first one to start draws the outcome into the shared Entanglement cell; each
side then updates its own kept memory's fidelity and tells its counterpart
over the classical channel. Memory occupancy changes only when that message
arrives, or when a memory expires first.
*/
type BBPSSW struct {
	own       *Node
	name      string
	role      Role
	remote    string
	another   *BBPSSW
	shared    *Entanglement
	t0        SimTime
	status    Status
	rng       *rand.Rand
	resources ResourceManager

	// baseline holds each memory's fidelity before Start, restored when an
	// expiry rolls the attempt back.
	baseline map[*Memory]float64
}

// NewPrimary creates the two-memory side. kept and meas must differ.
func NewPrimary(own *Node, name string, kept, meas *Memory, opts ...BBPSSWOption) (*BBPSSW, error) {
	if kept == nil || meas == nil {
		return nil, fmt.Errorf("%w: primary %s needs two memories", ErrForeignMemory, name)
	}
	if kept == meas {
		return nil, fmt.Errorf("%w: %s", ErrSameMemory, kept.Name)
	}

	return newBBPSSW(own, name, Primary{KeptMemo: kept, MeasMemo: meas}, opts...), nil
}

// NewSecondary creates the single-memory side.
func NewSecondary(own *Node, name string, kept *Memory, opts ...BBPSSWOption) (*BBPSSW, error) {
	if kept == nil {
		return nil, fmt.Errorf("%w: secondary %s needs a memory", ErrForeignMemory, name)
	}

	return newBBPSSW(own, name, Secondary{KeptMemo: kept}, opts...), nil
}

func newBBPSSW(own *Node, name string, role Role, opts ...BBPSSWOption) *BBPSSW {
	p := &BBPSSW{
		own:       own,
		name:      name,
		role:      role,
		remote:    role.Kept().RemoteNode(),
		t0:        own.Timeline().Now(),
		status:    StatusUnlinked,
		resources: own.ResourceManager(),
		baseline:  make(map[*Memory]float64, 2),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *BBPSSW) Name() string { return p.name }

func (p *BBPSSW) Node() *Node { return p.own }

func (p *BBPSSW) Role() Role { return p.role }

func (p *BBPSSW) Status() Status { return p.status }

func (p *BBPSSW) StartTime() SimTime { return p.t0 }

// IsPrimary reports whether this side holds the measured memory.
func (p *BBPSSW) IsPrimary() bool {
	_, ok := p.role.(Primary)
	return ok
}

// Memories returns the memories this instance holds.
func (p *BBPSSW) Memories() []*Memory { return p.role.Memories() }

// Shared returns the outcome cell, nil until linked.
func (p *BBPSSW) Shared() *Entanglement { return p.shared }

// Outcome returns the shared outcome, unresolved until either side starts.
func (p *BBPSSW) Outcome() Outcome {
	if p.shared == nil {
		return OutcomeUnresolved
	}
	return p.shared.Outcome()
}

// Link pairs p with its counterpart on the other node and creates the shared
// outcome cell.
func (p *BBPSSW) Link(another *BBPSSW) error {
	if another == nil || another == p {
		return fmt.Errorf("%w: %s cannot link to itself", ErrNotLinked, p.name)
	}
	if p.another != nil || another.another != nil {
		return fmt.Errorf("%w: %s or %s", ErrAlreadyLinked, p.name, another.name)
	}

	shared := NewEntanglement(p.name + "~" + another.name)
	p.another, another.another = another, p
	p.shared, another.shared = shared, shared
	p.status, another.status = StatusReady, StatusReady
	return nil
}

func (p *BBPSSW) IsReady() bool {
	return p.another != nil
}

// ForceOutcome fixes the shared outcome before either side starts.
func (p *BBPSSW) ForceOutcome(outcome Outcome) error {
	if p.shared == nil {
		return fmt.Errorf("%w: %s", ErrNotLinked, p.name)
	}
	return p.shared.Force(p.name, p.own.Timeline().Now(), outcome)
}

/*
Start runs the local purification step and sends the result message.

Preconditions, each reported with its own error: the counterpart is linked,
this side has not started and is still active, both memories are entangled with the counterpart's
node, both report the same fidelity, and that fidelity exceeds 0.5. The
secondary side only checks the link and the threshold.
*/
func (p *BBPSSW) Start() error {
	if p.another == nil {
		return fmt.Errorf("%w: %s", ErrNotLinked, p.name)
	}
	switch p.status {
	case StatusReady:
	case StatusExpired, StatusReleased:
		return fmt.Errorf("%w: %s is %s", ErrInactive, p.name, p.status)
	default:
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, p.name, p.status)
	}

	kept := p.role.Kept()
	dst := p.another.own.Name()

	if kept.RemoteNode() != dst {
		return fmt.Errorf("%w: %s is entangled with %q, counterpart is on %q",
			ErrRemoteMismatch, kept.Name, kept.RemoteNode(), dst)
	}

	if primary, ok := p.role.(Primary); ok {
		meas := primary.MeasMemo
		if meas.RemoteNode() != kept.RemoteNode() {
			return fmt.Errorf("%w: %s -> %q, %s -> %q",
				ErrRemoteMismatch, kept.Name, kept.RemoteNode(), meas.Name, meas.RemoteNode())
		}
		if meas.Fidelity != kept.Fidelity {
			return fmt.Errorf("%w: %s=%v, %s=%v",
				ErrFidelityMismatch, kept.Name, kept.Fidelity, meas.Name, meas.Fidelity)
		}
	}

	fidelity := kept.Fidelity
	if fidelity <= 0.5 {
		return fmt.Errorf("%w: %s has %v", ErrBelowThreshold, kept.Name, fidelity)
	}

	now := p.own.Timeline().Now()
	p.t0 = now
	p.remote = dst
	for _, memory := range p.role.Memories() {
		p.baseline[memory] = memory.Fidelity
	}

	outcome := p.shared.Resolve(p.name, now, func() bool {
		return p.sample() < SuccessProbability(fidelity)
	})

	if outcome == OutcomeSuccess {
		kept.Fidelity = ImprovedFidelity(fidelity)
	}

	errnie.Info("BBPSSW %s - %s at %d, fidelity %.4f -> %.4f", p.name, outcome, now, fidelity, kept.Fidelity)

	msg, err := NewPurificationMessage(PurificationResult, p.another.name)
	if err != nil {
		return err
	}

	p.status = StatusResolving
	return p.own.SendMessage(dst, msg)
}

/*
ReceivedMessage consumes the counterpart's result message. On success the
measured memory becomes RAW and the kept memory ENTANGLED; on failure both
become RAW. A message that arrives after this side expired changes nothing.
*/
func (p *BBPSSW) ReceivedMessage(src string, msg *Message) error {
	if p.another == nil {
		return fmt.Errorf("%w: %s", ErrNotLinked, p.name)
	}
	if src != p.another.own.Name() {
		return fmt.Errorf("%w: %s got a message from %q, counterpart is on %q",
			ErrWrongSender, p.name, src, p.another.own.Name())
	}
	if msg.Type != PurificationResult {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	switch p.status {
	case StatusExpired, StatusReleased:
		errnie.Info("BBPSSW %s - ignoring late result from %s (%s)", p.name, src, p.status)
		return nil
	case StatusResolved:
		return fmt.Errorf("%w: %s received a second result", ErrOutcomeResolved, p.name)
	}

	outcome := p.shared.Outcome()
	if outcome == OutcomeUnresolved {
		return fmt.Errorf("%w: %s", ErrOutcomeUnresolved, p.name)
	}

	if primary, ok := p.role.(Primary); ok {
		if err := p.update(primary.MeasMemo, MemoryRaw); err != nil {
			return err
		}
	}

	keptState := MemoryRaw
	if outcome == OutcomeSuccess {
		keptState = MemoryEntangled
	}
	if err := p.update(p.role.Kept(), keptState); err != nil {
		return err
	}

	p.status = StatusResolved
	return nil
}

/*
MemoryExpire handles the decoherence of one of this instance's memories.

The secondary side simply releases the memory as RAW. The primary side looks
at how far into the round trip the expiry falls, with delay the one-way
channel delay to the remote node and t0 the start time:

  - before t0+delay no result can have arrived: the expired memory is RAW and
    the others roll back to ENTANGLED with their pre-attempt fidelity
  - before t0+2·delay the attempt is abandoned: every memory is RAW
  - from t0+2·delay on the timing model is broken: ErrDeadlineExceeded
*/
func (p *BBPSSW) MemoryExpire(memory *Memory) error {
	if !p.holds(memory) {
		return fmt.Errorf("%w: %s is not held by %s", ErrForeignMemory, memory.Name, p.name)
	}

	switch p.status {
	case StatusResolved, StatusExpired, StatusReleased:
		errnie.Info("BBPSSW %s - ignoring expiry of %s (%s)", p.name, memory.Name, p.status)
		return nil
	}

	if _, ok := p.role.(Secondary); ok {
		p.status = StatusExpired
		return p.update(memory, MemoryRaw)
	}

	delay, err := p.own.Delay(p.remote)
	if err != nil {
		return err
	}

	now := p.own.Timeline().Now()
	switch {
	case now < p.t0+delay:
		if err := p.update(memory, MemoryRaw); err != nil {
			return err
		}
		for _, other := range p.role.Memories() {
			if other == memory {
				continue
			}
			if baseline, ok := p.baseline[other]; ok {
				other.Fidelity = baseline
			}
			if err := p.update(other, MemoryEntangled); err != nil {
				return err
			}
		}
	case now < p.t0+2*delay:
		for _, other := range p.role.Memories() {
			if err := p.update(other, MemoryRaw); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s at %d, t0 %d, delay %d", ErrDeadlineExceeded, memory.Name, now, p.t0, delay)
	}

	p.status = StatusExpired
	return nil
}

// Release is the cleanup hook called when the protocol is removed from its node.
func (p *BBPSSW) Release() {
	p.status = StatusReleased
}

func (p *BBPSSW) holds(memory *Memory) bool {
	for _, m := range p.role.Memories() {
		if m == memory {
			return true
		}
	}
	return false
}

func (p *BBPSSW) update(memory *Memory, state MemoryState) error {
	return p.resources.Update(p, memory, state)
}

func (p *BBPSSW) sample() float64 {
	if p.rng != nil {
		return p.rng.Float64()
	}
	return rand.Float64()
}
