package qkernel

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/theapemachine/errnie"
)

// ScenarioConfig describes one two-node purification trial.
type ScenarioConfig struct {
	Fidelity    float64
	Delay       SimTime
	ExpireAfter SimTime
	Retry       *RetryPolicy
	Seed        uint64

	// Force fixes every attempt's outcome instead of drawing it.
	Force Outcome
}

// TrialResult summarizes one scenario run.
type TrialResult struct {
	Outcome         Outcome
	Attempts        int
	Expired         int
	InitialFidelity float64
	FinalFidelity   float64
	SimTime         SimTime
	Events          uint64
	PurifiedPair    []Key
	LiveKeys        int
}

/*
RunScenario purifies one entangled pair between two nodes, alice and bob.

Each attempt loads two fresh memory pairs at the configured fidelity, prepares
a Bell pair per memory pair in a shared state store, and runs a BBPSSW
instance on each node. A failed or expired attempt consumes both pairs and,
when the retry policy allows, the next attempt starts after the backoff delay
in simulated time. Any error is an invariant violation of the kernel and ends
the trial.
*/
func RunScenario(ctx context.Context, cfg ScenarioConfig) (*TrialResult, error) {
	if cfg.Fidelity <= 0.5 || cfg.Fidelity > 1 {
		return nil, fmt.Errorf("%w: initial fidelity %v", ErrBelowThreshold, cfg.Fidelity)
	}

	tl := NewTimeline()
	env := &scenario{
		cfg:   cfg,
		tl:    tl,
		alice: NewNode("alice", tl),
		bob:   NewNode("bob", tl),
		store: NewStateStore(),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	Connect(env.alice, env.bob, cfg.Delay)

	result := &TrialResult{
		Outcome:         OutcomeFailure,
		InitialFidelity: cfg.Fidelity,
	}

	maxAttempts := cfg.Retry.attempts()
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Attempts = n
		outcome, err := env.attempt(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", n, err)
		}

		if outcome.expired {
			result.Expired++
		}

		if outcome.success() {
			result.Outcome = OutcomeSuccess
			result.FinalFidelity = outcome.fidelity
			result.PurifiedPair = outcome.pair
			break
		}

		if n < maxAttempts {
			if err := tl.RunUntil(ctx, tl.Now()+cfg.Retry.delay(n)); err != nil {
				return nil, err
			}
		}
	}

	result.SimTime = tl.Now()
	result.Events = tl.Executed()
	result.LiveKeys = env.store.Len()

	errnie.Info("Scenario - %s after %d attempts, fidelity %.4f -> %.4f",
		result.Outcome, result.Attempts, result.InitialFidelity, result.FinalFidelity)

	return result, nil
}

type scenario struct {
	cfg   ScenarioConfig
	tl    *Timeline
	alice *Node
	bob   *Node
	store *StateStore
	rng   *rand.Rand
}

type attemptOutcome struct {
	outcome  Outcome
	expired  bool
	fidelity float64
	pair     []Key
}

func (a attemptOutcome) success() bool {
	return a.outcome == OutcomeSuccess && !a.expired
}

// side is one node's half of an attempt.
type side struct {
	node     *Node
	kept     *Memory
	meas     *Memory
	keptKey  Key
	measKey  Key
	protocol *BBPSSW
}

func (s *scenario) attempt(ctx context.Context, n int) (attemptOutcome, error) {
	a := &side{node: s.alice}
	b := &side{node: s.bob}

	if err := s.entangle(n, a, b); err != nil {
		return attemptOutcome{}, err
	}

	for _, sd := range []*side{a, b} {
		p, err := NewPrimary(
			sd.node,
			fmt.Sprintf("bbpssw.%s.%d", sd.node.Name(), n),
			sd.kept, sd.meas,
			WithRand(s.rng),
		)
		if err != nil {
			return attemptOutcome{}, err
		}
		sd.protocol = p
	}

	if err := a.protocol.Link(b.protocol); err != nil {
		return attemptOutcome{}, err
	}
	if s.cfg.Force != OutcomeUnresolved {
		if err := a.protocol.ForceOutcome(s.cfg.Force); err != nil {
			return attemptOutcome{}, err
		}
	}

	now := s.tl.Now()
	for _, sd := range []*side{a, b} {
		sd.node.Register(sd.protocol)
		sd.node.ResourceManager().Load(sd.protocol, sd.kept, sd.meas)

		if err := s.tl.Schedule(now, Process{
			Owner:      sd.protocol.Name(),
			Activation: "start",
			Fn:         sd.protocol.Start,
		}); err != nil {
			return attemptOutcome{}, err
		}

		if s.cfg.ExpireAfter > 0 {
			if err := sd.node.ResourceManager().ScheduleExpiration(s.tl, sd.meas, now+s.cfg.ExpireAfter); err != nil {
				return attemptOutcome{}, err
			}
		}
	}

	if err := s.tl.Run(ctx); err != nil {
		return attemptOutcome{}, err
	}

	result := attemptOutcome{
		outcome: a.protocol.Outcome(),
		expired: a.protocol.Status() == StatusExpired || b.protocol.Status() == StatusExpired,
	}

	for _, sd := range []*side{a, b} {
		sd.node.Unregister(sd.protocol.Name())
	}

	consumed := []Key{a.measKey, b.measKey}
	if result.success() {
		result.fidelity = a.kept.Fidelity
		result.pair = []Key{a.keptKey, b.keptKey}
	} else {
		consumed = append(consumed, a.keptKey, b.keptKey)
	}

	for _, key := range consumed {
		if err := s.store.Remove(key); err != nil {
			return attemptOutcome{}, err
		}
	}

	return result, nil
}

// entangle creates both memory pairs of attempt n and their Bell states.
func (s *scenario) entangle(n int, a, b *side) error {
	a.kept = NewMemory(fmt.Sprintf("alice.kept.%d", n))
	a.meas = NewMemory(fmt.Sprintf("alice.meas.%d", n))
	b.kept = NewMemory(fmt.Sprintf("bob.kept.%d", n))
	b.meas = NewMemory(fmt.Sprintf("bob.meas.%d", n))

	links := []struct {
		local, remote *Memory
		localNode     string
		remoteNode    string
	}{
		{a.kept, b.kept, a.node.Name(), b.node.Name()},
		{a.meas, b.meas, a.node.Name(), b.node.Name()},
	}

	for _, link := range links {
		if err := link.local.EntangleWith(link.remoteNode, link.remote.Name, s.cfg.Fidelity); err != nil {
			return err
		}
		if err := link.remote.EntangleWith(link.localNode, link.local.Name, s.cfg.Fidelity); err != nil {
			return err
		}
	}

	keys := make([]Key, 4)
	for i := range keys {
		key, err := s.store.New()
		if err != nil {
			return err
		}
		keys[i] = key
	}
	a.keptKey, b.keptKey, a.measKey, b.measKey = keys[0], keys[1], keys[2], keys[3]

	bell := BellCircuit()
	if err := s.store.RunCircuit(bell, []Key{a.keptKey, b.keptKey}); err != nil {
		return err
	}
	return s.store.RunCircuit(bell, []Key{a.measKey, b.measKey})
}
