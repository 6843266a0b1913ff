package qkernel

import (
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStateStoreAllocation(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := NewStateStore()

		Convey("New should hand out increasing keys in |0⟩", func() {
			a, err := store.New()
			So(err, ShouldBeNil)
			b, err := store.New(Ket1().Amplitudes()...)
			So(err, ShouldBeNil)

			So(a, ShouldEqual, Key(0))
			So(b, ShouldEqual, Key(1))
			So(store.Len(), ShouldEqual, 2)

			state, err := store.Get(b)
			So(err, ShouldBeNil)
			So(state.Amplitudes(), ShouldResemble, []complex128{0, 1})
		})

		Convey("New should not consume a key on bad amplitudes", func() {
			_, err := store.New(1, 0, 0)
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			key, err := store.New()
			So(err, ShouldBeNil)
			So(key, ShouldEqual, Key(0))
		})

		Convey("New should accept a prepared qubit", func() {
			key, err := store.New(Ket0().ApplyHadamard().Amplitudes()...)
			So(err, ShouldBeNil)

			state, _ := store.Get(key)
			probs := state.Probabilities()
			So(probs[0], ShouldAlmostEqual, 0.5, 1e-12)
			So(probs[1], ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("Get should fail on an unknown key", func() {
			_, err := store.Get(42)
			So(errors.Is(err, ErrUnknownKey), ShouldBeTrue)
			So(store.Exists(42), ShouldBeFalse)
		})
	})
}

func TestStateStoreSet(t *testing.T) {
	Convey("Given a store with two keys", t, func() {
		store := NewStateStore()
		a, _ := store.New()
		b, _ := store.New()
		r := complex(1/math.Sqrt2, 0)

		Convey("Set should point both keys at one state", func() {
			So(store.Set([]Key{a, b}, []complex128{r, 0, 0, r}), ShouldBeNil)

			sa, _ := store.Get(a)
			sb, _ := store.Get(b)
			So(sa, ShouldEqual, sb)
			So(sa.Keys(), ShouldResemble, []Key{a, b})
		})

		Convey("Set should fail on a dimension mismatch and leave the store alone", func() {
			before, _ := store.Get(a)
			err := store.Set([]Key{a, b}, []complex128{1, 0})
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			after, _ := store.Get(a)
			So(after, ShouldEqual, before)
		})

		Convey("Set should fail on a length that is not a power of two", func() {
			err := store.Set([]Key{a, b}, []complex128{1, 0, 0})
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
			So(store.History(a), ShouldHaveLength, 1)
		})

		Convey("Set should reserve keys that were never allocated", func() {
			So(store.Set([]Key{10}, []complex128{1, 0}), ShouldBeNil)
			So(store.Exists(10), ShouldBeTrue)

			next, err := store.New()
			So(err, ShouldBeNil)
			So(next, ShouldEqual, Key(11))
		})
	})
}

func TestStateStoreRunCircuit(t *testing.T) {
	Convey("Given freshly allocated keys", t, func() {
		store := NewStateStore()
		a, _ := store.New()
		b, _ := store.New()
		c, _ := store.New()
		r := 1 / math.Sqrt2

		Convey("A two-qubit operator should entangle them into one state", func() {
			So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

			sa, _ := store.Get(a)
			sb, _ := store.Get(b)
			So(sa, ShouldEqual, sb)

			amps := sa.Amplitudes()
			So(real(amps[0]), ShouldAlmostEqual, r, 1e-12)
			So(real(amps[3]), ShouldAlmostEqual, r, 1e-12)
			So(real(amps[1]), ShouldAlmostEqual, 0, 1e-12)

			sc, _ := store.Get(c)
			So(sc.Contains(a), ShouldBeFalse)
		})

		Convey("Merging should produce the union of member keys", func() {
			So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

			cnot := NewCircuit(2)
			So(cnot.AddGate("CNOT", 0, 1), ShouldBeNil)
			So(store.RunCircuit(cnot, []Key{c, a}), ShouldBeNil)

			state, _ := store.Get(c)
			So(state.Keys(), ShouldResemble, []Key{c, a, b})

			for _, key := range []Key{a, b, c} {
				other, _ := store.Get(key)
				So(other, ShouldEqual, state)
			}
		})

		Convey("SWAP applied twice should be the identity", func() {
			So(store.Set([]Key{b}, Ket1().Amplitudes()), ShouldBeNil)

			swap := NewCircuit(2)
			So(swap.AddGate("SWAP", 0, 1), ShouldBeNil)

			So(store.RunCircuit(swap, []Key{a, b}), ShouldBeNil)
			once, _ := store.Get(a)
			So(once.Keys(), ShouldResemble, []Key{a, b})
			So(once.Amplitudes(), ShouldResemble, []complex128{0, 0, 1, 0})

			So(store.RunCircuit(swap, []Key{a, b}), ShouldBeNil)
			twice, _ := store.Get(a)
			So(twice.Amplitudes(), ShouldResemble, []complex128{0, 1, 0, 0})
		})

		Convey("Keys out of state order should be swapped onto the leading axes", func() {
			So(store.RunCircuit(BellCircuit(), []Key{a, c}), ShouldBeNil)

			x := NewCircuit(1)
			So(x.AddGate("X", 0), ShouldBeNil)
			So(store.RunCircuit(x, []Key{c}), ShouldBeNil)

			state, _ := store.Get(c)
			So(state.Keys(), ShouldResemble, []Key{c, a})

			amps := state.Amplitudes()
			So(real(amps[0]), ShouldAlmostEqual, 0, 1e-12)
			So(real(amps[1]), ShouldAlmostEqual, r, 1e-12)
			So(real(amps[2]), ShouldAlmostEqual, r, 1e-12)
			So(real(amps[3]), ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("Operator and key count must agree", func() {
			err := store.RunCircuit(BellCircuit(), []Key{a})
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			err = store.RunCircuit(BellCircuit(), []Key{a, a})
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
		})

		Convey("Unknown keys should leave the store unchanged", func() {
			before, _ := store.Get(a)
			err := store.RunCircuit(BellCircuit(), []Key{a, 99})
			So(errors.Is(err, ErrUnknownKey), ShouldBeTrue)

			after, _ := store.Get(a)
			So(after, ShouldEqual, before)
		})

		Convey("History should record every republish", func() {
			So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

			history := store.History(a)
			So(len(history), ShouldEqual, 2)
			So(history[0].Cause, ShouldEqual, "new")
			So(history[1].Cause, ShouldEqual, "circuit")
			So(history[1].From, ShouldEqual, history[0].To)
		})
	})
}

func TestStateStoreRemove(t *testing.T) {
	Convey("Given an entangled pair", t, func() {
		store := NewStateStore()
		a, _ := store.New()
		b, _ := store.New()
		So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

		Convey("Remove should leave the sibling with a stale member", func() {
			So(store.Remove(a), ShouldBeNil)
			So(store.Exists(a), ShouldBeFalse)

			state, err := store.Get(b)
			So(err, ShouldBeNil)
			So(state.Keys(), ShouldResemble, []Key{a, b})

			siblings, err := store.Siblings(b)
			So(err, ShouldBeNil)
			So(siblings, ShouldBeEmpty)
		})

		Convey("A later circuit should not bring the removed key back", func() {
			So(store.Remove(a), ShouldBeNil)

			x := NewCircuit(1)
			So(x.AddGate("X", 0), ShouldBeNil)
			So(store.RunCircuit(x, []Key{b}), ShouldBeNil)

			So(store.Exists(a), ShouldBeFalse)
			So(store.Len(), ShouldEqual, 1)
		})

		Convey("Removing twice should fail", func() {
			So(store.Remove(a), ShouldBeNil)
			So(errors.Is(store.Remove(a), ErrUnknownKey), ShouldBeTrue)
		})
	})

	Convey("Given a strict store", t, func() {
		store := NewStateStore(WithStrictRemoval())
		a, _ := store.New()
		b, _ := store.New()
		So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

		Convey("Remove should refuse a key with live siblings", func() {
			err := store.Remove(a)
			So(errors.Is(err, ErrLiveSiblings), ShouldBeTrue)
			So(store.Exists(a), ShouldBeTrue)
		})

		Convey("Set should refuse to split a key off its live siblings", func() {
			before, _ := store.Get(a)
			err := store.Set([]Key{a}, []complex128{1, 0})
			So(errors.Is(err, ErrLiveSiblings), ShouldBeTrue)

			after, _ := store.Get(a)
			So(after, ShouldEqual, before)
		})

		Convey("Set should accept overwriting the whole group", func() {
			So(store.Set([]Key{b, a}, []complex128{1, 0, 0, 0}), ShouldBeNil)

			state, _ := store.Get(a)
			So(state.Keys(), ShouldResemble, []Key{b, a})
		})

		Convey("Remove should accept a key without siblings", func() {
			c, _ := store.New()
			So(store.Remove(c), ShouldBeNil)

			if store.Exists(c) {
				t.Log(spew.Sdump(store.History(c)))
			}
			So(store.Exists(c), ShouldBeFalse)
		})
	})
}

func TestStateStoreOrphanedAxes(t *testing.T) {
	Convey("Given an entangled pair in a lenient store", t, func() {
		store := NewStateStore()
		a, _ := store.New()
		b, _ := store.New()
		So(store.RunCircuit(BellCircuit(), []Key{a, b}), ShouldBeNil)

		x := NewCircuit(1)
		So(x.AddGate("X", 0), ShouldBeNil)

		cnot := NewCircuit(2)
		So(cnot.AddGate("CNOT", 0, 1), ShouldBeNil)

		Convey("When one key is split off by Set", func() {
			So(store.Set([]Key{a}, Ket1().Amplitudes()), ShouldBeNil)

			Convey("A circuit on the sibling should leave the split key alone", func() {
				So(store.RunCircuit(x, []Key{b}), ShouldBeNil)

				sa, _ := store.Get(a)
				So(sa.Keys(), ShouldResemble, []Key{a})
				So(sa.Amplitudes(), ShouldResemble, []complex128{0, 1})

				sb, _ := store.Get(b)
				So(sb.NumQubits(), ShouldEqual, 2)
				So(sb.Contains(a), ShouldBeFalse)
				So(sb.Keys()[0], ShouldEqual, b)
			})

			Convey("A circuit on both keys should merge without naming a key twice", func() {
				So(store.RunCircuit(cnot, []Key{a, b}), ShouldBeNil)

				sa, _ := store.Get(a)
				sb, _ := store.Get(b)
				So(sa, ShouldEqual, sb)
				So(sa.NumQubits(), ShouldEqual, 3)
				So(sa.Keys()[:2], ShouldResemble, []Key{a, b})

				retired := sa.Keys()[2]
				So(store.Exists(retired), ShouldBeFalse)

				next, err := store.New()
				So(err, ShouldBeNil)
				So(next, ShouldBeGreaterThan, retired)
			})
		})

		Convey("When the same key is orphaned in two states", func() {
			c, _ := store.New()
			So(store.Set([]Key{a}, Ket0().Amplitudes()), ShouldBeNil)
			So(store.RunCircuit(BellCircuit(), []Key{a, c}), ShouldBeNil)
			So(store.Remove(a), ShouldBeNil)

			Convey("Merging them should give every axis its own key", func() {
				So(store.RunCircuit(cnot, []Key{b, c}), ShouldBeNil)

				state, _ := store.Get(b)
				So(state.NumQubits(), ShouldEqual, 4)

				seen := make(map[Key]bool)
				for _, key := range state.Keys() {
					So(seen[key], ShouldBeFalse)
					seen[key] = true
				}
				So(seen[a], ShouldBeFalse)
				So(store.Exists(a), ShouldBeFalse)
				So(store.Len(), ShouldEqual, 2)
			})
		})

		Convey("A failed circuit should not consume retired keys", func() {
			So(store.Remove(a), ShouldBeNil)

			err := store.RunCircuit(cnot, []Key{b, 99})
			So(errors.Is(err, ErrUnknownKey), ShouldBeTrue)

			next, _ := store.New()
			So(next, ShouldEqual, Key(2))
		})
	})
}
