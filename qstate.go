package qkernel

import (
	"fmt"
	"math/bits"
	"math/cmplx"
)

// amplitudeTolerance absorbs rounding from gate products on normalized kets.
const amplitudeTolerance = 1e-9

/*
CompositeState is the joint ket of an ordered set of qubits.

The key order is the tensor-product axis order: keys[0] is the most
significant bit of an amplitude index. A CompositeState never changes once it
has been built. Several keys in a StateStore pointing at the same instance is
what it means for those qubits to be entangled.
*/
type CompositeState struct {
	keys       []Key
	amplitudes []complex128
}

/*
NewCompositeState validates and copies the amplitudes and keys.

The amplitude count must be a power of two equal to 2^len(keys), the keys must
be distinct, and no amplitude may have a magnitude above 1. Normalization of
the whole vector is not enforced.
*/
func NewCompositeState(amplitudes []complex128, keys []Key) (*CompositeState, error) {
	n, err := qubitCount(len(amplitudes))
	if err != nil {
		return nil, err
	}

	if n != len(keys) {
		return nil, fmt.Errorf(
			"%w: %d amplitudes describe %d qubits, got %d keys",
			ErrDimensionMismatch, len(amplitudes), n, len(keys),
		)
	}

	seen := make(map[Key]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			return nil, fmt.Errorf("%w: key %d listed twice", ErrDimensionMismatch, key)
		}
		seen[key] = true
	}

	for i, a := range amplitudes {
		if cmplx.Abs(a) > 1+amplitudeTolerance {
			return nil, fmt.Errorf("%w: amplitude %d is %v", ErrAmplitudeBound, i, a)
		}
	}

	return &CompositeState{
		keys:       append([]Key(nil), keys...),
		amplitudes: append([]complex128(nil), amplitudes...),
	}, nil
}

// qubitCount returns log2(length), failing unless length is a power of two.
func qubitCount(length int) (int, error) {
	if length < 2 || length&(length-1) != 0 {
		return 0, fmt.Errorf("%w: %d amplitudes is not a power of two", ErrDimensionMismatch, length)
	}

	return bits.TrailingZeros(uint(length)), nil
}

// Keys returns a copy of the member keys in axis order.
func (cs *CompositeState) Keys() []Key {
	return append([]Key(nil), cs.keys...)
}

// Amplitudes returns a copy of the joint amplitude vector.
func (cs *CompositeState) Amplitudes() []complex128 {
	return append([]complex128(nil), cs.amplitudes...)
}

func (cs *CompositeState) NumQubits() int {
	return len(cs.keys)
}

// Index returns the axis position of key, or -1.
func (cs *CompositeState) Index(key Key) int {
	for i, k := range cs.keys {
		if k == key {
			return i
		}
	}
	return -1
}

func (cs *CompositeState) Contains(key Key) bool {
	return cs.Index(key) >= 0
}

// Probabilities returns |a|² for every basis index without collapsing.
func (cs *CompositeState) Probabilities() []float64 {
	probs := make([]float64, len(cs.amplitudes))
	for i, amplitude := range cs.amplitudes {
		prob := cmplx.Abs(amplitude)
		probs[i] = prob * prob
	}
	return probs
}

/*
Measure is the measurement extension point. The store does not implement
collapse yet, so every call fails with ErrMeasurementUnsupported and the state
is left untouched.
*/
func (cs *CompositeState) Measure(keys ...Key) ([]int, error) {
	return nil, fmt.Errorf("%w: keys %v", ErrMeasurementUnsupported, keys)
}

func (cs *CompositeState) String() string {
	return fmt.Sprintf("CompositeState{keys: %v, amplitudes: %v}", cs.keys, cs.amplitudes)
}
