package qkernel

import "math"

// Key identifies one logical qubit in a StateStore. Keys are handed out in
// increasing order and never reused.
type Key uint64

// Qubit is a standalone single-qubit ket, used to seed store allocations.
type Qubit struct {
	alpha complex128 // |0⟩ amplitude
	beta  complex128 // |1⟩ amplitude
}

func NewQubit(alpha, beta complex128) *Qubit {
	return &Qubit{
		alpha: alpha,
		beta:  beta,
	}
}

// Ket0 returns |0⟩.
func Ket0() *Qubit { return NewQubit(1, 0) }

// Ket1 returns |1⟩.
func Ket1() *Qubit { return NewQubit(0, 1) }

func (q *Qubit) ApplyHadamard() *Qubit {
	// H = 1/√2 * [1  1]
	//           [1 -1]
	newAlpha := (q.alpha + q.beta) / complex(math.Sqrt(2), 0)
	newBeta := (q.alpha - q.beta) / complex(math.Sqrt(2), 0)
	q.alpha = newAlpha
	q.beta = newBeta
	return q
}

// Amplitudes returns the ket as the two-element vector the store expects.
func (q *Qubit) Amplitudes() []complex128 {
	return []complex128{q.alpha, q.beta}
}
