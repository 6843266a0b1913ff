package qkernel

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

/*
Operator is what the state store consumes from the circuit compiler: a declared
qubit count and a 2^Size square matrix. The store does not look inside it.
*/
type Operator interface {
	Size() int
	Matrix() (Matrix, error)
}

// fixedOperator wraps a caller-supplied unitary.
type fixedOperator struct {
	size   int
	matrix Matrix
}

// NewOperator wraps an arbitrary matrix acting on size qubits.
func NewOperator(size int, matrix Matrix) (Operator, error) {
	if size < 1 || matrix.Dim() != 1<<size || !matrix.IsSquare() {
		return nil, fmt.Errorf("%w: %d×%d matrix for %d qubits",
			ErrDimensionMismatch, matrix.Dim(), matrix.Dim(), size)
	}
	return &fixedOperator{size: size, matrix: matrix}, nil
}

func (op *fixedOperator) Size() int { return op.size }

func (op *fixedOperator) Matrix() (Matrix, error) { return op.matrix, nil }

// Gate is one named gate applied to an ordered list of circuit qubits.
type Gate struct {
	Name    string
	Targets []int
}

var invSqrt2 = complex(1/math.Sqrt2, 0)

// gateMatrices holds the single- and two-qubit gate definitions.
var gateMatrices = map[string]Matrix{
	"I": {{1, 0}, {0, 1}},
	"H": {{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}},
	"X": {{0, 1}, {1, 0}},
	"Y": {{0, -1i}, {1i, 0}},
	"Z": {{1, 0}, {0, -1}},
	"S": {{1, 0}, {0, 1i}},
	"T": {{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}},
	"CNOT": {
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	},
	"CZ": {
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, -1},
	},
	"SWAP": {
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	},
}

var gateAliases = map[string]string{
	"CX": "CNOT",
}

/*
Circuit is an ordered gate list over Size qubits. Qubit 0 is the most
significant axis, matching the order of the keys passed to RunCircuit.
*/
type Circuit struct {
	size  int
	gates []Gate
}

func NewCircuit(size int) *Circuit {
	return &Circuit{size: size}
}

func (c *Circuit) Size() int { return c.size }

// Gates returns a copy of the gate list.
func (c *Circuit) Gates() []Gate {
	return append([]Gate(nil), c.gates...)
}

// AddGate appends a gate. Controls come first for controlled gates.
func (c *Circuit) AddGate(name string, targets ...int) error {
	name = strings.ToUpper(name)
	if alias, ok := gateAliases[name]; ok {
		name = alias
	}

	gate, ok := gateMatrices[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGate, name)
	}

	width, _ := qubitCount(gate.Dim())
	if len(targets) != width {
		return fmt.Errorf("%w: %s takes %d qubits, got %d", ErrDimensionMismatch, name, width, len(targets))
	}

	seen := make(map[int]bool, len(targets))
	for _, t := range targets {
		if t < 0 || t >= c.size || seen[t] {
			return fmt.Errorf("%w: target %d on a %d-qubit circuit", ErrDimensionMismatch, t, c.size)
		}
		seen[t] = true
	}

	c.gates = append(c.gates, Gate{Name: name, Targets: append([]int(nil), targets...)})
	return nil
}

// Matrix compiles the gate list into one operator; later gates act last.
func (c *Circuit) Matrix() (Matrix, error) {
	if c.size < 1 {
		return nil, fmt.Errorf("%w: circuit has no qubits", ErrDimensionMismatch)
	}

	out := Identity(1 << c.size)
	for _, gate := range c.gates {
		full := expandGate(gateMatrices[gate.Name], gate.Targets, c.size)

		var err error
		if out, err = full.Mul(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

/*
expandGate lifts a k-qubit gate on the given targets to the full n-qubit
space. Entry (r, c) is the gate entry addressed by the target bits of r and c
when every non-target bit of r and c agrees, and zero otherwise.
*/
func expandGate(gate Matrix, targets []int, n int) Matrix {
	dim := 1 << n
	var targetMask int
	for _, t := range targets {
		targetMask |= 1 << (n - 1 - t)
	}

	sub := func(idx int) int {
		var s int
		for _, t := range targets {
			s = s<<1 | (idx>>(n-1-t))&1
		}
		return s
	}

	out := NewMatrix(dim)
	for r := 0; r < dim; r++ {
		for col := 0; col < dim; col++ {
			if r&^targetMask != col&^targetMask {
				continue
			}
			out[r][col] = gate[sub(r)][sub(col)]
		}
	}
	return out
}

// BellCircuit returns H on qubit 0 followed by CNOT(0, 1), which turns |00⟩
// into (|00⟩+|11⟩)/√2.
func BellCircuit() *Circuit {
	circuit := NewCircuit(2)
	_ = circuit.AddGate("H", 0)
	_ = circuit.AddGate("CNOT", 0, 1)
	return circuit
}
