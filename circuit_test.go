package qkernel

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCircuit(t *testing.T) {
	Convey("Given a Bell circuit", t, func() {
		circuit := BellCircuit()

		Convey("It should compile to the Bell unitary", func() {
			m, err := circuit.Matrix()
			So(err, ShouldBeNil)
			So(m.Dim(), ShouldEqual, 4)

			out, err := m.Apply([]complex128{1, 0, 0, 0})
			So(err, ShouldBeNil)
			So(real(out[0]), ShouldAlmostEqual, 1/math.Sqrt2, 1e-12)
			So(real(out[3]), ShouldAlmostEqual, 1/math.Sqrt2, 1e-12)
			So(real(out[1]), ShouldAlmostEqual, 0, 1e-12)
			So(real(out[2]), ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("It should keep its gates in order", func() {
			gates := circuit.Gates()
			So(len(gates), ShouldEqual, 2)
			So(gates[0].Name, ShouldEqual, "H")
			So(gates[1].Targets, ShouldResemble, []int{0, 1})
		})
	})

	Convey("Given a three-qubit circuit", t, func() {
		circuit := NewCircuit(3)

		Convey("X on the last qubit should flip the least significant bit", func() {
			So(circuit.AddGate("x", 2), ShouldBeNil)
			m, _ := circuit.Matrix()
			out, _ := m.Apply([]complex128{1, 0, 0, 0, 0, 0, 0, 0})
			So(out[1], ShouldEqual, complex(1, 0))
		})

		Convey("A reversed CNOT should use qubit 2 as control", func() {
			So(circuit.AddGate("X", 2), ShouldBeNil)
			So(circuit.AddGate("CX", 2, 0), ShouldBeNil)
			m, _ := circuit.Matrix()
			out, _ := m.Apply([]complex128{1, 0, 0, 0, 0, 0, 0, 0})
			So(out[5], ShouldEqual, complex(1, 0))
		})

		Convey("It should reject unknown gates", func() {
			err := circuit.AddGate("TOFFOLI", 0, 1, 2)
			So(errors.Is(err, ErrUnknownGate), ShouldBeTrue)
		})

		Convey("It should reject bad targets", func() {
			So(errors.Is(circuit.AddGate("H", 3), ErrDimensionMismatch), ShouldBeTrue)
			So(errors.Is(circuit.AddGate("CNOT", 1, 1), ErrDimensionMismatch), ShouldBeTrue)
			So(errors.Is(circuit.AddGate("CNOT", 1), ErrDimensionMismatch), ShouldBeTrue)
		})
	})

	Convey("Given an empty circuit", t, func() {
		_, err := NewCircuit(0).Matrix()
		So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
	})

	Convey("Given a custom operator", t, func() {
		Convey("It should wrap a matching matrix", func() {
			op, err := NewOperator(1, Matrix{{0, 1}, {1, 0}})
			So(err, ShouldBeNil)
			So(op.Size(), ShouldEqual, 1)
		})

		Convey("It should reject a matrix of the wrong size", func() {
			_, err := NewOperator(2, Identity(2))
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
		})
	})
}

func TestMatrix(t *testing.T) {
	Convey("Given Pauli matrices", t, func() {
		x := gateMatrices["X"]
		z := gateMatrices["Z"]

		Convey("X·X should be the identity", func() {
			xx, err := x.Mul(x)
			So(err, ShouldBeNil)
			So(xx, ShouldResemble, Identity(2))
		})

		Convey("Kron should order the left factor as the high bit", func() {
			xz := x.Kron(z)
			So(xz.Dim(), ShouldEqual, 4)
			So(xz[0][2], ShouldEqual, complex(1, 0))
			So(xz[1][3], ShouldEqual, complex(-1, 0))
		})

		Convey("Mismatched dimensions should fail", func() {
			_, err := x.Mul(Identity(4))
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

			_, err = x.Apply([]complex128{1, 0, 0, 0})
			So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a three-qubit basis state", t, func() {
		vec := []complex128{0, 0, 0, 0, 0, 0, 1, 0} // |110⟩

		Convey("Swapping axes 0 and 2 should move the bits", func() {
			swapQubits(vec, 3, 0, 2)
			So(vec[3], ShouldEqual, complex(1, 0)) // |011⟩
		})

		Convey("Swapping twice should restore it", func() {
			swapQubits(vec, 3, 1, 2)
			swapQubits(vec, 3, 1, 2)
			So(vec[6], ShouldEqual, complex(1, 0))
		})
	})
}
