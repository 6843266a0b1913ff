package qkernel

import "fmt"

// Matrix is a dense, row-major complex matrix.
type Matrix [][]complex128

// NewMatrix returns a zero matrix of the given dimension.
func NewMatrix(dim int) Matrix {
	m := make(Matrix, dim)
	for i := range m {
		m[i] = make([]complex128, dim)
	}
	return m
}

// Identity returns the dim×dim identity.
func Identity(dim int) Matrix {
	m := NewMatrix(dim)
	for i := range m {
		m[i][i] = 1
	}
	return m
}

// Dim returns the row count. Callers check squareness with IsSquare.
func (m Matrix) Dim() int {
	return len(m)
}

func (m Matrix) IsSquare() bool {
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}
	return true
}

// Mul returns m·other.
func (m Matrix) Mul(other Matrix) (Matrix, error) {
	if m.Dim() != other.Dim() || !m.IsSquare() || !other.IsSquare() {
		return nil, fmt.Errorf("%w: cannot multiply %d×%d by %d×%d",
			ErrDimensionMismatch, m.Dim(), m.Dim(), other.Dim(), other.Dim())
	}

	dim := m.Dim()
	out := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			a := m[i][k]
			if a == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				out[i][j] += a * other[k][j]
			}
		}
	}
	return out, nil
}

// Kron returns the tensor product m ⊗ other.
func (m Matrix) Kron(other Matrix) Matrix {
	rows, cols := m.Dim(), other.Dim()
	out := NewMatrix(rows * cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			a := m[i][j]
			if a == 0 {
				continue
			}
			for k := 0; k < cols; k++ {
				for l := 0; l < cols; l++ {
					out[i*cols+k][j*cols+l] = a * other[k][l]
				}
			}
		}
	}
	return out
}

// Apply returns m·vec.
func (m Matrix) Apply(vec []complex128) ([]complex128, error) {
	if m.Dim() != len(vec) || !m.IsSquare() {
		return nil, fmt.Errorf("%w: %d×%d operator on a vector of %d",
			ErrDimensionMismatch, m.Dim(), m.Dim(), len(vec))
	}

	out := make([]complex128, len(vec))
	for i, row := range m {
		var sum complex128
		for j, a := range row {
			sum += a * vec[j]
		}
		out[i] = sum
	}
	return out, nil
}

// kronVector returns the tensor product of two kets.
func kronVector(a, b []complex128) []complex128 {
	out := make([]complex128, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			out = append(out, x*y)
		}
	}
	return out
}

/*
swapQubits exchanges axes i and j of an n-qubit ket in place. Axis 0 is the
most significant bit of the amplitude index.
*/
func swapQubits(vec []complex128, n, i, j int) {
	if i == j {
		return
	}

	bi := uint(n - 1 - i)
	bj := uint(n - 1 - j)
	for idx := range vec {
		vi := (idx >> bi) & 1
		vj := (idx >> bj) & 1
		if vi == 1 && vj == 0 {
			partner := idx ^ (1 << bi) ^ (1 << bj)
			vec[idx], vec[partner] = vec[partner], vec[idx]
		}
	}
}
