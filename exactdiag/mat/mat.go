// Package mat implements the sparse matrices used for exact diagonalization of small lattices.
package mat

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex128{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

type vRowCol struct {
	v   complex128
	row int
	col int
}

// COO is a sparse matrix in coordinate format.
// Data is kept in row-major order without explicit zeros.
type COO struct {
	rows int
	cols int
	Data []vRowCol
}

func M(dense [][]complex128) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	m := &COO{}
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := COOZeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

// NumNonZero returns the number of stored entries.
func (m *COO) NumNonZero() int { return len(m.Data) }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO) Scalar(v complex128) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, vRowCol{v: v, row: 0, col: 0})
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	return slices.Equal(a.Data, b.Data)
}

// Slice returns the submatrix of rows [y[0], y[1]) and columns [x[0], x[1]).
// Negative bounds count from the end.
func (m *COO) Slice(yBoundN, xBoundN [2]int) *COO {
	yBound, xBound := yBoundN, xBoundN
	for i := 0; i < 2; i++ {
		if yBound[i] < 0 {
			yBound[i] += m.rows
		}
		if xBound[i] < 0 {
			xBound[i] += m.cols
		}
	}

	s := &COO{rows: yBound[1] - yBound[0], cols: xBound[1] - xBound[0], Data: make([]vRowCol, 0)}
	for _, v := range m.Data {
		if v.row < yBound[0] {
			continue
		}
		if v.row >= yBound[1] {
			break
		}
		if v.col < xBound[0] || v.col >= xBound[1] {
			continue
		}
		s.Data = append(s.Data, vRowCol{v: v.v, row: v.row - yBound[0], col: v.col - xBound[0]})
	}
	return s
}

// Add sets a to a + c*b.
// b is either a scalar, a column vector or a matrix of the shape of a; scalars and vectors only update existing entries of a.
func (a *COO) Add(c complex128, b *COO) {
	bm := make(map[[2]int]complex128, len(b.Data))
	for _, v := range b.Data {
		bm[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic(fmt.Sprintf("wrong dimensions %d %d %d %d", a.rows, a.cols, b.rows, b.cols))
		}
		bv := bm[byx]
		if b.rows == a.rows && b.cols == a.cols {
			delete(bm, byx)
		}

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	if b.rows == a.rows && b.cols == a.cols {
		for yx, bv := range bm {
			a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
		}
		a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
			return v.v == 0
		})
	}
	slices.SortFunc(a.Data, rowMajor)
}

// Kron sets a to the Kronecker product of a and b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// MulVec sets dst to m times src.
func (m *COO) MulVec(dst, src []complex128) {
	if len(dst) != m.rows || len(src) != m.cols {
		panic(fmt.Sprintf("%d %d %d %d", m.rows, m.cols, len(dst), len(src)))
	}
	clear(dst)
	for _, v := range m.Data {
		dst[v.row] += v.v * src[v.col]
	}
}

func (m *COO) Dense() [][]complex128 {
	dense := make([][]complex128, m.rows)
	for i := range dense {
		dense[i] = make([]complex128, m.cols)
	}

	for _, v := range m.Data {
		dense[v.row][v.col] = v.v
	}

	return dense
}

func (m *COO) String() string {
	dense := m.Dense()
	lines := []string{}
	for _, row := range dense {
		cs := []string{}
		for _, v := range row {
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}
	return strings.Join(lines, "\n")
}

// LowerBound returns a lower bound of the real parts of the eigenvalues from the Gerschgorin circles.
// See Theorem A3, Bounds for the eigenvalues of a matrix, Kenneth R. Garren.
func (m *COO) LowerBound() float64 {
	if m.rows == 0 {
		return math.Inf(1)
	}
	centers := make([]float64, m.rows)
	radii := make([]float64, m.rows)
	for _, v := range m.Data {
		if v.row == v.col {
			centers[v.row] = real(v.v)
		} else {
			radii[v.row] += cmplx.Abs(v.v)
		}
	}
	bound := math.Inf(1)
	for i, c := range centers {
		bound = min(bound, c-radii[i])
	}
	return bound
}

type ValVec struct {
	Val complex128
	Vec []complex128
}

// EigenSym returns the eigen decomposition of a real symmetric matrix, ordered by ascending eigenvalue.
func (m *COO) EigenSym() ([]ValVec, error) {
	if m.rows != m.cols {
		return nil, errors.Errorf("not square %d %d", m.rows, m.cols)
	}
	sym := mat.NewSymDense(m.rows, nil)
	entries := make(map[[2]int]float64, len(m.Data))
	for _, v := range m.Data {
		if imag(v.v) != 0 {
			return nil, errors.Errorf("not real %d %d %v", v.row, v.col, v.v)
		}
		entries[[2]int{v.row, v.col}] = real(v.v)
	}
	for yx, v := range entries {
		if entries[[2]int{yx[1], yx[0]}] != v {
			return nil, errors.Errorf("not symmetric %d %d", yx[0], yx[1])
		}
		sym.SetSym(yx[0], yx[1], v)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errors.Errorf("eig.Factorize failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	vvs := make([]ValVec, 0, len(vals))
	for i, v := range vals {
		vec := make([]complex128, 0, m.rows)
		for j := 0; j < m.rows; j++ {
			vec = append(vec, complex(vecs.At(j, i), 0))
		}
		vvs = append(vvs, ValVec{Val: complex(v, 0), Vec: vec})
	}
	slices.SortStableFunc(vvs, func(a, b ValVec) int { return cmp.Compare(real(a.Val), real(b.Val)) })
	return vvs, nil
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}
