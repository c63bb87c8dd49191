package contract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"

	"github.com/fumin/dmrg/ndarray"
)

type stepKind int

const (
	// pairwise sums over the axes joined between two operands.
	pairwise stepKind = iota
	// outer takes the outer product of two operands.
	outer
	// scale multiplies an operand by a rank 0 operand.
	scale
)

// step merges operand slot b into slot a.
type step struct {
	kind  stepKind
	a, b  int
	axesA []int
	axesB []int
}

// Plan is a compiled contraction.
// A Plan holds no arrays and may be used for any number of contractions.
type Plan struct {
	ranks []int
	steps []step
	// perm orders the axes of the last operand as the flattened output groups.
	perm []int
	// groups is the number of axes in each output group.
	groups   []int
	outNames [][]string
}

// NumOperands returns the number of arrays Contract expects.
func (p *Plan) NumOperands() int { return len(p.ranks) }

// OutputRank returns the rank of the contraction result.
func (p *Plan) OutputRank() int { return len(p.groups) }

// operand is an intermediate result. Its data is never written to once created.
type operand struct {
	data  []complex128
	shape []int
}

// Contract runs the plan on arrays, which are not modified.
func (p *Plan) Contract(arrays ...*ndarray.Array) (*ndarray.Array, error) {
	if len(arrays) != len(p.ranks) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d operands, expected %d", len(arrays), len(p.ranks))
	}
	ops := make([]operand, 0, len(arrays))
	for i, a := range arrays {
		if a.Rank() != p.ranks[i] {
			return nil, errors.Wrapf(ErrShapeMismatch, "operand %d has shape %v, expected rank %d", i, a.Shape(), p.ranks[i])
		}
		ops = append(ops, operand{data: a.Data(), shape: a.Shape()})
	}

	for _, s := range p.steps {
		a, b := ops[s.a], ops[s.b]
		switch s.kind {
		case pairwise:
			for k, axA := range s.axesA {
				if a.shape[axA] != b.shape[s.axesB[k]] {
					return nil, errors.Wrapf(ErrShapeMismatch, "axes %v of operand %d with shape %v do not match axes %v of operand %d with shape %v", s.axesA, s.a, a.shape, s.axesB, s.b, b.shape)
				}
			}
			ops[s.a] = tensordot(a, s.axesA, b, s.axesB)
		case outer:
			ops[s.a] = outerProduct(a, b)
		case scale:
			c := b.data[0]
			data := make([]complex128, len(a.data))
			for i, v := range a.data {
				data[i] = c * v
			}
			ops[s.a] = operand{data: data, shape: a.shape}
		}
		ops[s.b] = operand{}
	}

	last := ops[0]
	data, shape := ndarray.Permute(last.data, last.shape, p.perm)
	outShape := make([]int, 0, len(p.groups))
	var ax int
	for _, n := range p.groups {
		d := 1
		for _, dim := range shape[ax : ax+n] {
			d *= dim
		}
		outShape = append(outShape, d)
		ax += n
	}
	return ndarray.New(data, outShape...), nil
}

// tensordot sums the product of a and b over the paired axes.
// The result's axes are the remaining axes of a followed by the remaining axes of b.
func tensordot(a operand, axesA []int, b operand, axesB []int) operand {
	freeA := freeAxes(len(a.shape), axesA)
	freeB := freeAxes(len(b.shape), axesB)

	// a becomes an m by k matrix, and b a k by n matrix.
	aData := permuted(a, append(slices.Clone(freeA), axesA...))
	bData := permuted(b, append(slices.Clone(axesB), freeB...))
	m, k, n := 1, 1, 1
	shape := make([]int, 0, len(freeA)+len(freeB))
	for _, ax := range freeA {
		m *= a.shape[ax]
		shape = append(shape, a.shape[ax])
	}
	for _, ax := range axesA {
		k *= a.shape[ax]
	}
	for _, ax := range freeB {
		n *= b.shape[ax]
		shape = append(shape, b.shape[ax])
	}

	return operand{data: matmul(m, k, n, aData, bData), shape: shape}
}

func outerProduct(a, b operand) operand {
	shape := append(slices.Clone(a.shape), b.shape...)
	return operand{data: matmul(len(a.data), 1, len(b.data), a.data, b.data), shape: shape}
}

// matmul returns the row-major m by n product of the m by k matrix a and the k by n matrix b.
func matmul(m, k, n int, a, b []complex128) []complex128 {
	c := make([]complex128, m*n)
	if m == 0 || n == 0 || k == 0 {
		return c
	}
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1,
		cblas128.General{Rows: m, Cols: k, Stride: k, Data: a},
		cblas128.General{Rows: k, Cols: n, Stride: n, Data: b},
		0, cblas128.General{Rows: m, Cols: n, Stride: n, Data: c})
	return c
}

// permuted returns the data of o with its axes in the order perm, avoiding the copy when perm is the identity.
func permuted(o operand, perm []int) []complex128 {
	identity := true
	for i, ax := range perm {
		if i != ax {
			identity = false
			break
		}
	}
	if identity {
		return o.data
	}
	data, _ := ndarray.Permute(o.data, o.shape, perm)
	return data
}

func freeAxes(rank int, joined []int) []int {
	free := make([]int, 0, rank-len(joined))
	for ax := range rank {
		if !slices.Contains(joined, ax) {
			free = append(free, ax)
		}
	}
	return free
}

// String describes the steps of the plan.
func (p *Plan) String() string {
	lines := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		switch s.kind {
		case pairwise:
			lines = append(lines, fmt.Sprintf("contract %d%v with %d%v", s.a, s.axesA, s.b, s.axesB))
		case outer:
			lines = append(lines, fmt.Sprintf("outer %d with %d", s.a, s.b))
		case scale:
			lines = append(lines, fmt.Sprintf("scale %d by %d", s.a, s.b))
		}
	}
	groups := make([]string, 0, len(p.outNames))
	for _, g := range p.outNames {
		groups = append(groups, "("+strings.Join(g, ",")+")")
	}
	lines = append(lines, fmt.Sprintf("transpose %v reshape %s", p.perm, strings.Join(groups, "")))
	return strings.Join(lines, "\n")
}
