package ndarray

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas/cblas128"
)

// Orthonormalize decomposes a along axis.
// It returns q with the shape of a and a square lower triangular c such that
//
//	a[..., i, ...] = sum_j c[i, j] q[..., j, ...]
//
// and the slices q[..., j, ...] are orthonormal when the remaining axes are summed over.
// For a site tensor (physical, left, right) axis 2 yields a left-normalized tensor and axis 1 a right-normalized one.
//
// Rows that are linearly dependent on earlier ones are completed with basis vectors, so q is always orthonormal.
func Orthonormalize(a *Array, axis int) (*Array, *Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, nil, errors.Errorf("axis %d shape %#v", axis, a.shape)
	}
	rows := a.shape[axis]
	if rows == 0 {
		return a.Clone(), Zeros(0, 0), nil
	}
	cols := len(a.data) / rows
	if rows > cols {
		return nil, nil, errors.Errorf("axis %d of shape %#v has %d rows but only %d columns", axis, a.shape, rows, cols)
	}

	perm := append([]int{axis}, slices.Delete(identityPerm(len(a.shape)), axis, axis+1)...)
	m, mShape := Permute(a.data, a.shape, perm)

	c := make([]complex128, rows*rows)
	floor := 1e-13 * max(a.Norm(), 1)
	basis := make([]complex128, cols)
	for i := range rows {
		r := m[i*cols : (i+1)*cols]
		for range 2 {
			for j := range i {
				qj := m[j*cols : (j+1)*cols]
				coef := cblas128.Dotc(vec(qj), vec(r))
				cblas128.Axpy(-coef, vec(qj), vec(r))
				c[i*rows+j] += coef
			}
		}

		norm := cblas128.Nrm2(vec(r))
		if norm > floor {
			cblas128.Dscal(1/norm, vec(r))
			c[i*rows+i] = complex(norm, 0)
			continue
		}

		// Complete the basis with the first unit vector that is not in the span of the previous rows.
		for k := range cols {
			clear(basis)
			basis[k] = 1
			for range 2 {
				for j := range i {
					qj := m[j*cols : (j+1)*cols]
					cblas128.Axpy(-cblas128.Dotc(vec(qj), vec(basis)), vec(qj), vec(basis))
				}
			}
			if bn := cblas128.Nrm2(vec(basis)); bn > 0.5 {
				cblas128.Dscal(1/bn, vec(basis))
				copy(r, basis)
				break
			}
		}
	}

	inv := make([]int, len(perm))
	for i, ax := range perm {
		inv[ax] = i
	}
	qData, qShape := Permute(m, mShape, inv)
	return &Array{shape: qShape, data: qData}, &Array{shape: []int{rows, rows}, data: c}, nil
}

func vec(s []complex128) cblas128.Vector {
	return cblas128.Vector{N: len(s), Inc: 1, Data: s}
}

func identityPerm(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}
