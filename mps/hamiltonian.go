package mps

import (
	"fmt"

	"github.com/fumin/tensor"

	"github.com/fumin/dmrg/ndarray"
)

const (
	// mpoLeftAxis is the axis of b_{l-1} in Figure 35, of the operator tensors assembled here.
	mpoLeftAxis  = 0
	mpoRightAxis = 1
	mpoUpAxis    = 2
	mpoDownAxis  = 3
)

var (
	identity = [][]complex64{
		{1, 0},
		{0, 1},
	}
	pauliX = [][]complex64{
		{0, 1},
		{1, 0},
	}
	pauliZ = [][]complex64{
		{1, 0},
		{0, -1},
	}
)

// MagnetizationZ returns the matrix product operator of sum_i Z_i on a chain of n sites.
func MagnetizationZ(n int) []*ndarray.Array {
	w := tensor.Zeros(2, 2, 2, 2)
	setBlock(w, 0, 0, 1, identity)
	setBlock(w, 1, 0, 1, pauliZ)
	setBlock(w, 1, 1, 1, identity)
	return newMPO(w, n)
}

// Ising returns the matrix product operator of the transverse field Ising chain
//
//	H = -sum_i Z_i Z_{i+1} - h sum_i X_i
//
// with n sites and open boundaries.
// See Section 6.1 Construction of a Hamiltonian MPO, Ulrich Schollwock.
func Ising(n int, h float64) []*ndarray.Array {
	w := tensor.Zeros(3, 3, 2, 2)
	setBlock(w, 0, 0, 1, identity)
	setBlock(w, 1, 0, 1, pauliZ)
	setBlock(w, 2, 0, complex(-float32(h), 0), pauliX)
	setBlock(w, 2, 1, -1, pauliZ)
	setBlock(w, 2, 2, 1, identity)
	return newMPO(w, n)
}

// setBlock sets the physical block w[l, r] to c*x.
func setBlock(w *tensor.Dense, l, r int, c complex64, x [][]complex64) {
	for i, row := range x {
		for j, v := range row {
			w.SetAt([]int{l, r, i, j}, c*v)
		}
	}
}

// newMPO repeats the bulk tensor w of shape {left, right, up, down} over n sites,
// keeping the last row at the first site and the first column at the last site.
func newMPO(w *tensor.Dense, n int) []*ndarray.Array {
	if n < 1 {
		panic(fmt.Sprintf("%d", n))
	}
	s := w.Shape()
	dl, dr := s[mpoLeftAxis], s[mpoRightAxis]

	bulk := FromMPO(w)
	mpo := make([]*ndarray.Array, 0, n)
	for i := range n {
		lo, hi := 0, dl
		if i == 0 {
			lo = dl - 1
		}
		width := dr
		if i == n-1 {
			width = 1
		}
		if lo == 0 && hi == dl && width == dr {
			mpo = append(mpo, bulk)
			continue
		}
		mpo = append(mpo, sliceBonds(bulk, lo, hi, width))
	}
	return mpo
}

// sliceBonds returns the operator tensor restricted to left bonds [lo, hi) and the first width right bonds.
func sliceBonds(w *ndarray.Array, lo, hi, width int) *ndarray.Array {
	s := w.Shape()
	sub := ndarray.Zeros(s[0], s[1], hi-lo, width)
	for idx, v := range w.All() {
		if idx[2] < lo || idx[2] >= hi || idx[3] >= width {
			continue
		}
		sub.SetAt([]int{idx[0], idx[1], idx[2] - lo, idx[3]}, v)
	}
	return sub
}

// FromMPO converts an operator tensor of shape {left, right, up, down} into the (up, down, left, right) layout of the chain contractors.
func FromMPO(w *tensor.Dense) *ndarray.Array {
	return FromDense(w).Transpose(mpoUpAxis, mpoDownAxis, mpoLeftAxis, mpoRightAxis)
}

// FromDense converts a tensor to an array with the same axes.
func FromDense(t *tensor.Dense) *ndarray.Array {
	a := ndarray.Zeros(t.Shape()...)
	for idx, v := range t.All() {
		a.SetAt(idx, complex128(v))
	}
	return a
}

// toDense converts an array to a tensor with the same axes, rounding to single precision.
func toDense(a *ndarray.Array) *tensor.Dense {
	t := tensor.Zeros(a.Shape()...)
	for idx, v := range a.All() {
		t.SetAt(idx, complex64(v))
	}
	return t
}
