// Package ndarray implements the dense complex N-dimensional arrays that flow through the chain contractors.
//
// Arrays are row-major. Every operation that derives a new array allocates fresh storage,
// so an array handed out by one component can be retained by another without aliasing.
package ndarray

import (
	"fmt"
	"iter"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// Array is a dense complex array with a fixed axis order.
type Array struct {
	shape []int
	data  []complex128
}

// Zeros returns an array of zeros.
func Zeros(shape ...int) *Array {
	return &Array{shape: slices.Clone(shape), data: make([]complex128, size(shape))}
}

// Ones returns an array filled with ones.
func Ones(shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = 1
	}
	return a
}

// New wraps data, which must hold exactly the number of elements implied by shape.
// The array takes ownership of data.
func New(data []complex128, shape ...int) *Array {
	if len(data) != size(shape) {
		panic(fmt.Sprintf("%d %#v", len(data), shape))
	}
	return &Array{shape: slices.Clone(shape), data: data}
}

// Scalar returns a rank 0 array.
func Scalar(v complex128) *Array {
	return &Array{data: []complex128{v}}
}

// Identity returns the n by n identity matrix.
func Identity(n int) *Array {
	a := Zeros(n, n)
	for i := range n {
		a.data[i*n+i] = 1
	}
	return a
}

// Rand returns an array whose real and imaginary parts are uniform in [-1, 1).
func Rand(shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = complex(rand.Float64()*2-1, rand.Float64()*2-1)
	}
	return a
}

func (a *Array) Shape() []int { return slices.Clone(a.shape) }
func (a *Array) Rank() int    { return len(a.shape) }
func (a *Array) Size() int    { return len(a.data) }

// Data returns the underlying row-major storage. Callers must not modify it.
func (a *Array) Data() []complex128 { return a.data }

func (a *Array) At(idx ...int) complex128 {
	return a.data[a.offset(idx)]
}

// SetAt sets a single element.
// It is meant for building arrays, and must not be used once an array is shared.
func (a *Array) SetAt(idx []int, v complex128) {
	a.data[a.offset(idx)] = v
}

// All iterates over the elements in row-major order.
// The index slice is reused between iterations.
func (a *Array) All() iter.Seq2[[]int, complex128] {
	return func(yield func([]int, complex128) bool) {
		idx := make([]int, len(a.shape))
		for _, v := range a.data {
			if !yield(idx, v) {
				return
			}
			for ax := len(idx) - 1; ax >= 0; ax-- {
				idx[ax]++
				if idx[ax] < a.shape[ax] {
					break
				}
				idx[ax] = 0
			}
		}
	}
}

func (a *Array) Clone() *Array {
	return &Array{shape: slices.Clone(a.shape), data: slices.Clone(a.data)}
}

// Conj returns the element-wise complex conjugate.
func (a *Array) Conj() *Array {
	b := a.Clone()
	for i, v := range b.data {
		b.data[i] = cmplx.Conj(v)
	}
	return b
}

// Scale returns c*a.
func (a *Array) Scale(c complex128) *Array {
	b := a.Clone()
	for i := range b.data {
		b.data[i] *= c
	}
	return b
}

// Reshape returns a copy with a new shape. At most one dimension may be -1.
func (a *Array) Reshape(shape ...int) *Array {
	shape = slices.Clone(shape)
	unknown := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && unknown == -1:
			unknown = i
		case d < 0:
			panic(fmt.Sprintf("%#v", shape))
		default:
			known *= d
		}
	}
	if unknown >= 0 {
		if known == 0 || len(a.data)%known != 0 {
			panic(fmt.Sprintf("%#v %#v", a.shape, shape))
		}
		shape[unknown] = len(a.data) / known
	}
	if size(shape) != len(a.data) {
		panic(fmt.Sprintf("%#v %#v", a.shape, shape))
	}
	return &Array{shape: shape, data: slices.Clone(a.data)}
}

// Transpose returns a copy whose axis i is axis axes[i] of a.
func (a *Array) Transpose(axes ...int) *Array {
	if len(axes) != len(a.shape) {
		panic(fmt.Sprintf("%#v %#v", a.shape, axes))
	}
	seen := make([]bool, len(axes))
	for _, ax := range axes {
		if ax < 0 || ax >= len(axes) || seen[ax] {
			panic(fmt.Sprintf("%#v", axes))
		}
		seen[ax] = true
	}
	data, shape := Permute(a.data, a.shape, axes)
	return &Array{shape: shape, data: data}
}

// Permute transposes row-major data of the given shape so that axis i of the result is axis perm[i] of the input.
// The input is never modified; when perm is the identity a copy is returned.
func Permute(data []complex128, shape, perm []int) ([]complex128, []int) {
	newShape := make([]int, len(perm))
	for i, ax := range perm {
		newShape[i] = shape[ax]
	}
	out := make([]complex128, len(data))
	if isIdentity(perm) || len(data) == 0 {
		copy(out, data)
		return out, newShape
	}

	strides := stridesOf(shape)
	// srcStride[i] is the stride in the source of the result's axis i.
	srcStride := make([]int, len(perm))
	for i, ax := range perm {
		srcStride[i] = strides[ax]
	}
	idx := make([]int, len(perm))
	src := 0
	for dst := range out {
		out[dst] = data[src]
		for ax := len(idx) - 1; ax >= 0; ax-- {
			idx[ax]++
			src += srcStride[ax]
			if idx[ax] < newShape[ax] {
				break
			}
			src -= srcStride[ax] * newShape[ax]
			idx[ax] = 0
		}
	}
	return out, newShape
}

// Norm returns the Frobenius norm.
func (a *Array) Norm() float64 {
	var s float64
	for _, v := range a.data {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

// MaxAbs returns the largest element magnitude.
func (a *Array) MaxAbs() float64 {
	var m float64
	for _, v := range a.data {
		m = max(m, cmplx.Abs(v))
	}
	return m
}

// EqualApprox reports whether a and b have the same shape and all elements within tol.
func EqualApprox(a, b *Array, tol float64) bool {
	if !slices.Equal(a.shape, b.shape) {
		return false
	}
	for i, v := range a.data {
		if cmplx.Abs(v-b.data[i]) > tol {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	shapeStrs := make([]string, 0, len(a.shape))
	for _, d := range a.shape {
		shapeStrs = append(shapeStrs, strconv.Itoa(d))
	}
	ss := make([]string, 0, len(a.data))
	for _, v := range a.data {
		ss = append(ss, strconv.FormatComplex(v, 'g', 6, 128))
	}
	return fmt.Sprintf("[%s][%s]", strings.Join(shapeStrs, ","), strings.Join(ss, ","))
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("%#v %#v", idx, a.shape))
	}
	var off int
	for ax, i := range idx {
		if i < 0 || i >= a.shape[ax] {
			panic(fmt.Sprintf("%#v %#v", idx, a.shape))
		}
		off = off*a.shape[ax] + i
	}
	return off
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("%#v", shape))
		}
		n *= d
	}
	return n
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for ax := len(shape) - 1; ax >= 0; ax-- {
		strides[ax] = s
		s *= shape[ax]
	}
	return strides
}

func isIdentity(perm []int) bool {
	for i, ax := range perm {
		if i != ax {
			return false
		}
	}
	return true
}
