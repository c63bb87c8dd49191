package eigs

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestDiagonal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n int
		k int
	}{
		{n: 1, k: 1},
		{n: 3, k: 1},
		{n: 10, k: 2},
		{n: 50, k: 3},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %d", test.n, test.k), func(t *testing.T) {
			t.Parallel()
			// The spectrum is n, n-1, ..., 1 shuffled over the diagonal.
			diag := make([]float64, test.n)
			for i, j := range rand.Perm(test.n) {
				diag[i] = float64(j + 1)
			}
			a := OperatorFunc(func(dst, src []complex128) error {
				for i, v := range src {
					dst[i] = complex(diag[i], 0) * v
				}
				return nil
			})

			res, err := Lowest(a, test.n, Settings{K: test.k, Tol: 1e-10})
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(res.Values) != test.k {
				t.Fatalf("%#v", res.Values)
			}
			for i, v := range res.Values {
				if math.Abs(v-float64(i+1)) > 1e-8 {
					t.Fatalf("%d %f, expected %d", i, v, i+1)
				}
				checkResidual(t, a, v, res.Vectors[i], 1e-6)
			}
		})
	}
}

func TestHermitian(t *testing.T) {
	t.Parallel()
	const n = 30
	// h = b + b^H is Hermitian; its real embedding [[re, -im], [im, re]] has the same eigenvalues, each twice.
	b := make([][]complex128, n)
	for i := range b {
		b[i] = make([]complex128, n)
		for j := range b[i] {
			b[i][j] = complex(rand.Float64()*2-1, rand.Float64()*2-1)
		}
	}
	h := make([][]complex128, n)
	embed := mat.NewSymDense(2*n, nil)
	for i := range h {
		h[i] = make([]complex128, n)
		for j := range h[i] {
			h[i][j] = b[i][j] + cmplx.Conj(b[j][i])
		}
	}
	for i := range n {
		for j := i; j < n; j++ {
			embed.SetSym(i, j, real(h[i][j]))
			embed.SetSym(n+i, n+j, real(h[i][j]))
		}
		for j := range n {
			embed.SetSym(i, n+j, -imag(h[i][j]))
		}
	}
	var es mat.EigenSym
	if !es.Factorize(embed, false) {
		t.Fatalf("factorize failed")
	}
	want := es.Values(nil)

	a := OperatorFunc(func(dst, src []complex128) error {
		for i := range dst {
			var s complex128
			for j, v := range src {
				s += h[i][j] * v
			}
			dst[i] = s
		}
		return nil
	})
	res, err := Lowest(a, n, Settings{K: 2, NCV: 12, Tol: 1e-12})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i, v := range res.Values {
		if math.Abs(v-want[2*i]) > 1e-8 {
			t.Fatalf("%d %f, expected %f", i, v, want[2*i])
		}
		checkResidual(t, a, v, res.Vectors[i], 1e-6)
	}
}

func TestStartIsEigenvector(t *testing.T) {
	t.Parallel()
	a := OperatorFunc(func(dst, src []complex128) error {
		dst[0] = 1 * src[0]
		dst[1] = 0 * src[1]
		dst[2] = -1 * src[2]
		return nil
	})
	tests := []struct {
		start []complex128
		k     int
	}{
		{start: []complex128{0, 0, 2i}, k: 1},
		// The start spans an invariant subspace without the lowest eigenvector.
		{start: []complex128{1, 0, 0}, k: 1},
		{start: []complex128{0, 3, 0}, k: 2},
		{start: []complex128{1, 1, 0}, k: 3},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %d", test.start, test.k), func(t *testing.T) {
			t.Parallel()
			res, err := Lowest(a, 3, Settings{K: test.k, Start: test.start})
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(res.Values) != test.k {
				t.Fatalf("%#v", res)
			}
			for i, v := range res.Values {
				if want := float64(i - 1); math.Abs(v-want) > 1e-12 {
					t.Fatalf("%d %f, expected %f", i, v, want)
				}
				checkResidual(t, a, v, res.Vectors[i], 1e-12)
			}
			if res.MatVecs > 3 {
				t.Fatalf("%d", res.MatVecs)
			}
		})
	}
}

func TestInvariantStart(t *testing.T) {
	t.Parallel()
	// A block diagonal operator started inside the upper block.
	const n = 40
	a := OperatorFunc(func(dst, src []complex128) error {
		for i, v := range src {
			d := float64(i)
			if i >= n/2 {
				d = -float64(i)
			}
			dst[i] = complex(d, 0) * v
		}
		return nil
	})
	start := make([]complex128, n)
	for i := range n / 4 {
		start[i] = 1
	}
	res, err := Lowest(a, n, Settings{K: 2, NCV: 25, Tol: 1e-10, Start: start})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i, want := range []float64{-(n - 1), -(n - 2)} {
		if math.Abs(res.Values[i]-want) > 1e-8 {
			t.Fatalf("%d %f, expected %f", i, res.Values[i], want)
		}
		checkResidual(t, a, res.Values[i], res.Vectors[i], 1e-6)
	}
}

func TestNonFinite(t *testing.T) {
	t.Parallel()
	a := OperatorFunc(func(dst, src []complex128) error {
		for i := range dst {
			dst[i] = cmplx.NaN()
		}
		return nil
	})
	_, err := Lowest(a, 4, Settings{})
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("%+v", err)
	}
}

func TestOperatorError(t *testing.T) {
	t.Parallel()
	errApply := errors.New("apply")
	a := OperatorFunc(func(dst, src []complex128) error { return errApply })
	_, err := Lowest(a, 4, Settings{})
	if !errors.Is(err, errApply) {
		t.Fatalf("%+v", err)
	}
}

func TestBadSize(t *testing.T) {
	t.Parallel()
	a := OperatorFunc(func(dst, src []complex128) error { return nil })
	if _, err := Lowest(a, 2, Settings{K: 3}); !errors.Is(err, ErrBadSize) {
		t.Fatalf("%+v", err)
	}
	if _, err := Lowest(a, 2, Settings{Start: []complex128{1}}); !errors.Is(err, ErrBadSize) {
		t.Fatalf("%+v", err)
	}
}

func checkResidual(t *testing.T, a Operator, v float64, x []complex128, tol float64) {
	t.Helper()
	ax := make([]complex128, len(x))
	if err := a.Apply(ax, x); err != nil {
		t.Fatalf("%+v", err)
	}
	var r float64
	for i, axi := range ax {
		r = max(r, cmplx.Abs(axi-complex(v, 0)*x[i]))
	}
	if r > tol {
		t.Fatalf("residual %g", r)
	}
}
