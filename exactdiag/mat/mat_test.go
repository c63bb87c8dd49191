package mat

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"
)

func TestSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *COO
		y [2]int
		x [2]int
		s *COO
	}{
		{
			m: M([][]complex128{
				{0, 1, 2, 3, 4},
				{5, 6, 7, 8, 9},
				{10, 11, 12, 13, 14},
				{15, 16, 17, 18, 19},
				{20, 21, 22, 23, 24},
				{25, 26, 27, 28, 29},
			}),
			y: [2]int{-5, -2},
			x: [2]int{1, 3},
			s: M([][]complex128{
				{6, 7},
				{11, 12},
				{16, 17},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			s := test.m.Slice(test.y, test.x)
			if !s.Equal(test.s) {
				t.Fatalf("%s, expected %s", s, test.s)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          *COO
		c          complex128
		b          *COO
		z          *COO
		numNonZero int
	}{
		{
			a: M([][]complex128{
				{1, 0},
				{0, 2i},
			}),
			c: 1i,
			b: M([][]complex128{
				{1i, 0},
				{2, -5},
			}),
			z: M([][]complex128{
				{0, 0},
				{2i, -3i},
			}),
			numNonZero: 2,
		},
		// Broadcast a scalar over the existing entries.
		{
			a: M([][]complex128{
				{1, 0},
				{0, 3},
			}),
			c: 2,
			b: M([][]complex128{{-1}}),
			z: M([][]complex128{
				{-1, 0},
				{0, 1},
			}),
			numNonZero: 2,
		},
		{
			a: COOZeros(2, 2),
			c: -1,
			b: COOIdentity(2),
			z: M([][]complex128{
				{-1, 0},
				{0, -1},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Add(test.c, test.b)
			if !test.a.Equal(test.z) {
				t.Fatalf("%s, expected %s", test.a, test.z)
			}
			if test.a.NumNonZero() != test.numNonZero {
				t.Fatalf("%d, expected %d", test.a.NumNonZero(), test.numNonZero)
			}
		})
	}
}

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *COO
		b *COO
		c *COO
	}{
		{
			a: M([][]complex128{
				{1, -4, 7},
				{-2, 0, 3},
			}),
			b: M([][]complex128{
				{8, -9, -6, 5},
				{1, -3, 0, 7},
				{2, 8, -8, -3},
				{1, 2, -5, -1},
			}),
			c: M([][]complex128{
				{8, -9, -6, 5, -32, 36, 24, -20, 56, -63, -42, 35},
				{1, -3, 0, 7, -4, 12, 0, -28, 7, -21, 0, 49},
				{2, 8, -8, -3, -8, -32, 32, 12, 14, 56, -56, -21},
				{1, 2, -5, -1, -4, -8, 20, 4, 7, 14, -35, -7},
				{-16, 18, 12, -10, 0, 0, 0, 0, 24, -27, -18, 15},
				{-2, 6, 0, -14, 0, 0, 0, 0, 3, -9, 0, 21},
				{-4, -16, 16, 6, 0, 0, 0, 0, 6, 24, -24, -9},
				{-2, -4, 10, 2, 0, 0, 0, 0, 3, 6, -15, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]complex128{{1}}),
			b: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
			c: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Kron(test.b)
			if !test.a.Equal(test.c) {
				t.Fatalf("%s, expected %s", test.a, test.c)
			}
		})
	}
}

func TestMulVec(t *testing.T) {
	t.Parallel()
	m := M([][]complex128{
		{1, 2i},
		{0, -1},
		{3, 0},
	})
	dst := make([]complex128, 3)
	m.MulVec(dst, []complex128{1, 1i})
	want := []complex128{-1, -1i, 3}
	for i, v := range dst {
		if v != want[i] {
			t.Fatalf("%#v, expected %#v", dst, want)
		}
	}
}

func TestEigenSym(t *testing.T) {
	t.Parallel()
	m := M([][]complex128{
		{2, -1, 0},
		{-1, 2, -1},
		{0, -1, 2},
	})
	vvs, err := m.EigenSym()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// The eigenvalues of the path graph Laplacian are 2 - 2cos(k pi / 4).
	for i, vv := range vvs {
		want := 2 - 2*math.Cos(float64(3-i)*math.Pi/4)
		if math.Abs(real(vv.Val)-want) > 1e-12 {
			t.Fatalf("%d %v, expected %f", i, vv.Val, want)
		}
		mv := make([]complex128, 3)
		m.MulVec(mv, vv.Vec)
		for j, v := range mv {
			if cmplx.Abs(v-vv.Val*vv.Vec[j]) > 1e-12 {
				t.Fatalf("%d %#v", i, mv)
			}
		}
	}
	if b := m.LowerBound(); b > real(vvs[0].Val) {
		t.Fatalf("%f %v", b, vvs[0].Val)
	}

	if _, err := M([][]complex128{{0, 1i}, {-1i, 0}}).EigenSym(); err == nil {
		t.Fatalf("expected error for a complex matrix")
	}
	if _, err := M([][]complex128{{0, 1}, {2, 0}}).EigenSym(); err == nil {
		t.Fatalf("expected error for an asymmetric matrix")
	}
}
