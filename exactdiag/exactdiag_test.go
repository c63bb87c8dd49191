package exactdiag

import (
	"flag"
	"fmt"
	"log"
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/dmrg/exactdiag/mat"
)

func TestLatticeTerms(t *testing.T) {
	t.Parallel()
	n := [2]int{1, 2}
	h, buf := mat.COOZeros(4, 4), mat.COOZeros(1, 1)
	coupling(h, n, [2]int{0, 0}, [2]int{0, 1}, buf)
	want := [][]complex128{
		{-1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, -1},
	}
	if err := equalDense(h.Dense(), want); err != nil {
		t.Fatalf("%+v", err)
	}

	h.Zeros(4, 4)
	magnetic(h, n, [2]int{0, 1}, 0.5, buf)
	want = [][]complex128{
		{0, -0.5, 0, 0},
		{-0.5, 0, 0, 0},
		{0, 0, 0, -0.5},
		{0, 0, -0.5, 0},
	}
	if err := equalDense(h.Dense(), want); err != nil {
		t.Fatalf("%+v", err)
	}
}

func equalDense(got, want [][]complex128) error {
	if len(got) != len(want) {
		return errors.Errorf("%d rows, expected %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			return errors.Errorf("row %d %v, expected %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				return errors.Errorf("%d %d %v, expected %v", i, j, got[i][j], want[i][j])
			}
		}
	}
	return nil
}

func TestTransverseFieldIsing(t *testing.T) {
	t.Parallel()
	type matrixSlice struct {
		y [2]int
		x [2]int
		s *mat.COO
	}
	tests := []struct {
		n                [2]int
		h                float64
		hamiltonianShape [2]int
		hamiltonian      []matrixSlice
	}{
		{
			n:                [2]int{4, 1},
			h:                1,
			hamiltonianShape: [2]int{16, 16},
			hamiltonian: []matrixSlice{
				{
					y: [2]int{0, 16},
					x: [2]int{0, 16},
					s: mat.M([][]complex128{
						{-3, -1, -1, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0, 0, 0},
						{-1, -1, 0, -1, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0, 0},
						{-1, 0, 1, -1, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0},
						{0, -1, -1, -1, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0},
						{-1, 0, 0, 0, 1, -1, -1, 0, 0, 0, 0, 0, -1, 0, 0, 0},
						{0, -1, 0, 0, -1, 3, 0, -1, 0, 0, 0, 0, 0, -1, 0, 0},
						{0, 0, -1, 0, -1, 0, 1, -1, 0, 0, 0, 0, 0, 0, -1, 0},
						{0, 0, 0, -1, 0, -1, -1, -1, 0, 0, 0, 0, 0, 0, 0, -1},
						{-1, 0, 0, 0, 0, 0, 0, 0, -1, -1, -1, 0, -1, 0, 0, 0},
						{0, -1, 0, 0, 0, 0, 0, 0, -1, 1, 0, -1, 0, -1, 0, 0},
						{0, 0, -1, 0, 0, 0, 0, 0, -1, 0, 3, -1, 0, 0, -1, 0},
						{0, 0, 0, -1, 0, 0, 0, 0, 0, -1, -1, 1, 0, 0, 0, -1},
						{0, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, -1, -1, -1, 0},
						{0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, -1, 1, 0, -1},
						{0, 0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, -1, 0, -1, -1},
						{0, 0, 0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, -1, -1, -3},
					}),
				},
			},
		},
		{
			n:                [2]int{8, 1},
			h:                1,
			hamiltonianShape: [2]int{256, 256},
			hamiltonian: []matrixSlice{
				{
					y: [2]int{0, 10},
					x: [2]int{0, 9},
					s: mat.M([][]complex128{
						{-7, -1, -1, 0, -1, 0, 0, 0, -1},
						{-1, -5, 0, -1, 0, -1, 0, 0, 0},
						{-1, 0, -3, -1, 0, 0, -1, 0, 0},
						{0, -1, -1, -5, 0, 0, 0, -1, 0},
						{-1, 0, 0, 0, -3, -1, -1, 0, 0},
						{0, -1, 0, 0, -1, -1, 0, -1, 0},
						{0, 0, -1, 0, -1, 0, -3, -1, 0},
						{0, 0, 0, -1, 0, -1, -1, -5, 0},
						{-1, 0, 0, 0, 0, 0, 0, 0, -3},
						{0, -1, 0, 0, 0, 0, 0, 0, -1},
					}),
				},
				{
					y: [2]int{0, 10},
					x: [2]int{-9, 256},
					s: mat.COOZeros(10, 9),
				},
				{
					y: [2]int{-10, 256},
					x: [2]int{0, 9},
					s: mat.COOZeros(10, 9),
				},
				{
					y: [2]int{-9, 256},
					x: [2]int{-9, 256},
					s: mat.M([][]complex128{
						{-3, 0, 0, 0, 0, 0, 0, 0, -1},
						{0, -5, -1, -1, 0, -1, 0, 0, 0},
						{0, -1, -3, 0, -1, 0, -1, 0, 0},
						{0, -1, 0, -1, -1, 0, 0, -1, 0},
						{0, 0, -1, -1, -3, 0, 0, 0, -1},
						{0, -1, 0, 0, 0, -5, -1, -1, 0},
						{0, 0, -1, 0, 0, -1, -3, 0, -1},
						{0, 0, 0, -1, 0, -1, 0, -5, -1},
						{-1, 0, 0, 0, -1, 0, -1, -1, -7},
					}),
				},
			},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v %#v", test.n, test.h), func(t *testing.T) {
			t.Parallel()
			hamiltonian := mat.COOZeros(1, 1)
			buf := mat.COOZeros(1, 1)
			TransverseFieldIsing(hamiltonian, buf, test.n, test.h)
			if !(hamiltonian.Rows() == test.hamiltonianShape[0] && hamiltonian.Cols() == test.hamiltonianShape[1]) {
				t.Fatalf("%d %d, expected %v", hamiltonian.Rows(), hamiltonian.Cols(), test.hamiltonianShape)
			}
			for _, th := range test.hamiltonian {
				s := hamiltonian.Slice(th.y, th.x)
				if !s.Equal(th.s) {
					t.Fatalf("%s, expected %s", s, th.s)
				}
			}
		})
	}
}

func TestEigen(t *testing.T) {
	t.Parallel()
	h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	TransverseFieldIsing(h, buf, [2]int{8, 1}, 1)
	vvs, err := h.EigenSym()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if b := h.LowerBound(); b > real(vvs[0].Val) {
		t.Fatalf("%f %v", b, vvs[0].Val)
	}

	// Check eigenvalues.
	// Values are from https://juliaphysics.github.io/PhysicsTutorials.jl/tutorials/general/quantum_ising/quantum_ising.html
	vals := []float64{-9.837951447459426, -9.46887800960621, -8.7432994871710, -8.374226049317867, -8.054998024353266, -7.685924586500063, -7.427412901942416, -7.058339464089192, -6.960346064064927, -6.881915778576785}
	for i, v := range vvs[0:10] {
		if math.Abs(real(v.Val)-vals[i]) > 1e-6 {
			t.Fatalf("%d %v %f", i, v.Val, vals[i])
		}
	}
	vals = []float64{6.960346064064934, 7.0583394640891886, 7.427412901942393, 7.685924586500062, 8.054998024353269, 8.374226049317883, 8.74329948717109, 9.468878009606211, 9.83795144745942}
	for i, v := range vvs[len(vvs)-9:] {
		if math.Abs(real(v.Val)-vals[i]) > 1e-6 {
			t.Fatalf("%d %v %f", i, v.Val, vals[i])
		}
	}

	// Check eigenvectors.
	var probSum float64
	for _, v := range vvs[0].Vec {
		probSum += real(v)*real(v) + imag(v)*imag(v)
	}
	if math.Abs(probSum-1) > 1e-6 {
		t.Fatalf("%f", probSum)
	}
	vec := []float64{0.11623105759942885, 0.030073150814502212, 0.0119388989548912, 0.01836268922781065, 0.010306563749646199, 0.0036432311839576883, 0.005695810419718821, 0.014593393364127294, 0.009913022568277332, 0.002835013679521494}
	for i, v := range vvs[0].Vec[:10] {
		prob := real(v)*real(v) + imag(v)*imag(v)
		if math.Abs(prob-vec[i]) > 1e-6 {
			t.Fatalf("%d %v %f %f", i, v, prob, vec[i])
		}
	}
	vec = []float64{0.009913022568277134, 0.014593393364126966, 0.005695810419718817, 0.003643231183957665, 0.010306563749646001, 0.018362689227810196, 0.01193889895489093, 0.030073150814501577, 0.11623105759942208}
	for i, v := range vvs[0].Vec[len(vvs[0].Vec)-9:] {
		prob := real(v)*real(v) + imag(v)*imag(v)
		if math.Abs(prob-vec[i]) > 1e-6 {
			t.Fatalf("%d %v %f %f", i, v, prob, vec[i])
		}
	}
}

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	// Without a field the ground states are the two ferromagnetic states,
	// and every superposition of them is fully magnetized.
	n := [2]int{2, 1}
	h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	TransverseFieldIsing(h, buf, n, 0)
	vvs, err := h.EigenSym()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	stats, err := GetStatistics(n, vvs)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(stats.EigenValue[0]-(-1)) > 1e-12 {
		t.Fatalf("%#v", stats)
	}
	if math.Abs(stats.Magnetization-1) > 1e-12 {
		t.Fatalf("%#v", stats)
	}
	if math.Abs(stats.BinderCumulant-2./3) > 1e-12 {
		t.Fatalf("%#v", stats)
	}

	if _, err := GetStatistics(n, nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := GetStatistics([2]int{3, 1}, vvs); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
