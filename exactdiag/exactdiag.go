// Package exactdiag builds and diagonalizes the full Hamiltonian of small transverse field Ising lattices.
// It is the reference the matrix product state search is checked against.
package exactdiag

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fumin/dmrg/exactdiag/mat"
)

var (
	identity = mat.COOIdentity(2)
)

// TransverseFieldIsing sets hamiltonian to
//
//	H = -sum_<ij> Z_i Z_j - h sum_i X_i
//
// on an open n[0] by n[1] lattice. Spins are ordered row by row, the first spin being the most significant bit of the basis index.
// buf is scratch space.
func TransverseFieldIsing(hamiltonian, buf *mat.COO, n [2]int, h float64) {
	numSpins := n[0] * n[1]
	hamiltonian.Zeros(1<<numSpins, 1<<numSpins)

	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			up := y - 1
			if up >= 0 {
				coupling(hamiltonian, n, [2]int{up, x}, [2]int{y, x}, buf)
			}

			left := x - 1
			if left >= 0 {
				coupling(hamiltonian, n, [2]int{y, left}, [2]int{y, x}, buf)
			}

			magnetic(hamiltonian, n, [2]int{y, x}, h, buf)
		}
	}
}

// coupling subtracts Z_i Z_j from hamiltonian, building the operator in system.
func coupling(hamiltonian *mat.COO, n [2]int, i [2]int, j [2]int, system *mat.COO) {
	system.Scalar(1)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			yx := [2]int{y, x}

			switch {
			case yx == i || yx == j:
				system.Kron(mat.M(mat.PauliZ))
			default:
				system.Kron(identity)
			}
		}
	}

	hamiltonian.Add(-1, system)
}

// magnetic subtracts h X_i from hamiltonian, building the operator in system.
func magnetic(hamiltonian *mat.COO, n [2]int, i [2]int, h float64, system *mat.COO) {
	system.Scalar(1)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			yx := [2]int{y, x}
			switch {
			case yx == i:
				system.Kron(mat.M(mat.PauliX))
			default:
				system.Kron(identity)
			}
		}
	}

	hamiltonian.Add(complex(-h, 0), system)
}

// Statistics are observables of the ground state.
type Statistics struct {
	EigenValue []float64
	// Magnetization is the mean absolute magnetization per spin.
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics computes the ground state statistics from the eigen decomposition vvs of the Hamiltonian of n spins.
func GetStatistics(n [2]int, vvs []mat.ValVec) (Statistics, error) {
	var stats Statistics
	if len(vvs) == 0 {
		return Statistics{}, errors.Errorf("no eigenpairs")
	}
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, real(vv.Val))
	}
	ground := vvs[0]
	numSpins := n[0] * n[1]
	if len(ground.Vec) != 1<<numSpins {
		return Statistics{}, errors.Errorf("%d %d", len(ground.Vec), 1<<numSpins)
	}

	var totalProb float64
	var m2 float64
	for i, amplitude := range ground.Vec {
		probability := real(amplitude)*real(amplitude) + imag(amplitude)*imag(amplitude)

		// The basis magnetization with the majority of spins taken as up.
		ups := bits.OnesCount(uint(i))
		basisM := math.Abs(float64(2*ups - numSpins))

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(numSpins)
	if m2 > 0 {
		stats.BinderCumulant /= (m2 * m2)
		stats.BinderCumulant = 1 - stats.BinderCumulant/3
	}
	return stats, nil
}
