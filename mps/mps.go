// Package mps implements the Matrix Product State ground state search on top of the chain contractors.
//
// Site tensors have axes (physical, left, right), and operator tensors (physical bra, physical ket, left, right).
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/dmrg/chain"
	"github.com/fumin/dmrg/contract"
	"github.com/fumin/dmrg/ndarray"
)

const (
	// mpsPhysAxis is the axis of sigma_l in Figure 6.
	mpsPhysAxis  = 0
	mpsLeftAxis  = 1
	mpsRightAxis = 2
)

var (
	// ErrNotConverged is returned when the sweeps run out before the energy settles.
	ErrNotConverged = errors.New("mps: not converged")
)

var (
	// gaugeIntoLeft multiplies the gauge factor c[l, j] of a right-normalized site into the right bond of its left neighbour.
	gaugeIntoLeft = contract.MustCompile([][]string{
		{"p", "a", "l"},
		{"l", "j"},
	}, [][]string{{"p"}, {"a"}, {"j"}})
	// gaugeIntoRight multiplies the gauge factor c[r, j] of a left-normalized site into the left bond of its right neighbour.
	gaugeIntoRight = contract.MustCompile([][]string{
		{"r", "j"},
		{"p", "r", "b"},
	}, [][]string{{"p"}, {"j"}, {"b"}})
	// squareSite is the site tensor of the product of two operators.
	squareSite = contract.MustCompile([][]string{
		{"p", "k", "l1", "r1"},
		{"k", "q", "l2", "r2"},
	}, [][]string{{"p"}, {"q"}, {"l1", "l2"}, {"r1", "r2"}})
	// appendSite appends a site to a partially contracted state vector.
	appendSite = contract.MustCompile([][]string{
		{"s", "a"},
		{"p", "a", "b"},
	}, [][]string{{"s", "p"}, {"b"}})
)

// RandMPS creates a random matrix product state for the physical dimensions of mpo.
// maxD is the maximum bond dimension, which is D in the discussion below equation 71 in section 4.1.4, Ulrich Schollwock.
// Bond dimensions never exceed the dimension of the Hilbert space on either side, so the state can be normalized in both directions.
func RandMPS(mpo []*ndarray.Array, maxD int) []*ndarray.Array {
	n := len(mpo)
	phys := make([]int, 0, n)
	for _, w := range mpo {
		phys = append(phys, w.Shape()[1])
	}

	// bonds[i] is the bond between site i-1 and i.
	bonds := make([]int, n+1)
	left := 1
	for i := range n + 1 {
		bonds[i] = min(left, maxD)
		if i < n {
			left = min(left*phys[i], maxD)
		}
	}
	right := 1
	for i := n; i >= 0; i-- {
		bonds[i] = min(bonds[i], right)
		if i > 0 {
			right = min(right*phys[i-1], maxD)
		}
	}

	sites := make([]*ndarray.Array, 0, n)
	for i := range n {
		sites = append(sites, ndarray.Rand(phys[i], bonds[i], bonds[i+1]))
	}
	return sites
}

// RightNormalizeAll right normalizes sites 1 to n-1 in place. The norm of the state is left in site 0.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func RightNormalizeAll(ms []*ndarray.Array) error {
	for i := len(ms) - 1; i >= 1; i-- {
		if err := rightNormalize(ms, i); err != nil {
			return errors.Wrapf(err, "site %d", i)
		}
	}
	return nil
}

func rightNormalize(ms []*ndarray.Array, i int) error {
	q, c, err := ndarray.Orthonormalize(ms[i], mpsLeftAxis)
	if err != nil {
		return errors.Wrap(err, "")
	}
	prev, err := gaugeIntoLeft.Contract(ms[i-1], c)
	if err != nil {
		return errors.Wrap(err, "")
	}
	ms[i], ms[i-1] = q, prev
	return nil
}

// LeftNormalizeAll left normalizes sites 0 to n-2 in place. The norm of the state is left in the last site.
func LeftNormalizeAll(ms []*ndarray.Array) error {
	for i := range len(ms) - 1 {
		if err := leftNormalize(ms, i); err != nil {
			return errors.Wrapf(err, "site %d", i)
		}
	}
	return nil
}

func leftNormalize(ms []*ndarray.Array, i int) error {
	q, c, err := ndarray.Orthonormalize(ms[i], mpsRightAxis)
	if err != nil {
		return errors.Wrap(err, "")
	}
	next, err := gaugeIntoRight.Contract(c, ms[i+1])
	if err != nil {
		return errors.Wrap(err, "")
	}
	ms[i], ms[i+1] = q, next
	return nil
}

// InnerProduct computes the inner product <x|y>.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y []*ndarray.Array) (complex128, error) {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}
	c, err := chain.NewOverlap(chain.TrivialBoundary(chain.Overlap), chain.TrivialBoundary(chain.Overlap), x, y)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	v, err := c.FullContract(x[0].Conj(), y[0])
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return v, nil
}

// Expectation returns <ms|mpo|ms>, without dividing by the norm of ms.
func Expectation(mpo, ms []*ndarray.Array) (complex128, error) {
	if len(mpo) != len(ms) {
		panic(fmt.Sprintf("%d %d", len(mpo), len(ms)))
	}
	c, err := chain.NewExpectation(chain.TrivialBoundary(chain.Expectation), chain.TrivialBoundary(chain.Expectation), ms, mpo)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	v, err := c.FullContract(ms[0].Conj(), ms[0])
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return v, nil
}

// Square returns the matrix product operator of mpo times itself, whose bond dimensions are the squares of those of mpo.
// See Figure 44, Section 6.4 Conventional DMRG in MPS language: the subtle differences, Ulrich Schollwock.
func Square(mpo []*ndarray.Array) ([]*ndarray.Array, error) {
	sq := make([]*ndarray.Array, 0, len(mpo))
	for i, w := range mpo {
		w2, err := squareSite.Contract(w, w)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		sq = append(sq, w2)
	}
	return sq, nil
}

// StateVector contracts the bonds of ms, returning the amplitudes of the state with site 0 as the most significant index.
func StateVector(ms []*ndarray.Array) (*ndarray.Array, error) {
	v := ndarray.Ones(1, 1)
	for i, m := range ms {
		var err error
		v, err = appendSite.Contract(v, m)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
	}
	return v.Reshape(-1), nil
}

// Step reports the optimization of one site.
type Step struct {
	Sweep int
	Site  int
	// Right is true during the left to right half of a sweep.
	Right  bool
	Energy float64
}

// Result summarizes a ground state search.
type Result struct {
	Energy float64
	// Variance is <H^2> - <H>^2, which vanishes for eigenstates.
	Variance float64
	Sweeps   int
}

// SearchGroundStateOptions are options for the MPS ground state search algorithm.
type SearchGroundStateOptions struct {
	maxSweeps int
	tol       float64
	optimize  chain.OptimizeOptions
	observe   func(Step)
}

// NewSearchGroundStateOptions returns the default MPS ground state search options.
func NewSearchGroundStateOptions() SearchGroundStateOptions {
	opt := SearchGroundStateOptions{}
	opt.maxSweeps = 32
	opt.tol = 1e-10
	opt.optimize = chain.NewOptimizeOptions().Tol(1e-10)
	return opt
}

// MaxSweeps sets the maximum number of sweeps.
func (opt SearchGroundStateOptions) MaxSweeps(i int) SearchGroundStateOptions {
	opt.maxSweeps = i
	return opt
}

// Tol sets the tolerance of the convergence criterion, the relative change of the energy between sweeps.
func (opt SearchGroundStateOptions) Tol(tol float64) SearchGroundStateOptions {
	opt.tol = tol
	return opt
}

// Optimize sets the options of the local optimizations.
func (opt SearchGroundStateOptions) Optimize(o chain.OptimizeOptions) SearchGroundStateOptions {
	opt.optimize = o
	return opt
}

// Observe sets a function called after each local optimization.
func (opt SearchGroundStateOptions) Observe(f func(Step)) SearchGroundStateOptions {
	opt.observe = f
	return opt
}

// SearchGroundState performs the MPS ground state search, updating ms in place.
// On return ms is normalized with all sites but the first right normalized.
// See Section 6.3 Iterative ground state search, Ulrich Schollwock.
func SearchGroundState(mpo, ms []*ndarray.Array, options ...SearchGroundStateOptions) (Result, error) {
	opt := NewSearchGroundStateOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if len(mpo) != len(ms) {
		panic(fmt.Sprintf("%d %d", len(mpo), len(ms)))
	}

	if err := RightNormalizeAll(ms); err != nil {
		return Result{}, errors.Wrap(err, "")
	}
	c, err := chain.NewExpectation(chain.TrivialBoundary(chain.Expectation), chain.TrivialBoundary(chain.Expectation), ms, mpo)
	if err != nil {
		return Result{}, errors.Wrap(err, "")
	}

	res := Result{Energy: math.NaN()}
	converged := false
	for sweep := range opt.maxSweeps {
		res.Sweeps = sweep + 1
		energy, err := sweepOnce(c, ms, sweep, opt)
		if err != nil {
			return res, errors.Wrapf(err, "sweep %d", sweep)
		}

		delta := math.Abs(energy - res.Energy)
		res.Energy = energy
		if delta < opt.tol*max(math.Abs(energy), 1) {
			converged = true
			break
		}
	}

	res.Variance, err = variance(mpo, ms, res.Energy)
	if err != nil {
		return res, errors.Wrap(err, "")
	}
	if !converged {
		return res, errors.Wrapf(ErrNotConverged, "%#v", res)
	}
	return res, nil
}

// sweepOnce optimizes every site from left to right and back, returning the last energy.
// The contractor starts and ends at site 0.
func sweepOnce(c *chain.Contractor, ms []*ndarray.Array, sweep int, opt SearchGroundStateOptions) (float64, error) {
	n := len(ms)
	if n == 1 {
		x, energy, err := c.Optimize(ms[0], opt.optimize)
		if err != nil {
			return 0, errors.Wrap(err, "")
		}
		ms[0] = x
		observe(opt, Step{Sweep: sweep, Right: true, Energy: energy})
		return energy, nil
	}

	var energy float64
	for l := range n - 1 {
		x, e, err := c.Optimize(ms[l], opt.optimize)
		if err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
		energy = e
		observe(opt, Step{Sweep: sweep, Site: l, Right: true, Energy: e})

		// Left normalize the optimized site, and multiply the gauge factor into the next site.
		// The reason why ms[:l] has to be left-normalized, and ms[l+1:] right-normalized at all times is because in this case,
		// the generalized eigenvalue problem simplifies to the ordinary eigenvalue problem.
		// See Equation 211, Section 6.3 Iterative ground state search, Ulrich Schollwock.
		ms[l] = x
		if err := leftNormalize(ms, l); err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
		if err := c.MoveRight(ms[l].Conj(), ms[l]); err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
	}
	for l := n - 1; l >= 1; l-- {
		x, e, err := c.Optimize(ms[l], opt.optimize)
		if err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
		energy = e
		observe(opt, Step{Sweep: sweep, Site: l, Energy: e})

		ms[l] = x
		if err := rightNormalize(ms, l); err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
		if err := c.MoveLeft(ms[l].Conj(), ms[l]); err != nil {
			return 0, errors.Wrapf(err, "site %d", l)
		}
	}
	return energy, nil
}

func observe(opt SearchGroundStateOptions, s Step) {
	if opt.observe != nil {
		opt.observe(s)
	}
}

// variance returns <H^2>/<psi|psi> - energy^2.
func variance(mpo, ms []*ndarray.Array, energy float64) (float64, error) {
	psiIP, err := InnerProduct(ms, ms)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	if real(psiIP) == 0 {
		return 0, errors.Errorf("%v", psiIP)
	}
	sq, err := Square(mpo)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	h2, err := Expectation(sq, ms)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return real(h2)/real(psiIP) - energy*energy, nil
}
