package chain

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/dmrg/contract"
	"github.com/fumin/dmrg/eigs"
	"github.com/fumin/dmrg/ndarray"
)

var (
	// ErrNoAcceptableEigenpair is the reason of a ConvergenceError when every computed eigenpair was rejected.
	ErrNoAcceptableEigenpair = errors.New("chain: no acceptable eigenpair")
	// ErrEnergyRaised is the reason of a ConvergenceError when the optimized energy is above that of the guess.
	ErrEnergyRaised = errors.New("chain: energy raised")
)

const (
	// minMaxAbs is the smallest acceptable magnitude of the largest eigenvector entry.
	minMaxAbs = 1e-10
)

// ConvergenceError is returned when the local eigenvalue problem yields no usable solution.
type ConvergenceError struct {
	// Values and Vectors are the eigenpairs returned by the solver, possibly empty.
	Values  []float64
	Vectors [][]complex128
	Reason  error
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence failure: %v, eigenvalues %v", e.Reason, e.Values)
}

func (e *ConvergenceError) Unwrap() error { return e.Reason }

// OptimizeOptions are options for the local optimizer.
type OptimizeOptions struct {
	maxIterations        int
	tol                  float64
	ncv                  int
	numEigenpairs        int
	energyRaiseThreshold float64
	rejectEnergyRaise    bool
}

// NewOptimizeOptions returns the default local optimizer options.
func NewOptimizeOptions() OptimizeOptions {
	opt := OptimizeOptions{}
	opt.numEigenpairs = 1
	opt.energyRaiseThreshold = 1e-10
	return opt
}

// MaxIterations sets the maximum number of eigensolver restarts, zero for the solver default.
func (opt OptimizeOptions) MaxIterations(i int) OptimizeOptions {
	opt.maxIterations = i
	return opt
}

// Tol sets the eigensolver tolerance, zero for machine precision.
func (opt OptimizeOptions) Tol(tol float64) OptimizeOptions {
	opt.tol = tol
	return opt
}

// NCV sets the Krylov subspace dimension, zero for the solver default.
func (opt OptimizeOptions) NCV(ncv int) OptimizeOptions {
	opt.ncv = ncv
	return opt
}

// NumEigenpairs sets the number of lowest eigenpairs computed and considered for acceptance.
func (opt OptimizeOptions) NumEigenpairs(k int) OptimizeOptions {
	opt.numEigenpairs = k
	return opt
}

// EnergyRaiseThreshold sets how much the energy may rise above that of the guess before the result is rejected.
func (opt OptimizeOptions) EnergyRaiseThreshold(t float64) OptimizeOptions {
	opt.energyRaiseThreshold = t
	return opt
}

// RejectEnergyRaise enables rejecting results whose energy is above that of the guess by more than the energy raise threshold.
func (opt OptimizeOptions) RejectEnergyRaise(reject bool) OptimizeOptions {
	opt.rejectEnergyRaise = reject
	return opt
}

// Optimize returns the site tensor of the active site that minimizes the local energy, together with that energy.
// guess, if non-nil, must have shape SiteShape and seeds the eigensolver.
// The local operator must be Hermitian, which holds for a Hermitian operator chain
// and for an overlap whose bra and ket states are the same.
// Otherwise the returned energy and site tensor are meaningless.
// The contractor is not modified.
func (c *Contractor) Optimize(guess *ndarray.Array, options ...OptimizeOptions) (*ndarray.Array, float64, error) {
	opt := NewOptimizeOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	shape := c.SiteShape()
	n := 1
	for _, d := range shape {
		n *= d
	}
	var start []complex128
	if guess != nil {
		if err := c.checkShape(guess); err != nil {
			return nil, 0, errors.Wrap(err, "guess")
		}
		start = guess.Data()
	}

	a := eigs.OperatorFunc(func(dst, src []complex128) error {
		y, err := c.PartialContract(ndarray.New(slices.Clone(src), shape...))
		if err != nil {
			return errors.Wrap(err, "")
		}
		if y.Size() != len(dst) {
			return errors.Wrapf(contract.ErrShapeMismatch, "local operator maps %v to %v", shape, y.Shape())
		}
		copy(dst, y.Data())
		return nil
	})
	settings := eigs.Settings{
		K:             min(max(opt.numEigenpairs, 1), n),
		NCV:           opt.ncv,
		MaxIterations: opt.maxIterations,
		Tol:           opt.tol,
		Start:         start,
	}
	res, err := eigs.Lowest(a, n, settings)
	if err != nil {
		if errors.Is(err, contract.ErrShapeMismatch) {
			return nil, 0, errors.Wrap(err, "")
		}
		return nil, 0, errors.WithStack(&ConvergenceError{Values: res.Values, Vectors: res.Vectors, Reason: err})
	}

	i, err := selectEigenpair(res.Values, res.Vectors)
	if err != nil {
		return nil, 0, errors.Wrap(err, "")
	}
	energy := res.Values[i]

	if guess != nil && opt.rejectEnergyRaise {
		old, ok, err := c.rayleigh(guess)
		if err != nil {
			return nil, 0, errors.Wrap(err, "")
		}
		if ok && energy-old > opt.energyRaiseThreshold {
			reason := errors.Wrapf(ErrEnergyRaised, "from %g to %g", old, energy)
			return nil, 0, errors.WithStack(&ConvergenceError{Values: res.Values, Vectors: res.Vectors, Reason: reason})
		}
	}

	return ndarray.New(slices.Clone(res.Vectors[i]), shape...), energy, nil
}

// rayleigh returns the energy of x, reporting false if x is zero.
func (c *Contractor) rayleigh(x *ndarray.Array) (float64, bool, error) {
	nrm := x.Norm()
	if nrm == 0 {
		return 0, false, nil
	}
	v, err := c.FullContract(x.Conj(), x)
	if err != nil {
		return 0, false, errors.Wrap(err, "")
	}
	return real(v) / (nrm * nrm), true, nil
}

// selectEigenpair returns the index of the eigenpair with the lowest eigenvalue that is finite
// and whose eigenvector has an entry of magnitude above minMaxAbs.
func selectEigenpair(values []float64, vectors [][]complex128) (int, error) {
	order := make([]int, 0, len(values))
	for i := range values {
		order = append(order, i)
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(values[a], values[b]) })

	for _, i := range order {
		if i >= len(vectors) || math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		var maxAbs float64
		finite := true
		for _, v := range vectors[i] {
			if cmplx.IsNaN(v) || cmplx.IsInf(v) {
				finite = false
				break
			}
			maxAbs = max(maxAbs, cmplx.Abs(v))
		}
		if finite && maxAbs > minMaxAbs {
			return i, nil
		}
	}
	return -1, errors.WithStack(&ConvergenceError{Values: values, Vectors: vectors, Reason: ErrNoAcceptableEigenpair})
}
