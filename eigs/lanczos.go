// Package eigs computes a few of the smallest eigenpairs of a Hermitian operator that is known only through its action on vectors.
//
// The solver is a Lanczos iteration with full reorthogonalization, restarted from the wanted Ritz vectors.
//
// References:
//   - Templates for the Solution of Algebraic Eigenvalue Problems, Section 4.4, Bai et al.
package eigs

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotConverged is returned when the restart cap is reached before all wanted Ritz pairs converge.
	// The accompanying Result holds the last Ritz pairs.
	ErrNotConverged = errors.New("eigs: not converged")
	// ErrNonFinite is returned when the operator produces infinities or NaNs.
	ErrNonFinite = errors.New("eigs: non-finite value")
	// ErrBadSize is returned for inconsistent problem sizes.
	ErrBadSize = errors.New("eigs: bad size")
)

const (
	// Machine precision.
	epsilon = 0x1p-52
)

// Operator is a linear operator on complex vectors.
type Operator interface {
	// Apply writes the operator applied to src into dst.
	Apply(dst, src []complex128) error
}

// OperatorFunc adapts a function to an Operator.
type OperatorFunc func(dst, src []complex128) error

func (f OperatorFunc) Apply(dst, src []complex128) error { return f(dst, src) }

// Settings configure Lowest. The zero value asks for the single lowest eigenpair with default parameters.
type Settings struct {
	// K is the number of wanted eigenpairs, at least 1.
	K int
	// NCV is the dimension of the Krylov subspace built between restarts.
	// It defaults to min(n, max(2K+1, 20)).
	NCV int
	// MaxIterations caps the number of restarts, defaulting to 10n.
	MaxIterations int
	// Tol is the relative residual tolerance, machine precision if not positive.
	Tol float64
	// Start is the initial vector, random if nil.
	Start []complex128
}

// Result holds eigenpairs ordered by ascending eigenvalue.
type Result struct {
	Values     []float64
	Vectors    [][]complex128
	Iterations int
	MatVecs    int
}

// Lowest computes the s.K smallest eigenpairs of the n dimensional Hermitian operator a.
func Lowest(a Operator, n int, s Settings) (Result, error) {
	k := max(s.K, 1)
	if n <= 0 || k > n {
		return Result{}, errors.Wrapf(ErrBadSize, "n %d k %d", n, k)
	}
	ncv := s.NCV
	if ncv <= 0 {
		ncv = max(2*k+1, 20)
	}
	ncv = min(max(ncv, k+1), n)
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 10 * n
	}
	tol := s.Tol
	if tol <= 0 {
		tol = epsilon
	}
	if s.Start != nil && len(s.Start) != n {
		return Result{}, errors.Wrapf(ErrBadSize, "start %d n %d", len(s.Start), n)
	}

	v0 := make([]complex128, n)
	copy(v0, s.Start)
	if s.Start == nil || cblas128.Nrm2(vec(v0)) == 0 {
		randomize(v0)
	}
	cblas128.Dscal(1/cblas128.Nrm2(vec(v0)), vec(v0))

	l := &lanczos{a: a, n: n, ncv: ncv}
	var res Result
	for iter := range maxIter {
		res.Iterations = iter + 1
		exhausted, err := l.run(v0)
		res.MatVecs = l.matvecs
		if err != nil {
			return res, errors.Wrap(err, "")
		}

		ritz, err := l.ritz(k)
		if err != nil {
			return res, errors.Wrap(err, "")
		}
		res.Values, res.Vectors = ritz.values, ritz.vectors

		// Ritz values are exact once the basis spans the whole space.
		if exhausted {
			return res, nil
		}
		converged := true
		for i, r := range ritz.residuals {
			thresh := tol * max(math.Pow(epsilon, 2.0/3), math.Abs(ritz.values[i]))
			rounding := float64(n) * epsilon * ritz.norm
			if r > max(thresh, rounding) {
				converged = false
				break
			}
		}
		if converged {
			return res, nil
		}

		// Restart from the sum of the wanted Ritz vectors.
		clear(v0)
		for _, x := range ritz.vectors {
			cblas128.Axpy(1, vec(x), vec(v0))
		}
		nrm := cblas128.Nrm2(vec(v0))
		if nrm == 0 {
			copy(v0, ritz.vectors[0])
			nrm = 1
		}
		cblas128.Dscal(1/nrm, vec(v0))
	}
	return res, errors.Wrapf(ErrNotConverged, "%d iterations, values %v", maxIter, res.Values)
}

// lanczos holds the Krylov basis and the projected tridiagonal matrix.
type lanczos struct {
	a       Operator
	n       int
	ncv     int
	matvecs int

	basis [][]complex128
	alpha []float64
	beta  []float64
	// rnorm is the norm of the residual after the last step.
	rnorm float64
}

// run builds the Krylov basis starting from the unit vector v0.
// When the basis becomes invariant before spanning the whole space, the build continues from a random vector
// orthogonal to the basis, as ARPACK does, so eigenvectors missing from v0 can still be found.
// run reports whether the basis spans the whole space, in which case the Ritz pairs are exact.
func (l *lanczos) run(v0 []complex128) (bool, error) {
	l.basis = append(l.basis[:0], slices.Clone(v0))
	l.alpha = l.alpha[:0]
	l.beta = l.beta[:0]

	for j := 0; ; j++ {
		v := l.basis[j]
		w := make([]complex128, l.n)
		if err := l.a.Apply(w, v); err != nil {
			return false, errors.Wrap(err, "")
		}
		l.matvecs++

		alpha := real(cblas128.Dotc(vec(v), vec(w)))
		if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
			return false, errors.Wrapf(ErrNonFinite, "alpha %f at step %d", alpha, j)
		}
		l.alpha = append(l.alpha, alpha)

		l.orthogonalize(w)
		beta := cblas128.Nrm2(vec(w))
		if math.IsNaN(beta) || math.IsInf(beta, 0) {
			return false, errors.Wrapf(ErrNonFinite, "beta %f at step %d", beta, j)
		}
		l.rnorm = beta

		if len(l.basis) == l.n {
			l.rnorm = 0
			return true, nil
		}
		if beta > float64(l.n)*epsilon*l.scale() {
			if j >= l.ncv-1 {
				return false, nil
			}
			l.beta = append(l.beta, beta)
			cblas128.Dscal(1/beta, vec(w))
			l.basis = append(l.basis, w)
			continue
		}

		// Breakdown, start a new block decoupled from the current one.
		r, ok := l.orthogonalRandom()
		if !ok {
			l.rnorm = 0
			return true, nil
		}
		l.rnorm = 0
		l.beta = append(l.beta, 0)
		l.basis = append(l.basis, r)
	}
}

// orthogonalize removes the components of w along the basis, twice for numerical stability.
func (l *lanczos) orthogonalize(w []complex128) {
	for range 2 {
		for _, u := range l.basis {
			cblas128.Axpy(-cblas128.Dotc(vec(u), vec(w)), vec(u), vec(w))
		}
	}
}

// orthogonalRandom returns a random unit vector orthogonal to the basis.
// It reports false if the basis already spans the space numerically.
func (l *lanczos) orthogonalRandom() ([]complex128, bool) {
	r := make([]complex128, l.n)
	for range 3 {
		randomize(r)
		before := cblas128.Nrm2(vec(r))
		l.orthogonalize(r)
		nrm := cblas128.Nrm2(vec(r))
		if nrm > 1e-8*before {
			cblas128.Dscal(1/nrm, vec(r))
			return r, true
		}
	}
	return nil, false
}

// scale estimates the norm of the operator from the tridiagonal entries.
func (l *lanczos) scale() float64 {
	s := 1.0
	for _, a := range l.alpha {
		s = max(s, math.Abs(a))
	}
	for _, b := range l.beta {
		s = max(s, b)
	}
	return s
}

type ritzPairs struct {
	values    []float64
	vectors   [][]complex128
	residuals []float64
	norm      float64
}

// ritz returns the k lowest Ritz pairs of the current basis.
func (l *lanczos) ritz(k int) (ritzPairs, error) {
	m := len(l.alpha)
	t := mat.NewSymDense(m, nil)
	for i, a := range l.alpha {
		t.SetSym(i, i, a)
	}
	for i, b := range l.beta {
		t.SetSym(i, i+1, b)
	}

	var es mat.EigenSym
	if ok := es.Factorize(t, true); !ok {
		return ritzPairs{}, errors.Errorf("tridiagonal eigen decomposition failed %v %v", l.alpha, l.beta)
	}
	values := es.Values(nil)
	var y mat.Dense
	es.VectorsTo(&y)

	k = min(k, m)
	rp := ritzPairs{norm: l.scale()}
	for i := range k {
		x := make([]complex128, l.n)
		for j, u := range l.basis {
			cblas128.Axpy(complex(y.At(j, i), 0), vec(u), vec(x))
		}
		rp.values = append(rp.values, values[i])
		rp.vectors = append(rp.vectors, x)
		rp.residuals = append(rp.residuals, l.rnorm*math.Abs(y.At(m-1, i)))
	}
	return rp, nil
}

func randomize(v []complex128) {
	for i := range v {
		v[i] = complex(rand.Float64()*2-1, rand.Float64()*2-1)
	}
}

func vec(s []complex128) cblas128.Vector {
	return cblas128.Vector{N: len(s), Inc: 1, Data: s}
}
