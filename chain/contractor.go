// Package chain sweeps over the sites of a matrix product state while caching the contractions of everything to the left and right of the active site.
//
// A Contractor owns two stacks of boundaries. Moving the active site absorbs it into one boundary
// and restores the neighbouring boundary from the other stack, so every move costs one boundary contraction.
//
// State tensors have axes (physical, left, right).
// Operator tensors have axes (physical bra, physical ket, left, right).
// Expectation boundaries have axes (bra, operator, ket), and overlap boundaries (bra, ket).
package chain

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/dmrg/contract"
	"github.com/fumin/dmrg/ndarray"
)

var (
	// ErrNoOperator is returned by operations that need the operator of an overlap contractor.
	ErrNoOperator = errors.New("chain: overlap contractor has no operator")
	// ErrBadChain is returned for inconsistent constructor arguments.
	ErrBadChain = errors.New("chain: bad chain")
)

// Kind distinguishes expectation value contractors from overlap contractors.
type Kind int

const (
	// Expectation contracts <bra|O|ket> for a matrix product operator O.
	Expectation Kind = iota
	// Overlap contracts <bra|ket>.
	Overlap
)

func (k Kind) String() string {
	switch k {
	case Expectation:
		return "expectation"
	case Overlap:
		return "overlap"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// frame is a saved boundary together with the operator of the site it borders.
type frame struct {
	boundary *ndarray.Array
	operator *ndarray.Array
}

// Contractor caches boundary contractions of a chain of sites around an active site.
type Contractor struct {
	kind Kind
	// phys is the physical dimension of each site.
	phys []int

	site        int
	left, right *ndarray.Array
	// op is the operator at the active site, nil for overlaps.
	op *ndarray.Array

	// leftStack holds the left boundary of every site before the active one, in site order.
	leftStack []frame
	// rightStack holds the right boundary of every site after the active one, the nearest on top.
	rightStack []frame
}

// NewExpectation returns a contractor for <states|operators|states> positioned at site 0.
// left and right are the boundaries of the whole chain, typically TrivialBoundary(Expectation).
func NewExpectation(left, right *ndarray.Array, states, operators []*ndarray.Array) (*Contractor, error) {
	if len(states) == 0 || len(states) != len(operators) {
		return nil, errors.Wrapf(ErrBadChain, "%d states %d operators", len(states), len(operators))
	}
	if left.Rank() != 3 || right.Rank() != 3 {
		return nil, errors.Wrapf(ErrBadChain, "boundaries %v %v", left.Shape(), right.Shape())
	}
	for i, s := range states {
		if s.Rank() != 3 || operators[i].Rank() != 4 {
			return nil, errors.Wrapf(ErrBadChain, "site %d state %v operator %v", i, s.Shape(), operators[i].Shape())
		}
	}

	c := &Contractor{kind: Expectation, left: left, right: right}
	for _, s := range states {
		c.phys = append(c.phys, s.Shape()[0])
	}
	for i := len(states) - 1; i >= 1; i-- {
		next, err := absorbRightExpectation.Contract(c.right, states[i].Conj(), operators[i], states[i])
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		c.rightStack = append(c.rightStack, frame{boundary: c.right, operator: operators[i]})
		c.right = next
	}
	c.op = operators[0]
	return c, nil
}

// NewOverlap returns a contractor for <bras|kets> positioned at site 0.
// bras are conjugated by the contractor.
func NewOverlap(left, right *ndarray.Array, bras, kets []*ndarray.Array) (*Contractor, error) {
	if len(kets) == 0 || len(bras) != len(kets) {
		return nil, errors.Wrapf(ErrBadChain, "%d bras %d kets", len(bras), len(kets))
	}
	if left.Rank() != 2 || right.Rank() != 2 {
		return nil, errors.Wrapf(ErrBadChain, "boundaries %v %v", left.Shape(), right.Shape())
	}
	for i, k := range kets {
		if k.Rank() != 3 || bras[i].Rank() != 3 {
			return nil, errors.Wrapf(ErrBadChain, "site %d bra %v ket %v", i, bras[i].Shape(), k.Shape())
		}
	}

	c := &Contractor{kind: Overlap, left: left, right: right}
	for _, k := range kets {
		c.phys = append(c.phys, k.Shape()[0])
	}
	for i := len(kets) - 1; i >= 1; i-- {
		next, err := absorbRightOverlap.Contract(c.right, bras[i].Conj(), kets[i])
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		c.rightStack = append(c.rightStack, frame{boundary: c.right})
		c.right = next
	}
	return c, nil
}

// TrivialBoundary returns the all ones boundary with unit dimensions for contractors of kind k.
func TrivialBoundary(k Kind) *ndarray.Array {
	rank := 3
	if k == Overlap {
		rank = 2
	}
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = 1
	}
	return ndarray.Ones(shape...)
}

func (c *Contractor) Kind() Kind { return c.kind }

// Site returns the active site.
func (c *Contractor) Site() int { return c.site }

// Len returns the number of sites.
func (c *Contractor) Len() int { return len(c.phys) }

// Left returns the boundary to the left of the active site.
func (c *Contractor) Left() *ndarray.Array { return c.left }

// Right returns the boundary to the right of the active site.
func (c *Contractor) Right() *ndarray.Array { return c.right }

// Operator returns the operator of the active site, nil for overlaps.
func (c *Contractor) Operator() *ndarray.Array { return c.op }

// SiteShape returns the shape of a state tensor at the active site compatible with the current boundaries.
func (c *Contractor) SiteShape() []int {
	ls, rs := c.left.Shape(), c.right.Shape()
	return []int{c.phys[c.site], ls[len(ls)-1], rs[len(rs)-1]}
}

// MoveRight absorbs the active site into the left boundary and activates the next site.
// ket is the site's state tensor and bra the conjugate of the corresponding bra tensor.
// On error the contractor is unchanged.
// MoveRight panics at the last site.
func (c *Contractor) MoveRight(bra, ket *ndarray.Array) error {
	if c.site >= len(c.phys)-1 {
		panic(fmt.Sprintf("move right at site %d of %d", c.site, len(c.phys)))
	}
	var next *ndarray.Array
	var err error
	switch c.kind {
	case Expectation:
		next, err = absorbLeftExpectation.Contract(c.left, bra, c.op, ket)
	case Overlap:
		next, err = absorbLeftOverlap.Contract(c.left, bra, ket)
	}
	if err != nil {
		return errors.Wrapf(err, "site %d", c.site)
	}

	c.leftStack = append(c.leftStack, frame{boundary: c.left, operator: c.op})
	c.left = next
	top := c.rightStack[len(c.rightStack)-1]
	c.rightStack = c.rightStack[:len(c.rightStack)-1]
	c.right, c.op = top.boundary, top.operator
	c.site++
	return nil
}

// MoveLeft absorbs the active site into the right boundary and activates the previous site.
// The arguments follow MoveRight.
// MoveLeft panics at site 0.
func (c *Contractor) MoveLeft(bra, ket *ndarray.Array) error {
	if c.site <= 0 {
		panic(fmt.Sprintf("move left at site %d of %d", c.site, len(c.phys)))
	}
	var next *ndarray.Array
	var err error
	switch c.kind {
	case Expectation:
		next, err = absorbRightExpectation.Contract(c.right, bra, c.op, ket)
	case Overlap:
		next, err = absorbRightOverlap.Contract(c.right, bra, ket)
	}
	if err != nil {
		return errors.Wrapf(err, "site %d", c.site)
	}

	c.rightStack = append(c.rightStack, frame{boundary: c.right, operator: c.op})
	c.right = next
	top := c.leftStack[len(c.leftStack)-1]
	c.leftStack = c.leftStack[:len(c.leftStack)-1]
	c.left, c.op = top.boundary, top.operator
	c.site--
	return nil
}

// PartialContract contracts everything except the bra of the active site, whose ket tensor is ket.
// The result has the shape of a state tensor.
func (c *Contractor) PartialContract(ket *ndarray.Array) (*ndarray.Array, error) {
	var p *ndarray.Array
	var err error
	switch c.kind {
	case Expectation:
		p, err = partialExpectation.Contract(ket, c.op, c.left, c.right)
	case Overlap:
		p, err = partialOverlap.Contract(ket, c.left, c.right)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "site %d", c.site)
	}
	return p, nil
}

// FullContract returns the value of the whole network with the active site's tensors set to bra and ket.
// bra is conjugated, as in MoveRight.
func (c *Contractor) FullContract(bra, ket *ndarray.Array) (complex128, error) {
	p, err := c.PartialContract(ket)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	v, err := inner.Contract(bra, p)
	if err != nil {
		return 0, errors.Wrapf(err, "site %d", c.site)
	}
	return v.At(), nil
}

// OptimizationMatrix returns the local effective operator as a dense matrix
// whose rows and columns are flattened state tensors.
func (c *Contractor) OptimizationMatrix() (*ndarray.Array, error) {
	if c.kind != Expectation {
		return nil, errors.WithStack(ErrNoOperator)
	}
	m, err := optimizationMatrix.Contract(c.op, c.left, c.right)
	if err != nil {
		return nil, errors.Wrapf(err, "site %d", c.site)
	}
	return m, nil
}

// checkShape reports whether a matches the local site shape.
func (c *Contractor) checkShape(a *ndarray.Array) error {
	if !slices.Equal(a.Shape(), c.SiteShape()) {
		return errors.Wrapf(contract.ErrShapeMismatch, "%v, expected %v", a.Shape(), c.SiteShape())
	}
	return nil
}
