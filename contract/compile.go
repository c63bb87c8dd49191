// Package contract compiles declarative descriptions of multi-array contractions into reusable plans.
//
// A contraction is described by one label list per operand, naming each of its axes,
// and a list of output groups. Axes that share a label are summed over against each other.
// Every other label must appear in exactly one output group, and the axes of a group are
// flattened in row-major order into one output axis.
//
// Matrix multiplication of a (3, 5) and a (5, 4) array is
//
//	p := contract.MustCompile([][]string{{"i", "j"}, {"j", "k"}}, [][]string{{"i"}, {"k"}})
//	c, err := p.Contract(a, b)
package contract

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// axisRef identifies axis of operand.
type axisRef struct {
	operand int
	axis    int
}

// Compile compiles a contraction whose joins are implied by the labels:
// a label used by exactly two operands joins them.
func Compile[L comparable](operands [][]L, output [][]L) (*Plan, error) {
	occurrences := make(map[L][]axisRef)
	joins := make([][2]axisRef, 0)
	for i, labels := range operands {
		for ax, l := range labels {
			occ := occurrences[l]
			switch {
			case len(occ) == 2:
				return nil, errors.Wrapf(ErrAmbiguousJoin, "label %v in operands %d, %d and %d", l, occ[0].operand, occ[1].operand, i)
			case len(occ) == 1 && occ[0].operand == i:
				return nil, errors.Wrapf(ErrInvalidSpec, "label %v repeated in operand %d", l, i)
			case len(occ) == 1:
				joins = append(joins, [2]axisRef{occ[0], {operand: i, axis: ax}})
			}
			occurrences[l] = append(occ, axisRef{operand: i, axis: ax})
		}
	}

	outRefs := make([][]axisRef, 0, len(output))
	for _, group := range output {
		refs := make([]axisRef, 0, len(group))
		for _, l := range group {
			occ := occurrences[l]
			switch len(occ) {
			case 0:
				return nil, errors.Wrapf(ErrInvalidSpec, "unknown output label %v", l)
			case 2:
				return nil, errors.Wrapf(ErrInvalidSpec, "output label %v is joined between operands %d and %d", l, occ[0].operand, occ[1].operand)
			}
			refs = append(refs, occ[0])
		}
		outRefs = append(outRefs, refs)
	}

	p, err := build(ranks(operands), joins, outRefs, func(r axisRef) string {
		return fmt.Sprintf("%v", operands[r.operand][r.axis])
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return p, nil
}

// CompileJoins compiles a contraction with explicit joins.
// Labels must be unique across all operands, and each join pairs the labels of two axes in different operands.
func CompileJoins[L comparable](operands [][]L, joins [][2]L, output [][]L) (*Plan, error) {
	where := make(map[L]axisRef)
	for i, labels := range operands {
		for ax, l := range labels {
			if prev, ok := where[l]; ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "label %v used by operand %d and operand %d", l, prev.operand, i)
			}
			where[l] = axisRef{operand: i, axis: ax}
		}
	}

	joined := make(map[L]bool)
	joinRefs := make([][2]axisRef, 0, len(joins))
	for _, j := range joins {
		var pair [2]axisRef
		for k, l := range j {
			r, ok := where[l]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "unknown join label %v", l)
			}
			if joined[l] {
				return nil, errors.Wrapf(ErrAmbiguousJoin, "label %v joined more than once", l)
			}
			joined[l] = true
			pair[k] = r
		}
		if pair[0].operand == pair[1].operand {
			return nil, errors.Wrapf(ErrInvalidSpec, "join %v within operand %d", j, pair[0].operand)
		}
		joinRefs = append(joinRefs, pair)
	}

	outRefs := make([][]axisRef, 0, len(output))
	for _, group := range output {
		refs := make([]axisRef, 0, len(group))
		for _, l := range group {
			r, ok := where[l]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSpec, "unknown output label %v", l)
			}
			if joined[l] {
				return nil, errors.Wrapf(ErrInvalidSpec, "output label %v is joined", l)
			}
			refs = append(refs, r)
		}
		outRefs = append(outRefs, refs)
	}

	p, err := build(ranks(operands), joinRefs, outRefs, func(r axisRef) string {
		return fmt.Sprintf("%v", operands[r.operand][r.axis])
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile[L comparable](operands [][]L, output [][]L) *Plan {
	p, err := Compile(operands, output)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return p
}

// build lays out the steps of a plan by simulating the reduction on axis identities.
func build(opRanks []int, joins [][2]axisRef, output [][]axisRef, name func(axisRef) string) (*Plan, error) {
	if len(opRanks) == 0 {
		return nil, errors.Wrap(ErrInvalidSpec, "no operands")
	}

	// Each axis of each operand gets a global id.
	offsets := make([]int, len(opRanks)+1)
	for i, r := range opRanks {
		offsets[i+1] = offsets[i] + r
	}
	id := func(r axisRef) int { return offsets[r.operand] + r.axis }
	refOf := func(g int) axisRef {
		i := 0
		for offsets[i+1] <= g {
			i++
		}
		return axisRef{operand: i, axis: g - offsets[i]}
	}

	// Every axis must be consumed exactly once, either by a join or by an output group.
	consumed := make([]int, offsets[len(opRanks)])
	for _, j := range joins {
		consumed[id(j[0])]++
		consumed[id(j[1])]++
	}
	for _, group := range output {
		for _, r := range group {
			if consumed[id(r)] > 0 {
				return nil, errors.Wrapf(ErrDanglingIndex, "output label %s in more than one output group", name(r))
			}
			consumed[id(r)]++
		}
	}
	for g, n := range consumed {
		if n == 0 {
			return nil, errors.Wrapf(ErrDanglingIndex, "label %s of operand %d", name(refOf(g)), refOf(g).operand)
		}
	}

	// slots[i] lists the global axis ids currently held by operand slot i.
	slots := make([][]int, len(opRanks))
	dead := make([]bool, len(opRanks))
	owner := make([]int, offsets[len(opRanks)])
	for i, r := range opRanks {
		slots[i] = make([]int, 0, r)
		for ax := range r {
			slots[i] = append(slots[i], offsets[i]+ax)
			owner[offsets[i]+ax] = i
		}
	}
	alive := len(opRanks)

	pending := make([][2]int, 0, len(joins))
	for _, j := range joins {
		pending = append(pending, [2]int{id(j[0]), id(j[1])})
	}

	p := &Plan{ranks: slices.Clone(opRanks)}
	for alive > 1 {
		if len(pending) > 0 {
			a, b := owner[pending[0][0]], owner[pending[0][1]]
			if a > b {
				a, b = b, a
			}

			s := step{kind: pairwise, a: a, b: b}
			rest := pending[:0:0]
			for _, j := range pending {
				switch {
				case owner[j[0]] == a && owner[j[1]] == b:
					s.axesA = append(s.axesA, slices.Index(slots[a], j[0]))
					s.axesB = append(s.axesB, slices.Index(slots[b], j[1]))
				case owner[j[0]] == b && owner[j[1]] == a:
					s.axesA = append(s.axesA, slices.Index(slots[a], j[1]))
					s.axesB = append(s.axesB, slices.Index(slots[b], j[0]))
				default:
					rest = append(rest, j)
				}
			}
			pending = rest

			merged := make([]int, 0, len(slots[a])+len(slots[b])-2*len(s.axesA))
			for ax, g := range slots[a] {
				if !slices.Contains(s.axesA, ax) {
					merged = append(merged, g)
				}
			}
			for ax, g := range slots[b] {
				if !slices.Contains(s.axesB, ax) {
					merged = append(merged, g)
				}
			}
			p.steps = append(p.steps, s)
			absorb(slots, dead, owner, a, b, merged)
			alive--
			continue
		}

		// No joins remain, so fold the last operand into the first by an outer product.
		a := slices.Index(dead, false)
		b := len(slots) - 1
		for dead[b] {
			b--
		}
		kind := outer
		if len(slots[b]) == 0 {
			kind = scale
		}
		p.steps = append(p.steps, step{kind: kind, a: a, b: b})
		absorb(slots, dead, owner, a, b, append(slices.Clone(slots[a]), slots[b]...))
		alive--
	}

	final := slots[slices.Index(dead, false)]
	for _, group := range output {
		for _, r := range group {
			p.perm = append(p.perm, slices.Index(final, id(r)))
		}
		p.groups = append(p.groups, len(group))
	}
	for _, group := range output {
		names := make([]string, 0, len(group))
		for _, r := range group {
			names = append(names, name(r))
		}
		p.outNames = append(p.outNames, names)
	}
	return p, nil
}

func absorb(slots [][]int, dead []bool, owner []int, a, b int, merged []int) {
	slots[a] = merged
	slots[b] = nil
	dead[b] = true
	for _, g := range merged {
		owner[g] = a
	}
}

func ranks[L any](operands [][]L) []int {
	r := make([]int, 0, len(operands))
	for _, labels := range operands {
		r = append(r, len(labels))
	}
	return r
}
