package contract

import (
	"github.com/pkg/errors"
)

var (
	// ErrAmbiguousJoin is returned when a label is shared by more than two operands.
	ErrAmbiguousJoin = errors.New("contract: ambiguous join")
	// ErrDanglingIndex is returned when a label is neither joined nor part of exactly one output group.
	ErrDanglingIndex = errors.New("contract: dangling index")
	// ErrInvalidSpec is returned for other malformed specifications,
	// such as unknown output labels.
	ErrInvalidSpec = errors.New("contract: invalid specification")
	// ErrShapeMismatch is returned by Plan.Contract when the arrays disagree with the compiled structure.
	ErrShapeMismatch = errors.New("contract: shape mismatch")
)
