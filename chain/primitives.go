package chain

import (
	"github.com/fumin/dmrg/contract"
)

// Labels used by the boundary contractions.
// The prefixes b, o and k denote the conjugated state (bra), the operator and the state (ket),
// and the suffixes l, r and p denote the left, right and physical axes.
var (
	// absorbLeftExpectation contracts a site into the left boundary L.
	//
	//	/-bl--B*--br
	//	|     |
	//	|     bp
	//	|     |
	//	L-ol--W---or
	//	|     |
	//	|     kp
	//	|     |
	//	\-kl--K---kr
	absorbLeftExpectation = contract.MustCompile([][]string{
		{"bl", "ol", "kl"},
		{"bp", "bl", "br"},
		{"bp", "kp", "ol", "or"},
		{"kp", "kl", "kr"},
	}, [][]string{{"br"}, {"or"}, {"kr"}})

	// absorbRightExpectation contracts a site into the right boundary R.
	//
	//	bl--B*--br-\
	//	    |      |
	//	    bp     |
	//	    |      |
	//	ol--W---or-R
	//	    |      |
	//	    kp     |
	//	    |      |
	//	kl--K---kr-/
	absorbRightExpectation = contract.MustCompile([][]string{
		{"br", "or", "kr"},
		{"bp", "bl", "br"},
		{"bp", "kp", "ol", "or"},
		{"kp", "kl", "kr"},
	}, [][]string{{"bl"}, {"ol"}, {"kl"}})

	// absorbLeftOverlap contracts a site into the left boundary L of an overlap.
	//
	//	/-bl--B*--br
	//	|     |
	//	L     p
	//	|     |
	//	\-kl--K---kr
	absorbLeftOverlap = contract.MustCompile([][]string{
		{"bl", "kl"},
		{"p", "bl", "br"},
		{"p", "kl", "kr"},
	}, [][]string{{"br"}, {"kr"}})

	// absorbRightOverlap contracts a site into the right boundary R of an overlap.
	absorbRightOverlap = contract.MustCompile([][]string{
		{"br", "kr"},
		{"p", "bl", "br"},
		{"p", "kl", "kr"},
	}, [][]string{{"bl"}, {"kl"}})

	// partialExpectation applies the local effective operator to a site tensor,
	// leaving the bra axes open.
	//
	//	/-bl-   -br-\
	//	|     |     |
	//	|     bp    |
	//	|     |     |
	//	L-ol--W--or-R
	//	|     |     |
	//	|     kp    |
	//	|     |     |
	//	\-kl--K--kr-/
	partialExpectation = contract.MustCompile([][]string{
		{"kp", "kl", "kr"},
		{"bp", "kp", "ol", "or"},
		{"bl", "ol", "kl"},
		{"br", "or", "kr"},
	}, [][]string{{"bp"}, {"bl"}, {"br"}})

	// partialOverlap is partialExpectation without an operator.
	partialOverlap = contract.MustCompile([][]string{
		{"p", "kl", "kr"},
		{"bl", "kl"},
		{"br", "kr"},
	}, [][]string{{"p"}, {"bl"}, {"br"}})

	// optimizationMatrix is the dense local effective operator, rows indexed by the bra and columns by the ket.
	optimizationMatrix = contract.MustCompile([][]string{
		{"bp", "kp", "ol", "or"},
		{"bl", "ol", "kl"},
		{"br", "or", "kr"},
	}, [][]string{{"bp", "bl", "br"}, {"kp", "kl", "kr"}})

	// inner is the unconjugated inner product of two site tensors.
	inner = contract.MustCompile([][]string{
		{"p", "l", "r"},
		{"p", "l", "r"},
	}, [][]string{})
)
