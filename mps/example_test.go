package mps_test

import (
	"fmt"
	"log"

	"github.com/fumin/dmrg/mps"
)

func Example() {
	// Create an Ising chain of length n and transverse field strength h.
	const n = 4
	const h = 0.031623
	mpo := mps.Ising(n, h)

	// Search for the ground state.
	const bondDim = 2
	state := mps.RandMPS(mpo, bondDim)
	res, err := mps.SearchGroundState(mpo, state)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	// Compute expectation values of the ground state.
	norm2, err := mps.InnerProduct(state, state) // <state|state>
	if err != nil {
		log.Fatalf("%+v", err)
	}
	e0, err := mps.Expectation(mpo, state) // <state|H|state>
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("Ground energy %.4f\n", real(e0)/real(norm2))
	fmt.Printf("Search energy %.4f\n", res.Energy)

	// Output:
	// Ground energy -3.0015
	// Search energy -3.0015
}
