// Command dmrg searches for ground states of the transverse field Ising chain.
package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dmrg",
	Short: "Matrix product state ground state search",
	Long: `dmrg runs density matrix renormalization group sweeps on the transverse field Ising chain,
optionally checking the result against exact diagonalization and logging runs to sqlite.`,
	SilenceUsage: true,
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	return rootCmd.ExecuteContext(context.Background())
}
