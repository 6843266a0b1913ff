package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theapemachine/qkernel"
)

var bellCmd = &cobra.Command{
	Use:   "bell",
	Short: "Prepare a Bell pair in a state store and print its composite state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := qkernel.NewStateStore()

		a, err := store.New()
		if err != nil {
			return err
		}
		b, err := store.New()
		if err != nil {
			return err
		}

		if err := store.RunCircuit(qkernel.BellCircuit(), []qkernel.Key{a, b}); err != nil {
			return err
		}

		state, err := store.Get(a)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, state)
		for i, p := range state.Probabilities() {
			fmt.Fprintf(out, "|%02b⟩ %.4f\n", i, p)
		}
		return nil
	},
}
