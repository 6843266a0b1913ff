package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global flag values.
var (
	flagConfig string
)

// cfg is loaded by PersistentPreRunE so every subcommand sees the same view.
var cfg *viper.Viper

var rootCmd = &cobra.Command{
	Use:     "qkernel",
	Short:   "qkernel simulates entanglement purification between quantum network nodes",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig(flagConfig)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		cfg = v
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./qkernel.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(purifyCmd)
	rootCmd.AddCommand(bellCmd)
}
