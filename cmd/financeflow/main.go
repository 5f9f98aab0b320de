package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "financeflow",
		Short:         "Aggregates financial news and annotates it for investors",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default $FINANCEFLOW_CONFIG)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(refreshCmd(&configPath))
	return root
}
