package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fieldops-sim",
	Short: "Mission trajectory pipeline",
	Long:  "fieldops-sim generates GPS trajectories for active missions, contaminates a fraction of them with anomalies, and detects anomalies on the stored data.",
}

// Execute runs the root command.
func Execute() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(watchCmd)
}
