package main

import (
	"github.com/spf13/cobra"

	"fieldops-sim/internal/watch"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a running pipeline from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch.Run(watchAddr)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "http://localhost:8080", "Admin base URL of the running pipeline")
}
