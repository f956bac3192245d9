package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/store"
)

var (
	trainConfigPath string
	trainSchemaPath string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the anomaly detection model on stored mission history",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		ctx := logging.NewContext(context.Background(), log)

		cfg, err := config.Load(trainConfigPath, trainSchemaPath)
		if err != nil {
			return err
		}

		st, closeStore, err := newStore(ctx, false)
		if err != nil {
			return err
		}
		defer closeStore()

		detector := detect.NewDetector(cfg.Detector, st, store.NewDirArtifacts(cfg.Detector.ArtifactsDir))
		trained, err := detector.Train(ctx)
		if err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
		if !trained {
			return fmt.Errorf("not enough mission history to train on")
		}
		log.Info("model artifacts written", "dir", cfg.Detector.ArtifactsDir)
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	trainCmd.Flags().StringVar(&trainSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
}
