package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/orchestrator"
	"fieldops-sim/internal/store"
	"fieldops-sim/internal/trajectory"
)

var (
	oncePrintOnly  bool
	onceConfigPath string
	onceSchemaPath string
	onceLogFile    string
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single pipeline cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		ctx := logging.NewContext(context.Background(), log)

		cfg, err := config.Load(onceConfigPath, onceSchemaPath)
		if err != nil {
			return err
		}
		if err := applyEnvOverrides(cfg); err != nil {
			return err
		}

		st, closeStore, err := newStore(ctx, oncePrintOnly)
		if err != nil {
			return err
		}
		defer closeStore()

		pub := newPublisher(oncePrintOnly, onceLogFile)

		injectCfg, err := anomaly.FromSimulation(cfg)
		if err != nil {
			return err
		}

		detector := detect.NewDetector(cfg.Detector, st, store.NewDirArtifacts(cfg.Detector.ArtifactsDir))
		detector.LoadArtifacts(ctx)

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		orch := orchestrator.New(
			cfg,
			st,
			pub,
			trajectory.NewGenerator(cfg, rng),
			anomaly.NewInjector(rng),
			injectCfg,
			detector,
		)

		summary, err := orch.Cycle(ctx)
		if err != nil {
			return err
		}
		log.Info("cycle complete",
			"missions", summary.Missions,
			"injected", summary.Injected,
			"detected", summary.Detected,
			"duration", summary.Duration)
		return nil
	},
}

func init() {
	onceCmd.Flags().BoolVar(&oncePrintOnly, "print-only", false, "Print messages to STDOUT instead of external sinks")
	onceCmd.Flags().StringVar(&onceConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	onceCmd.Flags().StringVar(&onceSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	onceCmd.Flags().StringVar(&onceLogFile, "log-file", "", "Path to export published messages (JSONL)")
}
