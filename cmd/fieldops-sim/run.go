package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fieldops-sim/internal/admin"
	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/orchestrator"
	"fieldops-sim/internal/store"
	"fieldops-sim/internal/trajectory"
)

var (
	runPrintOnly  bool
	runConfigPath string
	runSchemaPath string
	runLogFile    string
	runAdminAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mission pipeline continuously",
	Long:  "run starts the periodic cycle over active missions and serves the admin UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), log))
		defer cancel()

		cfg, err := config.Load(runConfigPath, runSchemaPath)
		if err != nil {
			return err
		}
		if err := applyEnvOverrides(cfg); err != nil {
			return err
		}

		st, closeStore, err := newStore(ctx, runPrintOnly)
		if err != nil {
			return err
		}
		defer closeStore()

		pub := newPublisher(runPrintOnly, runLogFile)

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

		srv := admin.NewServer(orch, cfg, st)
		go func() {
			log.Info("admin UI listening", "addr", runAdminAddr)
			if err := srv.Start(runAdminAddr); err != nil {
				log.Error("admin server failed", "err", err)
				os.Exit(1)
			}
		}()

		go orch.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		log.Info("pipeline stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runPrintOnly, "print-only", false, "Print messages to STDOUT instead of external sinks")
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Path to export published messages (JSONL)")
	runCmd.Flags().StringVar(&runAdminAddr, "admin-addr", ":8080", "Admin UI listen address")
}
