package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/publish"
	"fieldops-sim/internal/store"
)

// newStore picks the persistence backend. Without DATABASE_URL (or in
// print-only mode) an in-memory store seeded with one demo mission is used
// so the pipeline has something to process.
func newStore(ctx context.Context, printOnly bool) (store.Store, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if printOnly || dsn == "" {
		mem := store.NewMemory()
		start := time.Now()
		mem.AddMission(mission.Mission{
			ID:      1,
			Subject: "demo patrol",
			Status:  mission.StatusInProgress,
			Start:   start,
			End:     start.Add(2 * time.Hour),
		})
		return mem, func() {}, nil
	}

	pg, err := store.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pg, pg.Close, nil
}

// newPublisher assembles the sink stack from flags and environment:
// MQTT when a broker is configured, an optional GreptimeDB mirror, an
// optional JSONL log file, and STDOUT as the print-only fallback.
func newPublisher(printOnly bool, logFile string) publish.Publisher {
	var sinks []publish.Publisher

	brokerURL := os.Getenv("MQTT_BROKER_URL")
	if !printOnly && brokerURL != "" {
		topic := os.Getenv("MQTT_TOPIC")
		if topic == "" {
			topic = "fieldops/tracker"
		}
		clientID := "fieldops-sim-" + uuid.NewString()[:8]
		sinks = append(sinks, publish.NewMQTT(brokerURL, clientID, topic))
	} else {
		sinks = append(sinks, publish.NewStdout(os.Stdout))
	}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); !printOnly && endpoint != "" {
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = "public"
		}
		sinks = append(sinks, publish.NewGreptime(endpoint, db))
	}

	if logFile != "" {
		sinks = append(sinks, publish.NewFile(logFile))
	}

	if len(sinks) == 1 {
		return sinks[0]
	}
	return publish.NewMulti(sinks...)
}

// applyEnvOverrides lets deployment environment tune the loaded config.
func applyEnvOverrides(cfg *config.SimulationConfig) error {
	if v := os.Getenv("CYCLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CYCLE_INTERVAL: %w", err)
		}
		cfg.CycleIntervalSec = int(d.Seconds())
	}
	if v := os.Getenv("DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	return nil
}
