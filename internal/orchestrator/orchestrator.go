// Package orchestrator runs the generate, contaminate, detect and publish
// cycle over all active missions.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/publish"
	"fieldops-sim/internal/store"
	"fieldops-sim/internal/trajectory"
)

// Cycle statuses published per mission as the pipeline advances.
const (
	StatusTrajectoryGenerated      = "TRAJECTORY_GENERATED"
	StatusGenerationFailed         = "GENERATION_FAILED"
	StatusAnomalyInjected          = "ANOMALY_INJECTED"
	StatusNoAnomalyInjected        = "NO_ANOMALY_INJECTED"
	StatusNoTrajectoryForDetection = "NO_TRAJECTORY_FOR_DETECTION"
	StatusAnomalyDetected          = "ANOMALY_DETECTED"
	StatusNoAnomalyDetected        = "NO_ANOMALY_DETECTED"
	StatusTrajectorySent           = "TRAJECTORY_SENT"
	StatusError                    = "ERROR"
)

// Detector scores a stored trajectory. Satisfied by *detect.Detector.
type Detector interface {
	Detect(ctx context.Context, points []trajectory.Point) []detect.Score
}

// Status is a snapshot of the orchestrator for the admin surface.
type Status struct {
	Running   bool      `json:"running"`
	Cycles    int       `json:"cycles"`
	LastCycle time.Time `json:"last_cycle"`
	LastError string    `json:"last_error,omitempty"`
}

// CycleSummary reports one completed cycle.
type CycleSummary struct {
	Missions  int
	Injected  int
	Detected  int
	StartedAt time.Time
	Duration  time.Duration
}

// Orchestrator drives the pipeline: read active missions, generate and
// persist trajectories, contaminate some of them, detect anomalies on what
// was actually stored, and publish the results.
type Orchestrator struct {
	cfg       *config.SimulationConfig
	store     store.Store
	publisher publish.Publisher
	generator *trajectory.Generator
	injector  *anomaly.Injector
	injectCfg anomaly.Config
	detector  Detector

	now     func() time.Time
	trigger chan struct{}

	mu     sync.Mutex
	status Status
}

// New assembles an orchestrator from its collaborators.
func New(
	cfg *config.SimulationConfig,
	st store.Store,
	pub publish.Publisher,
	gen *trajectory.Generator,
	inj *anomaly.Injector,
	injectCfg anomaly.Config,
	det Detector,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		publisher: pub,
		generator: gen,
		injector:  inj,
		injectCfg: injectCfg,
		detector:  det,
		now:       time.Now,
		trigger:   make(chan struct{}, 1),
	}
}

// Run executes cycles until the context is canceled: one immediately, then
// one per configured interval, plus any manually triggered runs.
func (o *Orchestrator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)

	o.mu.Lock()
	o.status.Running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.status.Running = false
		o.mu.Unlock()
	}()

	o.runCycle(ctx)

	ticker := time.NewTicker(o.cfg.CycleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("orchestrator stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			o.runCycle(ctx)
		case <-o.trigger:
			o.runCycle(ctx)
		}
	}
}

// TriggerOnce requests an extra cycle from a running orchestrator without
// blocking. A request is dropped when one is already pending.
func (o *Orchestrator) TriggerOnce() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Status returns the current snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	summary, err := o.Cycle(ctx)

	o.mu.Lock()
	o.status.Cycles++
	o.status.LastCycle = summary.StartedAt
	if err != nil {
		o.status.LastError = err.Error()
	} else {
		o.status.LastError = ""
	}
	o.mu.Unlock()
}

// Cycle runs one full pass over the active missions. Per-mission failures
// are reported as ERROR status and do not stop the pass; only failures that
// make the whole pass impossible are returned.
func (o *Orchestrator) Cycle(ctx context.Context) (CycleSummary, error) {
	log := logging.FromContext(ctx)
	summary := CycleSummary{StartedAt: o.now()}

	if err := o.publisher.Connect(ctx); err != nil {
		return summary, fmt.Errorf("connecting publisher: %w", err)
	}
	defer o.publisher.Disconnect(ctx)

	if err := o.publisher.Publish(ctx, publish.HeartbeatMessage(o.cfg.DeviceID, o.now())); err != nil {
		log.Warn("heartbeat publish failed", "err", err)
	}

	missions, err := o.store.ActiveMissions(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading active missions: %w", err)
	}
	log.Info("cycle started", "missions", len(missions))

	for i, m := range missions {
		if i > 0 && !o.sleep(ctx, o.cfg.MissionDelay()) {
			break
		}

		injected, detected, err := o.processMission(ctx, m)
		if err != nil {
			log.Error("mission pipeline failed", "mission_id", m.ID, "err", err)
			o.publishStatus(ctx, m.ID, StatusError, err.Error())
			continue
		}
		summary.Missions++
		if injected {
			summary.Injected++
		}
		if detected {
			summary.Detected++
		}
	}

	summary.Duration = o.now().Sub(summary.StartedAt)
	log.Info("cycle finished",
		"missions", summary.Missions,
		"injected", summary.Injected,
		"detected", summary.Detected,
		"duration", summary.Duration)
	return summary, nil
}

func (o *Orchestrator) processMission(ctx context.Context, m mission.Mission) (injected, detected bool, err error) {
	log := logging.FromContext(ctx)

	points := o.generator.Generate(ctx, m)
	if len(points) == 0 {
		o.publishStatus(ctx, m.ID, StatusGenerationFailed, "no trajectory generated")
		return false, false, nil
	}
	if err := o.store.ReplaceTrajectory(ctx, m.ID, points); err != nil {
		return false, false, fmt.Errorf("persisting trajectory: %w", err)
	}
	o.publishStatus(ctx, m.ID, StatusTrajectoryGenerated, fmt.Sprintf("%d points", len(points)))

	modified, result := o.injector.Inject(ctx, points, m, o.injectCfg)
	if len(result.Injected) > 0 {
		if err := o.store.ReplaceTrajectory(ctx, m.ID, modified); err != nil {
			return false, false, fmt.Errorf("persisting contaminated trajectory: %w", err)
		}
		desc := "Trajectory contaminated with anomalies: " + joinKinds(result.Injected)
		if err := o.store.MarkContaminated(ctx, m.ID, desc); err != nil {
			return false, false, fmt.Errorf("marking contamination: %w", err)
		}
		injected = true
		o.publishStatus(ctx, m.ID, StatusAnomalyInjected, joinKinds(result.Injected))
	} else {
		o.publishStatus(ctx, m.ID, StatusNoAnomalyInjected, "")
	}

	// Detection runs on what is actually stored, not on the in-memory
	// slice, so storage problems surface here.
	stored, err := o.store.TrajectoryPoints(ctx, m.ID)
	if err != nil {
		return injected, false, fmt.Errorf("re-reading trajectory: %w", err)
	}
	if len(stored) == 0 {
		o.publishStatus(ctx, m.ID, StatusNoTrajectoryForDetection, "")
		return injected, false, nil
	}

	scores := o.detector.Detect(ctx, stored)
	if len(scores) > 0 {
		detected = true
		types := make([]string, 0, len(scores))
		for _, s := range scores {
			types = append(types, s.Type)
			rec := store.AnomalyRecord{
				MissionID:   m.ID,
				Kind:        s.Type,
				Description: fmt.Sprintf("severity=%s score=%.2f confidence=%.2f", s.Severity, s.Score, s.Confidence),
				DetectedAt:  s.DetectedAt,
			}
			if err := o.store.SaveAnomaly(ctx, rec); err != nil {
				log.Warn("anomaly record not saved", "mission_id", m.ID, "kind", s.Type, "err", err)
			}
		}
		o.publishStatus(ctx, m.ID, StatusAnomalyDetected, strings.Join(types, ", "))
	} else {
		o.publishStatus(ctx, m.ID, StatusNoAnomalyDetected, "")
	}

	for _, pt := range stored {
		if err := o.publisher.Publish(ctx, publish.PointMessage(o.cfg.DeviceID, pt)); err != nil {
			log.Warn("point publish failed", "mission_id", m.ID, "err", err)
		}
		if !o.sleep(ctx, o.cfg.PointDelay()) {
			return injected, detected, ctx.Err()
		}
	}
	o.publishStatus(ctx, m.ID, StatusTrajectorySent, fmt.Sprintf("%d points", len(stored)))

	return injected, detected, nil
}

func (o *Orchestrator) publishStatus(ctx context.Context, missionID int64, status, details string) {
	msg := publish.StatusMessage(o.cfg.DeviceID, missionID, status, details, o.now())
	if err := o.publisher.Publish(ctx, msg); err != nil {
		logging.FromContext(ctx).Warn("status publish failed",
			"mission_id", missionID, "status", status, "err", err)
	}
}

// sleep waits for d or until the context is canceled, reporting whether the
// full wait elapsed. A non-positive duration returns immediately.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func joinKinds(kinds []anomaly.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
