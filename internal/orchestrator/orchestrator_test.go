package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/publish"
	"fieldops-sim/internal/store"
	"fieldops-sim/internal/trajectory"
)

type capturePublisher struct {
	connected bool
	messages  []publish.Message
}

func (c *capturePublisher) Connect(_ context.Context) error {
	c.connected = true
	return nil
}

func (c *capturePublisher) Publish(_ context.Context, msg publish.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturePublisher) Disconnect(_ context.Context) error {
	c.connected = false
	return nil
}

func (c *capturePublisher) statuses() []string {
	var out []string
	for _, m := range c.messages {
		if m.MessageType == publish.TypeMissionStatus {
			out = append(out, m.Status)
		}
	}
	return out
}

func (c *capturePublisher) pointCount() int {
	n := 0
	for _, m := range c.messages {
		if m.MessageType == publish.TypeTrajectoryPoint {
			n++
		}
	}
	return n
}

type fakeDetector struct {
	scores []detect.Score
}

func (f *fakeDetector) Detect(_ context.Context, _ []trajectory.Point) []detect.Score {
	return f.scores
}

type failingStore struct {
	store.Store
}

func (f *failingStore) ReplaceTrajectory(_ context.Context, _ int64, _ []trajectory.Point) error {
	return errors.New("disk full")
}

func testConfig() *config.SimulationConfig {
	cfg := config.Default()
	cfg.MissionDelaySec = 0.001
	cfg.PointDelayMs = 1
	cfg.DeviceID = "tracker-test"
	return cfg
}

func testOrchestrator(cfg *config.SimulationConfig, st store.Store, pub publish.Publisher, injectCfg anomaly.Config, det Detector) *Orchestrator {
	gen := trajectory.NewGenerator(cfg, rand.New(rand.NewSource(11)))
	inj := anomaly.NewInjector(rand.New(rand.NewSource(12)))
	return New(cfg, st, pub, gen, inj, injectCfg, det)
}

func activeMission() mission.Mission {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return mission.Mission{
		ID:      1,
		Subject: "border patrol",
		Status:  mission.StatusInProgress,
		Start:   start,
		End:     start.Add(2 * time.Hour),
	}
}

func TestCycleNoMissions(t *testing.T) {
	pub := &capturePublisher{}
	o := testOrchestrator(testConfig(), store.NewMemory(), pub,
		anomaly.DefaultConfig().WithInjectionProbability(0), &fakeDetector{})

	summary, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Missions != 0 {
		t.Errorf("expected no missions processed, got %d", summary.Missions)
	}
	if got := pub.statuses(); len(got) != 0 {
		t.Errorf("no mission statuses expected, got %v", got)
	}
	if pub.pointCount() != 0 {
		t.Error("no points expected")
	}
	// Heartbeat still goes out on an empty cycle.
	if len(pub.messages) != 1 || pub.messages[0].MessageType != publish.TypeHeartbeat {
		t.Errorf("expected exactly one heartbeat, got %+v", pub.messages)
	}
	if pub.connected {
		t.Error("publisher still connected after cycle")
	}
}

func TestCycleFullPass(t *testing.T) {
	st := store.NewMemory()
	st.AddMission(activeMission())
	pub := &capturePublisher{}
	det := &fakeDetector{scores: []detect.Score{{
		Type:       detect.TypeExcessiveSpeed,
		Score:      0.9,
		Confidence: 0.9,
		Severity:   detect.SeverityHigh,
		DetectedAt: time.Now(),
	}}}

	o := testOrchestrator(testConfig(), st, pub,
		anomaly.DefaultConfig().WithInjectionProbability(0), det)

	summary, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Missions != 1 || summary.Injected != 0 || summary.Detected != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	want := []string{
		StatusTrajectoryGenerated,
		StatusNoAnomalyInjected,
		StatusAnomalyDetected,
		StatusTrajectorySent,
	}
	got := pub.statuses()
	if len(got) != len(want) {
		t.Fatalf("status sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status sequence %v, want %v", got, want)
		}
	}

	stored, _ := st.TrajectoryPoints(context.Background(), 1)
	if len(stored) < 20 || len(stored) > 50 {
		t.Fatalf("stored trajectory has %d points", len(stored))
	}
	if pub.pointCount() != len(stored) {
		t.Errorf("published %d points, stored %d", pub.pointCount(), len(stored))
	}

	recs := st.Anomalies()
	if len(recs) != 1 || recs[0].Kind != detect.TypeExcessiveSpeed {
		t.Errorf("unexpected anomaly records %+v", recs)
	}
}

func TestCycleInjectionMarksContamination(t *testing.T) {
	st := store.NewMemory()
	st.AddMission(activeMission())
	pub := &capturePublisher{}

	// Force exactly the abnormal speed transform.
	injectCfg := anomaly.DefaultConfig().WithInjectionProbability(1)
	for _, k := range anomaly.Kinds() {
		r, _ := injectCfg.Rule(k)
		if k == anomaly.KindAbnormalSpeed {
			r.Probability = 1
		} else {
			r.Probability = 0
		}
		injectCfg = injectCfg.WithRule(k, r)
	}

	o := testOrchestrator(testConfig(), st, pub, injectCfg, &fakeDetector{})

	summary, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Injected != 1 {
		t.Fatalf("expected one contaminated mission, got %+v", summary)
	}

	ids, _ := st.ContaminatedMissionIDs(context.Background())
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("contamination flag missing: %v", ids)
	}

	var sawInjected bool
	for _, s := range pub.statuses() {
		if s == StatusAnomalyInjected {
			sawInjected = true
		}
	}
	if !sawInjected {
		t.Error("ANOMALY_INJECTED status not published")
	}
}

func TestCycleMissionErrorContinues(t *testing.T) {
	st := &failingStore{Store: store.NewMemory()}
	st.Store.(*store.Memory).AddMission(activeMission())
	pub := &capturePublisher{}

	o := testOrchestrator(testConfig(), st, pub,
		anomaly.DefaultConfig().WithInjectionProbability(0), &fakeDetector{})

	summary, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatalf("per-mission failure must not fail the cycle: %v", err)
	}
	if summary.Missions != 0 {
		t.Errorf("failed mission counted as processed: %+v", summary)
	}

	statuses := pub.statuses()
	if len(statuses) == 0 || statuses[len(statuses)-1] != StatusError {
		t.Fatalf("expected trailing ERROR status, got %v", statuses)
	}
}

func TestRunCycleUpdatesStatus(t *testing.T) {
	pub := &capturePublisher{}
	o := testOrchestrator(testConfig(), store.NewMemory(), pub,
		anomaly.DefaultConfig().WithInjectionProbability(0), &fakeDetector{})

	o.runCycle(context.Background())

	status := o.Status()
	if status.Cycles != 1 {
		t.Errorf("expected one cycle, got %d", status.Cycles)
	}
	if status.LastError != "" {
		t.Errorf("unexpected error %q", status.LastError)
	}
	if status.LastCycle.IsZero() {
		t.Error("last cycle time not recorded")
	}
}

func TestTriggerOnceNonBlocking(t *testing.T) {
	pub := &capturePublisher{}
	o := testOrchestrator(testConfig(), store.NewMemory(), pub,
		anomaly.DefaultConfig().WithInjectionProbability(0), &fakeDetector{})

	// Must not block even when nothing is draining the channel.
	o.TriggerOnce()
	o.TriggerOnce()
	o.TriggerOnce()
}
