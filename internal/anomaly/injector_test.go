package anomaly

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func testMission(n int) (mission.Mission, []trajectory.Point) {
	m := mission.Mission{ID: 1, Start: testStart, End: testStart.Add(2 * time.Hour)}
	points := make([]trajectory.Point, 0, n)
	interval := 2 * time.Hour / time.Duration(n)
	for i := 0; i < n; i++ {
		points = append(points, trajectory.Point{
			MissionID: 1,
			Timestamp: testStart.Add(time.Duration(i) * interval),
			Latitude:  33.5 + float64(i)*0.01,
			Longitude: -7.5 + float64(i)*0.01,
			SpeedKmh:  50,
		})
	}
	return m, points
}

// onlyKind returns a config that injects exactly the given kind.
func onlyKind(k Kind, rule Rule) Config {
	cfg := DefaultConfig().WithInjectionProbability(1)
	for _, other := range Kinds() {
		if r, ok := cfg.Rule(other); ok {
			r.Probability = 0
			cfg = cfg.WithRule(other, r)
		}
	}
	rule.Probability = 1
	if rule.SeverityHigh <= rule.SeverityLow {
		rule.SeverityLow, rule.SeverityHigh = 0.2, 0.8
	}
	return cfg.WithRule(k, rule)
}

func TestInjectGateClosed(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(1)))
	m, points := testMission(30)
	cfg := DefaultConfig().WithInjectionProbability(0)

	out, result := in.Inject(context.Background(), points, m, cfg)

	if len(result.Injected) != 0 {
		t.Fatalf("expected no injections, got %v", result.Injected)
	}
	if len(out) != len(points) {
		t.Fatalf("trajectory changed despite closed gate: %d vs %d", len(out), len(points))
	}
	for i := range out {
		if out[i] != points[i] {
			t.Fatalf("point %d modified despite closed gate", i)
		}
	}
}

func TestInjectAbnormalSpeed(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(7)))
	m, points := testMission(10)

	cfg := onlyKind(KindAbnormalSpeed, Rule{
		Parameters: map[string]Range{
			"speed_factor": {2.0, 2.0},
			"duration_min": {600, 600}, // window always runs to the end
		},
	})

	out, result := in.Inject(context.Background(), points, m, cfg)

	if len(result.Injected) != 1 || result.Injected[0] != KindAbnormalSpeed {
		t.Fatalf("expected ABNORMAL_SPEED injection, got %v", result.Injected)
	}
	doubled := 0
	for i, p := range out {
		if p.SpeedKmh != 50 && p.SpeedKmh != 100 {
			t.Errorf("point %d has unexpected speed %f", i, p.SpeedKmh)
		}
		if p.SpeedKmh == 100 {
			doubled++
		}
	}
	if doubled == 0 {
		t.Error("no speeds were modified")
	}
}

func TestInjectAbnormalSpeedClamped(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(7)))
	m, points := testMission(10)
	for i := range points {
		points[i].SpeedKmh = 120
	}

	cfg := onlyKind(KindAbnormalSpeed, Rule{
		Parameters: map[string]Range{
			"speed_factor": {2.5, 2.5},
			"duration_min": {600, 600},
		},
	})

	out, _ := in.Inject(context.Background(), points, m, cfg)
	for i, p := range out {
		if p.SpeedKmh < 0 || p.SpeedKmh > 150 {
			t.Errorf("point %d speed %f outside [0,150]", i, p.SpeedKmh)
		}
	}
}

func TestInjectEarlyReturn(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(3)))
	m, points := testMission(30)

	cfg := onlyKind(KindEarlyReturn, Rule{
		Parameters: map[string]Range{
			"early_return_ratio": {0.5, 0.5},
			"detour_distance_km": {5, 15},
		},
	})

	out, result := in.Inject(context.Background(), points, m, cfg)

	if len(result.Injected) != 1 {
		t.Fatalf("expected injection, got %v", result.Injected)
	}
	last := out[len(out)-1].Timestamp
	if last.After(m.End) {
		t.Errorf("return leg ends at %v, after mission end %v", last, m.End)
	}
	// The head of the trajectory survives untouched.
	for i := 0; i < 15; i++ {
		if out[i] != points[i] {
			t.Fatalf("point %d before cutoff modified", i)
		}
	}
}

func TestInjectUnauthorizedStop(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(5)))
	m, points := testMission(20)

	cfg := onlyKind(KindUnauthorizedStop, Rule{
		Parameters: map[string]Range{
			"stop_duration_min": {30, 30},
			"stop_frequency":    {1, 1},
		},
	})

	out, _ := in.Inject(context.Background(), points, m, cfg)

	if len(out) <= len(points) {
		t.Fatalf("expected inserted stop points, got %d <= %d", len(out), len(points))
	}
	stops := 0
	for _, p := range out {
		if p.SpeedKmh < 2 {
			stops++
		}
	}
	if stops < 3 {
		t.Errorf("expected at least 3 near-zero-speed points, got %d", stops)
	}
}

func TestInjectOutOfHours(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(9)))
	m, points := testMission(20)

	cfg := onlyKind(KindOutOfHours, Rule{
		Parameters: map[string]Range{
			"early_start_hours": {2, 2},
			"late_end_hours":    {2, 2},
		},
	})

	out, _ := in.Inject(context.Background(), points, m, cfg)

	var before, after bool
	for _, p := range out {
		if p.Timestamp.Before(m.Start) {
			before = true
		}
		if p.Timestamp.After(m.End) {
			after = true
		}
	}
	if !before {
		t.Error("expected at least one point before mission start")
	}
	if !after {
		t.Error("expected at least one point after mission end")
	}
}

func TestInjectPreconditionSkips(t *testing.T) {
	in := NewInjector(rand.New(rand.NewSource(1)))
	m, points := testMission(4) // too short for early return (needs 10)

	cfg := onlyKind(KindEarlyReturn, Rule{
		Parameters: map[string]Range{"early_return_ratio": {0.5, 0.5}},
	})

	out, result := in.Inject(context.Background(), points, m, cfg)

	if len(result.Injected) != 0 {
		t.Fatalf("expected no injection on short trajectory, got %v", result.Injected)
	}
	if len(out) != len(points) {
		t.Fatalf("trajectory length changed: %d", len(out))
	}
}

func TestConfigImmutability(t *testing.T) {
	base := DefaultConfig()
	origRule, _ := base.Rule(KindAbnormalSpeed)

	changed := base.WithRule(KindAbnormalSpeed, Rule{Probability: 1, SeverityLow: 0.1, SeverityHigh: 0.9})

	afterRule, _ := base.Rule(KindAbnormalSpeed)
	if afterRule.Probability != origRule.Probability {
		t.Error("WithRule mutated the original config")
	}
	newRule, _ := changed.Rule(KindAbnormalSpeed)
	if newRule.Probability != 1 {
		t.Error("WithRule did not apply to the copy")
	}
}
