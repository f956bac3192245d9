package trajectory

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/mission"
)

func newTestGenerator(seed int64) (*Generator, *config.SimulationConfig) {
	cfg := config.Default()
	return NewGenerator(cfg, rand.New(rand.NewSource(seed))), cfg
}

func TestGenerateTwoHourMission(t *testing.T) {
	gen, cfg := newTestGenerator(1)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := mission.Mission{ID: 7, Start: start, End: start.Add(2 * time.Hour)}

	points := gen.Generate(context.Background(), m)

	if len(points) < 20 || len(points) > 50 {
		t.Fatalf("expected 20-50 points, got %d", len(points))
	}
	if !points[0].Timestamp.Equal(start) {
		t.Errorf("first timestamp %v, want %v", points[0].Timestamp, start)
	}
	last := points[len(points)-1].Timestamp
	if last.After(m.End) {
		t.Errorf("last timestamp %v exceeds mission end %v", last, m.End)
	}

	bounds := cfg.Bounds.Geo()
	var prev time.Time
	for i, p := range points {
		if p.MissionID != 7 {
			t.Fatalf("point %d has mission id %d", i, p.MissionID)
		}
		if i > 0 && !p.Timestamp.After(prev) {
			t.Fatalf("timestamps not strictly increasing at %d: %v <= %v", i, p.Timestamp, prev)
		}
		prev = p.Timestamp
		if !bounds.Contains(p.Latitude, p.Longitude) {
			t.Errorf("point %d outside bounding box: (%f,%f)", i, p.Latitude, p.Longitude)
		}
		if p.SpeedKmh < 0 || p.SpeedKmh > 80 {
			t.Errorf("point %d speed out of band: %f", i, p.SpeedKmh)
		}
	}
}

func TestGenerateUsesPredefinedRoute(t *testing.T) {
	gen, _ := newTestGenerator(2)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := mission.Mission{
		ID:              3,
		Start:           start,
		End:             start.Add(time.Hour),
		PredefinedRoute: `[{"latitude":33.57,"longitude":-7.58},{"latitude":33.60,"longitude":-7.50}]`,
	}

	points := gen.Generate(context.Background(), m)

	// Samples jitter at most 0.005 degrees around route waypoints.
	for i, p := range points {
		nearFirst := abs(p.Latitude-33.57) <= 0.006 && abs(p.Longitude+7.58) <= 0.006
		nearSecond := abs(p.Latitude-33.60) <= 0.006 && abs(p.Longitude+7.50) <= 0.006
		if !nearFirst && !nearSecond {
			t.Errorf("point %d strayed from predefined route: (%f,%f)", i, p.Latitude, p.Longitude)
		}
	}
}

func TestGenerateInvalidWindowFallback(t *testing.T) {
	gen, _ := newTestGenerator(3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return now }

	// end before start triggers the 2h synthetic window
	m := mission.Mission{ID: 9, Start: now, End: now.Add(-time.Hour)}
	points := gen.Generate(context.Background(), m)

	if len(points) < 20 || len(points) > 50 {
		t.Fatalf("expected 20-50 points, got %d", len(points))
	}
	if !points[0].Timestamp.Equal(now) {
		t.Errorf("fallback window should start now, got %v", points[0].Timestamp)
	}
	last := points[len(points)-1].Timestamp
	if last.After(now.Add(2 * time.Hour)) {
		t.Errorf("fallback window exceeded: %v", last)
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := mission.Mission{ID: 1, Start: start, End: start.Add(time.Hour)}

	genA, _ := newTestGenerator(42)
	genB, _ := newTestGenerator(42)

	a := genA.Generate(context.Background(), m)
	b := genB.Generate(context.Background(), m)

	if len(a) != len(b) {
		t.Fatalf("seeded runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs diverge at point %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
