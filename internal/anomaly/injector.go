package anomaly

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"fieldops-sim/internal/geo"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

// Result summarizes one injection attempt for reporting.
type Result struct {
	MissionID      int64
	Injected       []Kind
	OriginalPoints int
	ModifiedPoints int
}

// Injector stochastically contaminates clean trajectories with realistic
// anomalies so downstream monitoring can be exercised.
type Injector struct {
	rand *rand.Rand
}

// NewInjector creates an injector using the given RNG. The RNG is injected
// so tests can run with a fixed seed.
func NewInjector(rng *rand.Rand) *Injector {
	return &Injector{rand: rng}
}

// Inject draws once against the global injection probability, then for each
// configured kind draws independently and applies its transform to the
// accumulating trajectory, so multiple kinds can compose in one cycle. A
// failing transform is logged and skipped; the trajectory carried into the
// next kind is unchanged.
func (in *Injector) Inject(ctx context.Context, points []trajectory.Point, m mission.Mission, cfg Config) ([]trajectory.Point, Result) {
	log := logging.FromContext(ctx)
	result := Result{MissionID: m.ID, OriginalPoints: len(points), ModifiedPoints: len(points)}

	if len(points) == 0 {
		return points, result
	}
	if in.rand.Float64() > cfg.InjectionProbability {
		log.Info("no anomaly injected", "mission_id", m.ID)
		return points, result
	}

	current := points
	for _, kind := range Kinds() {
		rule, ok := cfg.Rule(kind)
		if !ok || in.rand.Float64() > rule.Probability {
			continue
		}
		if cfg.MaxPerMission > 0 && len(result.Injected) >= cfg.MaxPerMission {
			break
		}

		modified, err := in.apply(kind, current, m, rule)
		if err != nil {
			log.Warn("injection transform skipped", "mission_id", m.ID, "kind", kind, "err", err)
			continue
		}
		current = modified
		result.Injected = append(result.Injected, kind)
		log.Info("anomaly injected", "mission_id", m.ID, "kind", kind)
	}

	result.ModifiedPoints = len(current)
	return current, result
}

func (in *Injector) apply(kind Kind, points []trajectory.Point, m mission.Mission, rule Rule) ([]trajectory.Point, error) {
	switch kind {
	case KindEarlyReturn:
		return in.earlyReturn(points, m, rule)
	case KindRouteDeviation:
		return in.routeDeviation(points, rule)
	case KindUnauthorizedStop:
		return in.unauthorizedStop(points, rule)
	case KindAbnormalSpeed:
		return in.abnormalSpeed(points, rule)
	case KindOutOfHours:
		return in.outOfHours(points, m, rule)
	}
	return nil, fmt.Errorf("unknown anomaly kind %q", kind)
}

// earlyReturn truncates the mission partway through and synthesizes a
// jittered return path toward the start point over half of the remaining
// mission window.
func (in *Injector) earlyReturn(points []trajectory.Point, m mission.Mission, rule Rule) ([]trajectory.Point, error) {
	if len(points) < 10 {
		return nil, fmt.Errorf("need at least 10 points, have %d", len(points))
	}

	ratio := in.uniform(rule.Param("early_return_ratio", Range{0.3, 0.7}))
	cutoff := int(float64(len(points)) * ratio)
	turnPoint := points[cutoff]
	start := points[0]

	modified := append([]trajectory.Point(nil), points[:cutoff]...)

	returnWindow := m.End.Sub(turnPoint.Timestamp) / 2
	if returnWindow <= 0 {
		return nil, fmt.Errorf("no time left for return leg")
	}
	steps := int(returnWindow.Seconds() / 300)
	if steps < 5 {
		steps = 5
	}
	stepInterval := returnWindow / time.Duration(steps)

	for i := 0; i < steps; i++ {
		progress := float64(i) / float64(steps)
		lat := turnPoint.Latitude + (start.Latitude-turnPoint.Latitude)*progress
		lon := turnPoint.Longitude + (start.Longitude-turnPoint.Longitude)*progress
		modified = append(modified, trajectory.Point{
			MissionID: turnPoint.MissionID,
			Timestamp: turnPoint.Timestamp.Add(time.Duration(i) * stepInterval),
			Latitude:  lat + in.jitter(0.001),
			Longitude: lon + in.jitter(0.001),
			SpeedKmh:  20 + in.rand.Float64()*40,
		})
	}
	return modified, nil
}

// routeDeviation replaces a mid-trajectory segment with points offset from
// the deviation start by a random bearing and distance, then resumes the
// original tail.
func (in *Injector) routeDeviation(points []trajectory.Point, rule Rule) ([]trajectory.Point, error) {
	if len(points) < 6 {
		return nil, fmt.Errorf("need at least 6 points, have %d", len(points))
	}

	distKM := in.uniform(rule.Param("deviation_distance_km", Range{2, 10}))
	durationMin := in.uniform(rule.Param("deviation_duration_min", Range{15, 60}))

	n := len(points)
	start := n/4 + in.rand.Intn(n/2)
	origin := points[start]

	steps := int(durationMin / 5)
	if steps < 3 {
		steps = 3
	}

	modified := append([]trajectory.Point(nil), points[:start]...)
	for i := 0; i < steps; i++ {
		bearing := in.rand.Float64() * 360
		factor := 0.5 + in.rand.Float64()*0.5
		lat, lon := geo.Destination(origin.Latitude, origin.Longitude, bearing, distKM*factor)
		modified = append(modified, trajectory.Point{
			MissionID: origin.MissionID,
			Timestamp: origin.Timestamp.Add(time.Duration(i) * 5 * time.Minute),
			Latitude:  lat,
			Longitude: lon,
			SpeedKmh:  15 + in.rand.Float64()*30,
		})
	}

	resume := start + steps
	if resume > n-1 {
		resume = n - 1
	}
	modified = append(modified, points[resume:]...)
	return modified, nil
}

// unauthorizedStop inserts one to three clusters of near-zero-speed points
// at interior positions, spaced 10 minutes apart.
func (in *Injector) unauthorizedStop(points []trajectory.Point, rule Rule) ([]trajectory.Point, error) {
	if len(points) < 5 {
		return nil, fmt.Errorf("need at least 5 points, have %d", len(points))
	}

	durationMin := in.uniform(rule.Param("stop_duration_min", Range{10, 120}))
	freq := rule.Param("stop_frequency", Range{1, 3})
	stops := int(freq.Lo) + in.rand.Intn(int(freq.Hi-freq.Lo)+1)

	modified := append([]trajectory.Point(nil), points...)
	n := len(points)

	for s := 0; s < stops; s++ {
		idx := n/4 + in.rand.Intn(n/2)
		anchor := points[idx]

		count := int(durationMin / 10)
		if count < 2 {
			count = 2
		}
		for i := 0; i < count; i++ {
			stopPoint := trajectory.Point{
				MissionID: anchor.MissionID,
				Timestamp: anchor.Timestamp.Add(time.Duration(i) * 10 * time.Minute),
				Latitude:  anchor.Latitude + in.jitter(0.001),
				Longitude: anchor.Longitude + in.jitter(0.001),
				SpeedKmh:  in.rand.Float64() * 2,
			}
			insertAt := idx + i + 1
			if insertAt > len(modified) {
				insertAt = len(modified)
			}
			modified = append(modified[:insertAt], append([]trajectory.Point{stopPoint}, modified[insertAt:]...)...)
		}
	}
	return modified, nil
}

// abnormalSpeed multiplies a contiguous window of speeds by a random factor,
// clamping the result to [0,150] km/h.
func (in *Injector) abnormalSpeed(points []trajectory.Point, rule Rule) ([]trajectory.Point, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("need at least 3 points, have %d", len(points))
	}

	factor := in.uniform(rule.Param("speed_factor", Range{0.1, 2.5}))
	durationMin := in.uniform(rule.Param("duration_min", Range{5, 30}))

	n := len(points)
	start := in.rand.Intn(n / 2)
	end := start + int(durationMin/5)
	if end > n-1 {
		end = n - 1
	}

	modified := append([]trajectory.Point(nil), points...)
	for i := start; i < end; i++ {
		speed := modified[i].SpeedKmh * factor
		if speed < 0 {
			speed = 0
		}
		if speed > 150 {
			speed = 150
		}
		modified[i].SpeedKmh = speed
	}
	return modified, nil
}

// outOfHours prepends movement before the official mission start and appends
// movement after its end, jittered around the first and last real points.
func (in *Injector) outOfHours(points []trajectory.Point, m mission.Mission, rule Rule) ([]trajectory.Point, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 points, have %d", len(points))
	}

	earlyHours := in.uniform(rule.Param("early_start_hours", Range{1, 3}))
	lateHours := in.uniform(rule.Param("late_end_hours", Range{1, 4}))

	first := points[0]
	last := points[len(points)-1]

	earlyCount := int(earlyHours * 6)
	if earlyCount < 2 {
		earlyCount = 2
	}
	earlyStart := m.Start.Add(-time.Duration(earlyHours * float64(time.Hour)))

	prefix := make([]trajectory.Point, 0, earlyCount)
	for i := 0; i < earlyCount; i++ {
		prefix = append(prefix, trajectory.Point{
			MissionID: first.MissionID,
			Timestamp: earlyStart.Add(time.Duration(i) * 10 * time.Minute),
			Latitude:  first.Latitude + in.jitter(0.01),
			Longitude: first.Longitude + in.jitter(0.01),
			SpeedKmh:  10 + in.rand.Float64()*20,
		})
	}

	lateCount := int(lateHours * 6)
	if lateCount < 2 {
		lateCount = 2
	}
	suffix := make([]trajectory.Point, 0, lateCount)
	for i := 1; i <= lateCount; i++ {
		suffix = append(suffix, trajectory.Point{
			MissionID: last.MissionID,
			Timestamp: m.End.Add(time.Duration(i) * 10 * time.Minute),
			Latitude:  last.Latitude + in.jitter(0.01),
			Longitude: last.Longitude + in.jitter(0.01),
			SpeedKmh:  10 + in.rand.Float64()*15,
		})
	}

	modified := make([]trajectory.Point, 0, len(prefix)+len(points)+len(suffix))
	modified = append(modified, prefix...)
	modified = append(modified, points...)
	modified = append(modified, suffix...)
	return modified, nil
}

func (in *Injector) uniform(r Range) float64 {
	return r.Lo + in.rand.Float64()*(r.Hi-r.Lo)
}

func (in *Injector) jitter(max float64) float64 {
	return in.rand.Float64()*2*max - max
}
