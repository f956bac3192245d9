package trajectory

import (
	"context"
	"math/rand"
	"time"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/geo"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/mission"
)

const (
	minSamples = 20
	maxSamples = 50

	// jitter applied to synthesized waypoints and to individual samples
	waypointJitterDeg = 0.01
	sampleJitterDeg   = 0.005

	// chance per sample of a near-stop override
	stopChance = 0.1

	fallbackWindow = 2 * time.Hour
)

// Generator synthesizes plausible GPS trajectories for missions without
// real telemetry.
type Generator struct {
	bounds        geo.Bounds
	cities        []config.City
	cfg           *config.SimulationConfig
	urbanRadiusKM float64
	rand          *rand.Rand
	now           func() time.Time
}

// NewGenerator creates a generator using the given configuration and RNG.
// The RNG is injected so property tests can run with a fixed seed.
func NewGenerator(cfg *config.SimulationConfig, rng *rand.Rand) *Generator {
	radius := cfg.UrbanRadiusKM
	if radius <= 0 {
		radius = 20
	}
	return &Generator{
		bounds:        cfg.Bounds.Geo(),
		cities:        cfg.Cities,
		cfg:           cfg,
		urbanRadiusKM: radius,
		rand:          rng,
		now:           time.Now,
	}
}

// Generate produces an ordered trajectory of 20-50 samples covering the
// mission window. A mission with an invalid window falls back to a 2-hour
// window starting now.
func (g *Generator) Generate(ctx context.Context, m mission.Mission) []Point {
	log := logging.FromContext(ctx)

	start, end := m.Start, m.End
	if !end.After(start) {
		start = g.now()
		end = start.Add(fallbackWindow)
		log.Warn("invalid mission window, using 2h fallback", "mission_id", m.ID)
	}

	waypoints := g.resolveWaypoints(m)
	duration := end.Sub(start)

	n := minSamples + g.rand.Intn(maxSamples-minSamples+1)
	interval := duration / time.Duration(n)

	points := make([]Point, 0, n)
	speed := 30 + g.rand.Float64()*30

	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n)
		wpIndex := int(progress * float64(len(waypoints)))
		if wpIndex >= len(waypoints) {
			wpIndex = len(waypoints) - 1
		}
		base := waypoints[wpIndex]

		lat := base.Latitude + g.jitter(sampleJitterDeg)
		lon := base.Longitude + g.jitter(sampleJitterDeg)
		lat, lon = g.bounds.Clamp(lat, lon)

		terrain := g.classifyTerrain(lat, lon)
		speed = g.nextSpeed(speed, terrain)

		points = append(points, Point{
			MissionID: m.ID,
			Timestamp: start.Add(time.Duration(i) * interval),
			Latitude:  lat,
			Longitude: lon,
			SpeedKmh:  speed,
		})
	}

	log.Info("trajectory generated", "mission_id", m.ID, "points", len(points))
	return points
}

// resolveWaypoints uses the predefined route when present, otherwise picks
// two distinct reference cities and interpolates synthetic waypoints.
func (g *Generator) resolveWaypoints(m mission.Mission) []mission.RoutePoint {
	if route := m.Route(); route != nil {
		return route
	}

	startIdx := g.rand.Intn(len(g.cities))
	endIdx := g.rand.Intn(len(g.cities))
	for endIdx == startIdx && len(g.cities) > 1 {
		endIdx = g.rand.Intn(len(g.cities))
	}
	start, end := g.cities[startIdx], g.cities[endIdx]
	return g.interpolateWaypoints(start, end, 8)
}

func (g *Generator) interpolateWaypoints(start, end config.City, n int) []mission.RoutePoint {
	waypoints := make([]mission.RoutePoint, 0, n)
	for i := 0; i < n; i++ {
		ratio := float64(i) / float64(n-1)
		lat := start.Lat + (end.Lat-start.Lat)*ratio + g.jitter(waypointJitterDeg)
		lon := start.Lon + (end.Lon-start.Lon)*ratio + g.jitter(waypointJitterDeg)
		lat, lon = g.bounds.Clamp(lat, lon)
		waypoints = append(waypoints, mission.RoutePoint{Latitude: lat, Longitude: lon})
	}
	return waypoints
}

// classifyTerrain returns "urban" within urbanRadiusKM of any reference
// city, otherwise "rural". The highway and mountain speed bands exist in
// config but are unreachable from this classifier.
func (g *Generator) classifyTerrain(lat, lon float64) string {
	for _, c := range g.cities {
		if geo.DistanceKM(lat, lon, c.Lat, c.Lon) < g.urbanRadiusKM {
			return "urban"
		}
	}
	return "rural"
}

// nextSpeed advances a bounded random walk within the terrain's speed band,
// with a small chance of a near-stop.
func (g *Generator) nextSpeed(prev float64, terrain string) float64 {
	band := g.cfg.Band(terrain)

	speed := prev + (g.rand.Float64()*20 - 10)
	if speed < band.MinKmh {
		speed = band.MinKmh
	}
	if speed > band.MaxKmh {
		speed = band.MaxKmh
	}
	if g.rand.Float64() < stopChance {
		speed = g.rand.Float64() * 5
	}
	return float64(int(speed*10)) / 10
}

func (g *Generator) jitter(max float64) float64 {
	return g.rand.Float64()*2*max - max
}
