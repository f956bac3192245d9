package detect

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"fieldops-sim/internal/geo"
	"fieldops-sim/internal/trajectory"
)

const (
	smoothWindow    = 5
	smoothDegree    = 2
	stopSpeedKmh    = 5
	speedLimitKmh   = 120
	turnThresholdDg = 45
)

// Features is the scalar summary of one trajectory that feeds the outlier
// model: base statistics plus composite indicators derived from them.
// PointCount is carried for rule evaluation but is not part of the model
// input vector.
type Features struct {
	TotalDistanceKM      float64
	AvgSpeed             float64
	MaxSpeed             float64
	MinSpeed             float64
	SpeedVariance        float64
	AccelerationVariance float64
	DirectionChanges     float64
	StopCount            float64
	TotalDurationH       float64
	PathEfficiency       float64
	TimeEfficiency       float64
	NightRatio           float64
	SpeedViolations      float64

	// Composite indicators.
	SpeedInconsistency  float64 // speed variance over mean speed
	RouteInefficiency   float64 // 1 - path efficiency
	ExcessiveStops      float64 // stop count over point count
	ErraticMovement     float64 // direction changes over point count
	AccelerationAnomaly float64 // acceleration variance, repeated as an indicator

	PointCount int
}

// Vector returns the feature values in the fixed order the model was
// trained with: the thirteen base statistics followed by the five
// composite indicators.
func (f Features) Vector() []float64 {
	return []float64{
		f.TotalDistanceKM,
		f.AvgSpeed,
		f.MaxSpeed,
		f.MinSpeed,
		f.SpeedVariance,
		f.AccelerationVariance,
		f.DirectionChanges,
		f.StopCount,
		f.TotalDurationH,
		f.PathEfficiency,
		f.TimeEfficiency,
		f.NightRatio,
		f.SpeedViolations,
		f.SpeedInconsistency,
		f.RouteInefficiency,
		f.ExcessiveStops,
		f.ErraticMovement,
		f.AccelerationAnomaly,
	}
}

// Extract computes trajectory features. Coordinates and speeds are smoothed
// with a Savitzky-Golay filter before derived quantities are taken, which
// keeps GPS jitter out of the distance and bearing statistics.
func Extract(points []trajectory.Point) (Features, error) {
	if len(points) == 0 {
		return Features{}, errors.New("detect: empty trajectory")
	}

	n := len(points)
	lats := make([]float64, n)
	lons := make([]float64, n)
	speeds := make([]float64, n)
	for i, p := range points {
		lats[i] = p.Latitude
		lons[i] = p.Longitude
		speeds[i] = p.SpeedKmh
	}
	if n >= smoothWindow {
		lats = savitzkyGolay(lats, smoothWindow, smoothDegree)
		lons = savitzkyGolay(lons, smoothWindow, smoothDegree)
		speeds = savitzkyGolay(speeds, smoothWindow, smoothDegree)
	}

	f := Features{PointCount: n}

	var bearings []float64
	for i := 1; i < n; i++ {
		f.TotalDistanceKM += geo.DistanceKM(lats[i-1], lons[i-1], lats[i], lons[i])
		bearings = append(bearings, geo.BearingDeg(lats[i-1], lons[i-1], lats[i], lons[i]))
	}

	f.AvgSpeed = stat.Mean(speeds, nil)
	f.MaxSpeed = maxOf(speeds)
	f.MinSpeed = minOf(speeds)
	f.SpeedVariance = popVariance(speeds)

	var accelerations []float64
	for i := 1; i < n; i++ {
		dt := points[i].Timestamp.Sub(points[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		accelerations = append(accelerations, (speeds[i]-speeds[i-1])/dt)
	}
	f.AccelerationVariance = popVariance(accelerations)

	for i := 1; i < len(bearings); i++ {
		change := math.Abs(bearings[i] - bearings[i-1])
		if change > 180 {
			change = 360 - change
		}
		if change > turnThresholdDg {
			f.DirectionChanges++
		}
	}

	for _, s := range speeds {
		if s < stopSpeedKmh {
			f.StopCount++
		}
	}

	duration := points[n-1].Timestamp.Sub(points[0].Timestamp)
	f.TotalDurationH = duration.Hours()

	direct := geo.DistanceKM(points[0].Latitude, points[0].Longitude, points[n-1].Latitude, points[n-1].Longitude)
	if f.TotalDistanceKM > 0 {
		f.PathEfficiency = direct / f.TotalDistanceKM
	}

	if duration.Seconds() > 0 {
		avg := f.AvgSpeed
		if avg < 1 {
			avg = 1
		}
		expected := f.TotalDistanceKM / avg * 3600
		f.TimeEfficiency = expected / duration.Seconds()
	}

	night := 0
	for _, p := range points {
		h := p.Timestamp.Hour()
		if h < 6 || h > 22 {
			night++
		}
	}
	f.NightRatio = float64(night) / float64(n)

	for _, s := range speeds {
		if s > speedLimitKmh {
			f.SpeedViolations++
		}
	}

	if f.AvgSpeed > 0 {
		f.SpeedInconsistency = f.SpeedVariance / f.AvgSpeed
	}
	f.RouteInefficiency = 1 - f.PathEfficiency
	f.ExcessiveStops = f.StopCount / float64(n)
	f.ErraticMovement = f.DirectionChanges / float64(n)
	f.AccelerationAnomaly = f.AccelerationVariance

	return f, nil
}

// popVariance is the population variance, matching how the feature
// statistics were defined when the model artifacts were first produced.
func popVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := stat.Mean(xs, nil)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
