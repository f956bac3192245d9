// Trajectory point model shared across the pipeline.
package trajectory

import "time"

// Point is one timestamped GPS sample for a mission.
type Point struct {
	MissionID int64     `json:"mission_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedKmh  float64   `json:"speed_kmh"`
}

// Speeds extracts the speed sequence of a trajectory.
func Speeds(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.SpeedKmh
	}
	return out
}

// Duration returns the time span covered by the trajectory.
func Duration(points []Point) time.Duration {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
}
