// Mission model as seen by the trajectory pipeline. Mission CRUD lives
// upstream; the pipeline only reads missions and their predefined routes.
package mission

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mission statuses relevant to the pipeline.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
)

// Mission is a field mission with an optional predefined route.
type Mission struct {
	ID              int64
	Subject         string
	Status          string
	Start           time.Time
	End             time.Time
	PredefinedRoute string // serialized JSON list of route points, may be empty
	VehicleID       *int64
}

// RoutePoint is one waypoint of a predefined route.
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route parses the mission's predefined route. An empty or malformed route
// yields nil; the generator falls back to synthetic waypoints.
func (m Mission) Route() []RoutePoint {
	if m.PredefinedRoute == "" {
		return nil
	}
	var pts []RoutePoint
	if err := json.Unmarshal([]byte(m.PredefinedRoute), &pts); err != nil {
		return nil
	}
	if len(pts) == 0 {
		return nil
	}
	return pts
}

// dateFormats lists the timestamp layouts accepted from upstream systems.
var dateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	time.RFC3339,
}

// ParseDate parses a timestamp from any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("mission: unrecognized date format %q", s)
}
