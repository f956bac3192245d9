// Package publish delivers trajectory points and pipeline status messages
// to the configured sinks.
package publish

import (
	"context"
	"time"

	"fieldops-sim/internal/trajectory"
)

// Message types carried on the wire.
const (
	TypeTrajectoryPoint = "trajectory_point"
	TypeMissionStatus   = "mission_status"
	TypeHeartbeat       = "heartbeat"
)

// Message is the wire format shared by all sinks. Type and MessageType both
// carry the message class; consumers key off either, so both are emitted.
type Message struct {
	DeviceID    string  `json:"deviceId"`
	MissionID   int64   `json:"mission_id,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Type        string  `json:"type"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	SpeedKmh    float64 `json:"speed_kmh,omitempty"`
	Status      string  `json:"status,omitempty"`
	Details     string  `json:"details,omitempty"`
	MessageType string  `json:"messageType"`
}

// Time returns the message timestamp, falling back to now when the field
// does not parse.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Now()
	}
	return t
}

// Publisher is one message sink. Connect and Disconnect bracket a delivery
// session; Publish may be called many times in between.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, msg Message) error
	Disconnect(ctx context.Context) error
}

// PointMessage builds the wire message for one trajectory point.
func PointMessage(deviceID string, pt trajectory.Point) Message {
	return Message{
		DeviceID:    deviceID,
		MissionID:   pt.MissionID,
		Timestamp:   pt.Timestamp.UTC().Format(time.RFC3339),
		Type:        TypeTrajectoryPoint,
		Latitude:    pt.Latitude,
		Longitude:   pt.Longitude,
		SpeedKmh:    pt.SpeedKmh,
		MessageType: TypeTrajectoryPoint,
	}
}

// StatusMessage builds a mission status update.
func StatusMessage(deviceID string, missionID int64, status, details string, at time.Time) Message {
	return Message{
		DeviceID:    deviceID,
		MissionID:   missionID,
		Timestamp:   at.UTC().Format(time.RFC3339),
		Type:        TypeMissionStatus,
		Status:      status,
		Details:     details,
		MessageType: TypeMissionStatus,
	}
}

// HeartbeatMessage builds a liveness message.
func HeartbeatMessage(deviceID string, at time.Time) Message {
	return Message{
		DeviceID:    deviceID,
		Timestamp:   at.UTC().Format(time.RFC3339),
		Type:        TypeHeartbeat,
		Status:      "alive",
		MessageType: TypeHeartbeat,
	}
}
