package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldops-sim/internal/trajectory"
)

type capturePublisher struct {
	connected bool
	messages  []Message
	failOn    string
}

func (c *capturePublisher) Connect(_ context.Context) error {
	c.connected = true
	return nil
}

func (c *capturePublisher) Publish(_ context.Context, msg Message) error {
	if c.failOn != "" && msg.MessageType == c.failOn {
		return errors.New("forced failure")
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturePublisher) Disconnect(_ context.Context) error {
	c.connected = false
	return nil
}

func TestPointMessageWireFormat(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	msg := PointMessage("tracker-1", trajectory.Point{
		MissionID: 42,
		Timestamp: ts,
		Latitude:  33.57,
		Longitude: -7.58,
		SpeedKmh:  45.5,
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"deviceId":"tracker-1"`, `"mission_id":42`, `"timestamp":"2026-03-01T08:30:00Z"`, `"type":"trajectory_point"`, `"messageType":"trajectory_point"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("wire message missing %s: %s", key, data)
		}
	}
	if strings.Contains(string(data), `"status"`) {
		t.Errorf("point message should not carry status: %s", data)
	}
}

// Every builder emits the message class under both the type and messageType
// keys.
func TestMessageClassKeys(t *testing.T) {
	at := time.Now()
	msgs := map[string]Message{
		TypeTrajectoryPoint: PointMessage("d", trajectory.Point{MissionID: 1, Timestamp: at}),
		TypeMissionStatus:   StatusMessage("d", 1, "TRAJECTORY_SENT", "", at),
		TypeHeartbeat:       HeartbeatMessage("d", at),
	}
	for class, msg := range msgs {
		if msg.Type != class || msg.MessageType != class {
			t.Errorf("%s: type=%q messageType=%q", class, msg.Type, msg.MessageType)
		}
	}
}

func TestMessageTimeFallback(t *testing.T) {
	msg := Message{Timestamp: "2026-03-01T08:30:00Z"}
	if got := msg.Time(); !got.Equal(time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected parsed time %v", got)
	}

	before := time.Now()
	got := Message{Timestamp: "garbage"}.Time()
	if got.Before(before) {
		t.Error("fallback time should be current")
	}
}

func TestStdoutPublisherJSONL(t *testing.T) {
	var buf bytes.Buffer
	p := NewStdout(&buf)
	ctx := context.Background()

	if err := p.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(ctx, HeartbeatMessage("tracker-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(ctx, StatusMessage("tracker-1", 1, "TRAJECTORY_SENT", "", time.Now())); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}
	var decoded Message
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if decoded.MessageType != TypeHeartbeat {
		t.Errorf("unexpected type %s", decoded.MessageType)
	}
}

func TestMultiFanOut(t *testing.T) {
	a := &capturePublisher{}
	b := &capturePublisher{}
	m := NewMulti(a, b)
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.connected || !b.connected {
		t.Fatal("not all sinks connected")
	}

	if err := m.Publish(ctx, HeartbeatMessage("d", time.Now())); err != nil {
		t.Fatal(err)
	}
	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Fatalf("fan-out incomplete: %d/%d", len(a.messages), len(b.messages))
	}

	if err := m.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if a.connected || b.connected {
		t.Error("sinks still connected after disconnect")
	}
}

func TestMultiStopsOnError(t *testing.T) {
	a := &capturePublisher{failOn: TypeHeartbeat}
	b := &capturePublisher{}
	m := NewMulti(a, b)

	err := m.Publish(context.Background(), HeartbeatMessage("d", time.Now()))
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if len(b.messages) != 0 {
		t.Error("later sink received message after failure")
	}
}
