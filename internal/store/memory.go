package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

// Memory is an in-memory Store for print-only runs and tests.
type Memory struct {
	mu        sync.Mutex
	missions  []mission.Mission
	points    map[int64][]trajectory.Point
	anomalies []AnomalyRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{points: map[int64][]trajectory.Point{}}
}

// AddMission seeds a mission.
func (m *Memory) AddMission(mi mission.Mission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions = append(m.missions, mi)
}

// Anomalies returns a copy of all recorded anomalies.
func (m *Memory) Anomalies() []AnomalyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AnomalyRecord(nil), m.anomalies...)
}

func (m *Memory) ActiveMissions(_ context.Context) ([]mission.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []mission.Mission
	for _, mi := range m.missions {
		if mi.Status == mission.StatusInProgress {
			active = append(active, mi)
		}
	}
	return active, nil
}

func (m *Memory) MissionsSince(_ context.Context, since time.Time, limit int) ([]mission.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mission.Mission
	for _, mi := range m.missions {
		if !mi.Start.Before(since) {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) TrajectoryPoints(_ context.Context, missionID int64) ([]trajectory.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := append([]trajectory.Point(nil), m.points[missionID]...)
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

func (m *Memory) SaveTrajectoryPoints(_ context.Context, points []trajectory.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pt := range points {
		m.points[pt.MissionID] = append(m.points[pt.MissionID], pt)
	}
	return nil
}

func (m *Memory) ReplaceTrajectory(_ context.Context, missionID int64, points []trajectory.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[missionID] = append([]trajectory.Point(nil), points...)
	return nil
}

func (m *Memory) SaveAnomaly(_ context.Context, rec AnomalyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, rec)
	return nil
}

// MarkContaminated upserts the contamination sentinel: any previous sentinel
// for the mission is replaced so re-marking never accumulates rows.
func (m *Memory) MarkContaminated(_ context.Context, missionID int64, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.anomalies[:0]
	for _, rec := range m.anomalies {
		if rec.Kind == anomaly.KindContaminated && rec.MissionID == missionID {
			continue
		}
		kept = append(kept, rec)
	}
	m.anomalies = append(kept, AnomalyRecord{
		MissionID:   missionID,
		Kind:        anomaly.KindContaminated,
		Description: description,
		DetectedAt:  time.Now(),
	})
	return nil
}

func (m *Memory) ContaminatedMissionIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	var ids []int64
	for _, rec := range m.anomalies {
		if rec.Kind == anomaly.KindContaminated && !seen[rec.MissionID] {
			seen[rec.MissionID] = true
			ids = append(ids, rec.MissionID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) ClearContamination(_ context.Context, missionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.anomalies[:0]
	for _, rec := range m.anomalies {
		if rec.Kind == anomaly.KindContaminated && rec.MissionID == missionID {
			continue
		}
		kept = append(kept, rec)
	}
	m.anomalies = kept
	return nil
}
