// Package store persists missions, trajectories and anomaly records.
package store

import (
	"context"
	"time"

	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

// AnomalyRecord is one persisted anomaly annotation on a mission.
type AnomalyRecord struct {
	MissionID   int64
	Kind        string
	Description string
	DetectedAt  time.Time
}

// Store is the mission and trajectory persistence interface used by the
// pipeline. Every operation takes its own context; implementations must not
// hold per-session state between calls.
type Store interface {
	// ActiveMissions returns missions currently in progress.
	ActiveMissions(ctx context.Context) ([]mission.Mission, error)

	// MissionsSince returns up to limit missions started after the given
	// time, newest first. Used to assemble training history.
	MissionsSince(ctx context.Context, since time.Time, limit int) ([]mission.Mission, error)

	// TrajectoryPoints returns a mission's stored trajectory ordered by
	// timestamp.
	TrajectoryPoints(ctx context.Context, missionID int64) ([]trajectory.Point, error)

	// SaveTrajectoryPoints appends points to a mission's trajectory.
	SaveTrajectoryPoints(ctx context.Context, points []trajectory.Point) error

	// ReplaceTrajectory atomically swaps a mission's stored trajectory for
	// the given points.
	ReplaceTrajectory(ctx context.Context, missionID int64, points []trajectory.Point) error

	// SaveAnomaly records one anomaly annotation.
	SaveAnomaly(ctx context.Context, rec AnomalyRecord) error

	// MarkContaminated flags a mission's trajectory as injector-modified.
	MarkContaminated(ctx context.Context, missionID int64, description string) error

	// ContaminatedMissionIDs lists missions currently carrying the
	// contamination flag.
	ContaminatedMissionIDs(ctx context.Context) ([]int64, error)

	// ClearContamination removes the contamination flag from a mission.
	ClearContamination(ctx context.Context, missionID int64) error
}

// CleanActiveMissions returns the active missions whose trajectories do not
// carry the contamination flag.
func CleanActiveMissions(ctx context.Context, s Store) ([]mission.Mission, error) {
	missions, err := s.ActiveMissions(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.ContaminatedMissionIDs(ctx)
	if err != nil {
		return nil, err
	}
	contaminated := make(map[int64]bool, len(ids))
	for _, id := range ids {
		contaminated[id] = true
	}
	var clean []mission.Mission
	for _, m := range missions {
		if !contaminated[m.ID] {
			clean = append(clean, m)
		}
	}
	return clean, nil
}
