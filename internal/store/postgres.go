package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store over an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Health checks database connectivity.
func (p *Postgres) Health(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func (p *Postgres) ActiveMissions(ctx context.Context) ([]mission.Mission, error) {
	query := `
		SELECT id, subject, status, start_time, end_time,
		       COALESCE(predefined_route, ''), vehicle_id
		FROM missions
		WHERE status = $1
		ORDER BY start_time
	`
	rows, err := p.pool.Query(ctx, query, mission.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query active missions: %w", err)
	}
	defer rows.Close()

	return scanMissions(rows)
}

func (p *Postgres) MissionsSince(ctx context.Context, since time.Time, limit int) ([]mission.Mission, error) {
	query := `
		SELECT id, subject, status, start_time, end_time,
		       COALESCE(predefined_route, ''), vehicle_id
		FROM missions
		WHERE start_time >= $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query mission history: %w", err)
	}
	defer rows.Close()

	return scanMissions(rows)
}

func scanMissions(rows pgx.Rows) ([]mission.Mission, error) {
	var results []mission.Mission
	for rows.Next() {
		var m mission.Mission
		err := rows.Scan(&m.ID, &m.Subject, &m.Status, &m.Start, &m.End, &m.PredefinedRoute, &m.VehicleID)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan mission row: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (p *Postgres) TrajectoryPoints(ctx context.Context, missionID int64) ([]trajectory.Point, error) {
	query := `
		SELECT mission_id, timestamp, latitude, longitude, speed_kmh
		FROM trajectory_points
		WHERE mission_id = $1
		ORDER BY timestamp
	`
	rows, err := p.pool.Query(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query trajectory: %w", err)
	}
	defer rows.Close()

	var results []trajectory.Point
	for rows.Next() {
		var pt trajectory.Point
		if err := rows.Scan(&pt.MissionID, &pt.Timestamp, &pt.Latitude, &pt.Longitude, &pt.SpeedKmh); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan trajectory row: %w", err)
		}
		results = append(results, pt)
	}
	return results, rows.Err()
}

func (p *Postgres) SaveTrajectoryPoints(ctx context.Context, points []trajectory.Point) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(
			`INSERT INTO trajectory_points (mission_id, timestamp, latitude, longitude, speed_kmh)
			 VALUES ($1, $2, $3, $4, $5)`,
			pt.MissionID, pt.Timestamp, pt.Latitude, pt.Longitude, pt.SpeedKmh,
		)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: failed to save trajectory points: %w", err)
	}
	return nil
}

func (p *Postgres) ReplaceTrajectory(ctx context.Context, missionID int64, points []trajectory.Point) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trajectory_points WHERE mission_id = $1`, missionID); err != nil {
		return fmt.Errorf("postgres: failed to clear trajectory: %w", err)
	}

	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(
			`INSERT INTO trajectory_points (mission_id, timestamp, latitude, longitude, speed_kmh)
			 VALUES ($1, $2, $3, $4, $5)`,
			pt.MissionID, pt.Timestamp, pt.Latitude, pt.Longitude, pt.SpeedKmh,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: failed to insert trajectory points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit trajectory replace: %w", err)
	}
	return nil
}

func (p *Postgres) SaveAnomaly(ctx context.Context, rec AnomalyRecord) error {
	query := `
		INSERT INTO anomalies (mission_id, kind, description, detected_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := p.pool.Exec(ctx, query, rec.MissionID, rec.Kind, rec.Description, rec.DetectedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to save anomaly: %w", err)
	}
	return nil
}

// MarkContaminated upserts the contamination sentinel in one transaction:
// delete any previous sentinel for the mission, then insert the new one.
func (p *Postgres) MarkContaminated(ctx context.Context, missionID int64, description string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM anomalies WHERE mission_id = $1 AND kind = $2`,
		missionID, anomaly.KindContaminated)
	if err != nil {
		return fmt.Errorf("postgres: failed to clear contamination sentinel: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO anomalies (mission_id, kind, description, detected_at) VALUES ($1, $2, $3, $4)`,
		missionID, anomaly.KindContaminated, description, time.Now())
	if err != nil {
		return fmt.Errorf("postgres: failed to insert contamination sentinel: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit contamination mark: %w", err)
	}
	return nil
}

func (p *Postgres) ContaminatedMissionIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT mission_id FROM anomalies WHERE kind = $1 ORDER BY mission_id`
	rows, err := p.pool.Query(ctx, query, anomaly.KindContaminated)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query contaminated missions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan mission id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) ClearContamination(ctx context.Context, missionID int64) error {
	query := `DELETE FROM anomalies WHERE mission_id = $1 AND kind = $2`
	if _, err := p.pool.Exec(ctx, query, missionID, anomaly.KindContaminated); err != nil {
		return fmt.Errorf("postgres: failed to clear contamination: %w", err)
	}
	return nil
}
