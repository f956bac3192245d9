package publish

import (
	"context"
	"fmt"
	"net"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// GreptimePublisher mirrors trajectory points into a GreptimeDB table for
// time-series analysis. Status and heartbeat messages are not mirrored.
type GreptimePublisher struct {
	endpoint string
	db       string
	table    string
	client   *greptime.Client
}

// NewGreptime creates a GreptimeDB publisher. No connection is made until
// Connect.
func NewGreptime(endpoint, database string) *GreptimePublisher {
	return &GreptimePublisher{
		endpoint: endpoint,
		db:       database,
		table:    "mission_trajectory",
	}
}

// Intended table schema. The ingester client is gRPC-only and cannot execute
// SQL DDL; GreptimeDB auto-creates the table on first write.
const trajectoryDDL = `
CREATE TABLE IF NOT EXISTS mission_trajectory (
  device_id STRING TAG,
  mission_id BIGINT,
  lat DOUBLE,
  lon DOUBLE,
  speed_kmh DOUBLE,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`

func (p *GreptimePublisher) Connect(_ context.Context) error {
	cfg := greptime.NewConfig(p.endpoint).WithDatabase(p.db)
	if host, port, err := net.SplitHostPort(p.endpoint); err == nil {
		if n, err := strconv.Atoi(port); err == nil {
			cfg = greptime.NewConfig(host).WithDatabase(p.db).WithPort(n)
		}
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("greptime: connect failed: %w", err)
	}

	p.client = client
	return nil
}

func (p *GreptimePublisher) Publish(_ context.Context, msg Message) error {
	if msg.MessageType != TypeTrajectoryPoint {
		return nil
	}
	if p.client == nil {
		return fmt.Errorf("greptime: publish before connect")
	}

	tbl, err := table.New(p.table)
	if err != nil {
		return fmt.Errorf("greptime: table build failed: %w", err)
	}
	tbl.AddTagColumn("device_id", types.STRING)
	tbl.AddFieldColumn("mission_id", types.INT64)
	tbl.AddFieldColumn("lat", types.FLOAT64)
	tbl.AddFieldColumn("lon", types.FLOAT64)
	tbl.AddFieldColumn("speed_kmh", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	tbl.AddRow(msg.DeviceID, msg.MissionID, msg.Latitude, msg.Longitude, msg.SpeedKmh, msg.Time())

	if _, err := p.client.Write(context.Background(), tbl); err != nil {
		return fmt.Errorf("greptime: write failed: %w", err)
	}
	return nil
}

func (p *GreptimePublisher) Disconnect(_ context.Context) error {
	return nil
}
