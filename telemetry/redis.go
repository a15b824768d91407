// Package telemetry mirrors monitor samples into Redis for
// dashboards and other off-box consumers.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/obsdeck/nexstar_interface/monitor"
)

// historySize caps each per-field history set.
const historySize = 1000

// Publisher writes the current position and velocity under
// <prefix>:<field>, and a capped time-scored history under
// <prefix>:<field>:history. Alerts land in <prefix>:alerts.
type Publisher struct {
	client *redis.Client
	prefix string
}

// NewPublisher connects to Redis and verifies the link with a ping.
func NewPublisher(addr, password string, db int, prefix string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Publisher{client: client, prefix: prefix}, nil
}

func (p *Publisher) key(parts ...string) string {
	k := p.prefix
	for _, part := range parts {
		k += ":" + part
	}
	return k
}

// PublishSample writes one sample and its velocity in a single
// pipeline round trip.
func (p *Publisher) PublishSample(ctx context.Context, e monitor.Entry, v monitor.Velocity) error {
	ts := e.Timestamp.UnixMilli()
	fields := map[string]float64{
		"ra_hours":             e.RAHours,
		"dec_degrees":          e.DecDegrees,
		"alt_degrees":          e.AltDegrees,
		"az_degrees":           e.AzDegrees,
		"velocity_deg_per_sec": v.TotalDegPerSec,
	}
	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.key("timestamp"), ts, 0)
	for name, value := range fields {
		pipe.Set(ctx, p.key(name), value, 0)
		histKey := p.key(name, "history")
		pipe.ZAdd(ctx, histKey, &redis.Z{Score: float64(ts), Member: value})
		pipe.ZRemRangeByRank(ctx, histKey, 0, -(historySize + 1))
	}
	if e.Alert {
		data, err := json.Marshal(e)
		if err == nil {
			pipe.ZAdd(ctx, p.key("alerts"), &redis.Z{Score: float64(ts), Member: string(data)})
			pipe.ZRemRangeByRank(ctx, p.key("alerts"), 0, -(historySize + 1))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing sample: %w", err)
	}
	return nil
}

// PublishStatus writes the monitor's state fields.
func (p *Publisher) PublishStatus(ctx context.Context, st monitor.Status) error {
	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.key("state"), st.State, 0)
	pipe.Set(ctx, p.key("error_count"), st.ErrorCount, 0)
	if st.LastError != "" {
		pipe.Set(ctx, p.key("last_error"), st.LastError, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing status: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
