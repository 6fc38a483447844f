// Package events publishes engine decisions to NATS JetStream for downstream
// consumers (attendance dashboards, notification bots). Publishing happens
// after the local transaction is durable and is advisory only.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/bnc-guild/attendance-engine/internal/logger"
)

// Event types published on the stream.
const (
	TypeTickRequested  = "tick_requested"
	TypeTickApproved   = "tick_approved"
	TypeTickRejected   = "tick_rejected"
	TypeTicksRemoved   = "ticks_removed"
	TypeRaidDeleted    = "raid_deleted"
	TypeLootReassigned = "loot_reassigned"
)

// Event is one engine decision on the wire.
type Event struct {
	Type        string    `json:"type"`
	GuildID     uint64    `json:"guild_id"`
	ActorID     uint64    `json:"actor_id"`
	CharacterID uint64    `json:"character_id,omitempty"`
	RaidID      uint64    `json:"raid_id,omitempty"`
	Ticks       []int     `json:"ticks,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher publishes engine events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

type publisher struct {
	nc         *nats.Conn
	js         jetstream.JetStream
	streamName string
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(cfg Config) (Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &publisher{
		nc:         nc,
		js:         js,
		streamName: cfg.StreamName,
	}, nil
}

// Publish publishes an engine event to NATS JetStream
func (p *publisher) Publish(ctx context.Context, event Event) error {
	logger.Debug("Publishing Nats event", zap.Any("event", event))

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, p.buildSubject(event), data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// buildSubject constructs the NATS subject based on the event
func (p *publisher) buildSubject(event Event) string {
	// Format: attendance.{guild_id}.{event_type}
	// e.g., attendance.1.tick_approved
	return fmt.Sprintf("attendance.%d.%s", event.GuildID, event.Type)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}

// NoopPublisher discards every event, for deployments without NATS.
type NoopPublisher struct{}

// Publish discards the event
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close is a no-op
func (NoopPublisher) Close() {}
