package events

import (
	"context"
	"log/slog"

	"github.com/agentcourt/clearinghouse/internal/contracts"
)

// LoggingPublisher emits flushed outbox events to the service log. It stands
// in for a broker in single-node deployments; a real publisher can replace
// it behind the same ports.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) publish(ctx context.Context, class string, event contracts.EventEnvelope) error {
	p.logger.InfoContext(ctx, "published event",
		"module", "events",
		"layer", "adapter",
		"operation", "publish",
		"event_class", class,
		"event_type", event.EventType,
		"event_id", event.EventID,
		"partition_key", event.PartitionKey,
		"trace_id", event.TraceID,
	)
	return nil
}

func (p *LoggingPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, "domain", event)
}

func (p *LoggingPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, "analytics_only", event)
}
