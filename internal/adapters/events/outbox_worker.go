package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

// Handler is the application surface the worker drives: the periodic outbox
// flush plus mesh canonical-event intake.
type Handler interface {
	FlushOutbox(ctx context.Context) error
	HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error
}

// OutboxWorker runs the periodic outbox flush and, when a consumer is wired,
// drains inbound canonical events between flushes. Separating this loop from
// request handling keeps broker latency off the request path.
type OutboxWorker struct {
	logger   *slog.Logger
	handler  Handler
	consumer ports.EventConsumer
	dlq      ports.DLQPublisher
	interval time.Duration
}

func NewOutboxWorker(logger *slog.Logger, handler Handler, consumer ports.EventConsumer, dlq ports.DLQPublisher, interval time.Duration) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxWorker{logger: logger, handler: handler, consumer: consumer, dlq: dlq, interval: interval}
}

// Run executes the loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.handler.FlushOutbox(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox flush failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "flush_outbox",
				"outcome", "failure",
				"error", err,
			)
		}
		if err := w.drainConsumer(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) drainConsumer(ctx context.Context) error {
	if w.consumer == nil {
		return nil
	}
	for {
		event, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if event == nil {
			return nil
		}
		if err := w.handler.HandleCanonicalEvent(ctx, *event); err != nil {
			if event.EventClass == domain.CanonicalEventClassAnalyticsOnly {
				w.logger.WarnContext(ctx, "analytics-only event dropped", "event_type", event.EventType, "event_id", event.EventID, "error", err)
				continue
			}
			w.logger.ErrorContext(ctx, "canonical event failed", "event_type", event.EventType, "event_id", event.EventID, "error", err)
			if w.dlq != nil {
				now := time.Now().UTC()
				_ = w.dlq.PublishDLQ(ctx, contracts.DLQRecord{OriginalEvent: *event, ErrorSummary: err.Error(), RetryCount: 1, FirstSeenAt: now, LastErrorAt: now, SourceTopic: event.EventType, DLQTopic: "clearinghouse-ledger.dlq", TraceID: event.TraceID})
			}
		}
	}
}
