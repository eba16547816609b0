package memory

import (
	"context"
	"sync"

	"filon/domain/events"

	"go.uber.org/zap"
)

// EventLog is a ports.EventPublisher that keeps published events in memory
// and logs them. It backs the memory storage mode and tests.
type EventLog struct {
	mu     sync.RWMutex
	events []events.DomainEvent
	logger *zap.Logger
}

// NewEventLog creates an empty event log
func NewEventLog(logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{logger: logger}
}

// Publish records a single event
func (l *EventLog) Publish(ctx context.Context, event events.DomainEvent) error {
	return l.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch records events in order
func (l *EventLog) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range evts {
		l.events = append(l.events, e)
		l.logger.Debug("Domain event",
			zap.String("type", e.GetEventType()),
			zap.String("aggregateID", e.GetAggregateID()))
	}
	return nil
}

// Events returns a copy of everything published so far
func (l *EventLog) Events() []events.DomainEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]events.DomainEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Types returns the event type of everything published so far
func (l *EventLog) Types() []string {
	evts := l.Events()
	types := make([]string, len(evts))
	for i, e := range evts {
		types[i] = e.GetEventType()
	}
	return types
}
