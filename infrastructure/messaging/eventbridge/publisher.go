// Package eventbridge publishes domain events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"filon/domain/events"
	pkgerrors "filon/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventBridge limits PutEvents to 10 entries per call
const batchSize = 10

// API is the subset of the EventBridge client the publisher uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher using AWS EventBridge
type Publisher struct {
	client       API
	eventBusName string
	source       string
	logger       *zap.Logger
	maxRetries   int
	backoff      time.Duration
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName, source string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		logger:       logger,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}

		entries := p.entries(domainEvents[i:end])
		if len(entries) == 0 {
			continue
		}
		if err := p.publishWithRetry(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) entries(domainEvents []events.DomainEvent) []types.PutEventsRequestEntry {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("arn:aws:filon::%s", event.GetAggregateID())},
		})
	}
	return entries
}

// publishWithRetry resends only the entries EventBridge rejected, backing
// off exponentially between attempts.
func (p *Publisher) publishWithRetry(ctx context.Context, entries []types.PutEventsRequestEntry) error {
	backoff := p.backoff
	var lastErr error

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("Retrying event publication",
				zap.Int("attempt", attempt+1),
				zap.Int("entries", len(entries)),
				zap.Error(lastErr),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			lastErr = err
			continue
		}
		if result.FailedEntryCount == 0 {
			p.logger.Debug("Events published to EventBridge",
				zap.Int("count", len(entries)),
				zap.String("eventBus", p.eventBusName),
			)
			return nil
		}

		failed := make([]types.PutEventsRequestEntry, 0, result.FailedEntryCount)
		for i, res := range result.Entries {
			if res.ErrorCode != nil && i < len(entries) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", aws.ToString(entries[i].DetailType)),
					zap.String("errorCode", aws.ToString(res.ErrorCode)),
					zap.String("errorMessage", aws.ToString(res.ErrorMessage)),
				)
				failed = append(failed, entries[i])
			}
		}
		if len(failed) > 0 {
			entries = failed
		}
		lastErr = fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	return pkgerrors.NewExternalError("eventbridge", lastErr)
}
