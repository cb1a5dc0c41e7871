package services

import (
	"context"

	"hisaab/internal/amqp"
)

// EventPublisher announces hisaab mutations. A nil publisher disables events.
type EventPublisher interface {
	PublishHisaabEvent(ctx context.Context, evt *amqp.HisaabEvent) error
}

// publish is best effort: the mutation already succeeded, so failures are
// only logged.
func (s *HisaabService) publish(ctx context.Context, eventType, hisaabID, ownerID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishHisaabEvent(ctx, amqp.NewHisaabEvent(eventType, hisaabID, ownerID)); err != nil {
		s.log.LogError(ctx, "Failed to publish hisaab event", err, eventType, nil)
	}
}
