package service

import (
	"context"
	"encoding/json"

	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/pkg/events"
	pktNats "rag-chatbot-ui/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	Publish(ctx context.Context, event events.Event)
}

type publisherService struct {
	topicName string
	pubSub    message.Publisher
	natsPub   *pktNats.Publisher
	logger    logger.ILogger
}

// NewPublisherService publishes in-process on topicName and mirrors to NATS when natsPub
// is non-nil. Publishing never fails the calling operation.
func NewPublisherService(topicName string, pubSub message.Publisher, natsPub *pktNats.Publisher, log logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		natsPub:   natsPub,
		logger:    log,
	}
}

func (ps *publisherService) Publish(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(events.BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		ps.logger.Error("PublisherService", "Failed to marshal event", map[string]interface{}{"type": event.EventType(), "error": err})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ps.pubSub.Publish(ps.topicName, msg); err != nil {
		ps.logger.Warn("PublisherService", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}

	if ps.natsPub != nil {
		if err := ps.natsPub.Publish(ctx, event); err != nil {
			ps.logger.Warn("PublisherService", "Failed to forward event to NATS", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
		}
	}
}
