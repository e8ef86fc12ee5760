package service

import (
	"context"
	"encoding/json"

	"rag-chatbot-ui/internal/pkg/logger"
	"rag-chatbot-ui/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService writes every session event to the audit log.
type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	auditLogger logger.ILogger
	handled     func(events.BaseEvent)
}

func NewConsumerService(subscriber message.Subscriber, topicName string, auditLogger logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		auditLogger: auditLogger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.auditLogger.Error("SessionEvents", "Failed to unmarshal event", map[string]interface{}{"error": err, "message_id": msg.UUID})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	details := map[string]interface{}{"occurred_at": event.OccurredAt}
	for k, v := range event.Data {
		details[k] = v
	}
	cs.auditLogger.Info("SessionEvents", event.Type, details)

	if cs.handled != nil {
		cs.handled(event)
	}
	msg.Ack()
}
