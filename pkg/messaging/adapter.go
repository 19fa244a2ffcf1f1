package messaging

import (
	"context"
	"encoding/json"

	"github.com/healthdesk/admin-api/pkg/logger"
)

type BrokerAdapter struct {
	broker Broker
	logger *logger.Logger
}

func NewBrokerAdapter(broker Broker, log *logger.Logger) MessageBroker {
	if log == nil {
		log = logger.Nop()
	}
	return &BrokerAdapter{broker: broker, logger: log}
}

func (a *BrokerAdapter) Publish(ctx context.Context, topic string, msg Message) error {
	return a.broker.Publish(ctx, topic, msg)
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}

// Subscribe decodes each raw payload into a Message and hands it to handler
// until ctx is cancelled or the underlying channel closes.
func (a *BrokerAdapter) Subscribe(ctx context.Context, topic string, handler func(context.Context, Message) error) error {
	msgChan, err := a.broker.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				a.logger.Warn(err, "Dropping undecodable message", "topic", topic)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				a.logger.Error(err, "Message handler failed", "topic", topic, "message_id", msg.ID, "type", msg.Type)
			}
		}
	}()

	return nil
}
