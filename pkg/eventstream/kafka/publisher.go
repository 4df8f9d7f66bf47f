// Package kafka provides a Kafka-backed eventstream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/xenophobed/isastream/pkg/eventstream"
)

// Publisher publishes message events to a Kafka topic. Events for the same
// session share a message key, so they land on the same partition and keep
// their relative order.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishMessage encodes the event as JSON and writes it to the topic, keyed
// by session ID.
func (p *Publisher) PublishMessage(ctx context.Context, event *eventstream.MessageReceivedEvent) error {
	if event == nil {
		return eventstream.ErrNilMessageEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Source.SessionID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
