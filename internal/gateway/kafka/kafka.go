package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/deskchat/deskchat-server/internal/gateway"
)

// Gateway publishes channel events to a Kafka topic, keyed by channel name so
// a conversation's events stay ordered within one partition. Used when live
// fanout crosses instance boundaries; a consumer bridges the topic to sockets.
type Gateway struct {
	producer sarama.SyncProducer
	topic    string
}

// New connects a synchronous producer to brokers.
func New(brokers []string, topic string) (*Gateway, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("new sync producer: %w", err)
	}

	return &Gateway{producer: producer, topic: topic}, nil
}

// NewWithProducer wires an existing producer. Useful for tests.
func NewWithProducer(producer sarama.SyncProducer, topic string) *Gateway {
	return &Gateway{producer: producer, topic: topic}
}

// Publish sends the event to the topic. The send itself does not honor ctx
// cancellation mid-flight; the producer's own timeouts bound the call.
func (g *Gateway) Publish(ctx context.Context, ev gateway.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: g.topic,
		Key:   sarama.StringEncoder(ev.Channel),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(ev.Name)},
		},
	}
	if _, _, err := g.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Close shuts the producer down.
func (g *Gateway) Close() error {
	if g.producer == nil {
		return nil
	}
	return g.producer.Close()
}

var _ gateway.Gateway = (*Gateway)(nil)
