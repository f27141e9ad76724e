package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"entrypass/internal/logger"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer follows the ticket-issued topic, e.g. for a check-in desk that
// wants to know about passes issued after it started.
type Consumer struct {
	Reader messageReader
	Logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// DecodeTicketIssued parses a message written by PublishTicketIssued.
func DecodeTicketIssued(msg kafka.Message) (TicketIssuedEvent, error) {
	var event TicketIssuedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("failed to decode ticket event: %w", err)
	}
	if event.Type != EventTicketIssued {
		return event, fmt.Errorf("unexpected event type %q", event.Type)
	}
	return event, nil
}

// Run hands every ticket-issued event to handler until ctx is done. Messages
// that do not decode are logged and skipped; a handler error stops the loop.
func (c *Consumer) Run(ctx context.Context, handler func(TicketIssuedEvent) error) error {
	log := c.Logger
	if log == nil {
		log = logger.Discard()
	}

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("error reading message: %w", err)
		}

		event, err := DecodeTicketIssued(msg)
		if err != nil {
			log.Warn("KAFKA", fmt.Sprintf("skipping offset %d: %v", msg.Offset, err))
			continue
		}

		log.LogKafka("RECEIVED", msg.Topic, event.TicketID)
		if err := handler(event); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
