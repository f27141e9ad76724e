package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entrypass/internal/logger"
	"entrypass/internal/models"

	"github.com/segmentio/kafka-go"
)

const EventTicketIssued = "ticket.issued"

// TicketIssuedEvent is the message body published for every new ticket. The
// QR payload is left out so the topic cannot be used to mint passes.
type TicketIssuedEvent struct {
	Type      string    `json:"type"`
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	TeamName  string    `json:"team_name"`
	EventName string    `json:"event_name"`
	TeamSize  int       `json:"team_size"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer messageWriter
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

// TicketIssuedMessage builds the kafka message for a ticket, keyed by user_id
// so every event for a team lands on the same partition.
func TicketIssuedMessage(ticket models.Ticket) (kafka.Message, error) {
	event := TicketIssuedEvent{
		Type:      EventTicketIssued,
		TicketID:  ticket.TicketID,
		UserID:    ticket.UserID,
		TeamName:  ticket.TeamName,
		EventName: ticket.EventName,
		TeamSize:  ticket.TeamSize,
		CreatedBy: ticket.CreatedBy,
		CreatedAt: ticket.CreatedAt,
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ticket.UserID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(EventTicketIssued)},
		},
	}, nil
}

// PublishTicketIssued streams the ticket creation event to Kafka
func (p *Producer) PublishTicketIssued(ctx context.Context, ticket models.Ticket) error {
	msg, err := TicketIssuedMessage(ticket)
	if err != nil {
		return fmt.Errorf("failed to encode ticket event: %w", err)
	}

	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish ticket %s: %w", ticket.TicketID, err)
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISHED", p.Topic, ticket.TicketID)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
