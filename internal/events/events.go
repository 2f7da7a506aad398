// Package events fans delivered notifications out to other listeners over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Event describes a notification that went through the pipeline.
type Event struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id,omitempty"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Voice        string    `json:"voice,omitempty"`
	VoiceEnabled bool      `json:"voice_enabled"`
	SpeechError  string    `json:"speech_error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(title, message string) Event {
	return Event{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// publishConn is the part of *nats.Conn the publisher uses.
type publishConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON encoded events on a single subject.
type NATSPublisher struct {
	conn    publishConn
	subject string
}

// Connect dials the NATS server at url, retrying reconnects in the background.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSPublisher publishes on subject using nc.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: nc, subject: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
