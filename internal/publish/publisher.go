// Package publish announces generated audio on NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-clone-service/internal/core"
)

// AudioSynthesizedEvent is the payload published for every generated file.
type AudioSynthesizedEvent struct {
	Header     events.EventHeader `json:"header"`
	Voice      string             `json:"voice"`
	Language   string             `json:"language"`
	Text       string             `json:"text"`
	Filename   string             `json:"filename"`
	ObjectKey  string             `json:"object_key,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// NatsPublisher implements core.EventPublisher with core NATS publish.
type NatsPublisher struct {
	natsConnection *nats.Conn
	subject        string
	tenantID       string
}

// NewNatsPublisher creates a publisher for subject.
func NewNatsPublisher(natsConnection *nats.Conn, subject, tenantID string) *NatsPublisher {
	return &NatsPublisher{natsConnection: natsConnection, subject: subject, tenantID: tenantID}
}

// PublishSynthesized publishes event and flushes the connection.
func (p *NatsPublisher) PublishSynthesized(ctx context.Context, event core.AudioSynthesized) error {
	timestamp := event.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	payload := AudioSynthesizedEvent{
		Header: events.EventHeader{
			Timestamp:  timestamp,
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     strconv.FormatInt(event.UserID, 10),
			TenantID:   p.tenantID,
		},
		Voice:      event.Voice,
		Language:   event.Language,
		Text:       event.Text,
		Filename:   event.Filename,
		ObjectKey:  event.ObjectKey,
		DurationMS: event.DurationMS,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal synthesized event: %w", err)
	}

	err = p.natsConnection.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", p.subject, err)
	}

	err = p.natsConnection.FlushWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to flush publish to subject %s: %w", p.subject, err)
	}

	return nil
}
