package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	"github.com/arklim/maintenance-service/internal/infra/config"
)

const (
	schemaVersion         = "1.0"
	auditRecordedEventKey = "audit.recorded"
)

// AuditPublisher streams audit records to Kafka. It implements port.AuditWriter.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit writer.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	ActorID   string           `json:"actor_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type auditPayload struct {
	AuditID   string         `json:"audit_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Append publishes record on the "<prefix>.audit.recorded" topic keyed by actor.
func (p *AuditPublisher) Append(ctx context.Context, record domain.AuditRecord) error {
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   record.ID,
		EventType: p.producer.TopicName(auditRecordedEventKey),
		ActorID:   record.ActorID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: auditPayload{
			AuditID:   record.ID,
			ActorID:   record.ActorID,
			Action:    record.Action,
			Resource:  record.Resource,
			Timestamp: ts.UTC(),
			Detail:    record.Detail,
		},
		Metadata: metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(auditRecordedEventKey),
		Key:   sarama.StringEncoder(record.ActorID),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(auditRecordedEventKey)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish audit record %s: %w", record.ID, ctx.Err())
	}
}

var _ port.AuditWriter = (*AuditPublisher)(nil)
