// Package events publishes assessment lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "neurofusion.assessments"

// TypeAssessmentCompleted is carried in the event-type header.
const TypeAssessmentCompleted = "assessment.completed"

// AssessmentCompleted is emitted after an assessment has been stored.
type AssessmentCompleted struct {
	AssessmentID        string            `json:"assessment_id"`
	PatientID           string            `json:"patient_id,omitempty"`
	Prediction          domain.Prediction `json:"prediction"`
	ProbabilityPositive float64           `json:"probability_positive"`
	RiskBand            domain.RiskBand   `json:"risk_band"`
	ModalitiesUsed      []domain.Modality `json:"modalities_used"`
	Strategy            string            `json:"strategy"`
	OccurredAt          time.Time         `json:"occurred_at"`
}

// NewAssessmentCompleted builds the event for a stored record.
func NewAssessmentCompleted(record *domain.AssessmentRecord) AssessmentCompleted {
	return AssessmentCompleted{
		AssessmentID:        record.ID,
		PatientID:           record.Patient.PatientID,
		Prediction:          record.Outcome.Prediction,
		ProbabilityPositive: record.Outcome.ProbabilityPositive,
		RiskBand:            record.Outcome.RiskBand,
		ModalitiesUsed:      append([]domain.Modality(nil), record.Outcome.ModalitiesUsed...),
		Strategy:            record.Outcome.Strategy,
		OccurredAt:          record.CreatedAt,
	}
}

// Publisher delivers assessment events.
type Publisher interface {
	PublishAssessmentCompleted(ctx context.Context, event AssessmentCompleted) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishAssessmentCompleted(context.Context, AssessmentCompleted) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// messageWriter is the subset of *kafkago.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by assessment id, so
// every event for one assessment lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *logrus.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers.
func NewKafkaPublisher(cfg domain.EventsConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, domain.NewConfigurationError("", "events.brokers must list at least one broker")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   topic,
	}).Info("Kafka event publisher configured")

	return newKafkaPublisher(w, topic, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: logger}
}

// PublishAssessmentCompleted writes one event.
func (p *KafkaPublisher) PublishAssessmentCompleted(ctx context.Context, event AssessmentCompleted) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.AssessmentID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(TypeAssessmentCompleted)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.WithFields(logrus.Fields{
			"assessment_id": event.AssessmentID,
			"topic":         p.topic,
			"error":         err,
		}).Error("Failed to publish assessment event")
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	p.log.WithFields(logrus.Fields{
		"assessment_id": event.AssessmentID,
		"topic":         p.topic,
	}).Debug("Published assessment event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// New returns a Kafka publisher when brokers are configured and a
// NoopPublisher otherwise.
func New(cfg domain.EventsConfig, logger *logrus.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return NoopPublisher{}, nil
	}
	return NewKafkaPublisher(cfg, logger)
}
