package events

//go:generate $MOCKGEN -source=publisher.go -destination=mocks/publisher_mock.go

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/oshokin/media-grabber/internal/model"
)

// Type is the kind of a job lifecycle event.
type Type string

// Event types.
const (
	TypeJobAccepted  Type = "job.accepted"
	TypeJobCompleted Type = "job.completed"
	TypeJobFailed    Type = "job.failed"
)

// kafkaMaxRetries bounds producer retries of a single message.
const kafkaMaxRetries = 5

// Event is one job lifecycle change.
type Event struct {
	// Type is the kind of the event.
	Type Type `json:"type"`
	// JobID is the job identifier.
	JobID string `json:"job_id"`
	// URL is the requested media URL.
	URL string `json:"url"`
	// Status is the job status at the time of the event.
	Status model.JobStatus `json:"status"`
	// Result is the artifact of a completed job.
	Result *model.JobResult `json:"result,omitempty"`
	// Error is the failure message of a failed job.
	Error string `json:"error,omitempty"`
	// ErrorCode is the failure class of a failed job.
	ErrorCode string `json:"error_code,omitempty"`
	// OccurredAt is when the event happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobEvent builds an event from a job snapshot.
func NewJobEvent(eventType Type, job *model.Job) *Event {
	return &Event{
		Type:       eventType,
		JobID:      job.ID,
		URL:        job.URL,
		Status:     job.Status,
		Result:     job.Result,
		Error:      job.Error,
		ErrorCode:  job.ErrorCode,
		OccurredAt: job.UpdatedAt,
	}
}

// Publisher delivers job events.
type Publisher interface {
	// Publish sends one event.
	Publish(ctx context.Context, event *Event) error
	// Close releases the underlying connection.
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *Event) error {
	return nil
}

// Close implements Publisher.
func (NopPublisher) Close() error {
	return nil
}

// KafkaPublisher sends events to a Kafka topic keyed by job id.
type KafkaPublisher struct {
	// producer is the synchronous Kafka producer.
	producer sarama.SyncProducer
	// topic receives the events.
	topic string
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.ClientID = "media-grabber"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = kafkaMaxRetries
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.JobID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	if _, _, err = p.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
