package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher announces pipeline outcomes.
type Publisher interface {
	SubjectIngested(ctx context.Context, evt SubjectIngested) error
	ValidationCompleted(ctx context.Context, evt ValidationCompleted) error
	Close() error
}

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
	Close() error
}

// Topics names the destination of each event kind.
type Topics struct {
	Ingest     string
	Validation string
}

// KafkaPublisher encodes events as JSON and writes them keyed by subject or run id.
type KafkaPublisher struct {
	writer messageWriter
	topics Topics
	now    func() time.Time
}

// NewKafkaPublisher wraps a writer. New supplies one backed by a broker connection.
func NewKafkaPublisher(writer messageWriter, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topics: topics, now: time.Now}
}

// New returns a Kafka-backed publisher, or a no-op one when no brokers are configured.
func New(brokers []string, topics Topics) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(newTopicWriters(brokers...), topics)
}

// topicWriters opens one kafka.Writer per topic on first use. Events are rare and
// keyed, so writers flush immediately and hash the key to pick a partition.
type topicWriters struct {
	addr net.Addr

	mu      sync.Mutex
	byTopic map[string]*kafka.Writer
}

func newTopicWriters(brokers ...string) *topicWriters {
	return &topicWriters{addr: kafka.TCP(brokers...), byTopic: map[string]*kafka.Writer{}}
}

func (w *topicWriters) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return w.forTopic(topic).WriteMessages(ctx, msgs...)
}

func (w *topicWriters) forTopic(topic string) *kafka.Writer {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kw, ok := w.byTopic[topic]; ok {
		return kw
	}
	kw := &kafka.Writer{
		Addr:                   w.addr,
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	w.byTopic[topic] = kw
	return kw
}

// Close flushes and drops every writer opened so far.
func (w *topicWriters) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for topic, kw := range w.byTopic {
		if err := kw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
	}
	clear(w.byTopic)
	return errors.Join(errs...)
}

// SubjectIngested publishes to the ingest topic.
func (p *KafkaPublisher) SubjectIngested(ctx context.Context, evt SubjectIngested) error {
	return p.publish(ctx, p.topics.Ingest, evt.SubjectID, evt)
}

// ValidationCompleted publishes to the validation topic.
func (p *KafkaPublisher) ValidationCompleted(ctx context.Context, evt ValidationCompleted) error {
	return p.publish(ctx, p.topics.Validation, evt.RunID, evt)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, payload any) error {
	if topic == "" {
		return nil
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  p.now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) SubjectIngested(context.Context, SubjectIngested) error         { return nil }
func (Noop) ValidationCompleted(context.Context, ValidationCompleted) error { return nil }
func (Noop) Close() error                                                   { return nil }
