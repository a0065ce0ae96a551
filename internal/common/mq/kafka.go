package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig holds broker and consumer-group settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
}

// KafkaQueue implements MessageQueue over kafka-go. One writer serves all
// topics; each Subscribe owns its reader.
type KafkaQueue struct {
	cfg    KafkaConfig
	writer *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, appErr.ValidationError("brokers", "required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, appErr.ValidationError("consumerGroup", "required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaQueue{cfg: cfg, writer: writer}, nil
}

func (q *KafkaQueue) Publish(ctx context.Context, topic string, msg *Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+2)
	headers = append(headers,
		kafka.Header{Key: headerID, Value: []byte(msg.ID)},
		kafka.Header{Key: headerTimestamp, Value: []byte(msg.Timestamp.UTC().Format(time.RFC3339Nano))},
	)
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.ID),
		Value:   msg.Body,
		Headers: headers,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "publish message")
	}
	return nil
}

// Subscribe consumes topic until ctx ends. Messages are committed only after
// the handler returns nil, so a crashed worker's messages are redelivered.
func (q *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.cfg.Brokers,
		GroupID:  q.cfg.ConsumerGroup,
		Topic:    topic,
		MinBytes: q.cfg.MinBytes,
		MaxBytes: q.cfg.MaxBytes,
	})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		_ = reader.Close()
		return appErr.Newf(appErr.InternalServerError, "queue is closed")
	}
	q.readers = append(q.readers, reader)
	q.mu.Unlock()

	for {
		kmsg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return appErr.Wrapf(err, appErr.InternalServerError, "fetch message")
		}

		msg := fromKafkaMessage(kmsg)
		if err := handler(ctx, msg); err != nil {
			logger.Warn(ctx, "message handler failed, leaving uncommitted",
				zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if err := reader.CommitMessages(ctx, kmsg); err != nil {
			logger.Warn(ctx, "commit message failed",
				zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
}

func fromKafkaMessage(kmsg kafka.Message) *Message {
	msg := &Message{
		Body:      kmsg.Value,
		Timestamp: kmsg.Time,
		Headers:   make(map[string]string, len(kmsg.Headers)),
	}
	for _, h := range kmsg.Headers {
		switch h.Key {
		case headerID:
			msg.ID = string(h.Value)
		case headerTimestamp:
			if t, err := time.Parse(time.RFC3339Nano, string(h.Value)); err == nil {
				msg.Timestamp = t
			}
		default:
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	if msg.ID == "" {
		msg.ID = string(kmsg.Key)
	}
	return msg
}

func (q *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", q.cfg.Brokers[0])
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "dial broker")
	}
	return conn.Close()
}

func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	var firstErr error
	for _, r := range q.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := q.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
