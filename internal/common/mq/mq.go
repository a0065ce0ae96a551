// Package mq provides the submission job queue abstraction. Kafka backs it
// in production; the in-memory queue backs it in tests.
package mq

import (
	"context"
	"time"
)

// Message is one queue payload.
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// HandlerFunc processes one message. A non-nil return leaves the message
// unacknowledged so the broker redelivers it.
type HandlerFunc func(ctx context.Context, msg *Message) error

// MessageQueue is the producer/consumer contract the processor runs on.
type MessageQueue interface {
	// Publish appends a message to the topic.
	Publish(ctx context.Context, topic string, msg *Message) error

	// Subscribe consumes the topic with handler until ctx is canceled.
	// It blocks; callers run it in a goroutine.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error

	Ping(ctx context.Context) error
	Close() error
}
