package mq

import (
	"context"
	"sync"

	appErr "gavel/pkg/errors"
)

// MemoryQueue is an in-process MessageQueue used by tests and single-node
// deployments. Delivery is at-least-once within the process lifetime only.
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string]chan *Message
	closed bool
	buffer int
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryQueue{topics: make(map[string]chan *Message), buffer: buffer}
}

func (q *MemoryQueue) channel(topic string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.topics[topic]
	if !ok {
		ch = make(chan *Message, q.buffer)
		q.topics[topic] = ch
	}
	return ch
}

func (q *MemoryQueue) Publish(ctx context.Context, topic string, msg *Message) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return appErr.Newf(appErr.InternalServerError, "queue is closed")
	}
	select {
	case q.channel(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return appErr.Newf(appErr.JudgeQueueFull, "topic buffer is full")
	}
}

func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	ch := q.channel(topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			// Failed messages are requeued so the processor's retry
			// semantics match the broker-backed queue.
			if err := handler(ctx, msg); err != nil {
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

func (q *MemoryQueue) Ping(context.Context) error { return nil }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.topics {
		close(ch)
	}
	return nil
}
