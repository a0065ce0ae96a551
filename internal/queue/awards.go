package queue

import (
	"context"
	"encoding/json"
	"time"

	"gavel/internal/common/mq"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// FirstSolveEvent is the payload published for the rewards consumer.
type FirstSolveEvent struct {
	SubmissionID string `json:"submission_id"`
	UserID       int64  `json:"user_id"`
	ProblemID    int64  `json:"problem_id"`
	ContestID    int64  `json:"contest_id"`
	SolvedAt     int64  `json:"solved_at"`
}

// EventAwarder publishes first-solve events to a dedicated topic. Point and
// streak accounting happens in the consumer on the other side.
type EventAwarder struct {
	queue mq.MessageQueue
	topic string
}

func NewEventAwarder(queue mq.MessageQueue, topic string) (*EventAwarder, error) {
	if queue == nil {
		return nil, appErr.ValidationError("queue", "required")
	}
	if topic == "" {
		topic = "first-solves"
	}
	return &EventAwarder{queue: queue, topic: topic}, nil
}

func (a *EventAwarder) FirstSolve(ctx context.Context, sub *model.Submission) error {
	body, err := json.Marshal(FirstSolveEvent{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ProblemID:    sub.ProblemID,
		ContestID:    sub.ContestID,
		SolvedAt:     sub.CreatedAt.Unix(),
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode first-solve event")
	}
	return a.queue.Publish(ctx, a.topic, &mq.Message{
		ID:        sub.ID,
		Body:      body,
		Timestamp: time.Now(),
	})
}
