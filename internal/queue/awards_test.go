package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gavel/internal/common/mq"
	"gavel/internal/model"
)

func TestEventAwarderPublishesFirstSolve(t *testing.T) {
	memQueue := mq.NewMemoryQueue(4)
	awards, err := NewEventAwarder(memQueue, "")
	if err != nil {
		t.Fatalf("NewEventAwarder: %v", err)
	}

	solvedAt := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	sub := &model.Submission{ID: "sub-1", UserID: 9, ProblemID: 7, ContestID: 5, CreatedAt: solvedAt}
	if err := awards.FirstSolve(context.Background(), sub); err != nil {
		t.Fatalf("FirstSolve: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var got FirstSolveEvent
	err = memQueue.Subscribe(ctx, "first-solves", func(_ context.Context, msg *mq.Message) error {
		defer cancel()
		return json.Unmarshal(msg.Body, &got)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	want := FirstSolveEvent{SubmissionID: "sub-1", UserID: 9, ProblemID: 7, ContestID: 5, SolvedAt: solvedAt.Unix()}
	if got != want {
		t.Fatalf("event = %+v, want %+v", got, want)
	}
}
