package leaderboard

import (
	"context"
	"testing"
	"time"

	"gavel/internal/model"
)

type fakeContestRepo struct {
	contest *model.Contest
}

func (f *fakeContestRepo) GetByID(_ context.Context, _ int64) (*model.Contest, error) {
	return f.contest, nil
}

type fakeSubmissionRepo struct {
	subs []model.Submission
}

func (f *fakeSubmissionRepo) Create(context.Context, *model.Submission) error { return nil }
func (f *fakeSubmissionRepo) GetByID(context.Context, string) (*model.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissionRepo) Finalize(context.Context, string, model.SubmissionStatus, string, int64, int64) (bool, error) {
	return true, nil
}
func (f *fakeSubmissionRepo) HasAcceptedBefore(context.Context, int64, int64, int64, time.Time, string) (bool, error) {
	return false, nil
}
func (f *fakeSubmissionRepo) ListForParticipant(context.Context, int64, int64) ([]model.Submission, error) {
	return f.subs, nil
}

type scoreWrite struct {
	solved  int
	penalty int64
	score   int
}

type fakeParticipationRepo struct {
	parts  []model.Participation
	writes []scoreWrite
}

func (f *fakeParticipationRepo) Get(context.Context, int64, int64) (*model.Participation, error) {
	return nil, nil
}
func (f *fakeParticipationRepo) ListByContest(context.Context, int64) ([]model.Participation, error) {
	return f.parts, nil
}
func (f *fakeParticipationRepo) UpdateScore(_ context.Context, _, _ int64, solved int, penalty int64, score int) error {
	f.writes = append(f.writes, scoreWrite{solved, penalty, score})
	return nil
}
func (f *fakeParticipationRepo) IncrementViolations(context.Context, int64, int64) (int, error) {
	return 0, nil
}
func (f *fakeParticipationRepo) SetFlagged(context.Context, int64, int64, bool) error { return nil }
func (f *fakeParticipationRepo) SetDisqualified(context.Context, int64, int64) error  { return nil }

func contestStarting(start time.Time) *model.Contest {
	return &model.Contest{ID: 1, StartTime: start, EndTime: start.Add(5 * time.Hour)}
}

func sub(problemID int64, status model.SubmissionStatus, at time.Time) model.Submission {
	return model.Submission{ProblemID: problemID, Status: status, CreatedAt: at}
}

func TestTallyPenaltyWithWrongTries(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contest := contestStarting(start)

	// Two failed tries, then a solve at minute 12: 12 + 2*20 = 52.
	subs := []model.Submission{
		sub(1, model.StatusFail, start.Add(3*time.Minute)),
		sub(1, model.StatusRuntimeError, start.Add(7*time.Minute)),
		sub(1, model.StatusPass, start.Add(12*time.Minute)),
	}
	solved, penalty := Tally(contest, subs)
	if solved != 1 {
		t.Fatalf("solved = %d, want 1", solved)
	}
	if penalty != 52 {
		t.Fatalf("penalty = %d, want 52", penalty)
	}
}

func TestTallyIgnoresAfterFirstSolve(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contest := contestStarting(start)

	// Failures and re-solves after the first PASS change nothing.
	subs := []model.Submission{
		sub(1, model.StatusPass, start.Add(10*time.Minute)),
		sub(1, model.StatusFail, start.Add(20*time.Minute)),
		sub(1, model.StatusPass, start.Add(30*time.Minute)),
	}
	solved, penalty := Tally(contest, subs)
	if solved != 1 || penalty != 10 {
		t.Fatalf("got %d/%d, want 1/10", solved, penalty)
	}
}

func TestTallyUnsolvedProblemNoPenalty(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contest := contestStarting(start)

	subs := []model.Submission{
		sub(1, model.StatusFail, start.Add(5*time.Minute)),
		sub(1, model.StatusTimeLimit, start.Add(9*time.Minute)),
		sub(2, model.StatusPass, start.Add(15*time.Minute)),
	}
	solved, penalty := Tally(contest, subs)
	if solved != 1 {
		t.Fatalf("solved = %d, want 1", solved)
	}
	if penalty != 15 {
		t.Fatalf("penalty = %d, want 15 (unsolved problem must not count)", penalty)
	}
}

func TestTallySkipsPending(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contest := contestStarting(start)

	subs := []model.Submission{
		sub(1, model.StatusPending, start.Add(2*time.Minute)),
		sub(1, model.StatusPass, start.Add(8*time.Minute)),
	}
	solved, penalty := Tally(contest, subs)
	if solved != 1 || penalty != 8 {
		t.Fatalf("got %d/%d, want 1/8", solved, penalty)
	}
}

func TestRecomputeWritesDerivedTriple(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	parts := &fakeParticipationRepo{}
	e, err := NewEngine(
		&fakeContestRepo{contest: contestStarting(start)},
		&fakeSubmissionRepo{subs: []model.Submission{
			sub(1, model.StatusFail, start.Add(3*time.Minute)),
			sub(1, model.StatusPass, start.Add(12*time.Minute)),
			sub(2, model.StatusPass, start.Add(40*time.Minute)),
		}},
		parts,
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Recompute(context.Background(), 1, 9); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(parts.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(parts.writes))
	}
	w := parts.writes[0]
	if w.solved != 2 || w.penalty != 72 || w.score != 200 {
		t.Fatalf("write = %+v, want solved=2 penalty=72 score=200", w)
	}
}

func TestStandingsOrderingAndRanks(t *testing.T) {
	parts := &fakeParticipationRepo{parts: []model.Participation{
		{UserID: 1, SolvedCount: 2, PenaltyTime: 90, Score: 200},
		{UserID: 2, SolvedCount: 3, PenaltyTime: 200, Score: 300},
		{UserID: 3, SolvedCount: 2, PenaltyTime: 60, Score: 200, IsFlagged: true},
		{UserID: 4, SolvedCount: 0, PenaltyTime: 0, Score: 0},
	}}
	e, err := NewEngine(&fakeContestRepo{contest: contestStarting(time.Now())}, &fakeSubmissionRepo{}, parts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	entries, err := e.Standings(context.Background(), 1)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	wantOrder := []int64{2, 3, 1, 4}
	for i, want := range wantOrder {
		if entries[i].UserID != want {
			t.Fatalf("position %d = user %d, want %d", i, entries[i].UserID, want)
		}
		if entries[i].Rank != i+1 {
			t.Fatalf("rank at %d = %d, want %d", i, entries[i].Rank, i+1)
		}
	}
	if !entries[1].IsFlagged {
		t.Fatal("flag must survive into the leaderboard entry")
	}
}
