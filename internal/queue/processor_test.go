package queue

import (
	"context"
	"testing"
	"time"

	"gavel/internal/common/mq"
	"gavel/internal/hub"
	"gavel/internal/judge/verdict"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

type fakeJudge struct {
	outcomes []verdict.Outcome
	errs     []error
	calls    int
}

func (f *fakeJudge) Judge(_ context.Context, _ *model.Submission, _ *model.Problem, _ []model.TestCase, _ verdict.ProgressFunc) (verdict.Outcome, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out verdict.Outcome
	if i < len(f.outcomes) {
		out = f.outcomes[i]
	}
	return out, err
}

type fakeProblemRepo struct {
	problem *model.Problem
	cases   []model.TestCase
}

func (f *fakeProblemRepo) GetByID(context.Context, int64) (*model.Problem, error) {
	return f.problem, nil
}
func (f *fakeProblemRepo) GetTestCases(context.Context, int64) ([]model.TestCase, error) {
	return f.cases, nil
}

type finalizeCall struct {
	status  model.SubmissionStatus
	message string
}

type fakeSubRepo struct {
	sub           *model.Submission
	finalized     []finalizeCall
	priorAccepted bool
	lookbacks     int
}

func (f *fakeSubRepo) Create(context.Context, *model.Submission) error { return nil }
func (f *fakeSubRepo) GetByID(context.Context, string) (*model.Submission, error) {
	cp := *f.sub
	return &cp, nil
}
func (f *fakeSubRepo) Finalize(_ context.Context, _ string, status model.SubmissionStatus, message string, _, _ int64) (bool, error) {
	if f.sub.Status.IsTerminal() {
		return false, nil
	}
	f.sub.Status = status
	f.finalized = append(f.finalized, finalizeCall{status, message})
	return true, nil
}
func (f *fakeSubRepo) HasAcceptedBefore(context.Context, int64, int64, int64, time.Time, string) (bool, error) {
	f.lookbacks++
	return f.priorAccepted, nil
}
func (f *fakeSubRepo) ListForParticipant(context.Context, int64, int64) ([]model.Submission, error) {
	return nil, nil
}

type fakeLiveRepo struct {
	statuses []model.LiveStatus
}

func (f *fakeLiveRepo) Set(_ context.Context, s *model.LiveStatus) error {
	f.statuses = append(f.statuses, *s)
	return nil
}
func (f *fakeLiveRepo) Get(context.Context, string) (*model.LiveStatus, error) { return nil, nil }
func (f *fakeLiveRepo) Delete(context.Context, string) error                   { return nil }

type fakeBoard struct {
	recomputes int
	standings  int
}

func (f *fakeBoard) Recompute(context.Context, int64, int64) error {
	f.recomputes++
	return nil
}
func (f *fakeBoard) Standings(context.Context, int64) ([]model.LeaderboardEntry, error) {
	f.standings++
	return []model.LeaderboardEntry{}, nil
}

type fakeAwarder struct {
	solves []string
}

func (f *fakeAwarder) FirstSolve(_ context.Context, sub *model.Submission) error {
	f.solves = append(f.solves, sub.ID)
	return nil
}

type fixture struct {
	proc   *Processor
	judge  *fakeJudge
	subs   *fakeSubRepo
	live   *fakeLiveRepo
	board  *fakeBoard
	awards *fakeAwarder
}

func newFixture(t *testing.T, judge *fakeJudge, sub *model.Submission) *fixture {
	t.Helper()
	subs := &fakeSubRepo{sub: sub}
	live := &fakeLiveRepo{}
	board := &fakeBoard{}
	awards := &fakeAwarder{}
	problems := &fakeProblemRepo{
		problem: &model.Problem{ID: sub.ProblemID, Kind: model.ProblemKindCode, TimeLimitMs: 2000, MemoryMB: 256},
		cases:   []model.TestCase{{Ordinal: 1}},
	}
	proc, err := NewProcessor(
		Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond},
		mq.NewMemoryQueue(16), judge, problems, subs, live, board, hub.New(), awards, nil,
	)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return &fixture{proc: proc, judge: judge, subs: subs, live: live, board: board, awards: awards}
}

func pendingSubmission(contestID int64) *model.Submission {
	return &model.Submission{
		ID: "sub-1", UserID: 9, ProblemID: 7, ContestID: contestID,
		Code: "print(1)", Language: "python",
		Status: model.StatusPending, CreatedAt: time.Now(),
	}
}

func TestProcessPassFinalizesOnce(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass, TotalTests: 1, PassedTests: 1}}}
	fx := newFixture(t, judge, pendingSubmission(0))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fx.subs.finalized) != 1 || fx.subs.finalized[0].status != model.StatusPass {
		t.Fatalf("finalized = %+v", fx.subs.finalized)
	}
	if fx.board.recomputes != 0 {
		t.Fatal("practice submission must not touch the leaderboard")
	}
	if len(fx.awards.solves) != 1 {
		t.Fatalf("first-solve events = %d, practice PASS must fire the award", len(fx.awards.solves))
	}
}

func TestProcessPracticeDuplicateDeliveryAwardsOnce(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass, TotalTests: 1, PassedTests: 1}}}
	fx := newFixture(t, judge, pendingSubmission(0))
	job := &model.SubmissionJob{SubmissionID: "sub-1"}

	if err := fx.proc.process(context.Background(), job); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := fx.proc.process(context.Background(), job); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if len(fx.awards.solves) != 1 {
		t.Fatalf("first-solve events = %d, want exactly one", len(fx.awards.solves))
	}
}

func TestProcessDuplicateSolveSkipsAward(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass, TotalTests: 1, PassedTests: 1}}}
	fx := newFixture(t, judge, pendingSubmission(0))
	fx.subs.priorAccepted = true

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fx.subs.lookbacks != 1 {
		t.Fatalf("lookbacks = %d, want 1", fx.subs.lookbacks)
	}
	if len(fx.awards.solves) != 0 {
		t.Fatal("re-solved problem must not fire the award again")
	}
}

func TestProcessReprocessingIsNoOp(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass}}}
	fx := newFixture(t, judge, pendingSubmission(1))
	job := &model.SubmissionJob{SubmissionID: "sub-1"}

	if err := fx.proc.process(context.Background(), job); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := fx.proc.process(context.Background(), job); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if len(fx.subs.finalized) != 1 {
		t.Fatalf("finalized %d times, want exactly once", len(fx.subs.finalized))
	}
	if fx.judge.calls != 1 {
		t.Fatalf("judge ran %d times for a terminal submission", fx.judge.calls)
	}
	if fx.board.recomputes != 1 {
		t.Fatalf("recomputes = %d, want no double-count", fx.board.recomputes)
	}
}

func TestProcessRetriesInfrastructureFaults(t *testing.T) {
	provisionErr := appErr.Newf(appErr.SandboxProvision, "no capacity")
	judge := &fakeJudge{
		errs:     []error{provisionErr, provisionErr, nil},
		outcomes: []verdict.Outcome{{}, {}, {Status: model.StatusPass, TotalTests: 1, PassedTests: 1}},
	}
	fx := newFixture(t, judge, pendingSubmission(0))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if judge.calls != 3 {
		t.Fatalf("judge attempts = %d, want 3", judge.calls)
	}
	if fx.subs.finalized[0].status != model.StatusPass {
		t.Fatalf("status = %s", fx.subs.finalized[0].status)
	}
}

func TestProcessRetryBudgetExhaustedIsTerminalError(t *testing.T) {
	provisionErr := appErr.Newf(appErr.SandboxProvision, "no capacity")
	judge := &fakeJudge{errs: []error{provisionErr, provisionErr, provisionErr}}
	fx := newFixture(t, judge, pendingSubmission(0))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if judge.calls != 3 {
		t.Fatalf("judge attempts = %d, want budget of 3", judge.calls)
	}
	if len(fx.subs.finalized) != 1 || fx.subs.finalized[0].status != model.StatusError {
		t.Fatalf("finalized = %+v, want terminal ERROR", fx.subs.finalized)
	}
}

func TestProcessDeterministicFaultNotRetried(t *testing.T) {
	judge := &fakeJudge{errs: []error{appErr.Newf(appErr.LanguageNotSupported, "language cobol is not supported")}}
	fx := newFixture(t, judge, pendingSubmission(0))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if judge.calls != 1 {
		t.Fatalf("judge attempts = %d, deterministic faults must not retry", judge.calls)
	}
	if fx.subs.finalized[0].status != model.StatusError {
		t.Fatalf("status = %s", fx.subs.finalized[0].status)
	}
}

func TestProcessContestPassRecomputesAndBroadcasts(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass, TotalTests: 1, PassedTests: 1}}}
	fx := newFixture(t, judge, pendingSubmission(5))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fx.subs.lookbacks != 1 {
		t.Fatalf("lookbacks = %d, want 1", fx.subs.lookbacks)
	}
	if fx.board.recomputes != 1 || fx.board.standings != 1 {
		t.Fatalf("recomputes/standings = %d/%d, want 1/1", fx.board.recomputes, fx.board.standings)
	}
}

func TestProcessDuplicateSolveSkipsRecompute(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusPass}}}
	fx := newFixture(t, judge, pendingSubmission(5))
	fx.subs.priorAccepted = true

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fx.board.recomputes != 0 {
		t.Fatal("duplicate solve must not recompute the board")
	}
}

func TestProcessContestFailSkipsBoard(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusFail}}}
	fx := newFixture(t, judge, pendingSubmission(5))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fx.subs.lookbacks != 0 || fx.board.recomputes != 0 {
		t.Fatal("non-PASS must not touch contest scoring")
	}
	if len(fx.awards.solves) != 0 {
		t.Fatal("non-PASS must not fire the award")
	}
}

func TestFinishWritesTerminalLiveStatus(t *testing.T) {
	judge := &fakeJudge{outcomes: []verdict.Outcome{{Status: model.StatusTimeLimit, Message: "time limit exceeded on test case 1", TimeMs: 2000}}}
	fx := newFixture(t, judge, pendingSubmission(0))

	if err := fx.proc.process(context.Background(), &model.SubmissionJob{SubmissionID: "sub-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	last := fx.live.statuses[len(fx.live.statuses)-1]
	if last.Status != model.StatusTimeLimit || last.FinishedAt == 0 {
		t.Fatalf("terminal live status = %+v", last)
	}
}

func TestComputeBackoffDoublesAndCaps(t *testing.T) {
	base, max := time.Second, 10*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tc := range tests {
		if got := ComputeBackoff(tc.attempt, base, max); got != tc.want {
			t.Errorf("ComputeBackoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
