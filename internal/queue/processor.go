// Package queue runs the submission pipeline: consume jobs, judge them,
// persist the terminal verdict, and fan out contest effects.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"gavel/internal/common/mq"
	"gavel/internal/common/storage"
	"gavel/internal/hub"
	"gavel/internal/judge/verdict"
	"gavel/internal/model"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

// Judge is the judging contract the processor drives.
type Judge interface {
	Judge(ctx context.Context, sub *model.Submission, problem *model.Problem, cases []model.TestCase, progress verdict.ProgressFunc) (verdict.Outcome, error)
}

// Awarder consumes first-solve events. The reward side (points, streaks)
// lives outside the judging pipeline; the processor only tells it when a
// user first solves a problem.
type Awarder interface {
	FirstSolve(ctx context.Context, sub *model.Submission) error
}

// Scoreboard is the contest scoring contract.
type Scoreboard interface {
	Recompute(ctx context.Context, contestID, userID int64) error
	Standings(ctx context.Context, contestID int64) ([]model.LeaderboardEntry, error)
}

// Config holds processor settings.
type Config struct {
	Topic         string        `yaml:"topic"`
	Workers       int           `yaml:"workers"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	BaseBackoff   time.Duration `yaml:"baseBackoff"`
	MaxBackoff    time.Duration `yaml:"maxBackoff"`
	AwardTopic    string        `yaml:"awardTopic"`
	ArchiveBucket string        `yaml:"archiveBucket"`
}

// Processor consumes submission jobs and drives each to exactly one
// terminal status.
type Processor struct {
	cfg      Config
	queue    mq.MessageQueue
	judge    Judge
	problems repository.ProblemRepository
	subs     repository.SubmissionRepository
	live     repository.LiveStatusRepository
	board    Scoreboard
	hub      *hub.Hub
	awards   Awarder               // optional; nil disables first-solve events
	store    storage.ObjectStorage // optional; nil disables archiving

	slots chan struct{}
}

func NewProcessor(cfg Config, queue mq.MessageQueue, judge Judge, problems repository.ProblemRepository, subs repository.SubmissionRepository, live repository.LiveStatusRepository, board Scoreboard, h *hub.Hub, awards Awarder, store storage.ObjectStorage) (*Processor, error) {
	if queue == nil || judge == nil || problems == nil || subs == nil || live == nil || board == nil || h == nil {
		return nil, appErr.ValidationError("dependencies", "required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "submissions"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Processor{
		cfg:      cfg,
		queue:    queue,
		judge:    judge,
		problems: problems,
		subs:     subs,
		live:     live,
		board:    board,
		hub:      h,
		awards:   awards,
		store:    store,
		slots:    make(chan struct{}, cfg.Workers),
	}, nil
}

// Enqueue publishes one job and seeds the live PENDING status.
func (p *Processor) Enqueue(ctx context.Context, job *model.SubmissionJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode job")
	}
	if err := p.queue.Publish(ctx, p.cfg.Topic, &mq.Message{
		ID:        job.SubmissionID,
		Body:      body,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	if err := p.live.Set(ctx, &model.LiveStatus{
		SubmissionID: job.SubmissionID,
		Status:       model.StatusPending,
		ReceivedAt:   time.Now().Unix(),
	}); err != nil {
		logger.Warn(ctx, "seed live status failed", zap.String("submission_id", job.SubmissionID), zap.Error(err))
	}
	return nil
}

// Start consumes the topic until ctx is canceled. It blocks.
func (p *Processor) Start(ctx context.Context) error {
	return p.queue.Subscribe(ctx, p.cfg.Topic, p.handle)
}

// handle is the per-message entry point. The slot channel bounds how many
// submissions judge concurrently regardless of consumer parallelism.
func (p *Processor) handle(ctx context.Context, msg *mq.Message) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	var job model.SubmissionJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// A payload that cannot decode will never decode; drop it.
		logger.Error(ctx, "undecodable job dropped", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	return p.process(ctx, &job)
}

// process drives one submission to a terminal status. Infrastructure
// faults are retried with backoff inside the attempt budget; judging
// outcomes and validation faults are terminal on the first attempt.
func (p *Processor) process(ctx context.Context, job *model.SubmissionJob) error {
	sub, err := p.subs.GetByID(ctx, job.SubmissionID)
	if err != nil {
		return err
	}
	if sub.Status.IsTerminal() {
		// Redelivered after a finished run; all effects are already applied.
		return nil
	}

	outcome, err := p.judgeWithRetry(ctx, sub)
	if err != nil {
		outcome = verdict.Outcome{
			Status:  model.StatusError,
			Message: appErr.GetError(err).Message,
		}
	}
	return p.finish(ctx, sub, outcome)
}

func (p *Processor) judgeWithRetry(ctx context.Context, sub *model.Submission) (verdict.Outcome, error) {
	problem, err := p.problems.GetByID(ctx, sub.ProblemID)
	if err != nil {
		return verdict.Outcome{}, err
	}
	cases, err := p.problems.GetTestCases(ctx, sub.ProblemID)
	if err != nil {
		return verdict.Outcome{}, err
	}

	progress := func(done, total int) {
		p.publishProgress(ctx, sub.ID, done, total)
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := ComputeBackoff(attempt, p.cfg.BaseBackoff, p.cfg.MaxBackoff)
			logger.Warn(ctx, "retrying submission after infrastructure fault",
				zap.String("submission_id", sub.ID),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return verdict.Outcome{}, ctx.Err()
			}
		}
		outcome, err := p.judge.Judge(ctx, sub, problem, cases, progress)
		if err == nil {
			return outcome, nil
		}
		if !retryable(err) {
			return verdict.Outcome{}, err
		}
		lastErr = err
	}
	return verdict.Outcome{}, appErr.Wrapf(lastErr, appErr.JudgeSystemError, "retry budget exhausted for submission %s", sub.ID)
}

// retryable reports whether the fault is worth another attempt. Validation
// and judging faults are deterministic; only environment faults qualify.
func retryable(err error) bool {
	switch appErr.GetCode(err) {
	case appErr.SandboxProvision, appErr.DatabaseError, appErr.CacheError, appErr.Timeout:
		return true
	}
	return false
}

// finish applies the terminal transition and all contest side effects. The
// transition itself is the idempotency gate: when it does not apply, the
// effects were applied by an earlier run and are skipped wholesale.
func (p *Processor) finish(ctx context.Context, sub *model.Submission, outcome verdict.Outcome) error {
	applied, err := p.subs.Finalize(ctx, sub.ID, outcome.Status, outcome.Message, outcome.TimeMs, outcome.MemoryKB)
	if err != nil {
		return err
	}
	if !applied {
		logger.Info(ctx, "submission already terminal, skipping effects",
			zap.String("submission_id", sub.ID))
		return nil
	}

	now := time.Now().Unix()
	status := &model.LiveStatus{
		SubmissionID: sub.ID,
		Status:       outcome.Status,
		Message:      outcome.Message,
		Progress:     model.Progress{TotalTests: outcome.TotalTests, DoneTests: outcome.PassedTests},
		TimeMs:       outcome.TimeMs,
		MemoryKB:     outcome.MemoryKB,
		FinishedAt:   now,
		ReceivedAt:   sub.CreatedAt.Unix(),
	}
	if err := p.live.Set(ctx, status); err != nil {
		logger.Warn(ctx, "write terminal live status failed", zap.String("submission_id", sub.ID), zap.Error(err))
	}
	p.hub.BroadcastSubmission(ctx, sub.ID, status, true)

	if outcome.Status == model.StatusPass {
		if err := p.applySolve(ctx, sub); err != nil {
			return err
		}
	}

	p.archiveSource(ctx, sub)
	return nil
}

// applySolve runs the first-solve effects for any PASS, practice included.
// The look-back makes them idempotent: a re-judged duplicate PASS fires no
// award and skips the recompute. A contest solve additionally runs the
// persist, recompute, broadcast chain synchronously so watchers never see
// a stale board after a solve.
func (p *Processor) applySolve(ctx context.Context, sub *model.Submission) error {
	already, err := p.subs.HasAcceptedBefore(ctx, sub.UserID, sub.ProblemID, sub.ContestID, sub.CreatedAt, sub.ID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if p.awards != nil {
		if err := p.awards.FirstSolve(ctx, sub); err != nil {
			logger.Warn(ctx, "first-solve award failed",
				zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}
	if sub.ContestID == 0 {
		return nil
	}
	if err := p.board.Recompute(ctx, sub.ContestID, sub.UserID); err != nil {
		return err
	}
	standings, err := p.board.Standings(ctx, sub.ContestID)
	if err != nil {
		return err
	}
	p.hub.BroadcastLeaderboard(ctx, sub.ContestID, standings)
	return nil
}

func (p *Processor) publishProgress(ctx context.Context, submissionID string, done, total int) {
	status := &model.LiveStatus{
		SubmissionID: submissionID,
		Status:       model.StatusPending,
		Progress:     model.Progress{TotalTests: total, DoneTests: done},
		ReceivedAt:   time.Now().Unix(),
	}
	if err := p.live.Set(ctx, status); err != nil {
		logger.Debug(ctx, "progress write failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
	p.hub.BroadcastSubmission(ctx, submissionID, status, false)
}

// archiveSource stores the judged source compressed in object storage.
// Failures are logged and swallowed; the verdict is already durable.
func (p *Processor) archiveSource(ctx context.Context, sub *model.Submission) {
	if p.store == nil || p.cfg.ArchiveBucket == "" {
		return
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		logger.Warn(ctx, "archive encoder failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	if _, err := enc.Write([]byte(sub.Code)); err != nil {
		_ = enc.Close()
		logger.Warn(ctx, "archive compress failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	if err := enc.Close(); err != nil {
		logger.Warn(ctx, "archive compress failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	key := "submissions/" + sub.ID + ".zst"
	if err := p.store.Put(ctx, p.cfg.ArchiveBucket, key, &buf, int64(buf.Len()), "application/zstd"); err != nil {
		logger.Warn(ctx, "archive upload failed", zap.String("submission_id", sub.ID), zap.Error(err))
	}
}

// ComputeBackoff doubles the base per attempt and caps at max.
func ComputeBackoff(attempt int, base, max time.Duration) time.Duration {
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}
