// Package leaderboard maintains ICPC-style contest standings. Scores are
// always recomputed from the full submission history, never incremented,
// so reprocessing a submission cannot double-count.
package leaderboard

import (
	"context"
	"sort"
	"sync"

	"gavel/internal/model"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
)

const (
	penaltyPerWrong = 20  // minutes added per non-accepted try before the solve
	scorePerSolve   = 100
)

// Engine computes and persists per-participant standings.
type Engine struct {
	contests repository.ContestRepository
	subs     repository.SubmissionRepository
	parts    repository.ParticipationRepository

	mu    sync.Mutex
	locks map[participantKey]*sync.Mutex
}

type participantKey struct {
	contestID int64
	userID    int64
}

func NewEngine(contests repository.ContestRepository, subs repository.SubmissionRepository, parts repository.ParticipationRepository) (*Engine, error) {
	if contests == nil || subs == nil || parts == nil {
		return nil, appErr.ValidationError("repositories", "required")
	}
	return &Engine{
		contests: contests,
		subs:     subs,
		parts:    parts,
		locks:    make(map[participantKey]*sync.Mutex),
	}, nil
}

// lockFor serializes recomputes per participant. Different participants
// recompute concurrently; two submissions from the same user do not race.
func (e *Engine) lockFor(contestID, userID int64) *sync.Mutex {
	key := participantKey{contestID, userID}
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Recompute rebuilds one participant's solved count, penalty, and score from
// their full contest history and writes the three fields in one statement.
func (e *Engine) Recompute(ctx context.Context, contestID, userID int64) error {
	l := e.lockFor(contestID, userID)
	l.Lock()
	defer l.Unlock()

	contest, err := e.contests.GetByID(ctx, contestID)
	if err != nil {
		return err
	}
	subs, err := e.subs.ListForParticipant(ctx, contestID, userID)
	if err != nil {
		return err
	}

	solved, penalty := Tally(contest, subs)
	return e.parts.UpdateScore(ctx, contestID, userID, solved, penalty, solved*scorePerSolve)
}

// Tally folds a participant's submission history into (solved, penalty).
// Per problem: the first PASS fixes the solve; its penalty is the minutes
// from contest start to that submission plus 20 per earlier non-PASS try on
// the same problem. Unsolved problems contribute nothing.
func Tally(contest *model.Contest, subs []model.Submission) (solved int, penalty int64) {
	type problemState struct {
		wrongTries int64
		solvedAt   int64 // minutes from start, -1 while unsolved
	}
	states := make(map[int64]*problemState)

	for _, sub := range subs {
		if !sub.Status.IsTerminal() {
			continue
		}
		st, ok := states[sub.ProblemID]
		if !ok {
			st = &problemState{solvedAt: -1}
			states[sub.ProblemID] = st
		}
		if st.solvedAt >= 0 {
			continue
		}
		if sub.Status == model.StatusPass {
			minutes := int64(sub.CreatedAt.Sub(contest.StartTime).Minutes())
			if minutes < 0 {
				minutes = 0
			}
			st.solvedAt = minutes
			continue
		}
		st.wrongTries++
	}

	for _, st := range states {
		if st.solvedAt < 0 {
			continue
		}
		solved++
		penalty += st.solvedAt + st.wrongTries*penaltyPerWrong
	}
	return solved, penalty
}

// Standings returns the ranked leaderboard. Rank is assigned on read, 1-based,
// under the ordering solved desc, penalty asc, score desc.
func (e *Engine) Standings(ctx context.Context, contestID int64) ([]model.LeaderboardEntry, error) {
	parts, err := e.parts.ListByContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(parts))
	for _, p := range parts {
		entries = append(entries, model.LeaderboardEntry{
			UserID:       p.UserID,
			SolvedCount:  p.SolvedCount,
			PenaltyTime:  p.PenaltyTime,
			Score:        p.Score,
			IsFlagged:    p.IsFlagged,
			Disqualified: p.Disqualified,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.SolvedCount != b.SolvedCount {
			return a.SolvedCount > b.SolvedCount
		}
		if a.PenaltyTime != b.PenaltyTime {
			return a.PenaltyTime < b.PenaltyTime
		}
		return a.Score > b.Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
