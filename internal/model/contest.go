package model

import "time"

// Contest is the timed competition window submissions may belong to.
type Contest struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Active reports whether t falls inside the contest window.
func (c *Contest) Active(t time.Time) bool {
	return !t.Before(c.StartTime) && !t.After(c.EndTime)
}

// Participation is a user's per-contest scoring and anti-cheat record,
// unique per (user, contest). The leaderboard engine owns the score fields
// and the anti-cheat tracker owns the violation fields; the two mutation
// paths use field-scoped updates so they cannot clobber each other.
type Participation struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	ContestID int64 `json:"contest_id"`

	SolvedCount int   `json:"solved_count"`
	PenaltyTime int64 `json:"penalty_time"` // minutes
	Score       int   `json:"score"`

	ViolationCount int  `json:"violation_count"`
	IsFlagged      bool `json:"is_flagged"`
	Disqualified   bool `json:"disqualified"`

	RegisteredAt time.Time `json:"registered_at"`
}

// LeaderboardEntry is one ranked row of a contest leaderboard. Rank is the
// 1-based position under the ordering solved desc, penalty asc, score desc,
// recomputed on every read.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       int64  `json:"user_id"`
	SolvedCount  int    `json:"solved_count"`
	PenaltyTime  int64  `json:"penalty_time"`
	Score        int    `json:"score"`
	IsFlagged    bool   `json:"is_flagged"`
	Disqualified bool   `json:"disqualified"`
}
