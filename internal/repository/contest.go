package repository

import (
	"context"
	"database/sql"
	"errors"

	"gavel/internal/common/db"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// ContestRepository reads contest windows.
type ContestRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Contest, error)
}

// ParticipationRepository owns per-(user, contest) rows. Score fields and
// violation fields are written through separate field-scoped statements so
// the leaderboard engine and the anti-cheat tracker never overwrite each
// other's columns.
type ParticipationRepository interface {
	Get(ctx context.Context, contestID, userID int64) (*model.Participation, error)
	ListByContest(ctx context.Context, contestID int64) ([]model.Participation, error)

	// UpdateScore writes exactly the three derived score columns.
	UpdateScore(ctx context.Context, contestID, userID int64, solved int, penalty int64, score int) error

	// IncrementViolations bumps the counter atomically and returns the new
	// count.
	IncrementViolations(ctx context.Context, contestID, userID int64) (int, error)

	SetFlagged(ctx context.Context, contestID, userID int64, flagged bool) error
	SetDisqualified(ctx context.Context, contestID, userID int64) error
}

// MySQLContestRepository implements ContestRepository.
type MySQLContestRepository struct {
	db db.Database
}

func NewContestRepository(database db.Database) *MySQLContestRepository {
	return &MySQLContestRepository{db: database}
}

func (r *MySQLContestRepository) GetByID(ctx context.Context, id int64) (*model.Contest, error) {
	if id <= 0 {
		return nil, appErr.ValidationError("contest_id", "must be positive")
	}
	query := "SELECT id, title, start_time, end_time FROM contests WHERE id = ? LIMIT 1"
	c := &model.Contest{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.Newf(appErr.ContestNotFound, "contest %d not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query contest")
	}
	return c, nil
}

// MySQLParticipationRepository implements ParticipationRepository.
type MySQLParticipationRepository struct {
	db db.Database
}

func NewParticipationRepository(database db.Database) *MySQLParticipationRepository {
	return &MySQLParticipationRepository{db: database}
}

const participationColumns = "id, user_id, contest_id, solved_count, penalty_time, score, violation_count, is_flagged, disqualified, registered_at"

func (r *MySQLParticipationRepository) Get(ctx context.Context, contestID, userID int64) (*model.Participation, error) {
	query := "SELECT " + participationColumns + " FROM participations WHERE contest_id = ? AND user_id = ? LIMIT 1"
	p := &model.Participation{}
	err := r.db.QueryRow(ctx, query, contestID, userID).Scan(
		&p.ID, &p.UserID, &p.ContestID, &p.SolvedCount, &p.PenaltyTime, &p.Score,
		&p.ViolationCount, &p.IsFlagged, &p.Disqualified, &p.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.Newf(appErr.NotRegistered, "user %d is not registered for contest %d", userID, contestID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query participation")
	}
	return p, nil
}

func (r *MySQLParticipationRepository) ListByContest(ctx context.Context, contestID int64) ([]model.Participation, error) {
	query := "SELECT " + participationColumns + " FROM participations WHERE contest_id = ?"
	rows, err := r.db.Query(ctx, query, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query participations")
	}
	defer rows.Close()

	var out []model.Participation
	for rows.Next() {
		var p model.Participation
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.ContestID, &p.SolvedCount, &p.PenaltyTime, &p.Score,
			&p.ViolationCount, &p.IsFlagged, &p.Disqualified, &p.RegisteredAt,
		); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan participation")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate participations")
	}
	return out, nil
}

func (r *MySQLParticipationRepository) UpdateScore(ctx context.Context, contestID, userID int64, solved int, penalty int64, score int) error {
	query := `
		UPDATE participations
		SET solved_count = ?, penalty_time = ?, score = ?
		WHERE contest_id = ? AND user_id = ?
	`
	// Affected-row count is not checked: MySQL reports zero when the new
	// values equal the old ones, and recomputes are frequently no-ops.
	if _, err := r.db.Exec(ctx, query, solved, penalty, score, contestID, userID); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "update score fields")
	}
	return nil
}

func (r *MySQLParticipationRepository) IncrementViolations(ctx context.Context, contestID, userID int64) (int, error) {
	query := "UPDATE participations SET violation_count = violation_count + 1 WHERE contest_id = ? AND user_id = ?"
	res, err := r.db.Exec(ctx, query, contestID, userID)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "increment violations")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "increment violations rows")
	}
	if affected == 0 {
		return 0, appErr.Newf(appErr.NotRegistered, "user %d is not registered for contest %d", userID, contestID)
	}
	var count int
	err = r.db.QueryRow(ctx, "SELECT violation_count FROM participations WHERE contest_id = ? AND user_id = ?", contestID, userID).Scan(&count)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "read violation count")
	}
	return count, nil
}

func (r *MySQLParticipationRepository) SetFlagged(ctx context.Context, contestID, userID int64, flagged bool) error {
	if _, err := r.db.Exec(ctx, "UPDATE participations SET is_flagged = ? WHERE contest_id = ? AND user_id = ?", flagged, contestID, userID); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "set flagged")
	}
	return nil
}

func (r *MySQLParticipationRepository) SetDisqualified(ctx context.Context, contestID, userID int64) error {
	if _, err := r.db.Exec(ctx, "UPDATE participations SET disqualified = TRUE WHERE contest_id = ? AND user_id = ?", contestID, userID); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "set disqualified")
	}
	return nil
}
