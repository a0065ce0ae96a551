package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gavel/internal/common/db"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// SubmissionRepository persists submissions. A submission is written once as
// PENDING and moved to exactly one terminal status by Finalize.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)

	// Finalize applies the terminal transition. It reports false when the
	// submission was already terminal, which makes reprocessing a no-op.
	Finalize(ctx context.Context, id string, status model.SubmissionStatus, message string, timeMs, memoryKB int64) (bool, error)

	// HasAcceptedBefore reports whether the user already has a PASS for the
	// problem in the contest from an earlier submission.
	HasAcceptedBefore(ctx context.Context, userID, problemID, contestID int64, before time.Time, excludeID string) (bool, error)

	// ListForParticipant returns the user's contest submissions in creation
	// order. The leaderboard recompute walks this history.
	ListForParticipant(ctx context.Context, contestID, userID int64) ([]model.Submission, error)
}

// MySQLSubmissionRepository implements SubmissionRepository.
type MySQLSubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

const submissionColumns = "id, user_id, problem_id, contest_id, code, language, status, message, time_ms, memory_kb, created_at"

func (r *MySQLSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil {
		return appErr.ValidationError("submission", "required")
	}
	if sub.ID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if sub.Status == "" {
		sub.Status = model.StatusPending
	}
	query := `
		INSERT INTO submissions
		(id, user_id, problem_id, contest_id, code, language, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.ContestID,
		sub.Code, sub.Language, sub.Status, sub.CreatedAt,
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "insert submission")
	}
	return nil
}

func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	if id == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	sub, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query submission")
	}
	return sub, nil
}

// Finalize is the only write that leaves PENDING. The status guard in the
// WHERE clause makes the transition single-shot under concurrent workers.
func (r *MySQLSubmissionRepository) Finalize(ctx context.Context, id string, status model.SubmissionStatus, message string, timeMs, memoryKB int64) (bool, error) {
	if !status.IsTerminal() {
		return false, appErr.ValidationError("status", "must be terminal")
	}
	query := `
		UPDATE submissions
		SET status = ?, message = ?, time_ms = ?, memory_kb = ?
		WHERE id = ? AND status = 'PENDING'
	`
	res, err := r.db.Exec(ctx, query, status, message, timeMs, memoryKB, id)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "finalize submission")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "finalize submission rows")
	}
	return affected == 1, nil
}

func (r *MySQLSubmissionRepository) HasAcceptedBefore(ctx context.Context, userID, problemID, contestID int64, before time.Time, excludeID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM submissions
		WHERE user_id = ? AND problem_id = ? AND contest_id = ?
		  AND status = 'PASS' AND created_at < ? AND id <> ?
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, problemID, contestID, before, excludeID).Scan(&count)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "query prior accepted")
	}
	return count > 0, nil
}

func (r *MySQLSubmissionRepository) ListForParticipant(ctx context.Context, contestID, userID int64) ([]model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE contest_id = ? AND user_id = ? ORDER BY created_at ASC, id ASC"
	rows, err := r.db.Query(ctx, query, contestID, userID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query participant submissions")
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan submission")
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate submissions")
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	sub := &model.Submission{}
	var message sql.NullString
	if err := row.Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.ContestID,
		&sub.Code, &sub.Language, &sub.Status, &message,
		&sub.TimeMs, &sub.MemoryKB, &sub.CreatedAt,
	); err != nil {
		return nil, err
	}
	sub.Message = message.String
	return sub, nil
}
