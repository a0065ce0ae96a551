package repository

import (
	"context"

	"gavel/internal/common/db"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// ViolationRepository is append-only. Entries are never updated or deleted;
// they are the audit trail behind flag and disqualification decisions.
type ViolationRepository interface {
	Append(ctx context.Context, v *model.Violation) error
	ListByParticipant(ctx context.Context, contestID, userID int64) ([]model.Violation, error)
}

// MySQLViolationRepository implements ViolationRepository.
type MySQLViolationRepository struct {
	db db.Database
}

func NewViolationRepository(database db.Database) *MySQLViolationRepository {
	return &MySQLViolationRepository{db: database}
}

func (r *MySQLViolationRepository) Append(ctx context.Context, v *model.Violation) error {
	if v == nil {
		return appErr.ValidationError("violation", "required")
	}
	query := `
		INSERT INTO violations (user_id, contest_id, type, metadata, client_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.Exec(ctx, query, v.UserID, v.ContestID, v.Type, v.Metadata, v.ClientIP, v.CreatedAt)
	if err != nil {
		return appErr.Wrapf(err, appErr.ViolationRecordFailed, "insert violation")
	}
	if id, err := res.LastInsertId(); err == nil {
		v.ID = id
	}
	return nil
}

func (r *MySQLViolationRepository) ListByParticipant(ctx context.Context, contestID, userID int64) ([]model.Violation, error) {
	query := `
		SELECT id, user_id, contest_id, type, metadata, client_ip, created_at
		FROM violations WHERE contest_id = ? AND user_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, contestID, userID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query violations")
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.UserID, &v.ContestID, &v.Type, &v.Metadata, &v.ClientIP, &v.CreatedAt); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan violation")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate violations")
	}
	return out, nil
}
