// Package repository holds the MySQL and Redis persistence layer. Each
// repository is an interface plus one production implementation so the
// judging and contest engines can be tested against fakes.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"gavel/internal/common/db"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// ProblemRepository reads judgeable problems and their ordered test cases.
type ProblemRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Problem, error)
	GetTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error)
}

// MySQLProblemRepository implements ProblemRepository.
type MySQLProblemRepository struct {
	db db.Database
}

func NewProblemRepository(database db.Database) *MySQLProblemRepository {
	return &MySQLProblemRepository{db: database}
}

const problemColumns = "id, title, statement, difficulty, tags, kind, languages, time_limit_ms, memory_mb, schema_sql, seed_data, order_matters, published, created_at"

func (r *MySQLProblemRepository) GetByID(ctx context.Context, id int64) (*model.Problem, error) {
	if id <= 0 {
		return nil, appErr.ValidationError("problem_id", "must be positive")
	}
	query := "SELECT " + problemColumns + " FROM problems WHERE id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, id)

	p := &model.Problem{}
	var tags, langs sql.NullString
	var schema, seed sql.NullString
	var orderMatters bool
	if err := row.Scan(
		&p.ID, &p.Title, &p.Statement, &p.Difficulty, &tags, &p.Kind, &langs,
		&p.TimeLimitMs, &p.MemoryMB, &schema, &seed, &orderMatters, &p.Published, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.Newf(appErr.ProblemNotFound, "problem %d not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query problem")
	}
	p.Schema = schema.String
	p.SeedData = seed.String
	p.OrderMatters = orderMatters
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode tags for problem %d", id)
		}
	}
	if langs.Valid && langs.String != "" {
		if err := json.Unmarshal([]byte(langs.String), &p.Languages); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "decode languages for problem %d", id)
		}
	}
	return p, nil
}

// GetTestCases returns the problem's cases in judging order.
func (r *MySQLProblemRepository) GetTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error) {
	query := `
		SELECT id, problem_id, ordinal, input, expected, expected_rows, hidden
		FROM test_cases WHERE problem_id = ? ORDER BY ordinal ASC
	`
	rows, err := r.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query test cases")
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		var expectedRows sql.NullString
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Ordinal, &tc.Input, &tc.Expected, &expectedRows, &tc.Hidden); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan test case")
		}
		if expectedRows.Valid && expectedRows.String != "" {
			if err := json.Unmarshal([]byte(expectedRows.String), &tc.ExpectedRows); err != nil {
				return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "decode expected rows for case %d", tc.ID)
			}
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate test cases")
	}
	return cases, nil
}
