package controller

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gavel/internal/api/middleware"
	"gavel/internal/judge/languages"
	"gavel/internal/model"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/response"
)

const maxCodeBytes = 256 * 1024

// Enqueuer hands accepted submissions to the judging pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *model.SubmissionJob) error
}

// SubmissionController handles submission HTTP endpoints.
type SubmissionController struct {
	registry *languages.Registry
	problems repository.ProblemRepository
	subs     repository.SubmissionRepository
	live     repository.LiveStatusRepository
	queue    Enqueuer
}

func NewSubmissionController(registry *languages.Registry, problems repository.ProblemRepository, subs repository.SubmissionRepository, live repository.LiveStatusRepository, queue Enqueuer) *SubmissionController {
	return &SubmissionController{
		registry: registry,
		problems: problems,
		subs:     subs,
		live:     live,
		queue:    queue,
	}
}

// SubmitRequest defines the submission payload.
type SubmitRequest struct {
	ProblemID int64  `json:"problem_id" binding:"required"`
	ContestID int64  `json:"contest_id"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// SubmitResponse defines the submission response payload.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	ReceivedAt   int64  `json:"received_at"`
}

// Create accepts a submission, persists it PENDING, and enqueues the job.
func (h *SubmissionController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if len(req.Code) > maxCodeBytes {
		response.ErrorWithCode(c, appErr.CodeTooLarge, "")
		return
	}

	ctx := c.Request.Context()
	problem, err := h.problems.GetByID(ctx, req.ProblemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if problem.Kind == model.ProblemKindCode {
		if _, err := h.registry.Get(req.Language); err != nil {
			response.Error(c, err)
			return
		}
		if !problem.AllowsLanguage(req.Language) {
			response.ErrorWithCode(c, appErr.LanguageNotSupported, "language not allowed for this problem")
			return
		}
	}

	sub := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    middleware.CallerID(c),
		ProblemID: req.ProblemID,
		ContestID: req.ContestID,
		Code:      req.Code,
		Language:  req.Language,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := h.subs.Create(ctx, sub); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.queue.Enqueue(ctx, &model.SubmissionJob{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ProblemID:    sub.ProblemID,
		ContestID:    sub.ContestID,
		Code:         sub.Code,
		Language:     sub.Language,
	}); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, SubmitResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		ReceivedAt:   sub.CreatedAt.Unix(),
	})
}

// StatusResponse is the merged durable-plus-live view of one submission.
type StatusResponse struct {
	SubmissionID string         `json:"submission_id"`
	ProblemID    int64          `json:"problem_id"`
	ContestID    int64          `json:"contest_id,omitempty"`
	Language     string         `json:"language"`
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	Progress     model.Progress `json:"progress"`
	TimeMs       int64          `json:"time_ms,omitempty"`
	MemoryKB     int64          `json:"memory_kb,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

// Get returns one submission. While judging is in flight the live status
// overlays progress on top of the durable row.
func (h *SubmissionController) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	ctx := c.Request.Context()
	sub, err := h.subs.GetByID(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := StatusResponse{
		SubmissionID: sub.ID,
		ProblemID:    sub.ProblemID,
		ContestID:    sub.ContestID,
		Language:     sub.Language,
		Status:       string(sub.Status),
		Message:      sub.Message,
		TimeMs:       sub.TimeMs,
		MemoryKB:     sub.MemoryKB,
		CreatedAt:    sub.CreatedAt.Unix(),
	}
	if !sub.Status.IsTerminal() {
		if live, err := h.live.Get(ctx, id); err == nil {
			resp.Status = string(live.Status)
			resp.Message = live.Message
			resp.Progress = live.Progress
			resp.TimeMs = live.TimeMs
			resp.MemoryKB = live.MemoryKB
		}
	}
	response.Success(c, resp)
}
