package controller

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"gavel/internal/api/middleware"
	"gavel/internal/contest/anticheat"
	"gavel/internal/model"
	"gavel/pkg/utils/response"
)

// Standings is the leaderboard read contract.
type Standings interface {
	Standings(ctx context.Context, contestID int64) ([]model.LeaderboardEntry, error)
}

// ContestController handles leaderboard reads and violation reports.
type ContestController struct {
	board   Standings
	tracker *anticheat.Tracker
}

func NewContestController(board Standings, tracker *anticheat.Tracker) *ContestController {
	return &ContestController{board: board, tracker: tracker}
}

// Leaderboard returns the ranked standings for one contest.
func (h *ContestController) Leaderboard(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.board.Standings(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// ViolationRequest defines the violation report payload.
type ViolationRequest struct {
	Type     string `json:"type" binding:"required"`
	Metadata string `json:"metadata"`
}

// ReportViolation records one anti-cheat signal against the caller.
func (h *ContestController) ReportViolation(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.tracker.Report(c.Request.Context(), middleware.CallerID(c), contestID,
		model.ViolationType(req.Type), req.Metadata, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
