package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"gavel/internal/api/middleware"
	"gavel/internal/contest/anticheat"
	"gavel/pkg/utils/response"
)

// AdminController handles manual anti-cheat transitions. Routes are gated on
// the admin role before they reach here.
type AdminController struct {
	tracker *anticheat.Tracker
}

func NewAdminController(tracker *anticheat.Tracker) *AdminController {
	return &AdminController{tracker: tracker}
}

// AdminActionRequest defines the manual transition payload.
type AdminActionRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// Disqualify removes a participant from contention.
func (h *AdminController) Disqualify(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	err := h.tracker.Disqualify(c.Request.Context(), middleware.CallerID(c), contestID, req.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Violations returns a participant's full violation history for review.
func (h *AdminController) Violations(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.BadRequest(c, "Invalid user_id")
		return
	}
	history, err := h.tracker.Audit(c.Request.Context(), contestID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}

// Unflag clears a participant's flag after review.
func (h *AdminController) Unflag(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	err := h.tracker.Unflag(c.Request.Context(), middleware.CallerID(c), contestID, req.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
