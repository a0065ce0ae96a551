// Package api wires the HTTP and websocket surface onto the contest and
// judging services.
package api

import (
	"github.com/gin-gonic/gin"

	"gavel/internal/api/controller"
	"gavel/internal/api/middleware"
	"gavel/internal/contest/anticheat"
	"gavel/internal/hub"
	"gavel/internal/judge/languages"
	"gavel/internal/queue"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth      middleware.AuthConfig
	Registry  *languages.Registry
	Problems  repository.ProblemRepository
	Subs      repository.SubmissionRepository
	Live      repository.LiveStatusRepository
	Processor *queue.Processor
	Board     queue.Scoreboard
	Tracker   *anticheat.Tracker
	Hub       *hub.Hub
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Registry == nil || deps.Problems == nil || deps.Subs == nil ||
		deps.Live == nil || deps.Processor == nil || deps.Board == nil ||
		deps.Tracker == nil || deps.Hub == nil {
		return nil, appErr.ValidationError("dependencies", "required")
	}
	auth, err := middleware.NewAuthenticator(deps.Auth)
	if err != nil {
		return nil, err
	}

	submissions := controller.NewSubmissionController(deps.Registry, deps.Problems, deps.Subs, deps.Live, deps.Processor)
	contests := controller.NewContestController(deps.Board, deps.Tracker)
	admin := controller.NewAdminController(deps.Tracker)
	ws := controller.NewWSController(deps.Hub, deps.Board, deps.Live, auth)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Trace())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/contests/:id/leaderboard", contests.Leaderboard)

		authed := v1.Group("", middleware.Auth(auth))
		{
			authed.POST("/submissions", submissions.Create)
			authed.GET("/submissions/:id", submissions.Get)
			authed.POST("/contests/:id/violations", contests.ReportViolation)
		}

		adminGroup := v1.Group("/admin", middleware.Auth(auth), middleware.RequireRole(middleware.RoleAdmin))
		{
			adminGroup.POST("/contests/:id/disqualify", admin.Disqualify)
			adminGroup.POST("/contests/:id/unflag", admin.Unflag)
			adminGroup.GET("/contests/:id/violations", admin.Violations)
		}
	}

	wsGroup := r.Group("/ws")
	{
		wsGroup.GET("/contests/:id/leaderboard", ws.Leaderboard)
		wsGroup.GET("/submissions/:id", ws.Submission)
		wsGroup.GET("/admin/alerts", ws.AdminAlerts)
	}

	return r, nil
}
