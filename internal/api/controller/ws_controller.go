package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gavel/internal/api/middleware"
	"gavel/internal/hub"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
	"gavel/pkg/utils/response"
)

// WSController upgrades subscriber connections and hands them to the hub.
type WSController struct {
	hub      *hub.Hub
	board    Standings
	live     repository.LiveStatusRepository
	auth     *middleware.Authenticator
	upgrader websocket.Upgrader
}

func NewWSController(h *hub.Hub, board Standings, live repository.LiveStatusRepository, auth *middleware.Authenticator) *WSController {
	return &WSController{
		hub:   h,
		board: board,
		live:  live,
		auth:  auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Leaderboard streams standings updates for one contest. The current board
// is pushed as the first frame so late joiners never wait for a solve.
func (h *WSController) Leaderboard(c *gin.Context) {
	contestID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.board.Standings(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.SubscribeContest(contestID, conn)
	h.hub.PushSnapshot(conn, hub.EventLeaderboard, contestID, entries)
	h.hub.Serve(c.Request.Context(), conn)
}

// Submission streams status updates for one submission until the terminal
// verdict is broadcast.
func (h *WSController) Submission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.live.Get(c.Request.Context(), id)
	if err != nil && appErr.GetCode(err) != appErr.SubmissionNotFound {
		response.Error(c, err)
		return
	}
	conn, upErr := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if upErr != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(upErr))
		return
	}
	h.hub.SubscribeSubmission(id, conn)
	if status != nil {
		h.hub.PushSnapshot(conn, hub.EventSubmissionStatus, 0, status)
	}
	h.hub.Serve(c.Request.Context(), conn)
}

// AdminAlerts streams anti-cheat alerts. Browsers cannot set headers on
// websocket dials, so the token may ride in the query string instead.
func (h *WSController) AdminAlerts(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	identity, err := h.auth.Authenticate(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	if identity.Role != middleware.RoleAdmin {
		response.ErrorWithCode(c, appErr.PermissionDenied, "insufficient role")
		return
	}

	var contestID int64
	if raw := c.Query("contest_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(c, "Invalid contest_id")
			return
		}
		contestID = id
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.SubscribeAdmin(contestID, conn)
	h.hub.Serve(c.Request.Context(), conn)
}
