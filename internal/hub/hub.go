// Package hub fans judging and contest events out to websocket subscribers.
// The Hub is an injected registry owned by the service, not process state.
package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gavel/pkg/utils/logger"
)

// Conn is the write surface the hub needs from a websocket connection.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const writeTimeout = 10 * time.Second

// Event is one broadcast payload.
type Event struct {
	Type      string      `json:"type"`
	ContestID int64       `json:"contest_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Event types.
const (
	EventLeaderboard      = "leaderboard_update"
	EventSubmissionStatus = "submission_status"
	EventAdminAlert       = "admin_alert"
)

// Hub tracks three subscriber families: per-contest leaderboard watchers,
// per-submission one-shot watchers, and admin alert listeners (contest
// scoped or global). A connection that fails a write is dropped on the spot.
type Hub struct {
	mu             sync.RWMutex
	contestSubs    map[int64]map[Conn]struct{}
	submissionSubs map[string]map[Conn]struct{}
	adminGlobal    map[Conn]struct{}
	adminContest   map[int64]map[Conn]struct{}
}

func New() *Hub {
	return &Hub{
		contestSubs:    make(map[int64]map[Conn]struct{}),
		submissionSubs: make(map[string]map[Conn]struct{}),
		adminGlobal:    make(map[Conn]struct{}),
		adminContest:   make(map[int64]map[Conn]struct{}),
	}
}

// SubscribeContest registers a leaderboard watcher.
func (h *Hub) SubscribeContest(contestID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.contestSubs[contestID] == nil {
		h.contestSubs[contestID] = make(map[Conn]struct{})
	}
	h.contestSubs[contestID][c] = struct{}{}
}

// SubscribeSubmission registers a watcher for one submission's lifecycle.
// The whole set is torn down when the terminal status is broadcast.
func (h *Hub) SubscribeSubmission(submissionID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.submissionSubs[submissionID] == nil {
		h.submissionSubs[submissionID] = make(map[Conn]struct{})
	}
	h.submissionSubs[submissionID][c] = struct{}{}
}

// SubscribeAdmin registers an alert listener. contestID 0 subscribes to
// every contest.
func (h *Hub) SubscribeAdmin(contestID int64, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if contestID == 0 {
		h.adminGlobal[c] = struct{}{}
		return
	}
	if h.adminContest[contestID] == nil {
		h.adminContest[contestID] = make(map[Conn]struct{})
	}
	h.adminContest[contestID][c] = struct{}{}
}

// Unsubscribe removes the connection from every set. Safe to call for a
// connection the hub never saw.
func (h *Hub) Unsubscribe(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.contestSubs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.contestSubs, id)
		}
	}
	for id, set := range h.submissionSubs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.submissionSubs, id)
		}
	}
	delete(h.adminGlobal, c)
	for id, set := range h.adminContest {
		delete(set, c)
		if len(set) == 0 {
			delete(h.adminContest, id)
		}
	}
}

// BroadcastLeaderboard pushes fresh standings to a contest's watchers.
func (h *Hub) BroadcastLeaderboard(ctx context.Context, contestID int64, standings interface{}) {
	event := Event{
		Type:      EventLeaderboard,
		ContestID: contestID,
		Data:      standings,
		Timestamp: time.Now().Unix(),
	}
	h.mu.Lock()
	failed := send(h.contestSubs[contestID], event)
	h.dropLocked(h.contestSubs[contestID], failed)
	if len(h.contestSubs[contestID]) == 0 {
		delete(h.contestSubs, contestID)
	}
	h.mu.Unlock()
	h.closeAll(ctx, failed)
}

// BroadcastSubmission pushes a status update to the submission's watchers.
// When terminal is true the subscription set is removed afterwards; those
// watchers have nothing further to wait for.
func (h *Hub) BroadcastSubmission(ctx context.Context, submissionID string, status interface{}, terminal bool) {
	event := Event{
		Type:      EventSubmissionStatus,
		Data:      status,
		Timestamp: time.Now().Unix(),
	}
	h.mu.Lock()
	set := h.submissionSubs[submissionID]
	failed := send(set, event)
	h.dropLocked(set, failed)
	var leftover []Conn
	if terminal {
		for c := range set {
			leftover = append(leftover, c)
		}
		delete(h.submissionSubs, submissionID)
	} else if len(set) == 0 {
		delete(h.submissionSubs, submissionID)
	}
	h.mu.Unlock()
	h.closeAll(ctx, failed)
	h.closeAll(ctx, leftover)
}

// BroadcastAdminAlert pushes an alert to the contest's admin listeners and
// to every global listener.
func (h *Hub) BroadcastAdminAlert(ctx context.Context, contestID int64, alert interface{}) {
	event := Event{
		Type:      EventAdminAlert,
		ContestID: contestID,
		Data:      alert,
		Timestamp: time.Now().Unix(),
	}
	h.mu.Lock()
	failedScoped := send(h.adminContest[contestID], event)
	h.dropLocked(h.adminContest[contestID], failedScoped)
	if len(h.adminContest[contestID]) == 0 {
		delete(h.adminContest, contestID)
	}
	failedGlobal := send(h.adminGlobal, event)
	h.dropLocked(h.adminGlobal, failedGlobal)
	h.mu.Unlock()
	h.closeAll(ctx, failedScoped)
	h.closeAll(ctx, failedGlobal)
}

// PushSnapshot writes one event to a single freshly subscribed connection so
// it has current state before the next broadcast.
func (h *Hub) PushSnapshot(c Conn, eventType string, contestID int64, data interface{}) {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.WriteJSON(Event{
		Type:      eventType,
		ContestID: contestID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// send writes the event to every connection in the set and returns the ones
// whose write failed. Caller holds the hub lock.
func send(set map[Conn]struct{}, event Event) []Conn {
	var failed []Conn
	for c := range set {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteJSON(event); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

func (h *Hub) dropLocked(set map[Conn]struct{}, conns []Conn) {
	for _, c := range conns {
		delete(set, c)
	}
}

// closeAll fully unsubscribes and closes connections. A connection that
// failed one write is dead for every set it sits in.
func (h *Hub) closeAll(ctx context.Context, conns []Conn) {
	for _, c := range conns {
		h.Unsubscribe(c)
		if err := c.Close(); err != nil {
			logger.Debug(ctx, "close subscriber", zap.Error(err))
		}
	}
}
