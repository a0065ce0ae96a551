// Package anticheat records contest integrity violations and applies the
// escalation thresholds.
package anticheat

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gavel/internal/hub"
	"gavel/internal/model"
	"gavel/internal/repository"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

const (
	defaultFlagThreshold       = 3
	defaultDisqualifyThreshold = 7
)

// Config holds the escalation thresholds.
type Config struct {
	FlagThreshold       int `yaml:"flagThreshold"`
	DisqualifyThreshold int `yaml:"disqualifyThreshold"`
}

// Alert is the payload broadcast to admin listeners on an escalation.
type Alert struct {
	UserID    int64               `json:"user_id"`
	ContestID int64               `json:"contest_id"`
	Action    string              `json:"action"`
	Type      model.ViolationType `json:"type,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// Alert actions.
const (
	ActionFlagged      = "flagged"
	ActionDisqualified = "disqualified"
	ActionUnflagged    = "unflagged"
)

// ReportResult is the participant's standing after one accepted report.
type ReportResult struct {
	ViolationCount int  `json:"violation_count"`
	IsFlagged      bool `json:"is_flagged"`
	Disqualified   bool `json:"disqualified"`
}

// Tracker validates, logs, and escalates violation reports. Escalation is
// one-way: thresholds only ever set flags, never clear them.
type Tracker struct {
	contests   repository.ContestRepository
	parts      repository.ParticipationRepository
	violations repository.ViolationRepository
	hub        *hub.Hub
	cfg        Config
	now        func() time.Time
}

func NewTracker(contests repository.ContestRepository, parts repository.ParticipationRepository, violations repository.ViolationRepository, h *hub.Hub, cfg Config) (*Tracker, error) {
	if contests == nil || parts == nil || violations == nil || h == nil {
		return nil, appErr.ValidationError("dependencies", "required")
	}
	if cfg.FlagThreshold <= 0 {
		cfg.FlagThreshold = defaultFlagThreshold
	}
	if cfg.DisqualifyThreshold <= 0 {
		cfg.DisqualifyThreshold = defaultDisqualifyThreshold
	}
	if cfg.DisqualifyThreshold <= cfg.FlagThreshold {
		return nil, appErr.ValidationError("disqualifyThreshold", "must exceed flagThreshold")
	}
	return &Tracker{
		contests:   contests,
		parts:      parts,
		violations: violations,
		hub:        h,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Report validates one client-observed violation, appends it to the audit
// log, bumps the participant's counter, and applies threshold escalations.
// The returned result reflects the participant's standing after escalation.
func (t *Tracker) Report(ctx context.Context, userID, contestID int64, vtype model.ViolationType, metadata, clientIP string) (ReportResult, error) {
	if !model.ValidViolationType(vtype) {
		return ReportResult{}, appErr.Newf(appErr.ViolationTypeInvalid, "unknown violation type %q", vtype)
	}
	contest, err := t.contests.GetByID(ctx, contestID)
	if err != nil {
		return ReportResult{}, err
	}
	if !contest.Active(t.now()) {
		return ReportResult{}, appErr.Newf(appErr.ViolationWindowClosed, "contest %d is not active", contestID)
	}
	participant, err := t.parts.Get(ctx, contestID, userID)
	if err != nil {
		return ReportResult{}, err
	}

	if err := t.violations.Append(ctx, &model.Violation{
		UserID:    userID,
		ContestID: contestID,
		Type:      vtype,
		Metadata:  metadata,
		ClientIP:  clientIP,
		CreatedAt: t.now(),
	}); err != nil {
		return ReportResult{}, err
	}

	count, err := t.parts.IncrementViolations(ctx, contestID, userID)
	if err != nil {
		return ReportResult{}, err
	}
	t.escalate(ctx, participant, vtype, count)
	return ReportResult{
		ViolationCount: count,
		IsFlagged:      participant.IsFlagged,
		Disqualified:   participant.Disqualified,
	}, nil
}

// escalate applies the thresholds. Crossings already applied stay applied;
// re-reports past a threshold do not re-fire the transition.
func (t *Tracker) escalate(ctx context.Context, p *model.Participation, vtype model.ViolationType, count int) {
	if count >= t.cfg.FlagThreshold && !p.IsFlagged {
		if err := t.parts.SetFlagged(ctx, p.ContestID, p.UserID, true); err != nil {
			logger.Error(ctx, "set flagged failed", zap.Int64("user_id", p.UserID), zap.Error(err))
			return
		}
		p.IsFlagged = true
		t.hub.BroadcastAdminAlert(ctx, p.ContestID, Alert{
			UserID: p.UserID, ContestID: p.ContestID,
			Action: ActionFlagged, Type: vtype, Count: count,
		})
	}
	if count >= t.cfg.DisqualifyThreshold && !p.Disqualified {
		if err := t.parts.SetDisqualified(ctx, p.ContestID, p.UserID); err != nil {
			logger.Error(ctx, "set disqualified failed", zap.Int64("user_id", p.UserID), zap.Error(err))
			return
		}
		p.Disqualified = true
		t.hub.BroadcastAdminAlert(ctx, p.ContestID, Alert{
			UserID: p.UserID, ContestID: p.ContestID,
			Action: ActionDisqualified, Type: vtype, Count: count,
		})
	}
}

// Audit returns a participant's full violation history, admin actions
// included, oldest first.
func (t *Tracker) Audit(ctx context.Context, contestID, userID int64) ([]model.Violation, error) {
	if _, err := t.parts.Get(ctx, contestID, userID); err != nil {
		return nil, err
	}
	return t.violations.ListByParticipant(ctx, contestID, userID)
}

// Disqualify is the manual admin path. It bypasses the thresholds and
// leaves a distinct audit entry naming the acting admin.
func (t *Tracker) Disqualify(ctx context.Context, adminID, contestID, userID int64, reason string) error {
	if _, err := t.parts.Get(ctx, contestID, userID); err != nil {
		return err
	}
	if err := t.parts.SetDisqualified(ctx, contestID, userID); err != nil {
		return err
	}
	if err := t.appendAdminAction(ctx, adminID, contestID, userID, "disqualify", reason); err != nil {
		return err
	}
	t.hub.BroadcastAdminAlert(ctx, contestID, Alert{
		UserID: userID, ContestID: contestID,
		Action: ActionDisqualified, Reason: reason,
	})
	return nil
}

// Unflag clears a participant's flag. Only this manual path clears it; the
// violation counter is left untouched so history stays intact.
func (t *Tracker) Unflag(ctx context.Context, adminID, contestID, userID int64, reason string) error {
	if _, err := t.parts.Get(ctx, contestID, userID); err != nil {
		return err
	}
	if err := t.parts.SetFlagged(ctx, contestID, userID, false); err != nil {
		return err
	}
	if err := t.appendAdminAction(ctx, adminID, contestID, userID, "unflag", reason); err != nil {
		return err
	}
	t.hub.BroadcastAdminAlert(ctx, contestID, Alert{
		UserID: userID, ContestID: contestID,
		Action: ActionUnflagged, Reason: reason,
	})
	return nil
}

func (t *Tracker) appendAdminAction(ctx context.Context, adminID, contestID, userID int64, action, reason string) error {
	meta, err := json.Marshal(map[string]interface{}{
		"admin_id": adminID,
		"action":   action,
		"reason":   reason,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.ViolationRecordFailed, "encode admin action")
	}
	return t.violations.Append(ctx, &model.Violation{
		UserID:    userID,
		ContestID: contestID,
		Type:      model.ViolationAdminAction,
		Metadata:  string(meta),
		CreatedAt: t.now(),
	})
}
