package model

import "time"

// ViolationType enumerates the client-observable cheating signals the
// tracker accepts. Anything else is rejected before being logged.
type ViolationType string

const (
	ViolationTabSwitch        ViolationType = "TAB_SWITCH"
	ViolationCopyPaste        ViolationType = "COPY_PASTE"
	ViolationFullscreenExit   ViolationType = "FULLSCREEN_EXIT"
	ViolationDevtoolsOpen     ViolationType = "DEVTOOLS_OPEN"
	ViolationMultiLogin       ViolationType = "MULTI_LOGIN"
	ViolationForbiddenPattern ViolationType = "FORBIDDEN_PATTERN"

	// ViolationAdminAction marks manual admin transitions in the audit log,
	// distinct from counter-driven ones. Not reportable by clients.
	ViolationAdminAction ViolationType = "ADMIN_ACTION"
)

// ValidViolationType reports whether t is a client-reportable signal.
func ValidViolationType(t ViolationType) bool {
	switch t {
	case ViolationTabSwitch, ViolationCopyPaste, ViolationFullscreenExit,
		ViolationDevtoolsOpen, ViolationMultiLogin, ViolationForbiddenPattern:
		return true
	}
	return false
}

// Violation is one append-only audit log entry. Never mutated or deleted.
type Violation struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	ContestID int64         `json:"contest_id"`
	Type      ViolationType `json:"type"`
	Metadata  string        `json:"metadata,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
