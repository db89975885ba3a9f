package event

type Type string

const (
	TypeLoginSucceeded Type = "auth.login"
	TypeLoginFailed    Type = "auth.login_failed"
	TypeRefreshed      Type = "auth.refresh"
	TypeRefreshFailed  Type = "auth.refresh_failed"
	TypeLoggedOut      Type = "auth.logout"
	TypeSessionsEnded  Type = "auth.sessions_revoked"

	TypeUserCreated     Type = "user.created"
	TypeUserUpdated     Type = "user.updated"
	TypeUserDeactivated Type = "user.deactivated"

	TypeDepartmentCreated Type = "department.created"
	TypeDepartmentUpdated Type = "department.updated"

	TypeGrantCreated Type = "grant.created"
	TypeGrantRevoked Type = "grant.revoked"
)

// Event is an in-process notification. Detail holds identifiers only, never
// passwords or token material.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	ActorID   string `json:"actor_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
