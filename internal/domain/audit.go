package domain

import "time"

// AuditEntry records one state-changing action for operator visibility.
// Writes are best-effort and never block the primary operation.
type AuditEntry struct {
	ID       int64  `json:"id"`
	ActorID  int64  `json:"actor_id"`
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	EntityID int64  `json:"entity_id"`
	Detail   string `json:"detail,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}
