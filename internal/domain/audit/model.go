package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of state change an entry records.
type Action string

const (
	ActionAdmission    Action = "admission"
	ActionDischarge    Action = "discharge"
	ActionTransfer     Action = "transfer"
	ActionBedUpdate    Action = "bed_update"
	ActionStatusChange Action = "status_change"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAdmission, ActionDischarge, ActionTransfer, ActionBedUpdate, ActionStatusChange:
		return true
	}
	return false
}

// EntityType identifies which record an entry describes.
type EntityType string

const (
	EntityPatient EntityType = "patient"
	EntityBed     EntityType = "bed"
)

func (t EntityType) Valid() bool {
	return t == EntityPatient || t == EntityBed
}

// Entry is one immutable audit record. Entries are created exactly once per
// successful mutating operation and never updated or deleted. Seq is a global
// monotonic sequence assigned on append; it breaks timestamp ties and gives
// entries for a given entity the same relative order as the mutations that
// produced them.
type Entry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Seq        int64      `db:"seq" json:"seq"`
	Action     Action     `db:"action" json:"action"`
	EntityType EntityType `db:"entity_type" json:"entityType"`
	EntityID   uuid.UUID  `db:"entity_id" json:"entityId"`
	Details    string     `db:"details" json:"details"`
	Actor      string     `db:"actor" json:"user"`
	Timestamp  time.Time  `db:"ts" json:"timestamp"`
}
