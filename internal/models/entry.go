package models

import "time"

// Entry represents a maintenance log entry. An entry with Ack set
// acknowledges that its task was performed at the recorded date and
// equipment age; entries may also attach directly to equipment with
// no task (TaskUUID empty).
type Entry struct {
	UUID          UUID      `db:"uuid" json:"_uiId"`
	EquipmentUUID UUID      `db:"equipment_uuid" json:"equipmentUiId"`
	TaskUUID      UUID      `db:"task_uuid" json:"taskUiId,omitempty"`
	Name          string    `db:"name" json:"name"`
	Date          time.Time `db:"date" json:"date"`
	Age           float64   `db:"age" json:"age"`
	Remarks       string    `db:"remarks" json:"remarks"`
	Ack           bool      `db:"ack" json:"ack"`
}

// EntityID implements Entity.
func (e *Entry) EntityID() UUID {
	return e.UUID
}

// DisplayName returns the user-facing name.
func (e *Entry) DisplayName() string {
	return e.Name
}
