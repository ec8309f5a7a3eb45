package models

import "time"

// TaskLevel is the urgency classification of a maintenance task.
type TaskLevel string

const (
	LevelTodo TaskLevel = "todo"
	LevelSoon TaskLevel = "soon"
	LevelDone TaskLevel = "done"
)

// Task represents a recurring maintenance task for a piece of equipment.
//
// NextDueDate, UsageInHourLeft and Level are derived fields: they are
// recomputed from equipment age and acknowledgement history on every read
// and must never be trusted from a stored copy across a reload.
type Task struct {
	UUID              UUID     `db:"uuid" json:"_uiId"`
	EquipmentUUID     UUID     `db:"equipment_uuid" json:"equipmentUiId"`
	Name              string   `db:"name" json:"name"`
	UsagePeriodInHour *float64 `db:"usage_period_in_hour" json:"usagePeriodInHour,omitempty"`
	PeriodInMonth     int      `db:"period_in_month" json:"periodInMonth"`
	Description       string   `db:"description" json:"description"`

	NextDueDate     time.Time `db:"-" json:"nextDueDate"`
	UsageInHourLeft *float64  `db:"-" json:"usageInHourLeft,omitempty"`
	Level           TaskLevel `db:"-" json:"level"`
}

// EntityID implements Entity.
func (t *Task) EntityID() UUID {
	return t.UUID
}

// DisplayName returns the user-facing name.
func (t *Task) DisplayName() string {
	return t.Name
}
