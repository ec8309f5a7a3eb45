// Package gauge recomputes a task's due date, remaining usage and
// urgency level from equipment age and acknowledgement history.
//
// These values are derived fields: they are recomputed on every read
// from equipment/entry state and never trusted from a stored copy.
package gauge

import (
	"time"

	"maintkeeper/internal/models"
)

// Compute fills the task's derived fields from current state.
func Compute(task *models.Task, equipment *models.Equipment, entries []*models.Entry) {
	ComputeAt(task, equipment, entries, time.Now())
}

// ComputeAt is Compute with an explicit evaluation time.
func ComputeAt(task *models.Task, equipment *models.Equipment, entries []*models.Entry, now time.Time) {
	lastAck := lastAckEntry(task.UUID, entries)

	lastAckDate := equipment.InstallationDate
	var lastAckAge float64
	if lastAck != nil {
		lastAckDate = lastAck.Date
		lastAckAge = lastAck.Age
	}

	task.NextDueDate = lastAckDate.AddDate(0, task.PeriodInMonth, 0)
	task.UsageInHourLeft = usageLeft(task, equipment, lastAckAge)
	task.Level = level(task, now)
}

// lastAckEntry returns the most recent acknowledging entry for the
// task, or nil when the task was never acknowledged.
func lastAckEntry(taskID models.UUID, entries []*models.Entry) *models.Entry {
	var latest *models.Entry
	for _, entry := range entries {
		if !entry.Ack || entry.TaskUUID != taskID {
			continue
		}
		if latest == nil || entry.Date.After(latest.Date) {
			latest = entry
		}
	}
	return latest
}

// usageLeft is usagePeriodInHour minus the hours run since the last
// acknowledgement, undefined when the task has no usage period.
func usageLeft(task *models.Task, equipment *models.Equipment, lastAckAge float64) *float64 {
	if task.UsagePeriodInHour == nil || *task.UsagePeriodInHour <= 0 {
		return nil
	}
	left := *task.UsagePeriodInHour - (equipment.Age - lastAckAge)
	return &left
}

func level(task *models.Task, now time.Time) models.TaskLevel {
	if task.UsageInHourLeft != nil && *task.UsageInHourLeft <= 0 {
		return models.LevelTodo
	}
	if task.NextDueDate.Before(now) {
		return models.LevelTodo
	}

	if task.UsageInHourLeft != nil && *task.UsageInHourLeft < 0.1**task.UsagePeriodInHour {
		return models.LevelSoon
	}
	// Due within one period window counts as soon.
	if task.PeriodInMonth > 0 && task.NextDueDate.Before(now.AddDate(0, task.PeriodInMonth, 0)) {
		return models.LevelSoon
	}

	return models.LevelDone
}
