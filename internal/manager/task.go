package manager

import (
	"context"
	"encoding/json"

	"maintkeeper/internal/gauge"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/store"
)

// TaskManager holds the maintenance tasks of the current equipment.
// Every list refresh recomputes the derived due-date, remaining-usage
// and urgency fields from equipment age and acknowledgement history;
// the stored copies of those fields are never trusted.
type TaskManager struct {
	*collection[*models.Task]

	proxy     *proxy.Proxy
	images    *ImageProxy
	equipment *EquipmentManager
	userStore proxy.StoreProvider
	guard     refetchGuard

	entries *EntryManager
}

// NewTaskManager creates a TaskManager subscribed to the equipment
// manager's current selection.
func NewTaskManager(p *proxy.Proxy, images *ImageProxy, equipment *EquipmentManager, userStore proxy.StoreProvider) *TaskManager {
	m := &TaskManager{
		collection: newCollection[*models.Task](),
		proxy:      p,
		images:     images,
		equipment:  equipment,
		userStore:  userStore,
	}

	equipment.OnCurrentChanged(func(*models.Equipment) {
		go func() {
			if err := m.Refresh(context.Background()); err != nil {
				logging.Error("Task refetch after equipment change failed", err)
			}
		}()
	})

	return m
}

// AttachChildren wires the entry manager used for cascade deletes.
func (m *TaskManager) AttachChildren(entries *EntryManager) {
	m.entries = entries
}

// Refresh refetches the task list scoped to the current equipment.
func (m *TaskManager) Refresh(ctx context.Context) error {
	equipment, ok := m.equipment.Current()
	if !ok {
		m.applyList(nil)
		return nil
	}

	fetchCtx, gen := m.guard.begin(ctx)

	raws, err := m.proxy.FetchList(fetchCtx,
		store.TasksKey(equipment.UUID), store.TasksKey(equipment.UUID), "tasks",
		normalizeAs[models.Task]())
	if err != nil {
		return err
	}
	if !m.guard.still(gen) {
		return nil
	}
	if m.equipment.CurrentID() != equipment.UUID {
		return nil
	}

	tasks, err := decodeList[models.Task](raws)
	if err != nil {
		return err
	}

	m.computeDerived(equipment, tasks)
	m.applyList(tasks)
	return nil
}

// Recompute re-derives every task's scheduling fields from the
// current equipment and entry state, then republishes the list.
// Called whenever equipment age or acknowledgement history changes.
func (m *TaskManager) Recompute() {
	equipment, ok := m.equipment.Current()
	if !ok {
		return
	}

	tasks := m.Items()
	m.computeDerived(equipment, tasks)
	m.applyList(tasks)
}

func (m *TaskManager) computeDerived(equipment *models.Equipment, tasks []*models.Task) {
	s := m.userStore()

	for _, task := range tasks {
		var entries []*models.Entry
		if s != nil {
			raws, err := s.GetArray(store.EntriesKey(equipment.UUID, task.UUID))
			if err == nil {
				if decoded, err := decodeList[models.Entry](raws); err == nil {
					entries = decoded
				}
			}
		}
		gauge.Compute(task, equipment, entries)
	}
}

// Save creates or updates a task under the current equipment and pins
// it for the next selection resolution.
func (m *TaskManager) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	equipment, ok := m.equipment.Current()
	if !ok {
		return nil, errNoParent("task", "equipment")
	}

	ensureClientID(&task.UUID)
	if task.EquipmentUUID == "" {
		task.EquipmentUUID = equipment.UUID
	}

	if err := ensureUniqueName(m.Items(), task.Name, task.UUID); err != nil {
		return nil, err
	}

	raw, err := encode(task)
	if err != nil {
		return nil, err
	}

	out, err := m.proxy.PostAndUpdate(ctx,
		taskTarget(task.EquipmentUUID, task.UUID), store.TasksKey(task.EquipmentUUID), "task",
		task.UUID, raw, normalizeAs[models.Task]())
	if err != nil {
		return nil, err
	}

	var saved models.Task
	if err := json.Unmarshal(out, &saved); err != nil {
		return nil, err
	}

	gauge.Compute(&saved, equipment, m.cachedEntries(equipment.UUID, saved.UUID))

	m.Pin(saved.UUID)
	m.applyList(upsertInto(m.Items(), &saved))
	return &saved, nil
}

// Delete removes a task, cascading through its entries and images
// before the deletion is reported complete.
func (m *TaskManager) Delete(ctx context.Context, task *models.Task) error {
	if m.entries != nil {
		if err := m.entries.DeleteForTask(ctx, task.EquipmentUUID, task.UUID); err != nil {
			return err
		}
	}
	if err := m.images.DeleteForParent(ctx, task.UUID); err != nil {
		return err
	}

	if err := m.proxy.DeleteAndUpdate(ctx,
		taskTarget(task.EquipmentUUID, task.UUID), store.TasksKey(task.EquipmentUUID), task.UUID); err != nil {
		return err
	}

	m.applyList(removeFrom(m.Items(), task.UUID))
	return nil
}

// DeleteForEquipment cascades deletion over every task of one
// equipment. Enumeration reads the cache rather than the in-memory
// list, which only holds the current equipment's tasks.
func (m *TaskManager) DeleteForEquipment(ctx context.Context, equipmentID models.UUID) error {
	s := m.userStore()
	if s == nil {
		return nil
	}

	raws, err := s.GetArray(store.TasksKey(equipmentID))
	if err != nil {
		return err
	}
	tasks, err := decodeList[models.Task](raws)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if m.entries != nil {
			if err := m.entries.DeleteForTask(ctx, task.EquipmentUUID, task.UUID); err != nil {
				return err
			}
		}
		if err := m.images.DeleteForParent(ctx, task.UUID); err != nil {
			return err
		}
		if err := m.proxy.DeleteAndUpdate(ctx,
			taskTarget(task.EquipmentUUID, task.UUID), store.TasksKey(task.EquipmentUUID), task.UUID); err != nil {
			return err
		}
	}

	if equipmentID == m.equipment.CurrentID() {
		m.applyList(nil)
	}
	return m.proxy.DropCachePrefix(store.TasksKey(equipmentID))
}

func (m *TaskManager) cachedEntries(equipmentID, taskID models.UUID) []*models.Entry {
	s := m.userStore()
	if s == nil {
		return nil
	}
	raws, err := s.GetArray(store.EntriesKey(equipmentID, taskID))
	if err != nil {
		return nil
	}
	entries, err := decodeList[models.Entry](raws)
	if err != nil {
		return nil
	}
	return entries
}
