package manager

import (
	"context"
	"encoding/json"

	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/store"
)

// EntryManager holds the maintenance log entries of the current task.
// Entries may also attach directly to an equipment; those are reached
// through the equipment-scoped methods rather than the cascade.
type EntryManager struct {
	*collection[*models.Entry]

	proxy     *proxy.Proxy
	images    *ImageProxy
	tasks     *TaskManager
	userStore proxy.StoreProvider
	guard     refetchGuard
}

// NewEntryManager creates an EntryManager subscribed to the task
// manager's current selection.
func NewEntryManager(p *proxy.Proxy, images *ImageProxy, tasks *TaskManager, userStore proxy.StoreProvider) *EntryManager {
	m := &EntryManager{
		collection: newCollection[*models.Entry](),
		proxy:      p,
		images:     images,
		tasks:      tasks,
		userStore:  userStore,
	}

	tasks.OnCurrentChanged(func(*models.Task) {
		go func() {
			if err := m.Refresh(context.Background()); err != nil {
				logging.Error("Entry refetch after task change failed", err)
			}
		}()
	})

	return m
}

// Refresh refetches the entry list scoped to the current task.
func (m *EntryManager) Refresh(ctx context.Context) error {
	task, ok := m.tasks.Current()
	if !ok {
		m.applyList(nil)
		return nil
	}

	fetchCtx, gen := m.guard.begin(ctx)

	key := store.EntriesKey(task.EquipmentUUID, task.UUID)
	raws, err := m.proxy.FetchList(fetchCtx, key, key, "entries",
		normalizeAs[models.Entry]())
	if err != nil {
		return err
	}
	if !m.guard.still(gen) {
		return nil
	}
	if m.tasks.CurrentID() != task.UUID {
		return nil
	}

	entries, err := decodeList[models.Entry](raws)
	if err != nil {
		return err
	}

	m.applyList(entries)
	return nil
}

// Save creates or updates an entry under the current task and pins it
// for the next selection resolution. Acknowledgement entries shift the
// task's derived schedule, so the task list is recomputed afterwards.
func (m *EntryManager) Save(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	task, ok := m.tasks.Current()
	if !ok && entry.TaskUUID == "" && entry.EquipmentUUID == "" {
		return nil, errNoParent("entry", "task")
	}

	ensureClientID(&entry.UUID)
	if ok {
		if entry.TaskUUID == "" {
			entry.TaskUUID = task.UUID
		}
		if entry.EquipmentUUID == "" {
			entry.EquipmentUUID = task.EquipmentUUID
		}
	}

	raw, err := encode(entry)
	if err != nil {
		return nil, err
	}

	key := entriesKeyFor(entry)
	out, err := m.proxy.PostAndUpdate(ctx,
		entryTarget(entry.EquipmentUUID, entry.TaskUUID, entry.UUID), key, "entry",
		entry.UUID, raw, normalizeAs[models.Entry]())
	if err != nil {
		return nil, err
	}

	var saved models.Entry
	if err := json.Unmarshal(out, &saved); err != nil {
		return nil, err
	}

	if saved.TaskUUID != "" && saved.TaskUUID == m.tasks.CurrentID() {
		m.Pin(saved.UUID)
		m.applyList(upsertInto(m.Items(), &saved))
	}

	m.tasks.Recompute()
	return &saved, nil
}

// Delete removes an entry and its images, advances the selection and
// recomputes the task schedule the entry may have acknowledged.
func (m *EntryManager) Delete(ctx context.Context, entry *models.Entry) error {
	if err := m.images.DeleteForParent(ctx, entry.UUID); err != nil {
		return err
	}

	if err := m.proxy.DeleteAndUpdate(ctx,
		entryTarget(entry.EquipmentUUID, entry.TaskUUID, entry.UUID), entriesKeyFor(entry), entry.UUID); err != nil {
		return err
	}

	if entry.TaskUUID != "" && entry.TaskUUID == m.tasks.CurrentID() {
		m.applyList(removeFrom(m.Items(), entry.UUID))
	}

	m.tasks.Recompute()
	return nil
}

// DeleteForTask cascades deletion over every entry of one task.
func (m *EntryManager) DeleteForTask(ctx context.Context, equipmentID, taskID models.UUID) error {
	s := m.userStore()
	if s == nil {
		return nil
	}

	key := store.EntriesKey(equipmentID, taskID)
	raws, err := s.GetArray(key)
	if err != nil {
		return err
	}
	entries, err := decodeList[models.Entry](raws)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := m.images.DeleteForParent(ctx, entry.UUID); err != nil {
			return err
		}
		if err := m.proxy.DeleteAndUpdate(ctx,
			entryTarget(entry.EquipmentUUID, entry.TaskUUID, entry.UUID), key, entry.UUID); err != nil {
			return err
		}
	}

	if taskID == m.tasks.CurrentID() {
		m.applyList(nil)
	}
	return m.proxy.DropCachePrefix(key)
}

// DeleteDirectForEquipment cascades deletion over the entries attached
// directly to one equipment, outside any task. Called from the
// equipment cascade, which also clears the task-scoped entry caches.
func (m *EntryManager) DeleteDirectForEquipment(ctx context.Context, equipmentID models.UUID) error {
	s := m.userStore()
	if s == nil {
		return nil
	}

	key := store.EquipmentEntriesKey(equipmentID)
	raws, err := s.GetArray(key)
	if err != nil {
		return err
	}
	entries, err := decodeList[models.Entry](raws)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := m.images.DeleteForParent(ctx, entry.UUID); err != nil {
			return err
		}
		if err := m.proxy.DeleteAndUpdate(ctx,
			entryTarget(entry.EquipmentUUID, "", entry.UUID), key, entry.UUID); err != nil {
			return err
		}
	}

	return m.proxy.DropCachePrefix(key)
}

// ListDirectForEquipment returns the entries attached directly to one
// equipment.
func (m *EntryManager) ListDirectForEquipment(ctx context.Context, equipmentID models.UUID) ([]*models.Entry, error) {
	key := store.EquipmentEntriesKey(equipmentID)
	raws, err := m.proxy.FetchList(ctx, key, key, "entries", normalizeAs[models.Entry]())
	if err != nil {
		return nil, err
	}
	return decodeList[models.Entry](raws)
}

// entriesKeyFor returns the cache key an entry lives under: task
// scoped when it belongs to a task, equipment scoped otherwise.
func entriesKeyFor(entry *models.Entry) string {
	if entry.TaskUUID == "" {
		return store.EquipmentEntriesKey(entry.EquipmentUUID)
	}
	return store.EntriesKey(entry.EquipmentUUID, entry.TaskUUID)
}
