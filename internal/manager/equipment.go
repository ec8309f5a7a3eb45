package manager

import (
	"context"
	"encoding/json"

	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/store"
)

// EquipmentManager holds the equipment list scoped to the current
// asset. Changing the current asset triggers an asynchronous refetch;
// an in-flight fetch for the previous asset is cancelled so a late
// response can never overwrite the newer selection.
type EquipmentManager struct {
	*collection[*models.Equipment]

	proxy     *proxy.Proxy
	images    *ImageProxy
	assets    *AssetManager
	userStore proxy.StoreProvider
	guard     refetchGuard

	tasks   *TaskManager
	entries *EntryManager
}

// NewEquipmentManager creates an EquipmentManager subscribed to the
// asset manager's current selection.
func NewEquipmentManager(p *proxy.Proxy, images *ImageProxy, assets *AssetManager, userStore proxy.StoreProvider) *EquipmentManager {
	m := &EquipmentManager{
		collection: newCollection[*models.Equipment](),
		proxy:      p,
		images:     images,
		assets:     assets,
		userStore:  userStore,
	}

	assets.OnCurrentChanged(func(*models.Asset) {
		go func() {
			if err := m.Refresh(context.Background()); err != nil {
				logging.Error("Equipment refetch after asset change failed", err)
			}
		}()
	})

	return m
}

// AttachChildren wires the child managers used for cascade deletes.
func (m *EquipmentManager) AttachChildren(tasks *TaskManager, entries *EntryManager) {
	m.tasks = tasks
	m.entries = entries
}

// Refresh refetches the equipment list and scopes it to the current
// asset.
func (m *EquipmentManager) Refresh(ctx context.Context) error {
	assetID := m.assets.CurrentID()
	if assetID == "" {
		m.applyList(nil)
		return nil
	}

	fetchCtx, gen := m.guard.begin(ctx)

	raws, err := m.proxy.FetchList(fetchCtx, "equipments", store.KeyEquipments, "equipments",
		normalizeAs[models.Equipment]())
	if err != nil {
		return err
	}
	if !m.guard.still(gen) {
		return nil
	}
	// The selection may have moved while the fetch was in flight.
	if m.assets.CurrentID() != assetID {
		return nil
	}

	all, err := decodeList[models.Equipment](raws)
	if err != nil {
		return err
	}

	scoped := make([]*models.Equipment, 0, len(all))
	for _, equipment := range all {
		if equipment.AssetUUID == assetID {
			scoped = append(scoped, equipment)
		}
	}

	m.applyList(scoped)
	return nil
}

// Save creates or updates an equipment under the current asset and
// pins it for the next selection resolution.
func (m *EquipmentManager) Save(ctx context.Context, equipment *models.Equipment) (*models.Equipment, error) {
	ensureClientID(&equipment.UUID)
	if equipment.AssetUUID == "" {
		equipment.AssetUUID = m.assets.CurrentID()
	}

	if err := ensureUniqueName(m.Items(), equipment.Name, equipment.UUID); err != nil {
		return nil, err
	}

	raw, err := encode(equipment)
	if err != nil {
		return nil, err
	}

	out, err := m.proxy.PostAndUpdate(ctx, equipmentTarget(equipment.UUID), store.KeyEquipments, "equipment",
		equipment.UUID, raw, normalizeAs[models.Equipment]())
	if err != nil {
		return nil, err
	}

	var saved models.Equipment
	if err := json.Unmarshal(out, &saved); err != nil {
		return nil, err
	}

	m.Pin(saved.UUID)
	m.applyList(upsertInto(m.Items(), &saved))

	// Equipment age drives task urgency.
	if m.tasks != nil {
		m.tasks.Recompute()
	}
	return &saved, nil
}

// Delete removes an equipment, cascading through its tasks, its
// directly attached entries and its images before the deletion is
// reported complete.
func (m *EquipmentManager) Delete(ctx context.Context, equipment *models.Equipment) error {
	if m.tasks != nil {
		if err := m.tasks.DeleteForEquipment(ctx, equipment.UUID); err != nil {
			return err
		}
	}
	if m.entries != nil {
		if err := m.entries.DeleteDirectForEquipment(ctx, equipment.UUID); err != nil {
			return err
		}
	}
	if err := m.images.DeleteForParent(ctx, equipment.UUID); err != nil {
		return err
	}

	if err := m.proxy.DeleteAndUpdate(ctx, equipmentTarget(equipment.UUID), store.KeyEquipments, equipment.UUID); err != nil {
		return err
	}

	m.applyList(removeFrom(m.Items(), equipment.UUID))
	return nil
}

// DeleteForAsset cascades deletion over every equipment of one asset.
// Enumeration reads the cache rather than the in-memory list: the list
// only holds the current asset's equipment, and the cascade must reach
// every branch.
func (m *EquipmentManager) DeleteForAsset(ctx context.Context, assetID models.UUID) error {
	s := m.userStore()
	if s == nil {
		return nil
	}

	raws, err := s.GetArray(store.KeyEquipments)
	if err != nil {
		return err
	}
	all, err := decodeList[models.Equipment](raws)
	if err != nil {
		return err
	}

	for _, equipment := range all {
		if equipment.AssetUUID != assetID {
			continue
		}
		if err := m.Delete(ctx, equipment); err != nil {
			return err
		}
	}
	return nil
}
