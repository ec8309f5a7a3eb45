package manager

import (
	"context"
	"encoding/json"

	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/store"
)

// AssetManager is the top of the cascade: it holds the asset list and
// the current asset the rest of the system acts on.
type AssetManager struct {
	*collection[*models.Asset]

	proxy  *proxy.Proxy
	images *ImageProxy
	guard  refetchGuard

	// equipment is attached after construction because the child
	// manager subscribes to this one.
	equipment *EquipmentManager
}

// NewAssetManager creates an AssetManager.
func NewAssetManager(p *proxy.Proxy, images *ImageProxy) *AssetManager {
	return &AssetManager{
		collection: newCollection[*models.Asset](),
		proxy:      p,
		images:     images,
	}
}

// AttachChildren wires the child manager used for cascade deletes.
func (m *AssetManager) AttachChildren(equipment *EquipmentManager) {
	m.equipment = equipment
}

// Refresh refetches the asset list. A refresh superseded by a newer
// one is discarded.
func (m *AssetManager) Refresh(ctx context.Context) error {
	fetchCtx, gen := m.guard.begin(ctx)

	raws, err := m.proxy.FetchList(fetchCtx, "assets", store.KeyAssets, "assets",
		normalizeAs[models.Asset]())
	if err != nil {
		return err
	}
	if !m.guard.still(gen) {
		return nil
	}

	assets, err := decodeList[models.Asset](raws)
	if err != nil {
		return err
	}

	m.applyList(assets)
	return nil
}

// Save creates or updates an asset. The written asset is pinned so it
// wins the next selection resolution.
func (m *AssetManager) Save(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	ensureClientID(&asset.UUID)

	if err := ensureUniqueName(m.Items(), asset.Name, asset.UUID); err != nil {
		return nil, err
	}

	raw, err := encode(asset)
	if err != nil {
		return nil, err
	}

	out, err := m.proxy.PostAndUpdate(ctx, assetTarget(asset.UUID), store.KeyAssets, "asset",
		asset.UUID, raw, normalizeAs[models.Asset]())
	if err != nil {
		return nil, err
	}

	var saved models.Asset
	if err := json.Unmarshal(out, &saved); err != nil {
		return nil, err
	}

	m.Pin(saved.UUID)
	m.applyList(upsertInto(m.Items(), &saved))
	return &saved, nil
}

// Delete removes an asset, cascading through its equipment (and their
// tasks, entries and images) before the deletion is reported
// complete. Selection advances per the standard resolution rule.
func (m *AssetManager) Delete(ctx context.Context, asset *models.Asset) error {
	if m.equipment != nil {
		if err := m.equipment.DeleteForAsset(ctx, asset.UUID); err != nil {
			return err
		}
	}

	if err := m.images.DeleteForParent(ctx, asset.UUID); err != nil {
		return err
	}

	if err := m.proxy.DeleteAndUpdate(ctx, assetTarget(asset.UUID), store.KeyAssets, asset.UUID); err != nil {
		return err
	}

	m.applyList(removeFrom(m.Items(), asset.UUID))
	return nil
}

// upsertInto replaces or appends item in a copied list, keeping the
// unique-by-identifier invariant.
func upsertInto[T selectable](items []T, item T) []T {
	for i, existing := range items {
		if existing.EntityID() == item.EntityID() {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// removeFrom drops the item with the given identifier from a copied
// list.
func removeFrom[T selectable](items []T, id models.UUID) []T {
	kept := items[:0]
	for _, item := range items {
		if item.EntityID() == id {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
