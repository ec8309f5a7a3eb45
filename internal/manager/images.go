package manager

import (
	"context"
	"encoding/json"

	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/store"
)

// ImageProxy manages the image records attached to entities. The
// capture/resize pipeline lives outside the core; this proxy only
// routes the records through the same online/offline decision as any
// other write so cascade deletes can reach them.
type ImageProxy struct {
	proxy     *proxy.Proxy
	userStore proxy.StoreProvider
}

// NewImageProxy creates an ImageProxy.
func NewImageProxy(p *proxy.Proxy, userStore proxy.StoreProvider) *ImageProxy {
	return &ImageProxy{proxy: p, userStore: userStore}
}

// List returns the images attached to parentID.
func (ip *ImageProxy) List(ctx context.Context, parentID models.UUID) ([]*models.Image, error) {
	raws, err := ip.proxy.FetchList(ctx,
		"images/"+parentID.String(), store.ImagesKey(parentID), "images",
		normalizeAs[models.Image]())
	if err != nil {
		return nil, err
	}
	return decodeList[models.Image](raws)
}

// Add writes an image record through the write-routing proxy.
func (ip *ImageProxy) Add(ctx context.Context, image *models.Image) (*models.Image, error) {
	ensureClientID(&image.UUID)

	raw, err := encode(image)
	if err != nil {
		return nil, err
	}

	out, err := ip.proxy.PostAndUpdate(ctx,
		imageTarget(image.ParentUUID, image.UUID), store.ImagesKey(image.ParentUUID), "image",
		image.UUID, raw, normalizeAs[models.Image]())
	if err != nil {
		return nil, err
	}

	var saved models.Image
	if err := json.Unmarshal(out, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete removes one image record.
func (ip *ImageProxy) Delete(ctx context.Context, image *models.Image) error {
	return ip.proxy.DeleteAndUpdate(ctx,
		imageTarget(image.ParentUUID, image.UUID), store.ImagesKey(image.ParentUUID), image.UUID)
}

// DeleteForParent removes every image attached to parentID. Called by
// the entity managers while cascading a parent deletion.
func (ip *ImageProxy) DeleteForParent(ctx context.Context, parentID models.UUID) error {
	s := ip.userStore()
	if s == nil {
		return nil
	}

	raws, err := s.GetArray(store.ImagesKey(parentID))
	if err != nil {
		return err
	}
	images, err := decodeList[models.Image](raws)
	if err != nil {
		return err
	}

	for _, image := range images {
		if err := ip.Delete(ctx, image); err != nil {
			return err
		}
	}

	return ip.proxy.DropCachePrefix(store.ImagesKey(parentID))
}
