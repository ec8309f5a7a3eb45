package models

// Image represents a picture attached to any entity in the hierarchy.
// The capture/resize pipeline lives outside the core; the core only
// tracks the records so cascade deletes can reach them.
type Image struct {
	UUID         UUID   `db:"uuid" json:"_uiId"`
	ParentUUID   UUID   `db:"parent_uuid" json:"parentUiId"`
	URL          string `db:"url" json:"url"`
	ThumbnailURL string `db:"thumbnail_url" json:"thumbnailUrl"`
	Title        string `db:"title" json:"title"`
}

// EntityID implements Entity.
func (i *Image) EntityID() UUID {
	return i.UUID
}
