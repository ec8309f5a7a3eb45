package models

import "time"

// Equipment represents a maintainable device attached to an asset
// (e.g. an engine). Age is the accumulated usage reading in hours.
type Equipment struct {
	UUID             UUID      `db:"uuid" json:"_uiId"`
	AssetUUID        UUID      `db:"asset_uuid" json:"assetUiId"`
	Name             string    `db:"name" json:"name"`
	Brand            string    `db:"brand" json:"brand"`
	Model            string    `db:"model" json:"model"`
	Age              float64   `db:"age" json:"age"`
	InstallationDate time.Time `db:"installation_date" json:"installation"`
}

// EntityID implements Entity.
func (e *Equipment) EntityID() UUID {
	return e.UUID
}

// DisplayName returns the user-facing name.
func (e *Equipment) DisplayName() string {
	return e.Name
}
