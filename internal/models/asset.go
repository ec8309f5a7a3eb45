package models

import "time"

// Asset represents a piece of owned equipment-bearing property,
// the root of the ownership hierarchy (e.g. a boat).
type Asset struct {
	UUID            UUID      `db:"uuid" json:"_uiId"`
	Name            string    `db:"name" json:"name"`
	Brand           string    `db:"brand" json:"brand"`
	ModelBrand      string    `db:"model_brand" json:"modelBrand"`
	ManufactureDate time.Time `db:"manufacture_date" json:"manufactureDate"`
}

// EntityID implements Entity.
func (a *Asset) EntityID() UUID {
	return a.UUID
}

// DisplayName returns the user-facing name.
func (a *Asset) DisplayName() string {
	return a.Name
}
