// Package models provides data model definitions for the maintkeeper core.
package models

import (
	"database/sql/driver"
	"fmt"
)

// UUID is a wrapper around string for UUID v4 type safety.
//
// Every entity carries a client-generated UUID assigned at creation time,
// independent of any server-assigned identifier, so creation can happen
// fully offline and later be upserted idempotently under the same id.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Entity is the base contract shared by every record in the
// asset -> equipment -> task -> entry hierarchy.
type Entity interface {
	// EntityID returns the client-generated identifier.
	EntityID() UUID
}
