package models

// User represents the authenticated owner of a local store partition.
// Token is the authorization credential carried by the transport.
type User struct {
	UUID      UUID   `db:"uuid" json:"_uiId"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"firstname"`
	Name      string `db:"name" json:"name"`
	Token     string `db:"token" json:"token,omitempty"`
}

// EntityID implements Entity.
func (u *User) EntityID() UUID {
	return u.UUID
}
