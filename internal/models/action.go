package models

import "encoding/json"

// ActionKind discriminates queued mutations.
type ActionKind string

const (
	ActionPost   ActionKind = "post"
	ActionDelete ActionKind = "delete"
)

// Action represents one not-yet-delivered mutation awaiting replay.
// Its position in the queue is its only identity; Target is the
// resource path the mutation addresses, shared with the cache key
// space so a queued mutation and its cached entity agree on
// addressing.
type Action struct {
	Kind    ActionKind      `db:"kind" json:"kind"`
	Target  string          `db:"target" json:"target"`
	Payload json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// TableName returns the table name backing the action queue.
func (Action) TableName() string {
	return "history"
}
