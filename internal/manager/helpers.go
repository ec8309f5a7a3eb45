package manager

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/models"
	"maintkeeper/internal/uuid"
)

// Resource targets. These are the same paths the cache keys are
// namespaced by, so a queued mutation and its cached entity agree on
// addressing.

func assetTarget(id models.UUID) string {
	return fmt.Sprintf("assets/%s", id)
}

func equipmentTarget(id models.UUID) string {
	return fmt.Sprintf("equipments/%s", id)
}

func taskTarget(equipmentID, id models.UUID) string {
	return fmt.Sprintf("tasks/%s/%s", equipmentID, id)
}

func entryTarget(equipmentID, taskID, id models.UUID) string {
	if taskID == "" {
		return fmt.Sprintf("entries/%s/%s", equipmentID, id)
	}
	return fmt.Sprintf("entries/%s/%s/%s", equipmentID, taskID, id)
}

func imageTarget(parentID, id models.UUID) string {
	return fmt.Sprintf("images/%s/%s", parentID, id)
}

// encode marshals an entity for the wire and the cache.
func encode(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode entity", err)
	}
	return raw, nil
}

// decodeList unmarshals a cached or fetched raw array into typed
// entities, skipping nothing: one bad record fails the whole read.
func decodeList[E any](raws []json.RawMessage) ([]*E, error) {
	items := make([]*E, 0, len(raws))
	for _, raw := range raws {
		item := new(E)
		if err := json.Unmarshal(raw, item); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to decode entity", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// normalizeAs round-trips raw JSON through the typed struct so the
// caller always receives a consistently shaped entity whether it came
// from the server or is the client-optimistic copy.
func normalizeAs[E any]() func(json.RawMessage) (json.RawMessage, error) {
	return func(raw json.RawMessage) (json.RawMessage, error) {
		item := new(E)
		if err := json.Unmarshal(raw, item); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to normalize entity", err)
		}
		return encode(item)
	}
}

// ensureClientID assigns a fresh client-generated identifier when the
// entity does not carry one yet.
func ensureClientID(id *models.UUID) {
	if *id == "" {
		*id = models.UUID(uuid.New())
	}
}

// errNoParent reports a write attempted with no parent selected.
func errNoParent(child, parent string) error {
	return apperrors.New(apperrors.ErrInvalid,
		fmt.Sprintf("cannot write %s: no current %s selected", child, parent))
}

// named is satisfied by every entity that carries a display name.
type named interface {
	models.Entity
	DisplayName() string
}

// ensureUniqueName validates name uniqueness against the local cache
// before a write is attempted or queued, so the user sees this class
// of error synchronously regardless of connectivity.
func ensureUniqueName[T named](items []T, name string, selfID models.UUID) error {
	candidate := strings.TrimSpace(strings.ToLower(name))
	for _, item := range items {
		if item.EntityID() == selfID {
			continue
		}
		if strings.TrimSpace(strings.ToLower(item.DisplayName())) == candidate {
			return apperrors.New(apperrors.ErrBusinessConflict, "name already in use").
				WithFields(map[string]string{"name": "alreadyexisting"})
		}
	}
	return nil
}
