// Package store provides the durable per-user local store and the
// global store that survives across logins.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/models"
)

// Well-known resource-path keys. The queue's key space and the cache's
// key space are both namespaced by resource path so a queued mutation
// and its cached entity agree on addressing.
const (
	KeyAssets     = "assets/"
	KeyEquipments = "equipments/"
)

// TasksKey returns the cache key for the task list of one equipment.
func TasksKey(equipmentID models.UUID) string {
	return fmt.Sprintf("tasks/%s", equipmentID)
}

// EntriesKey returns the cache key for the entries of one task.
func EntriesKey(equipmentID, taskID models.UUID) string {
	return fmt.Sprintf("entries/%s/%s", equipmentID, taskID)
}

// EquipmentEntriesKey returns the cache key for entries attached
// directly to an equipment, outside any task.
func EquipmentEntriesKey(equipmentID models.UUID) string {
	return fmt.Sprintf("entries/%s", equipmentID)
}

// ImagesKey returns the cache key for the images of one entity.
func ImagesKey(parentID models.UUID) string {
	return fmt.Sprintf("images/%s", parentID)
}

// UserStore is the durable key/array store scoped to one
// authenticated user. Exactly one instance is open at a time;
// switching users closes the prior store and opens a new one.
type UserStore struct {
	db     *sql.DB
	userID string
}

// Open opens (creating if needed) the sqlite-backed store for userID.
// The database is opened with WAL mode and a single connection, since
// sqlite does not support multiple writers.
func Open(dataDir, userID string) (*UserStore, error) {
	usersDir := filepath.Join(dataDir, "users")
	if err := os.MkdirAll(usersDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create data directory", err)
	}

	dbPath := filepath.Join(usersDir, userID+".db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to open user store", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to enable foreign keys", err)
	}

	s := &UserStore{db: db, userID: userID}

	migrator := NewMigrator(db)
	if err := migrator.Initialize(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to initialize migrations", err)
	}
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to run migrations", err)
	}

	return s, nil
}

// UserID returns the owner of this store partition.
func (s *UserStore) UserID() string {
	return s.userID
}

// Close closes the underlying database.
func (s *UserStore) Close() error {
	return s.db.Close()
}

// GetArray returns the entity array stored under key, or an empty
// slice when the key has never been written.
func (s *UserStore) GetArray(key string) ([]json.RawMessage, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read key", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt array under key "+key, err)
	}
	return items, nil
}

// SetArray overwrites the entire array stored under key.
func (s *UserStore) SetArray(key string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	value, err := json.Marshal(items)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to encode array", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(value))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write key", err)
	}
	return nil
}

// identified is the minimal shape needed to address an entity inside
// a stored array.
type identified struct {
	UUID models.UUID `json:"_uiId"`
}

// UpsertItem inserts or replaces the entity with the given identifier
// in the array under key. The array stays unique by identifier.
func (s *UserStore) UpsertItem(key string, id models.UUID, item json.RawMessage) error {
	items, err := s.GetArray(key)
	if err != nil {
		return err
	}

	replaced := false
	for i, raw := range items {
		var probe identified
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if probe.UUID == id {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}

	return s.SetArray(key, items)
}

// RemoveItem deletes the entity with the given identifier from the
// array under key. Removing an absent identifier is not an error.
func (s *UserStore) RemoveItem(key string, id models.UUID) error {
	items, err := s.GetArray(key)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, raw := range items {
		var probe identified
		if err := json.Unmarshal(raw, &probe); err == nil && probe.UUID == id {
			continue
		}
		kept = append(kept, raw)
	}

	return s.SetArray(key, kept)
}

// DeleteKeysWithPrefix drops every key under the given resource-path
// prefix. Used by cascade deletes to clear descendant caches.
func (s *UserStore) DeleteKeysWithPrefix(prefix string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete keys", err)
	}
	return nil
}

// GlobalStore is the small store that survives across logins. It
// holds remember-me data such as the current user and the storage
// schema version marker.
type GlobalStore struct {
	db *sql.DB
}

// Global store keys.
const (
	GlobalKeyCurrentUser   = "currentUser"
	GlobalKeySchemaVersion = "schemaVersion"
)

// OpenGlobal opens the global store under dataDir.
func OpenGlobal(dataDir string) (*GlobalStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create data directory", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "global.db"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to open global store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create global kv table", err)
	}

	return &GlobalStore{db: db}, nil
}

// Get returns the value under key, or "" when absent.
func (g *GlobalStore) Get(key string) (string, error) {
	var value string
	err := g.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrDatabase, "failed to read global key", err)
	}
	return value, nil
}

// Set writes the value under key.
func (g *GlobalStore) Set(key, value string) error {
	_, err := g.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write global key", err)
	}
	return nil
}

// Delete removes key from the global store.
func (g *GlobalStore) Delete(key string) error {
	_, err := g.db.Exec("DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete global key", err)
	}
	return nil
}

// CurrentUser returns the remembered user, or nil when nobody is
// remembered.
func (g *GlobalStore) CurrentUser() (*models.User, error) {
	raw, err := g.Get(GlobalKeyCurrentUser)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt remembered user", err)
	}
	return &user, nil
}

// SetCurrentUser remembers the user across restarts.
func (g *GlobalStore) SetCurrentUser(user *models.User) error {
	if user == nil {
		return g.Delete(GlobalKeyCurrentUser)
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to encode user", err)
	}
	return g.Set(GlobalKeyCurrentUser, string(raw))
}

// Close closes the global store.
func (g *GlobalStore) Close() error {
	return g.db.Close()
}
