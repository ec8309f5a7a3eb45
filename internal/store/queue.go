// Package store: durable FIFO queue of not-yet-delivered mutations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/events"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
)

// ActionRunner delivers a single action to the server. Implemented by
// the transport layer.
type ActionRunner interface {
	Post(ctx context.Context, target string, payload json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, target string) (json.RawMessage, error)
}

// ActionQueue is the durable, totally ordered list of pending
// mutations, scoped to the open user store. Order in the queue is the
// only identity an action has.
//
// All mutating operations are serialized through one mutex: the queue
// is a critical section with a single logical owner, so interleaved
// async callers cannot race and lose an update. Count notifications
// fire after the lock is released so listeners may call back into the
// queue.
type ActionQueue struct {
	mu      sync.Mutex
	store   *UserStore
	runner  ActionRunner
	onCount *events.Emitter[int]
}

// NewActionQueue creates an ActionQueue with no open store.
func NewActionQueue(runner ActionRunner) *ActionQueue {
	return &ActionQueue{
		runner:  runner,
		onCount: events.NewEmitter[int](),
	}
}

// OnCountChanged subscribes to queue-length notifications and returns
// the unsubscribe function. The listener fires with the new length
// after every mutation and on store switches.
func (q *ActionQueue) OnCountChanged(fn func(int)) func() {
	return q.onCount.Subscribe(fn)
}

// SetStore binds the queue to a user store (or detaches it when nil).
// Switching users resets the subscribers' view of the pending count.
func (q *ActionQueue) SetStore(s *UserStore) {
	q.mu.Lock()
	q.store = s
	count := q.countLocked()
	q.mu.Unlock()

	q.onCount.Emit(count)
}

// Enqueue appends an action to the tail and persists it atomically.
func (q *ActionQueue) Enqueue(action models.Action) error {
	q.mu.Lock()

	if q.store == nil {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrStorageNotOpen, "cannot enqueue action: no user store open")
	}

	_, err := q.store.db.Exec(
		"INSERT INTO history (seq, kind, target, payload) VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM history), ?, ?, ?)",
		string(action.Kind), action.Target, payloadText(action.Payload))
	if err != nil {
		q.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to enqueue action", err)
	}

	count := q.countLocked()
	q.mu.Unlock()

	q.onCount.Emit(count)
	return nil
}

// NextForExecution removes and returns the head action. When the queue
// is empty it fails with the NO_PENDING_ACTION signal, which is
// expected control flow for the drain loop, not a fault.
func (q *ActionQueue) NextForExecution() (models.Action, error) {
	q.mu.Lock()

	if q.store == nil {
		q.mu.Unlock()
		return models.Action{}, apperrors.New(apperrors.ErrStorageNotOpen, "cannot dequeue action: no user store open")
	}

	var (
		seq     int64
		kind    string
		target  string
		payload sql.NullString
	)
	err := q.store.db.QueryRow(
		"SELECT seq, kind, target, payload FROM history ORDER BY seq ASC LIMIT 1").
		Scan(&seq, &kind, &target, &payload)
	if err == sql.ErrNoRows {
		q.mu.Unlock()
		return models.Action{}, apperrors.New(apperrors.ErrNoPendingAction, "action queue is empty")
	}
	if err != nil {
		q.mu.Unlock()
		return models.Action{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to read queue head", err)
	}

	if _, err := q.store.db.Exec("DELETE FROM history WHERE seq = ?", seq); err != nil {
		q.mu.Unlock()
		return models.Action{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to remove queue head", err)
	}

	action := models.Action{
		Kind:   models.ActionKind(kind),
		Target: target,
	}
	if payload.Valid && payload.String != "" {
		action.Payload = json.RawMessage(payload.String)
	}

	count := q.countLocked()
	q.mu.Unlock()

	q.onCount.Emit(count)
	return action, nil
}

// RequeueFront re-inserts an action at the head, preserving the
// relative order of whatever remains. Used only after a failed
// delivery.
func (q *ActionQueue) RequeueFront(action models.Action) error {
	q.mu.Lock()

	if q.store == nil {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrStorageNotOpen, "cannot requeue action: no user store open")
	}

	_, err := q.store.db.Exec(
		"INSERT INTO history (seq, kind, target, payload) VALUES ((SELECT COALESCE(MIN(seq), 1) - 1 FROM history), ?, ?, ?)",
		string(action.Kind), action.Target, payloadText(action.Payload))
	if err != nil {
		q.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to requeue action", err)
	}

	count := q.countLocked()
	q.mu.Unlock()

	q.onCount.Emit(count)
	return nil
}

// Count returns the number of pending actions. It returns 0 when no
// user store is open and never fails.
func (q *ActionQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countLocked()
}

// Clear empties the queue. Used when rebuilding the entire local
// cache from the server.
func (q *ActionQueue) Clear() error {
	q.mu.Lock()

	if q.store == nil {
		q.mu.Unlock()
		return apperrors.New(apperrors.ErrStorageNotOpen, "cannot clear queue: no user store open")
	}

	if _, err := q.store.db.Exec("DELETE FROM history"); err != nil {
		q.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear queue", err)
	}

	q.mu.Unlock()

	q.onCount.Emit(0)
	return nil
}

// PerformAction delivers one action through the runner, dispatching by
// kind. An unrecognized kind is a programmer error and panics rather
// than being silently dropped.
func (q *ActionQueue) PerformAction(ctx context.Context, action models.Action) error {
	switch action.Kind {
	case models.ActionPost:
		_, err := q.runner.Post(ctx, action.Target, action.Payload)
		return err
	case models.ActionDelete:
		_, err := q.runner.Delete(ctx, action.Target)
		return err
	default:
		panic(fmt.Sprintf("unknown action kind %q for target %q", action.Kind, action.Target))
	}
}

func (q *ActionQueue) countLocked() int {
	if q.store == nil {
		return 0
	}

	var count int
	if err := q.store.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count); err != nil {
		logging.Error("Failed to count pending actions", err)
		return 0
	}
	return count
}

func payloadText(payload json.RawMessage) interface{} {
	if len(payload) == 0 {
		return nil
	}
	return string(payload)
}
