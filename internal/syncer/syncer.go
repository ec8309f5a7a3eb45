// Package syncer drains the action queue against the server while
// connectivity holds.
package syncer

import (
	"context"
	"sync"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/events"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
)

// Progress is one step snapshot of a drain pass. Remaining is
// monotonically non-increasing within a pass, and a pass terminates
// with exactly one IsSyncing=false event.
type Progress struct {
	IsSyncing bool `json:"isSyncing"`
	Total     int  `json:"total"`
	Remaining int  `json:"remaining"`
}

// ConnectivitySource is the syncer's view of the monitor.
type ConnectivitySource interface {
	IsOnline() bool
	OnConnectivityChanged(fn func(bool)) func()
}

// Syncer drains the action queue strictly in order, stopping and
// requeuing on the first failure. Only one drain pass runs at a time.
//
// There is deliberately no retry timer: a failed pass leaves the
// failing action at the head of the queue and waits for the next
// externally triggered pass (typically the next offline-to-online
// edge).
type Syncer struct {
	mu      sync.Mutex
	syncing bool

	queue   *store.ActionQueue
	monitor ConnectivitySource

	onProgress *events.Emitter[Progress]
}

// NewSyncer creates a Syncer and arms it on the monitor's
// offline-to-online edge.
func NewSyncer(queue *store.ActionQueue, monitor ConnectivitySource) *Syncer {
	s := &Syncer{
		queue:      queue,
		monitor:    monitor,
		onProgress: events.NewEmitter[Progress](),
	}

	monitor.OnConnectivityChanged(func(online bool) {
		if online {
			go func() {
				if err := s.Sync(context.Background()); err != nil {
					logging.ErrorWithCode("Sync pass after reconnect failed",
						string(apperrors.ErrSyncFailed), err)
				}
			}()
		}
	})

	return s
}

// OnProgress subscribes to drain progress snapshots.
func (s *Syncer) OnProgress(fn func(Progress)) func() {
	return s.onProgress.Subscribe(fn)
}

// IsSyncing reports whether a drain pass is currently running.
func (s *Syncer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Sync runs one drain pass. A second concurrent call is a no-op while
// a pass is in flight.
func (s *Syncer) Sync(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil
	}
	s.syncing = true
	s.mu.Unlock()

	total := s.queue.Count()
	s.onProgress.Emit(Progress{IsSyncing: true, Total: total, Remaining: total})

	var passErr error

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
		s.onProgress.Emit(Progress{IsSyncing: false, Total: total, Remaining: s.queue.Count()})
	}()

	for s.monitor.IsOnline() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		action, err := s.queue.NextForExecution()
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNoPendingAction) {
				// Normal termination: the queue drained dry.
				return nil
			}
			passErr = err
			break
		}

		if err := s.performAndSettle(ctx, action); err != nil {
			passErr = err
			break
		}

		s.onProgress.Emit(Progress{IsSyncing: true, Total: total, Remaining: s.queue.Count()})
	}

	if passErr != nil {
		logging.ErrorWithCode("Drain pass halted", string(apperrors.ErrSyncFailed), passErr,
			map[string]interface{}{"remaining": s.queue.Count()})
	}
	return passErr
}

// performAndSettle delivers one action; on failure it puts the action
// back at the head so a later pass replays it in the original order.
func (s *Syncer) performAndSettle(ctx context.Context, action models.Action) error {
	if err := s.queue.PerformAction(ctx, action); err != nil {
		if requeueErr := s.queue.RequeueFront(action); requeueErr != nil {
			logging.Error("Failed to requeue action after delivery failure", requeueErr,
				map[string]interface{}{"target": action.Target})
		}
		return err
	}

	logging.Debug("Action delivered", map[string]interface{}{
		"kind":   string(action.Kind),
		"target": action.Target,
	})
	return nil
}
