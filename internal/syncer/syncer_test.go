// Package syncer tests for the queue drain protocol.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintkeeper/internal/events"
	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
)

// scriptedRunner delivers actions, failing the targets it was told to
// fail.
type scriptedRunner struct {
	delivered []string
	failing   map[string]bool
}

func (r *scriptedRunner) Post(ctx context.Context, target string, payload json.RawMessage) (json.RawMessage, error) {
	if r.failing[target] {
		return nil, errors.New("delivery refused")
	}
	r.delivered = append(r.delivered, target)
	return json.RawMessage(`{}`), nil
}

func (r *scriptedRunner) Delete(ctx context.Context, target string) (json.RawMessage, error) {
	if r.failing[target] {
		return nil, errors.New("delivery refused")
	}
	r.delivered = append(r.delivered, target)
	return json.RawMessage(`{}`), nil
}

// fakeMonitor is an always-controllable ConnectivitySource.
type fakeMonitor struct {
	online   bool
	onOnline *events.Emitter[bool]
}

func newFakeMonitor(online bool) *fakeMonitor {
	return &fakeMonitor{online: online, onOnline: events.NewEmitter[bool]()}
}

func (m *fakeMonitor) IsOnline() bool {
	return m.online
}

func (m *fakeMonitor) OnConnectivityChanged(fn func(bool)) func() {
	return m.onOnline.Subscribe(fn)
}

func newTestSyncer(t *testing.T, runner *scriptedRunner, monitor *fakeMonitor) (*Syncer, *store.ActionQueue) {
	t.Helper()

	userStore, err := store.Open(t.TempDir(), "u1")
	require.NoError(t, err)
	t.Cleanup(func() { userStore.Close() })

	queue := store.NewActionQueue(runner)
	queue.SetStore(userStore)
	return NewSyncer(queue, monitor), queue
}

func enqueuePosts(t *testing.T, queue *store.ActionQueue, targets ...string) {
	t.Helper()
	for _, target := range targets {
		require.NoError(t, queue.Enqueue(models.Action{
			Kind:    models.ActionPost,
			Target:  target,
			Payload: json.RawMessage(`{"_uiId":"x"}`),
		}))
	}
}

// TestSyncer_drainsInOrder verifies a clean pass delivers every action
// in enqueue order and empties the queue.
func TestSyncer_drainsInOrder(t *testing.T) {
	runner := &scriptedRunner{}
	s, queue := newTestSyncer(t, runner, newFakeMonitor(true))
	enqueuePosts(t, queue, "p1", "p2", "p3")

	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, []string{"p1", "p2", "p3"}, runner.delivered)
	assert.Equal(t, 0, queue.Count())
}

// TestSyncer_haltsAndRequeuesOnFailure verifies the first failed
// delivery stops the pass with the failing action back at the head and
// everything behind it untouched.
func TestSyncer_haltsAndRequeuesOnFailure(t *testing.T) {
	runner := &scriptedRunner{failing: map[string]bool{"p2": true}}
	s, queue := newTestSyncer(t, runner, newFakeMonitor(true))
	enqueuePosts(t, queue, "p1", "p2", "p3")

	err := s.Sync(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"p1"}, runner.delivered)
	require.Equal(t, 2, queue.Count())

	head, err := queue.NextForExecution()
	require.NoError(t, err)
	assert.Equal(t, "p2", head.Target)
	next, err := queue.NextForExecution()
	require.NoError(t, err)
	assert.Equal(t, "p3", next.Target)
}

// TestSyncer_resumesAfterFailureCleared verifies a later pass replays
// the requeued action in the original order once delivery succeeds.
func TestSyncer_resumesAfterFailureCleared(t *testing.T) {
	runner := &scriptedRunner{failing: map[string]bool{"p2": true}}
	s, queue := newTestSyncer(t, runner, newFakeMonitor(true))
	enqueuePosts(t, queue, "p1", "p2", "p3")

	require.Error(t, s.Sync(context.Background()))

	runner.failing = nil
	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, []string{"p1", "p2", "p3"}, runner.delivered)
	assert.Equal(t, 0, queue.Count())
}

// TestSyncer_progressEvents verifies a pass emits monotonically
// non-increasing remaining counts and exactly one terminal event.
func TestSyncer_progressEvents(t *testing.T) {
	runner := &scriptedRunner{}
	s, queue := newTestSyncer(t, runner, newFakeMonitor(true))
	enqueuePosts(t, queue, "p1", "p2")

	var progress []Progress
	unsubscribe := s.OnProgress(func(p Progress) {
		progress = append(progress, p)
	})
	defer unsubscribe()

	require.NoError(t, s.Sync(context.Background()))

	require.NotEmpty(t, progress)

	terminal := 0
	prevRemaining := progress[0].Remaining
	for _, p := range progress {
		assert.LessOrEqual(t, p.Remaining, prevRemaining, "remaining must never increase within a pass")
		prevRemaining = p.Remaining
		if !p.IsSyncing {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal, "exactly one terminal event per pass")

	last := progress[len(progress)-1]
	assert.False(t, last.IsSyncing)
	assert.Equal(t, 0, last.Remaining)
	assert.Equal(t, 2, last.Total)
}

// TestSyncer_offlineLeavesQueueUntouched verifies a pass with no
// connectivity delivers nothing.
func TestSyncer_offlineLeavesQueueUntouched(t *testing.T) {
	runner := &scriptedRunner{}
	s, queue := newTestSyncer(t, runner, newFakeMonitor(false))
	enqueuePosts(t, queue, "p1")

	require.NoError(t, s.Sync(context.Background()))

	assert.Empty(t, runner.delivered)
	assert.Equal(t, 1, queue.Count())
}
