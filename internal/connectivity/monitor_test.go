// Package connectivity tests for the derived online signal.
package connectivity

import (
	"context"
	"testing"
	"time"

	"maintkeeper/internal/events"
)

// fakeProber resolves every probe to a fixed answer.
type fakeProber struct {
	reachable bool
}

func (p *fakeProber) Ping(ctx context.Context) bool {
	return p.reachable
}

// fakeQueue is an in-memory QueueView.
type fakeQueue struct {
	count   int
	onCount *events.Emitter[int]
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{onCount: events.NewEmitter[int]()}
}

func (q *fakeQueue) Count() int {
	return q.count
}

func (q *fakeQueue) OnCountChanged(fn func(int)) func() {
	return q.onCount.Subscribe(fn)
}

func (q *fakeQueue) setCount(n int) {
	q.count = n
	q.onCount.Emit(n)
}

func newTestMonitor() (*Monitor, *fakeProber, *fakeQueue) {
	prober := &fakeProber{}
	queue := newFakeQueue()
	return NewMonitor(prober, queue, 100*time.Millisecond), prober, queue
}

// TestMonitor_offlineUntilFirstProbe verifies the backend counts as
// unreachable before any probe succeeded.
func TestMonitor_offlineUntilFirstProbe(t *testing.T) {
	m, _, _ := newTestMonitor()

	if m.IsOnline() {
		t.Error("IsOnline() before first probe should be false")
	}
}

// TestMonitor_allInputsRequired verifies isOnline is the conjunction of
// all three inputs.
func TestMonitor_allInputsRequired(t *testing.T) {
	m, _, _ := newTestMonitor()

	m.SetBackendReachable(true)
	if !m.IsOnline() {
		t.Fatal("IsOnline() should be true with network up and backend reachable")
	}

	m.SetNetworkUp(false)
	if m.IsOnline() {
		t.Error("IsOnline() should be false with network down")
	}
	m.SetNetworkUp(true)

	m.SetManualOffline(true)
	if m.IsOnline() {
		t.Error("manual offline must win over a live network")
	}
	m.SetManualOffline(false)

	m.SetBackendReachable(false)
	if m.IsOnline() {
		t.Error("IsOnline() should be false with backend unreachable")
	}
}

// TestMonitor_edgeTriggeredNotifications verifies subscribers fire only
// on actual flips, not on every input change.
func TestMonitor_edgeTriggeredNotifications(t *testing.T) {
	m, _, _ := newTestMonitor()

	var flips []bool
	unsubscribe := m.OnConnectivityChanged(func(online bool) {
		flips = append(flips, online)
	})
	defer unsubscribe()

	m.SetBackendReachable(true)  // offline -> online
	m.SetBackendReachable(true)  // no change
	m.SetNetworkUp(true)         // no change
	m.SetManualOffline(true)     // online -> offline
	m.SetBackendReachable(false) // still offline
	m.SetManualOffline(false)    // still offline, backend unreachable
	m.SetBackendReachable(true)  // offline -> online

	want := []bool{true, false, true}
	if len(flips) != len(want) {
		t.Fatalf("got flips %v, want %v", flips, want)
	}
	for i := range want {
		if flips[i] != want[i] {
			t.Errorf("flip %d = %v, want %v", i, flips[i], want[i])
		}
	}
}

// TestMonitor_onlineAndSynced verifies the derived synced signal tracks
// both connectivity and queue length.
func TestMonitor_onlineAndSynced(t *testing.T) {
	m, _, queue := newTestMonitor()

	queue.setCount(2)
	m.SetBackendReachable(true)
	if m.IsOnlineAndSynced() {
		t.Error("IsOnlineAndSynced() should be false with pending actions")
	}

	var synced []bool
	unsubscribe := m.OnSyncedChanged(func(v bool) {
		synced = append(synced, v)
	})
	defer unsubscribe()

	queue.setCount(0)
	if !m.IsOnlineAndSynced() {
		t.Error("IsOnlineAndSynced() should be true online with an empty queue")
	}
	if len(synced) != 1 || !synced[0] {
		t.Errorf("synced notifications = %v, want [true]", synced)
	}
}

// TestMonitor_probe verifies a probe outcome feeds the reachability
// input.
func TestMonitor_probe(t *testing.T) {
	m, prober, _ := newTestMonitor()

	prober.reachable = true
	if !m.Probe(context.Background()) {
		t.Fatal("Probe() should report reachable")
	}
	if !m.IsOnline() {
		t.Error("IsOnline() should be true after a successful probe")
	}

	prober.reachable = false
	if m.Probe(context.Background()) {
		t.Fatal("Probe() should report unreachable")
	}
	if m.IsOnline() {
		t.Error("IsOnline() should be false after a failed probe")
	}
}
