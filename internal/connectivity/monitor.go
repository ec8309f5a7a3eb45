// Package connectivity derives one online/offline signal from raw
// network state, a manual offline override and a backend liveness
// probe.
package connectivity

import (
	"context"
	"sync"
	"time"

	"maintkeeper/internal/events"
	"maintkeeper/internal/logging"
)

// Prober checks backend liveness. Implemented by the transport.
type Prober interface {
	Ping(ctx context.Context) bool
}

// QueueView is the monitor's read-only view of the action queue,
// needed for the online-and-synced derived signal.
type QueueView interface {
	Count() int
	OnCountChanged(fn func(int)) func()
}

// Monitor combines three independent inputs into a single connectivity
// value: isOnline = networkUp && !manualOffline && backendReachable.
//
// The value is re-evaluated on every input change but edge-triggered
// toward subscribers: listeners fire only when the computed boolean
// actually flips, so inputs flapping together cannot cause a
// notification storm. The manual override always wins over a live
// network.
type Monitor struct {
	mu               sync.Mutex
	networkUp        bool
	manualOffline    bool
	backendReachable bool
	lastOnline       bool
	lastSynced       bool

	prober       Prober
	probeTimeout time.Duration
	queue        QueueView

	onOnline *events.Emitter[bool]
	onSynced *events.Emitter[bool]
}

// NewMonitor creates a Monitor. The backend is considered unreachable
// until the first successful probe.
func NewMonitor(prober Prober, queue QueueView, probeTimeout time.Duration) *Monitor {
	m := &Monitor{
		networkUp:    true,
		prober:       prober,
		probeTimeout: probeTimeout,
		queue:        queue,
		onOnline:     events.NewEmitter[bool](),
		onSynced:     events.NewEmitter[bool](),
	}

	queue.OnCountChanged(func(int) {
		m.recompute()
	})

	return m
}

// OnConnectivityChanged subscribes to isOnline flips.
func (m *Monitor) OnConnectivityChanged(fn func(bool)) func() {
	return m.onOnline.Subscribe(fn)
}

// OnSyncedChanged subscribes to isOnlineAndSynced flips.
func (m *Monitor) OnSyncedChanged(fn func(bool)) func() {
	return m.onSynced.Subscribe(fn)
}

// IsOnline returns the current computed connectivity.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.computeLocked()
}

// IsOnlineAndSynced reports whether connectivity is up and the action
// queue is empty: the only state in which writes go straight to the
// server.
func (m *Monitor) IsOnlineAndSynced() bool {
	m.mu.Lock()
	online := m.computeLocked()
	m.mu.Unlock()
	return online && m.queue.Count() == 0
}

// SetNetworkUp updates the raw network input.
func (m *Monitor) SetNetworkUp(up bool) {
	m.mu.Lock()
	m.networkUp = up
	m.mu.Unlock()
	m.recompute()
}

// SetManualOffline updates the manual override. Used to force offline
// behavior deliberately.
func (m *Monitor) SetManualOffline(offline bool) {
	m.mu.Lock()
	m.manualOffline = offline
	m.mu.Unlock()
	m.recompute()
}

// ManualOffline reports whether the manual override is active.
func (m *Monitor) ManualOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manualOffline
}

// Probe runs one bounded-timeout liveness check against the backend.
// A timeout or any transport error is treated as "unreachable", never
// propagated as a failure.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	reachable := m.prober.Ping(probeCtx)
	m.SetBackendReachable(reachable)
	return reachable
}

// SetBackendReachable records the outcome of a liveness check.
func (m *Monitor) SetBackendReachable(reachable bool) {
	m.mu.Lock()
	m.backendReachable = reachable
	m.mu.Unlock()
	m.recompute()
}

func (m *Monitor) computeLocked() bool {
	return m.networkUp && !m.manualOffline && m.backendReachable
}

// recompute re-derives both signals and notifies only on actual flips.
func (m *Monitor) recompute() {
	m.mu.Lock()
	online := m.computeLocked()
	onlineFlipped := online != m.lastOnline
	m.lastOnline = online
	m.mu.Unlock()

	synced := online && m.queue.Count() == 0

	m.mu.Lock()
	syncedFlipped := synced != m.lastSynced
	m.lastSynced = synced
	m.mu.Unlock()

	if onlineFlipped {
		logging.Info("Connectivity changed", map[string]interface{}{"is_online": online})
		m.onOnline.Emit(online)
	}
	if syncedFlipped {
		m.onSynced.Emit(synced)
	}
}
