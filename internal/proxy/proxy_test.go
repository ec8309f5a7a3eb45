// Package proxy tests for online/offline write routing.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
	"maintkeeper/internal/transport"
)

// fixedRouting answers the routing question with a settable boolean.
type fixedRouting struct {
	onlineAndSynced bool
}

func (r *fixedRouting) IsOnlineAndSynced() bool {
	return r.onlineAndSynced
}

type proxyFixture struct {
	proxy   *Proxy
	routing *fixedRouting
	queue   *store.ActionQueue
	store   *store.UserStore
	server  *httptest.Server
	posts   *[]string
}

func newProxyFixture(t *testing.T) *proxyFixture {
	t.Helper()

	var posts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts = append(posts, r.URL.Path)
			// The server echoes the entity back enriched with a
			// server-only field.
			body := make(map[string]interface{})
			json.NewDecoder(r.Body).Decode(&body)
			body["serverField"] = "filled"
			json.NewEncoder(w).Encode(map[string]interface{}{"equipment": body})
		case http.MethodGet:
			w.Write([]byte(`{"equipments":[{"_uiId":"e1","name":"engine"}]}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)

	userStore, err := store.Open(t.TempDir(), "u1")
	require.NoError(t, err)
	t.Cleanup(func() { userStore.Close() })

	tp := transport.New(server.URL, nil)
	queue := store.NewActionQueue(tp)
	queue.SetStore(userStore)
	routing := &fixedRouting{}

	return &proxyFixture{
		proxy:   New(tp, routing, queue, func() *store.UserStore { return userStore }),
		routing: routing,
		queue:   queue,
		store:   userStore,
		server:  server,
		posts:   &posts,
	}
}

func passthrough(raw json.RawMessage) (json.RawMessage, error) {
	return raw, nil
}

// TestProxy_postOnline verifies an online-and-synced write goes
// straight to the server and caches the authoritative copy.
func TestProxy_postOnline(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = true

	out, err := f.proxy.PostAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "equipment",
		"u1", json.RawMessage(`{"_uiId":"u1","name":"engine"}`), passthrough)
	require.NoError(t, err)

	assert.Equal(t, []string{"/equipments/u1"}, *f.posts)
	assert.Equal(t, 0, f.queue.Count(), "online write must not touch the queue")

	var saved map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &saved))
	assert.Equal(t, "filled", saved["serverField"], "caller receives the authoritative copy")

	cached, err := f.store.GetArray("equipments/")
	require.NoError(t, err)
	require.Len(t, cached, 1)
}

// TestProxy_postOffline verifies an offline write is queued and the
// optimistic copy is visible immediately under its client identifier.
func TestProxy_postOffline(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = false

	out, err := f.proxy.PostAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "equipment",
		"u1", json.RawMessage(`{"_uiId":"u1","name":"engine"}`), passthrough)
	require.NoError(t, err)

	assert.Empty(t, *f.posts, "offline write must not hit the server")
	assert.Equal(t, 1, f.queue.Count())

	var saved struct {
		UUID models.UUID `json:"_uiId"`
	}
	require.NoError(t, json.Unmarshal(out, &saved))
	assert.Equal(t, models.UUID("u1"), saved.UUID)

	cached, err := f.store.GetArray("equipments/")
	require.NoError(t, err)
	require.Len(t, cached, 1, "optimistic entity is visible immediately")
}

// TestProxy_offlineCreateConverges verifies the queued create is
// delivered on the next drain and the entity keeps its identifier
// while absorbing server-only fields.
func TestProxy_offlineCreateConverges(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = false

	_, err := f.proxy.PostAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "equipment",
		"u1", json.RawMessage(`{"_uiId":"u1","name":"engine"}`), passthrough)
	require.NoError(t, err)
	require.Equal(t, 1, f.queue.Count())

	// Connectivity restored: drain one action the way a sync pass does.
	action, err := f.queue.NextForExecution()
	require.NoError(t, err)
	require.NoError(t, f.queue.PerformAction(context.Background(), action))
	assert.Equal(t, 0, f.queue.Count())
	assert.Equal(t, []string{"/equipments/u1"}, *f.posts)

	// The next online save upserts the server copy under the same id.
	f.routing.onlineAndSynced = true
	_, err = f.proxy.PostAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "equipment",
		"u1", json.RawMessage(`{"_uiId":"u1","name":"engine"}`), passthrough)
	require.NoError(t, err)

	cached, err := f.store.GetArray("equipments/")
	require.NoError(t, err)
	require.Len(t, cached, 1, "same identifier must upsert, not duplicate")

	var entity map[string]interface{}
	require.NoError(t, json.Unmarshal(cached[0], &entity))
	assert.Equal(t, "u1", entity["_uiId"])
	assert.Equal(t, "filled", entity["serverField"])
}

// TestProxy_deleteRemovesCacheFirst verifies the entity leaves the
// cache the instant a delete is requested, online or not.
func TestProxy_deleteRemovesCacheFirst(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = false

	require.NoError(t, f.store.UpsertItem("equipments/", "u1", json.RawMessage(`{"_uiId":"u1"}`)))

	require.NoError(t, f.proxy.DeleteAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "u1"))

	cached, err := f.store.GetArray("equipments/")
	require.NoError(t, err)
	assert.Empty(t, cached)
	assert.Equal(t, 1, f.queue.Count(), "offline delete is queued for replay")
}

// TestProxy_fetchListOfflineServesCache verifies reads fall back to
// the cached array when not online-and-synced.
func TestProxy_fetchListOfflineServesCache(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = false

	require.NoError(t, f.store.SetArray("equipments/",
		[]json.RawMessage{json.RawMessage(`{"_uiId":"local"}`)}))

	items, err := f.proxy.FetchList(context.Background(),
		"equipments", "equipments/", "equipments", passthrough)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"_uiId":"local"}`, string(items[0]))
}

// TestProxy_fetchListOnlineOverwritesCache verifies an online fetch
// replaces the whole cached array with the server list.
func TestProxy_fetchListOnlineOverwritesCache(t *testing.T) {
	f := newProxyFixture(t)
	f.routing.onlineAndSynced = true

	require.NoError(t, f.store.SetArray("equipments/",
		[]json.RawMessage{json.RawMessage(`{"_uiId":"stale"}`)}))

	items, err := f.proxy.FetchList(context.Background(),
		"equipments", "equipments/", "equipments", passthrough)
	require.NoError(t, err)
	require.Len(t, items, 1)

	cached, err := f.store.GetArray("equipments/")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.JSONEq(t, `{"_uiId":"e1","name":"engine"}`, string(cached[0]))
}

// TestProxy_noStoreOpen verifies every operation refuses to run when
// nobody is logged in.
func TestProxy_noStoreOpen(t *testing.T) {
	f := newProxyFixture(t)
	closed := New(transport.New(f.server.URL, nil), f.routing, f.queue,
		func() *store.UserStore { return nil })

	_, err := closed.PostAndUpdate(context.Background(),
		"equipments/u1", "equipments/", "equipment", "u1", json.RawMessage(`{}`), passthrough)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageNotOpen))

	err = closed.DeleteAndUpdate(context.Background(), "equipments/u1", "equipments/", "u1")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageNotOpen))

	_, err = closed.FetchList(context.Background(), "equipments", "equipments/", "equipments", passthrough)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageNotOpen))
}
