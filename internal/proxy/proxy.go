// Package proxy routes mutations either straight to the server or
// into the action queue, keeping the local cache consistent either
// way.
package proxy

import (
	"context"
	"encoding/json"

	apperrors "maintkeeper/internal/errors"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/models"
	"maintkeeper/internal/store"
	"maintkeeper/internal/transport"
)

// Routing answers the per-mutation "send now or queue it" question.
type Routing interface {
	IsOnlineAndSynced() bool
}

// StoreProvider returns the currently open user store, or nil when
// logged out.
type StoreProvider func() *store.UserStore

// Normalize shapes a raw entity consistently whether it came back
// from the server or is the client-optimistic copy; the caller always
// receives the same shape either way.
type Normalize func(json.RawMessage) (json.RawMessage, error)

// Proxy decides, per mutating call, whether to perform the network
// call immediately or append it to the action queue. Both paths leave
// the cached array for the target resource consistent with what the
// caller got back.
type Proxy struct {
	transport *transport.Transport
	routing   Routing
	queue     *store.ActionQueue
	userStore StoreProvider
}

// New creates a Proxy.
func New(t *transport.Transport, routing Routing, queue *store.ActionQueue, userStore StoreProvider) *Proxy {
	return &Proxy{
		transport: t,
		routing:   routing,
		queue:     queue,
		userStore: userStore,
	}
}

// PostAndUpdate routes one mutation addressed at target.
//
// Online and fully synced: the entity is posted now, the response
// envelope is unwrapped at envelopeField, normalized, cached under
// cacheKey and returned as the authoritative copy; the queue is
// untouched. Otherwise the same normalize runs over the optimistic
// entity, a post action is queued, and the optimistic copy is cached
// and returned. Relative queue order across writes to one target is
// preserved so replay applies create-then-update in the original
// sequence.
func (p *Proxy) PostAndUpdate(ctx context.Context, target, cacheKey, envelopeField string,
	id models.UUID, entity json.RawMessage, normalize Normalize) (json.RawMessage, error) {

	s := p.userStore()
	if s == nil {
		return nil, apperrors.New(apperrors.ErrStorageNotOpen, "cannot write entity: no user store open")
	}

	if p.routing.IsOnlineAndSynced() {
		resp, err := p.transport.Post(ctx, target, entity)
		if err != nil {
			return nil, err
		}

		inner, err := transport.Unwrap(resp, envelopeField)
		if err != nil {
			return nil, err
		}

		authoritative, err := normalize(inner)
		if err != nil {
			return nil, err
		}

		if err := s.UpsertItem(cacheKey, id, authoritative); err != nil {
			return nil, err
		}
		return authoritative, nil
	}

	optimistic, err := normalize(entity)
	if err != nil {
		return nil, err
	}

	if err := p.queue.Enqueue(models.Action{
		Kind:    models.ActionPost,
		Target:  target,
		Payload: optimistic,
	}); err != nil {
		return nil, err
	}

	if err := s.UpsertItem(cacheKey, id, optimistic); err != nil {
		return nil, err
	}

	logging.Debug("Write queued", map[string]interface{}{"target": target})
	return optimistic, nil
}

// DeleteAndUpdate removes the entity from the local cache the instant
// the delete is requested, regardless of delivery outcome, then
// either performs or queues the server-side delete.
func (p *Proxy) DeleteAndUpdate(ctx context.Context, target, cacheKey string, id models.UUID) error {
	s := p.userStore()
	if s == nil {
		return apperrors.New(apperrors.ErrStorageNotOpen, "cannot delete entity: no user store open")
	}

	if err := s.RemoveItem(cacheKey, id); err != nil {
		return err
	}

	if p.routing.IsOnlineAndSynced() {
		_, err := p.transport.Delete(ctx, target)
		return err
	}

	return p.queue.Enqueue(models.Action{
		Kind:   models.ActionDelete,
		Target: target,
	})
}

// FetchList reads the entity array for target. Online and fully
// synced it fetches from the server and overwrites the entire cached
// array (no partial merge); offline it serves the cache as-is.
func (p *Proxy) FetchList(ctx context.Context, target, cacheKey, envelopeField string,
	normalize Normalize) ([]json.RawMessage, error) {

	s := p.userStore()
	if s == nil {
		return nil, apperrors.New(apperrors.ErrStorageNotOpen, "cannot read entities: no user store open")
	}

	if !p.routing.IsOnlineAndSynced() {
		return s.GetArray(cacheKey)
	}

	resp, err := p.transport.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	inner, err := transport.Unwrap(resp, envelopeField)
	if err != nil {
		return nil, err
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(inner, &rawItems); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "malformed list response", err)
	}

	items := make([]json.RawMessage, 0, len(rawItems))
	for _, raw := range rawItems {
		normalized, err := normalize(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, normalized)
	}

	if err := s.SetArray(cacheKey, items); err != nil {
		return nil, err
	}
	return items, nil
}

// DropCachePrefix clears every cached key under prefix. Cascade
// deletes use it to clear descendant caches in one sweep.
func (p *Proxy) DropCachePrefix(prefix string) error {
	s := p.userStore()
	if s == nil {
		return apperrors.New(apperrors.ErrStorageNotOpen, "cannot drop cache: no user store open")
	}
	return s.DeleteKeysWithPrefix(prefix)
}
