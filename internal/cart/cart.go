// Package cart owns the shopping cart of one storefront profile: item
// collection, quantity and price rules, purchase-vs-subscription semantics,
// persistence and change notification.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"kortstore/internal/domain"
	"kortstore/internal/store"
)

// SessionSource yields the current authenticated identity; mutations are
// rejected when it returns nil.
type SessionSource interface {
	Current() *domain.Session
}

// Listener observes cart activity: badge counters, the floating checkout
// affordance and the open cart panel all hang off CartChanged, and the login
// prompt hangs off LoginRequired.
type Listener interface {
	CartChanged(items []domain.CartItem)
	LoginRequired()
}

type Engine struct {
	store    store.Store
	sessions SessionSource
	logger   zerolog.Logger

	mu        sync.Mutex
	items     []domain.CartItem
	listeners []Listener
}

func NewEngine(st store.Store, sessions SessionSource, logger zerolog.Logger) *Engine {
	e := &Engine{store: st, sessions: sessions, logger: logger}
	e.mu.Lock()
	e.reloadLocked()
	e.mu.Unlock()
	return e
}

func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// Items returns a snapshot of the cart in insertion order.
func (e *Engine) Items() []domain.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.CartItem(nil), e.items...)
}

// Total sums unit price times quantity over all items, independent of kind.
func (e *Engine) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CartTotal(e.items)
}

// AddItem merges the item into the cart. Without an authenticated session it
// mutates nothing, surfaces the login prompt and returns false.
//
// Merge rules: an existing subscription id has its period and price replaced
// by the new selection (one active plan per product) and its quantity
// incremented; an existing purchase id only gains quantity; unknown ids are
// appended. A zero quantity counts as one.
func (e *Engine) AddItem(item domain.CartItem) bool {
	if e.sessions == nil || e.sessions.Current() == nil {
		e.logger.Debug().Str("product", item.ID.String()).Msg("cart: add rejected, no session")
		for _, l := range e.snapshotListeners() {
			l.LoginRequired()
		}
		return false
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.Kind == "" {
		item.Kind = domain.KindPurchase
	}

	e.mu.Lock()
	merged := false
	for i := range e.items {
		if e.items[i].ID != item.ID {
			continue
		}
		if item.Kind == domain.KindSubscription && item.Period != domain.PeriodNone {
			e.items[i].Period = item.Period
			e.items[i].Price = item.Price
		}
		e.items[i].Quantity += item.Quantity
		merged = true
		break
	}
	if !merged {
		e.items = append(e.items, item)
	}
	items := e.persistLocked()
	e.mu.Unlock()

	e.notifyChanged(items)
	return true
}

// RemoveItem removes the item with the given id and returns it, or nil when
// the id is absent (not an error).
func (e *Engine) RemoveItem(id domain.ProductID) *domain.CartItem {
	e.mu.Lock()
	var removed *domain.CartItem
	for i := range e.items {
		if e.items[i].ID == id {
			it := e.items[i]
			removed = &it
			e.items = append(e.items[:i], e.items[i+1:]...)
			break
		}
	}
	if removed == nil {
		e.mu.Unlock()
		return nil
	}
	items := e.persistLocked()
	e.mu.Unlock()

	e.notifyChanged(items)
	return removed
}

// UpdateQuantity sets the quantity for the id; a quantity of zero or less
// behaves as RemoveItem.
func (e *Engine) UpdateQuantity(id domain.ProductID, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(id)
		return
	}
	e.mu.Lock()
	found := false
	for i := range e.items {
		if e.items[i].ID == id {
			e.items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return
	}
	items := e.persistLocked()
	e.mu.Unlock()

	e.notifyChanged(items)
}

// Clear empties the cart.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.items = nil
	items := e.persistLocked()
	e.mu.Unlock()

	e.notifyChanged(items)
}

// ReplaceAll swaps the whole collection, persists and notifies. The checkout
// reconciliation pass uses it after syncing prices with the catalog.
func (e *Engine) ReplaceAll(items []domain.CartItem) {
	e.mu.Lock()
	e.items = append([]domain.CartItem(nil), items...)
	snapshot := e.persistLocked()
	e.mu.Unlock()

	e.notifyChanged(snapshot)
}

// Run consumes store change events until ctx is cancelled, reloading the
// cart whenever its key changes in another client of the same profile. Two
// clients can still race on a stale read; last write observed after reload
// wins, which the storage event narrows to a small window.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.store.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Key != store.KeyCart {
				continue
			}
			if items, changed := e.reload(); changed {
				e.notifyChanged(items)
			}
		}
	}
}

// reload re-reads the persisted cart and reports whether it differed from
// the in-memory state. Reloading after our own persist is a no-op.
func (e *Engine) reload() ([]domain.CartItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	before, _ := json.Marshal(e.items)
	e.reloadLocked()
	after, _ := json.Marshal(e.items)
	if bytes.Equal(before, after) {
		return nil, false
	}
	return append([]domain.CartItem(nil), e.items...), true
}

func (e *Engine) reloadLocked() {
	data, ok, err := e.store.Get(store.KeyCart)
	if err != nil {
		e.logger.Warn().Err(err).Msg("cart: load failed")
		return
	}
	if !ok {
		e.items = nil
		return
	}
	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		e.logger.Warn().Err(err).Msg("cart: corrupt persisted cart, starting empty")
		e.items = nil
		return
	}
	e.items = items
}

func (e *Engine) persistLocked() []domain.CartItem {
	data, err := json.Marshal(e.items)
	if err != nil {
		e.logger.Error().Err(err).Msg("cart: marshal failed")
		return append([]domain.CartItem(nil), e.items...)
	}
	if err := e.store.Set(store.KeyCart, data); err != nil {
		e.logger.Error().Err(err).Msg("cart: persist failed")
	}
	return append([]domain.CartItem(nil), e.items...)
}

func (e *Engine) snapshotListeners() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Listener(nil), e.listeners...)
}

func (e *Engine) notifyChanged(items []domain.CartItem) {
	for _, l := range e.snapshotListeners() {
		l.CartChanged(items)
	}
}
