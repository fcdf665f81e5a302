package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is one view of a session's cart. Every mutation persists the full
// snapshot and broadcasts it to other views of the same session. Persistence
// failures are logged and swallowed; the in-memory cart stays authoritative.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	origin    string
	order     []string
	items     map[string]Item
	updatedAt time.Time

	backend Backend
	logger  zerolog.Logger
	now     func() time.Time
}

// Open restores the session's cart from the backend. A missing, unreadable or
// structurally invalid snapshot yields an empty cart.
func Open(ctx context.Context, sessionID string, backend Backend, logger zerolog.Logger) *Store {
	s := &Store{
		sessionID: sessionID,
		origin:    uuid.NewString(),
		items:     make(map[string]Item),
		backend:   backend,
		logger:    logger.With().Str("component", "cart").Str("session_id", sessionID).Logger(),
		now:       time.Now,
	}

	data, err := backend.Load(ctx, sessionID)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		return s
	case err != nil:
		s.logger.Warn().Err(err).Msg("failed to load cart snapshot, starting empty")
		return s
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding invalid cart snapshot")
		return s
	}

	s.replace(snapshot)
	return s
}

// AddItem increments the quantity for productRef, inserting it when absent.
// The product snapshot is refreshed to the one supplied. Non-positive
// quantities are ignored and the result saturates at model.MaxItemQuantity.
func (s *Store) AddItem(ctx context.Context, productRef string, product Product, quantity int) {
	if productRef == "" || quantity <= 0 {
		return
	}

	s.mu.Lock()
	item, ok := s.items[productRef]
	if !ok {
		item = Item{ProductRef: productRef}
		s.order = append(s.order, productRef)
	}
	item.Quantity = addQuantity(item.Quantity, quantity)
	item.Product = product
	s.items[productRef] = item
	snapshot := s.touch()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// RemoveItem deletes productRef from the cart if present.
func (s *Store) RemoveItem(ctx context.Context, productRef string) {
	s.mu.Lock()
	if _, ok := s.items[productRef]; !ok {
		s.mu.Unlock()
		return
	}
	s.remove(productRef)
	snapshot := s.touch()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// UpdateQuantity sets the absolute quantity for productRef, capped at
// model.MaxItemQuantity. A quantity of zero or less removes the item.
// Products not in the cart are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productRef string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, productRef)
		return
	}

	s.mu.Lock()
	item, ok := s.items[productRef]
	if !ok {
		s.mu.Unlock()
		return
	}
	item.Quantity = min(quantity, model.MaxItemQuantity)
	s.items[productRef] = item
	snapshot := s.touch()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// Clear empties the cart and broadcasts the empty state.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.order = nil
	s.items = make(map[string]Item)
	snapshot := s.touch()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// Snapshot returns a copy of the cart in insertion order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// TotalItems returns the sum of quantities.
func (s *Store) TotalItems() int {
	return s.Snapshot().TotalItems()
}

// TotalPrice returns the sum of quantity × snapshot unit price.
func (s *Store) TotalPrice() decimal.Decimal {
	return s.Snapshot().TotalPrice()
}

// Watch applies snapshots broadcast by other views of the session and
// delivers each applied snapshot on the returned channel. The last snapshot
// observed wins. The channel closes when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan Snapshot, error) {
	messages, err := s.backend.Subscribe(ctx, s.sessionID)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		for data := range messages {
			snapshot, ok := s.apply(data)
			if !ok {
				continue
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *Store) apply(data []byte) (Snapshot, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn().Err(err).Msg("ignoring malformed cart broadcast")
		return Snapshot{}, false
	}
	if env.Origin == s.origin {
		return Snapshot{}, false
	}

	snapshot, err := decodeSnapshot(env.Snapshot)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ignoring invalid cart broadcast")
		return Snapshot{}, false
	}

	s.mu.Lock()
	s.replace(snapshot)
	applied := s.snapshotLocked()
	s.mu.Unlock()

	return applied, true
}

func (s *Store) persist(ctx context.Context, snapshot Snapshot) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode cart snapshot")
		return
	}

	if err := s.backend.Save(ctx, s.sessionID, data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist cart snapshot")
	}

	msg, err := json.Marshal(envelope{Origin: s.origin, Snapshot: data})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode cart broadcast")
		return
	}
	if err := s.backend.Publish(ctx, s.sessionID, msg); err != nil {
		s.logger.Warn().Err(err).Msg("failed to broadcast cart snapshot")
	}
}

// replace must be called with mu held or before the store is shared.
func (s *Store) replace(snapshot Snapshot) {
	s.order = make([]string, 0, len(snapshot.Items))
	s.items = make(map[string]Item, len(snapshot.Items))
	for _, item := range snapshot.Items {
		s.order = append(s.order, item.ProductRef)
		s.items[item.ProductRef] = item
	}
	s.updatedAt = snapshot.UpdatedAt
}

func (s *Store) remove(productRef string) {
	delete(s.items, productRef)
	for i, ref := range s.order {
		if ref == productRef {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) touch() Snapshot {
	s.updatedAt = s.now().UTC()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]Item, 0, len(s.order))
	for _, ref := range s.order {
		items = append(items, s.items[ref])
	}
	return Snapshot{
		Items:     items,
		UpdatedAt: s.updatedAt,
	}
}

// addQuantity adds two positive quantities without leaving the valid range.
func addQuantity(current, delta int) int {
	if delta >= model.MaxItemQuantity-current {
		return model.MaxItemQuantity
	}
	return current + delta
}
