// Package memory is an in-process implementation of every repository, used for
// local runs (STORE_DRIVER=memory) and tests.
//
// Units of work buffer their writes and publish them atomically on commit. Reads
// see committed state plus the unit's own writes. Nothing is locked across a unit
// of work, so concurrent read-modify-write sequences race exactly as they would
// on a database without row locks; callers serialize conflicting work themselves.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/repository/cart"
	"storefront-cart/internal/repository/discount"
	"storefront-cart/internal/repository/item"
	"storefront-cart/internal/repository/txn"
)

type lineKey struct {
	userID string
	itemID string
}

type appliedKey struct {
	userID string
	code   string
}

type storedLine struct {
	line domain.CartLine
	seq  int64
}

type Store struct {
	mu      sync.RWMutex
	seq     atomic.Int64
	now     func() time.Time
	items   map[string]domain.Item
	carts   map[string]time.Time
	lines   map[lineKey]storedLine
	codes   map[string]domain.DiscountCode
	applied map[appliedKey]int64
}

func New() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		items:   make(map[string]domain.Item),
		carts:   make(map[string]time.Time),
		lines:   make(map[lineKey]storedLine),
		codes:   make(map[string]domain.DiscountCode),
		applied: make(map[appliedKey]int64),
	}
}

// Items returns an auto-committing item repository.
func (s *Store) Items() item.Repository { return &itemRepo{s: s} }

// Carts returns an auto-committing cart repository.
func (s *Store) Carts() cart.Repository { return &cartRepo{s: s} }

// Discounts returns an auto-committing discount repository.
func (s *Store) Discounts() discount.Repository { return &discountRepo{s: s} }

// Ping always succeeds while ctx is live.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Runner returns a txn.Runner backed by the store.
func (s *Store) Runner() txn.Runner { return runner{s: s} }

type runner struct {
	s *Store
}

func (r runner) InTx(ctx context.Context, fn func(ctx context.Context, repos txn.Repos) error) error {
	return r.run(ctx, fn)
}

func (r runner) InReadTx(ctx context.Context, fn func(ctx context.Context, repos txn.Repos) error) error {
	return r.run(ctx, fn)
}

func (r runner) run(ctx context.Context, fn func(ctx context.Context, repos txn.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := r.s.begin(false)
	if err := fn(ctx, t.repos()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}

// tx is a write overlay over the store. A nil pointer value records a deletion.
type tx struct {
	s          *Store
	autocommit bool
	items      map[string]domain.Item
	carts      map[string]*time.Time
	lines      map[lineKey]*storedLine
	codes      map[string]domain.DiscountCode
	applied    map[appliedKey]*int64
}

func (s *Store) begin(autocommit bool) *tx {
	return &tx{
		s:          s,
		autocommit: autocommit,
		items:      make(map[string]domain.Item),
		carts:      make(map[string]*time.Time),
		lines:      make(map[lineKey]*storedLine),
		codes:      make(map[string]domain.DiscountCode),
		applied:    make(map[appliedKey]*int64),
	}
}

func (t *tx) repos() txn.Repos {
	return txn.Repos{
		Items:     &itemRepo{s: t.s, bound: t},
		Carts:     &cartRepo{s: t.s, bound: t},
		Discounts: &discountRepo{s: t.s, bound: t},
	}
}

// flush publishes buffered writes when running in auto-commit mode.
func (t *tx) flush() {
	if t.autocommit {
		t.commit()
	}
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, it := range t.items {
		s.items[id] = it
	}
	for code, dc := range t.codes {
		s.codes[code] = dc
	}
	for userID, created := range t.carts {
		if created == nil {
			delete(s.carts, userID)
			continue
		}
		s.carts[userID] = *created
	}
	for key, sl := range t.lines {
		if sl == nil {
			delete(s.lines, key)
			continue
		}
		s.lines[key] = *sl
	}
	for key, seq := range t.applied {
		if seq == nil {
			delete(s.applied, key)
			continue
		}
		s.applied[key] = *seq
	}

	clear(t.items)
	clear(t.codes)
	clear(t.carts)
	clear(t.lines)
	clear(t.applied)
}

func (t *tx) item(id string) (domain.Item, bool) {
	if it, ok := t.items[id]; ok {
		return it, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	it, ok := t.s.items[id]
	return it, ok
}

func (t *tx) cartCreatedAt(userID string) (time.Time, bool) {
	if created, ok := t.carts[userID]; ok {
		if created == nil {
			return time.Time{}, false
		}
		return *created, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	created, ok := t.s.carts[userID]
	return created, ok
}

func (t *tx) line(key lineKey) (storedLine, bool) {
	if sl, ok := t.lines[key]; ok {
		if sl == nil {
			return storedLine{}, false
		}
		return *sl, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sl, ok := t.s.lines[key]
	return sl, ok
}

func (t *tx) code(code string) (domain.DiscountCode, bool) {
	if dc, ok := t.codes[code]; ok {
		return dc, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	dc, ok := t.s.codes[code]
	return dc, ok
}

func (t *tx) appliedSeq(key appliedKey) (int64, bool) {
	if seq, ok := t.applied[key]; ok {
		if seq == nil {
			return 0, false
		}
		return *seq, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	seq, ok := t.s.applied[key]
	return seq, ok
}

// userLines merges committed and buffered lines for userID.
func (t *tx) userLines(userID string) map[lineKey]storedLine {
	out := make(map[lineKey]storedLine)
	t.s.mu.RLock()
	for key, sl := range t.s.lines {
		if key.userID == userID {
			out[key] = sl
		}
	}
	t.s.mu.RUnlock()
	for key, sl := range t.lines {
		if key.userID != userID {
			continue
		}
		if sl == nil {
			delete(out, key)
			continue
		}
		out[key] = *sl
	}
	return out
}

// userApplied merges committed and buffered applied codes for userID.
func (t *tx) userApplied(userID string) map[string]int64 {
	out := make(map[string]int64)
	t.s.mu.RLock()
	for key, seq := range t.s.applied {
		if key.userID == userID {
			out[key.code] = seq
		}
	}
	t.s.mu.RUnlock()
	for key, seq := range t.applied {
		if key.userID != userID {
			continue
		}
		if seq == nil {
			delete(out, key.code)
			continue
		}
		out[key.code] = *seq
	}
	return out
}
