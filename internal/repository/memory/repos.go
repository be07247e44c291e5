package memory

import (
	"context"
	"sort"
	"strings"

	"storefront-cart/internal/domain"

	"github.com/google/uuid"
)

type itemRepo struct {
	s     *Store
	bound *tx
}

func (r *itemRepo) unit() *tx {
	if r.bound != nil {
		return r.bound
	}
	return r.s.begin(true)
}

func (r *itemRepo) List(ctx context.Context) ([]domain.Item, error) {
	return r.filter(func(domain.Item) bool { return true }), nil
}

func (r *itemRepo) Search(ctx context.Context, query string) ([]domain.Item, error) {
	q := strings.ToLower(query)
	return r.filter(func(it domain.Item) bool {
		return strings.Contains(strings.ToLower(it.Title), q) ||
			strings.Contains(strings.ToLower(it.Description), q)
	}), nil
}

func (r *itemRepo) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	t := r.unit()
	it, ok := t.item(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &it, nil
}

func (r *itemRepo) Resolve(ctx context.Context, id string) (domain.InventorySnapshot, error) {
	t := r.unit()
	it, ok := t.item(id)
	if !ok {
		return domain.InventorySnapshot{}, domain.ErrNotFound
	}
	return it.Snapshot(), nil
}

// ResolveForUpdate takes no lock here; see the package comment.
func (r *itemRepo) ResolveForUpdate(ctx context.Context, id string) (domain.InventorySnapshot, error) {
	return r.Resolve(ctx, id)
}

func (r *itemRepo) Reserve(ctx context.Context, id string, n int) error {
	t := r.unit()
	if n <= 0 {
		return nil
	}
	it, ok := t.item(id)
	if !ok {
		return domain.ErrNotFound
	}
	if it.Stock < n {
		return domain.ErrOutOfStock
	}
	it.Stock -= n
	it.Reserved += n
	t.items[id] = it
	t.flush()
	return nil
}

func (r *itemRepo) Release(ctx context.Context, id string, n int) error {
	t := r.unit()
	if n <= 0 {
		return nil
	}
	it, ok := t.item(id)
	if !ok {
		return domain.ErrNotFound
	}
	n = min(n, it.Reserved)
	it.Stock += n
	it.Reserved -= n
	t.items[id] = it
	t.flush()
	return nil
}

func (r *itemRepo) Consume(ctx context.Context, id string, n int) error {
	t := r.unit()
	if n <= 0 {
		return nil
	}
	it, ok := t.item(id)
	if !ok {
		return domain.ErrNotFound
	}
	it.Reserved -= min(n, it.Reserved)
	t.items[id] = it
	t.flush()
	return nil
}

func (r *itemRepo) Upsert(ctx context.Context, item domain.Item) (*domain.Item, error) {
	t := r.unit()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if existing, ok := t.item(item.ID); ok {
		item.CreatedAt = existing.CreatedAt
		item.Reserved = existing.Reserved
	} else {
		item.CreatedAt = t.s.now()
		item.Reserved = 0
	}
	t.items[item.ID] = item
	t.flush()
	return &item, nil
}

func (r *itemRepo) filter(keep func(domain.Item) bool) []domain.Item {
	t := r.unit()
	seen := make(map[string]bool)
	var out []domain.Item
	for id, it := range t.items {
		seen[id] = true
		if keep(it) {
			out = append(out, it)
		}
	}
	t.s.mu.RLock()
	for id, it := range t.s.items {
		if !seen[id] && keep(it) {
			out = append(out, it)
		}
	}
	t.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type cartRepo struct {
	s     *Store
	bound *tx
}

func (r *cartRepo) unit() *tx {
	if r.bound != nil {
		return r.bound
	}
	return r.s.begin(true)
}

func (r *cartRepo) EnsureCart(ctx context.Context, userID string) error {
	t := r.unit()
	if _, ok := t.cartCreatedAt(userID); ok {
		return nil
	}
	created := t.s.now()
	t.carts[userID] = &created
	t.flush()
	return nil
}

func (r *cartRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	t := r.unit()
	created, ok := t.cartCreatedAt(userID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Cart{UserID: userID, CreatedAt: &created}, nil
}

func (r *cartRepo) GetCartForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.GetCart(ctx, userID)
}

func (r *cartRepo) DeleteCart(ctx context.Context, userID string) error {
	t := r.unit()
	if _, ok := t.cartCreatedAt(userID); !ok {
		return domain.ErrNotFound
	}
	t.carts[userID] = nil
	for key := range t.userLines(userID) {
		t.lines[key] = nil
	}
	for code := range t.userApplied(userID) {
		t.applied[appliedKey{userID: userID, code: code}] = nil
	}
	t.flush()
	return nil
}

func (r *cartRepo) Get(ctx context.Context, userID, itemID string) (*domain.CartLine, error) {
	t := r.unit()
	sl, ok := t.line(lineKey{userID: userID, itemID: itemID})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sl.line, nil
}

func (r *cartRepo) Upsert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	t := r.unit()
	if _, ok := t.cartCreatedAt(line.UserID); !ok {
		return nil, domain.ErrNotFound
	}
	key := lineKey{userID: line.UserID, itemID: line.ItemID}
	sl, ok := t.line(key)
	if ok {
		sl.line.Quantity = line.Quantity
	} else {
		line.CreatedAt = t.s.now()
		sl = storedLine{line: line, seq: t.s.nextSeq()}
	}
	t.lines[key] = &sl
	out := sl.line
	t.flush()
	return &out, nil
}

func (r *cartRepo) Delete(ctx context.Context, userID, itemID string) error {
	t := r.unit()
	key := lineKey{userID: userID, itemID: itemID}
	if _, ok := t.line(key); ok {
		t.lines[key] = nil
		t.flush()
	}
	return nil
}

func (r *cartRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	t := r.unit()
	stored := make([]storedLine, 0)
	for _, sl := range t.userLines(userID) {
		stored = append(stored, sl)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })

	lines := make([]domain.CartLine, 0, len(stored))
	for _, sl := range stored {
		lines = append(lines, sl.line)
	}
	return lines, nil
}

func (r *cartRepo) DeleteByUser(ctx context.Context, userID string) error {
	t := r.unit()
	for key := range t.userLines(userID) {
		t.lines[key] = nil
	}
	t.flush()
	return nil
}

type discountRepo struct {
	s     *Store
	bound *tx
}

func (r *discountRepo) unit() *tx {
	if r.bound != nil {
		return r.bound
	}
	return r.s.begin(true)
}

func (r *discountRepo) GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error) {
	t := r.unit()
	dc, ok := t.code(code)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &dc, nil
}

func (r *discountRepo) Upsert(ctx context.Context, code domain.DiscountCode) (*domain.DiscountCode, error) {
	t := r.unit()
	if existing, ok := t.code(code.Code); ok {
		code.CreatedAt = existing.CreatedAt
	} else {
		code.CreatedAt = t.s.now()
	}
	t.codes[code.Code] = code
	t.flush()
	return &code, nil
}

func (r *discountRepo) ListApplied(ctx context.Context, userID string) ([]domain.DiscountCode, error) {
	t := r.unit()
	type entry struct {
		code string
		seq  int64
	}
	var entries []entry
	for code, seq := range t.userApplied(userID) {
		entries = append(entries, entry{code: code, seq: seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	codes := make([]domain.DiscountCode, 0, len(entries))
	for _, e := range entries {
		if dc, ok := t.code(e.code); ok {
			codes = append(codes, dc)
		}
	}
	return codes, nil
}

func (r *discountRepo) Attach(ctx context.Context, userID, code string) error {
	t := r.unit()
	if _, ok := t.code(code); !ok {
		return domain.ErrNotFound
	}
	if _, ok := t.cartCreatedAt(userID); !ok {
		return domain.ErrNotFound
	}
	key := appliedKey{userID: userID, code: code}
	if _, ok := t.appliedSeq(key); ok {
		return nil
	}
	seq := t.s.nextSeq()
	t.applied[key] = &seq
	t.flush()
	return nil
}

func (r *discountRepo) Detach(ctx context.Context, userID, code string) (bool, error) {
	t := r.unit()
	key := appliedKey{userID: userID, code: code}
	if _, ok := t.appliedSeq(key); !ok {
		return false, nil
	}
	t.applied[key] = nil
	t.flush()
	return true, nil
}
