package item

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-cart/internal/db"
	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const itemColumns = `id::text, title, COALESCE(description, ''), price_cents, discount_kind, discount_value::text, stock, reserved, created_at`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{db: conn, logger: logger}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at DESC, id`
	return r.queryItems(ctx, "list", q)
}

func (r *postgresRepo) Search(ctx context.Context, query string) ([]domain.Item, error) {
	q := `SELECT ` + itemColumns + `
FROM items
WHERE title ILIKE '%' || $1 || '%' ESCAPE '\' OR description ILIKE '%' || $1 || '%' ESCAPE '\'
ORDER BY created_at DESC, id`
	return r.queryItems(ctx, "search", q, escapeLike(query))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes query match literally inside an ILIKE pattern.
func escapeLike(query string) string {
	return likeEscaper.Replace(query)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("item repo: get not found", zap.String("item_id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("item repo: get failed", zap.String("item_id", id), zap.Error(err))
		return nil, err
	}
	return item, nil
}

func (r *postgresRepo) Resolve(ctx context.Context, id string) (domain.InventorySnapshot, error) {
	item, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	return item.Snapshot(), nil
}

func (r *postgresRepo) ResolveForUpdate(ctx context.Context, id string) (domain.InventorySnapshot, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 FOR UPDATE`
	item, err := scanItem(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InventorySnapshot{}, domain.ErrNotFound
		}
		return domain.InventorySnapshot{}, err
	}
	return item.Snapshot(), nil
}

func (r *postgresRepo) Reserve(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	cmd, err := r.db.Exec(ctx, `
UPDATE items
SET stock = stock - $2, reserved = reserved + $2
WHERE id = $1 AND stock >= $2
`, id, n)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missingOrShort(ctx, id)
	}
	return nil
}

func (r *postgresRepo) Release(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	cmd, err := r.db.Exec(ctx, `
UPDATE items
SET stock = stock + LEAST($2, reserved), reserved = reserved - LEAST($2, reserved)
WHERE id = $1
`, id, n)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Consume(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	cmd, err := r.db.Exec(ctx, `
UPDATE items
SET reserved = reserved - LEAST($2, reserved)
WHERE id = $1
`, id, n)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Upsert(ctx context.Context, item domain.Item) (*domain.Item, error) {
	var (
		kind  *string
		value *string
	)
	if item.Discount != nil {
		k := string(item.Discount.Kind)
		v := item.Discount.Value.String()
		kind, value = &k, &v
	}
	q := `
INSERT INTO items (id, title, description, price_cents, discount_kind, discount_value, stock)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, NULLIF($3, ''), $4, $5, $6::numeric, $7)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    discount_kind = EXCLUDED.discount_kind,
    discount_value = EXCLUDED.discount_value,
    stock = EXCLUDED.stock
RETURNING ` + itemColumns
	res, err := scanItem(r.db.QueryRow(ctx, q,
		item.ID,
		item.Title,
		item.Description,
		item.PriceCents,
		kind,
		value,
		item.Stock,
	))
	if err != nil {
		r.logger.Error("item repo: upsert failed", zap.String("title", item.Title), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("item repo: upserted", zap.String("item_id", res.ID), zap.Int("stock", res.Stock))
	return res, nil
}

func (r *postgresRepo) missingOrShort(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrOutOfStock
}

func (r *postgresRepo) queryItems(ctx context.Context, op, q string, args ...any) ([]domain.Item, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("item repo: query failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("item repo: query", zap.String("op", op), zap.Int("count", len(result)))
	return result, nil
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item  domain.Item
		kind  *string
		value *string
	)
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.PriceCents,
		&kind,
		&value,
		&item.Stock,
		&item.Reserved,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	if kind != nil && value != nil {
		v, err := decimal.NewFromString(*value)
		if err != nil {
			return nil, fmt.Errorf("item %s: parse discount value %q: %w", item.ID, *value, err)
		}
		item.Discount = &domain.ItemDiscount{Kind: domain.DiscountKind(*kind), Value: v}
	}
	return &item, nil
}
