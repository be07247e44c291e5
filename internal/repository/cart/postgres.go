package cart

import (
	"context"
	"errors"
	"time"

	"storefront-cart/internal/db"
	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
)

type postgresRepo struct {
	db db.DBTX
}

func NewPostgres(conn db.DBTX) Repository {
	return &postgresRepo{db: conn}
}

func (r *postgresRepo) EnsureCart(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`, userID)
	return err
}

func (r *postgresRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `SELECT user_id::text, created_at FROM carts WHERE user_id = $1`, userID)
}

func (r *postgresRepo) GetCartForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `SELECT user_id::text, created_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *postgresRepo) DeleteCart(ctx context.Context, userID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, userID, itemID string) (*domain.CartLine, error) {
	const q = `
SELECT user_id::text, item_id::text, quantity, unit_price_cents, created_at
FROM cart_lines
WHERE user_id = $1 AND item_id = $2
`
	line, err := scanLine(r.db.QueryRow(ctx, q, userID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return line, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	const q = `
INSERT INTO cart_lines (user_id, item_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = EXCLUDED.quantity
RETURNING user_id::text, item_id::text, quantity, unit_price_cents, created_at
`
	res, err := scanLine(r.db.QueryRow(ctx, q, line.UserID, line.ItemID, line.Quantity, line.UnitPriceCents))
	if db.IsForeignKeyViolation(err) {
		return nil, domain.ErrNotFound
	}
	return res, err
}

func (r *postgresRepo) Delete(ctx context.Context, userID, itemID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	return err
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	const q = `
SELECT user_id::text, item_id::text, quantity, unit_price_cents, created_at
FROM cart_lines
WHERE user_id = $1
ORDER BY seq ASC
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}

func (r *postgresRepo) fetchCart(ctx context.Context, q, userID string) (*domain.Cart, error) {
	var (
		cart    domain.Cart
		created time.Time
	)
	if err := r.db.QueryRow(ctx, q, userID).Scan(&cart.UserID, &created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	cart.CreatedAt = &created
	return &cart, nil
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var line domain.CartLine
	if err := row.Scan(
		&line.UserID,
		&line.ItemID,
		&line.Quantity,
		&line.UnitPriceCents,
		&line.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &line, nil
}
