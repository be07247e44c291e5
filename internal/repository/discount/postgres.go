package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-cart/internal/db"
	"storefront-cart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const codeColumns = `d.code, d.kind, d.value::text, d.valid_from, d.valid_to, d.stackable, d.created_at`

type postgresRepo struct {
	db db.DBTX
}

func NewPostgres(conn db.DBTX) Repository {
	return &postgresRepo{db: conn}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error) {
	q := `SELECT ` + codeColumns + ` FROM discount_codes d WHERE d.code = $1`
	dc, err := scanCode(r.db.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return dc, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, code domain.DiscountCode) (*domain.DiscountCode, error) {
	q := `
INSERT INTO discount_codes AS d (code, kind, value, valid_from, valid_to, stackable)
VALUES ($1, $2, $3::numeric, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET
    kind = EXCLUDED.kind,
    value = EXCLUDED.value,
    valid_from = EXCLUDED.valid_from,
    valid_to = EXCLUDED.valid_to,
    stackable = EXCLUDED.stackable
RETURNING ` + codeColumns
	return scanCode(r.db.QueryRow(ctx, q,
		code.Code,
		string(code.Kind),
		code.Value.String(),
		nullableTime(code.ValidFrom),
		nullableTime(code.ValidTo),
		code.Stackable,
	))
}

func (r *postgresRepo) ListApplied(ctx context.Context, userID string) ([]domain.DiscountCode, error) {
	q := `SELECT ` + codeColumns + `
FROM cart_discounts cd
JOIN discount_codes d ON d.code = cd.code
WHERE cd.user_id = $1
ORDER BY cd.seq ASC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []domain.DiscountCode{}
	for rows.Next() {
		dc, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *dc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *postgresRepo) Attach(ctx context.Context, userID, code string) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO cart_discounts (user_id, code)
VALUES ($1, $2)
ON CONFLICT (user_id, code) DO NOTHING
`, userID, code)
	if db.IsForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r *postgresRepo) Detach(ctx context.Context, userID, code string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM cart_discounts WHERE user_id = $1 AND code = $2`, userID, code)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanCode(row pgx.Row) (*domain.DiscountCode, error) {
	var (
		dc        domain.DiscountCode
		kind      string
		value     string
		validFrom *time.Time
		validTo   *time.Time
	)
	if err := row.Scan(&dc.Code, &kind, &value, &validFrom, &validTo, &dc.Stackable, &dc.CreatedAt); err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("discount %s: parse value %q: %w", dc.Code, value, err)
	}
	dc.Kind = domain.DiscountKind(kind)
	dc.Value = v
	if validFrom != nil {
		dc.ValidFrom = *validFrom
	}
	if validTo != nil {
		dc.ValidTo = *validTo
	}
	return &dc, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
