package txn

import (
	"context"
	"errors"
	"fmt"

	"storefront-cart/internal/repository/cart"
	"storefront-cart/internal/repository/discount"
	"storefront-cart/internal/repository/item"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres error codes that indicate a retryable conflict.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

type postgresRunner struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRunner{pool: pool, logger: logger}
}

func (r *postgresRunner) InTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (r *postgresRunner) InReadTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *postgresRunner) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, repos Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	repos := Repos{
		Items:     item.NewPostgres(tx, r.logger),
		Carts:     cart.NewPostgres(tx),
		Discounts: discount.NewPostgres(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
