// Package discount holds the rules for attaching discount codes to a cart.
//
// Ledger methods run against repositories bound to the caller's unit of work;
// the caller is responsible for serializing access to one cart.
package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	discountrepo "storefront-cart/internal/repository/discount"

	"go.uber.org/zap"
)

type Ledger struct {
	logger *zap.Logger
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger.Named("discount")}
}

// Apply attaches code to the user's cart.
//
// It fails with ErrInvalidDiscount when the code is unknown or outside its
// validity window, and with ErrAlreadyApplied when the code is already attached,
// when a non-stackable code is attached, or when code is non-stackable and any
// other code is attached. Expired codes still attached are detached first and do
// not count.
func (l *Ledger) Apply(ctx context.Context, repo discountrepo.Repository, userID, code string, now time.Time) (*domain.DiscountCode, error) {
	code = strings.TrimSpace(code)
	dc, err := repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidDiscount
		}
		return nil, err
	}
	if !dc.ActiveAt(now) {
		return nil, domain.ErrInvalidDiscount
	}

	applied, err := repo.ListApplied(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]domain.DiscountCode, 0, len(applied))
	for _, a := range applied {
		if a.ActiveAt(now) {
			active = append(active, a)
			continue
		}
		if _, err := repo.Detach(ctx, userID, a.Code); err != nil {
			return nil, err
		}
		l.logger.Debug("expired code detached", zap.String("user_id", userID), zap.String("code", a.Code))
	}

	if err := checkStacking(active, *dc); err != nil {
		return nil, err
	}
	if err := repo.Attach(ctx, userID, dc.Code); err != nil {
		return nil, err
	}
	return dc, nil
}

// Remove detaches code. It reports whether the code was attached; an absent code
// is not an error.
func (l *Ledger) Remove(ctx context.Context, repo discountrepo.Repository, userID, code string) (bool, error) {
	return repo.Detach(ctx, userID, strings.TrimSpace(code))
}

// Active returns the attached codes valid at now, in application order.
func (l *Ledger) Active(ctx context.Context, repo discountrepo.Repository, userID string, now time.Time) ([]domain.DiscountCode, error) {
	applied, err := repo.ListApplied(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ActiveAt(applied, now), nil
}

// ActiveAt filters codes down to those valid at now.
func ActiveAt(codes []domain.DiscountCode, now time.Time) []domain.DiscountCode {
	out := make([]domain.DiscountCode, 0, len(codes))
	for _, c := range codes {
		if c.ActiveAt(now) {
			out = append(out, c)
		}
	}
	return out
}

func checkStacking(active []domain.DiscountCode, candidate domain.DiscountCode) error {
	for _, a := range active {
		if a.Code == candidate.Code || !a.Stackable {
			return domain.ErrAlreadyApplied
		}
	}
	if !candidate.Stackable && len(active) > 0 {
		return domain.ErrAlreadyApplied
	}
	return nil
}
