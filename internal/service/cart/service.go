// Package cart is the cart mutation engine. Every mutation runs as one unit of
// work under the owning user's lock and the locks of every item it touches, with
// the item rows re-read inside the critical section.
package cart

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/events"
	"storefront-cart/internal/keylock"
	"storefront-cart/internal/repository/txn"
	"storefront-cart/internal/service/discount"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 3

type Service struct {
	runner      txn.Runner
	locks       *keylock.Locker
	ledger      *discount.Ledger
	publisher   events.Publisher
	logger      *zap.Logger
	validate    *validator.Validate
	maxAttempts uint
	newBackOff  func() backoff.BackOff
	now         func() time.Time
}

type Option func(*Service)

// WithMaxAttempts bounds how often a unit of work that hit a transient conflict is run.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = uint(n)
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Service) { s.newBackOff = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocker shares a lock table between services running in the same process.
func WithLocker(l *keylock.Locker) Option {
	return func(s *Service) { s.locks = l }
}

func New(runner txn.Runner, publisher events.Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &Service{
		runner:      runner,
		locks:       keylock.New(),
		ledger:      discount.NewLedger(logger),
		publisher:   publisher,
		logger:      logger.Named("cart"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AddInput struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// ItemInput targets an existing line. By defaults to 1.
type ItemInput struct {
	ItemID string `json:"itemId" validate:"required,uuid"`
	By     int    `json:"by" validate:"omitempty,min=1"`
}

type DiscountInput struct {
	Code string `json:"code" validate:"required,max=64"`
}

// GetCart returns the user's lines, active discount codes and derived totals. A
// user without a cart gets an empty one.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := s.checkUser(userID); err != nil {
		return nil, err
	}
	now := s.now()
	cart := &domain.Cart{UserID: userID, Lines: []domain.CartLine{}, DiscountCodes: []string{}}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, r txn.Repos) error {
		header, err := r.Carts.GetCart(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cart.CreatedAt = header.CreatedAt

		lines, err := r.Carts.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		codes, err := s.ledger.Active(ctx, r.Discounts, userID, now)
		if err != nil {
			return err
		}
		cart.Lines = lines
		for _, c := range codes {
			cart.DiscountCodes = append(cart.DiscountCodes, c.Code)
		}
		cart.Totals = ComputeTotals(lines, codes, now)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "get", userID, err)
	}
	return cart, nil
}

// AddToCart reserves in.Quantity units and adds them to the user's line for the
// item, creating the cart and line as needed. A new line snapshots the item's
// effective price; an existing line keeps its snapshot.
func (s *Service) AddToCart(ctx context.Context, userID string, in AddInput) (*domain.CartLine, error) {
	if err := s.checkInput(userID, in); err != nil {
		return nil, err
	}
	var line *domain.CartLine
	err := s.mutate(ctx, "add", userID, []string{in.ItemID}, func(ctx context.Context, r txn.Repos) error {
		if err := r.Carts.EnsureCart(ctx, userID); err != nil {
			return err
		}
		if _, err := r.Carts.GetCartForUpdate(ctx, userID); err != nil {
			return err
		}
		snap, err := r.Items.ResolveForUpdate(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if in.Quantity > snap.Stock {
			return domain.ErrOutOfStock
		}

		next := domain.CartLine{UserID: userID, ItemID: in.ItemID, Quantity: in.Quantity, UnitPriceCents: snap.EffectivePriceCents}
		existing, err := r.Carts.Get(ctx, userID, in.ItemID)
		switch {
		case err == nil:
			next.Quantity += existing.Quantity
			next.UnitPriceCents = existing.UnitPriceCents
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if err := r.Items.Reserve(ctx, in.ItemID, in.Quantity); err != nil {
			return err
		}
		line, err = r.Carts.Upsert(ctx, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	evt := events.NewCartEvent(events.CartItemAdded, userID)
	evt.ItemID, evt.Quantity, evt.Delta = in.ItemID, line.Quantity, in.Quantity
	s.publish(ctx, evt)
	return line, nil
}

// Increment grows an existing line by in.By, clamped to the stock still
// available. A fully clamped increment leaves the line unchanged and succeeds.
func (s *Service) Increment(ctx context.Context, userID string, in ItemInput) (*domain.CartLine, error) {
	if err := s.checkInput(userID, in); err != nil {
		return nil, err
	}
	by := max(in.By, 1)
	var (
		line    *domain.CartLine
		granted int
	)
	err := s.mutate(ctx, "increment", userID, []string{in.ItemID}, func(ctx context.Context, r txn.Repos) error {
		existing, err := lockLine(ctx, r, userID, in.ItemID)
		if err != nil {
			return err
		}
		snap, err := r.Items.ResolveForUpdate(ctx, in.ItemID)
		if err != nil {
			return err
		}
		granted = min(by, snap.Stock)
		if granted <= 0 {
			granted = 0
			line = existing
			return nil
		}
		if err := r.Items.Reserve(ctx, in.ItemID, granted); err != nil {
			return err
		}
		existing.Quantity += granted
		line, err = r.Carts.Upsert(ctx, *existing)
		return err
	})
	if err != nil {
		return nil, err
	}

	if granted > 0 {
		evt := events.NewCartEvent(events.CartItemIncremented, userID)
		evt.ItemID, evt.Quantity, evt.Delta = in.ItemID, line.Quantity, granted
		s.publish(ctx, evt)
	}
	return line, nil
}

// Decrement shrinks an existing line by in.By, releasing the units back to
// stock. The line is removed when its quantity would reach zero, in which case
// the returned line is nil.
func (s *Service) Decrement(ctx context.Context, userID string, in ItemInput) (*domain.CartLine, error) {
	if err := s.checkInput(userID, in); err != nil {
		return nil, err
	}
	by := max(in.By, 1)
	var (
		line     *domain.CartLine
		released int
	)
	err := s.mutate(ctx, "decrement", userID, []string{in.ItemID}, func(ctx context.Context, r txn.Repos) error {
		existing, err := lockLine(ctx, r, userID, in.ItemID)
		if err != nil {
			return err
		}
		released = min(by, existing.Quantity)
		if err := r.Items.Release(ctx, in.ItemID, released); err != nil {
			return err
		}
		if existing.Quantity-released <= 0 {
			line = nil
			return r.Carts.Delete(ctx, userID, in.ItemID)
		}
		existing.Quantity -= released
		line, err = r.Carts.Upsert(ctx, *existing)
		return err
	})
	if err != nil {
		return nil, err
	}

	evt := events.NewCartEvent(events.CartItemDecremented, userID)
	evt.ItemID, evt.Delta = in.ItemID, -released
	if line != nil {
		evt.Quantity = line.Quantity
	}
	s.publish(ctx, evt)
	return line, nil
}

// Remove drops the user's line for the item and releases its units. Removing an
// item that is not in the cart is a no-op.
func (s *Service) Remove(ctx context.Context, userID string, in ItemInput) error {
	if err := s.checkInput(userID, in); err != nil {
		return err
	}
	var removed int
	err := s.mutate(ctx, "remove", userID, []string{in.ItemID}, func(ctx context.Context, r txn.Repos) error {
		existing, err := lockLine(ctx, r, userID, in.ItemID)
		if errors.Is(err, domain.ErrItemNotInCart) {
			removed = 0
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.Items.Release(ctx, in.ItemID, existing.Quantity); err != nil {
			return err
		}
		removed = existing.Quantity
		return r.Carts.Delete(ctx, userID, in.ItemID)
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		evt := events.NewCartEvent(events.CartItemRemoved, userID)
		evt.ItemID, evt.Delta = in.ItemID, -removed
		s.publish(ctx, evt)
	}
	return nil
}

// ClearCart removes every line and releases every reservation. The cart itself
// and its discount codes are kept.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.checkUser(userID); err != nil {
		return err
	}
	cleared, err := s.dropLines(ctx, "clear", userID, dropRelease)
	if err != nil {
		return err
	}
	if cleared {
		s.publish(ctx, events.NewCartEvent(events.CartCleared, userID))
	}
	return nil
}

// DeleteCart clears the cart and then deletes it along with its discount codes.
func (s *Service) DeleteCart(ctx context.Context, userID string) error {
	if err := s.checkUser(userID); err != nil {
		return err
	}
	if _, err := s.dropLines(ctx, "delete", userID, dropDelete); err != nil {
		return err
	}
	s.publish(ctx, events.NewCartEvent(events.CartDeleted, userID))
	return nil
}

// CheckoutCart empties the cart of a user whose order was placed. The ordered
// units leave the catalog: reservations are consumed rather than released, and
// the applied discount codes are detached. A user without a cart is a no-op.
func (s *Service) CheckoutCart(ctx context.Context, userID string) error {
	if err := s.checkUser(userID); err != nil {
		return err
	}
	checkedOut, err := s.dropLines(ctx, "checkout", userID, dropConsume)
	if err != nil {
		return err
	}
	if checkedOut {
		s.publish(ctx, events.NewCartEvent(events.CartCheckedOut, userID))
	}
	return nil
}

// ApplyDiscount attaches a discount code to an existing cart.
func (s *Service) ApplyDiscount(ctx context.Context, userID string, in DiscountInput) (*domain.DiscountCode, error) {
	if err := s.checkInput(userID, in); err != nil {
		return nil, err
	}
	now := s.now()
	var applied *domain.DiscountCode
	err := s.mutate(ctx, "apply_discount", userID, nil, func(ctx context.Context, r txn.Repos) error {
		if _, err := r.Carts.GetCartForUpdate(ctx, userID); err != nil {
			return err
		}
		dc, err := s.ledger.Apply(ctx, r.Discounts, userID, in.Code, now)
		applied = dc
		return err
	})
	if err != nil {
		return nil, err
	}

	evt := events.NewCartEvent(events.CartDiscountApplied, userID)
	evt.Code = applied.Code
	s.publish(ctx, evt)
	return applied, nil
}

// RemoveDiscount detaches a discount code. Removing a code that is not applied,
// or from a user without a cart, is a no-op.
func (s *Service) RemoveDiscount(ctx context.Context, userID string, in DiscountInput) error {
	if err := s.checkInput(userID, in); err != nil {
		return err
	}
	var removed bool
	err := s.mutate(ctx, "remove_discount", userID, nil, func(ctx context.Context, r txn.Repos) error {
		if _, err := r.Carts.GetCartForUpdate(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				removed = false
				return nil
			}
			return err
		}
		var err error
		removed, err = s.ledger.Remove(ctx, r.Discounts, userID, in.Code)
		return err
	})
	if err != nil {
		return err
	}

	if removed {
		evt := events.NewCartEvent(events.CartDiscountRemoved, userID)
		evt.Code = in.Code
		s.publish(ctx, evt)
	}
	return nil
}

type dropMode int

const (
	// dropRelease returns reserved units to stock and keeps the cart.
	dropRelease dropMode = iota
	// dropDelete releases like dropRelease and deletes the cart with its codes.
	dropDelete
	// dropConsume takes reserved units out of the catalog and detaches the codes.
	dropConsume
)

// dropLines deletes every line of the user's cart, settling each line's
// reservation according to mode. It reports whether any line was dropped.
func (s *Service) dropLines(ctx context.Context, op, userID string, mode dropMode) (bool, error) {
	unlockUser, err := s.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return false, s.fail(ctx, op, userID, err)
	}
	defer unlockUser()

	// Holding the user's lock keeps the set of lines stable until we are done.
	var itemIDs []string
	err = s.runner.InReadTx(ctx, func(ctx context.Context, r txn.Repos) error {
		lines, err := r.Carts.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		itemIDs = make([]string, 0, len(lines))
		for _, l := range lines {
			itemIDs = append(itemIDs, l.ItemID)
		}
		return nil
	})
	if err != nil {
		return false, s.fail(ctx, op, userID, err)
	}

	var dropped bool
	err = s.inItemLocks(ctx, op, userID, itemIDs, func(ctx context.Context, r txn.Repos) error {
		if _, err := r.Carts.GetCartForUpdate(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrNotFound) && mode != dropDelete {
				dropped = false
				return nil
			}
			return err
		}
		lines, err := r.Carts.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		settle := r.Items.Release
		if mode == dropConsume {
			settle = r.Items.Consume
		}
		// Item rows are locked in id order, matching the in-process lock order.
		byItem := slices.SortedFunc(slices.Values(lines), func(a, b domain.CartLine) int {
			return strings.Compare(a.ItemID, b.ItemID)
		})
		for _, l := range byItem {
			if err := settle(ctx, l.ItemID, l.Quantity); err != nil {
				return err
			}
		}
		if err := r.Carts.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		dropped = len(lines) > 0

		switch mode {
		case dropDelete:
			return r.Carts.DeleteCart(ctx, userID)
		case dropConsume:
			codes, err := r.Discounts.ListApplied(ctx, userID)
			if err != nil {
				return err
			}
			for _, c := range codes {
				if _, err := r.Discounts.Detach(ctx, userID, c.Code); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return dropped, err
}

// lockLine takes the cart row lock and returns the user's line for itemID, or
// ErrItemNotInCart.
func lockLine(ctx context.Context, r txn.Repos, userID, itemID string) (*domain.CartLine, error) {
	if _, err := r.Carts.GetCartForUpdate(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrItemNotInCart
		}
		return nil, err
	}
	line, err := r.Carts.Get(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrItemNotInCart
		}
		return nil, err
	}
	return line, nil
}

// mutate runs fn under the user's lock and the locks of itemIDs.
func (s *Service) mutate(ctx context.Context, op, userID string, itemIDs []string, fn func(ctx context.Context, r txn.Repos) error) error {
	unlockUser, err := s.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return s.fail(ctx, op, userID, err)
	}
	defer unlockUser()
	return s.inItemLocks(ctx, op, userID, itemIDs, fn)
}

// inItemLocks locks itemIDs in sorted order and runs fn in a transaction,
// retrying transient conflicts. The caller must already hold the user's lock.
func (s *Service) inItemLocks(ctx context.Context, op, userID string, itemIDs []string, fn func(ctx context.Context, r txn.Repos) error) error {
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		keys = append(keys, itemKey(id))
	}
	unlockItems, err := s.locks.LockAll(ctx, keys...)
	if err != nil {
		return s.fail(ctx, op, userID, err)
	}
	defer unlockItems()

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.runner.InTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, txn.ErrConflict) {
			s.logger.Warn("cart mutation conflict",
				zap.String("op", op),
				zap.String("user_id", userID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.maxAttempts),
	)
	if err != nil {
		return s.fail(ctx, op, userID, err)
	}
	return nil
}

// fail passes caller-facing errors through and wraps anything else as ErrInternal.
func (s *Service) fail(ctx context.Context, op, userID string, err error) error {
	if domain.IsDomainError(err) {
		return err
	}
	fields := []zap.Field{zap.String("op", op), zap.String("user_id", userID), zap.Error(err)}
	if ctx.Err() != nil {
		s.logger.Info("cart operation cancelled", fields...)
	} else {
		s.logger.Error("cart operation failed", fields...)
	}
	return domain.Internal(err)
}

func (s *Service) publish(ctx context.Context, evt events.CartEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Warn("cart event not published",
			zap.String("event_type", string(evt.Type)),
			zap.String("user_id", evt.UserID),
			zap.Error(err),
		)
	}
}

func (s *Service) checkUser(userID string) error {
	if err := s.validate.Var(userID, "required,uuid"); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

func (s *Service) checkInput(userID string, in any) error {
	if err := s.checkUser(userID); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &InputError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
		}
		return domain.ErrInvalidInput
	}
	return nil
}

func userKey(id string) string { return "user:" + id }
func itemKey(id string) string { return "item:" + id }

// InputError names the first field that failed validation.
type InputError struct {
	Field string
	Tag   string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Field + " failed " + e.Tag
}

func (e *InputError) Unwrap() error { return domain.ErrInvalidInput }
