package seed

import (
	"context"
	"fmt"
	"time"

	"storefront-cart/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemWriter and DiscountWriter are the slices of the item and discount
// repositories the seed needs.
type ItemWriter interface {
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}

type DiscountWriter interface {
	Upsert(ctx context.Context, code domain.DiscountCode) (*domain.DiscountCode, error)
}

var seedNamespace = uuid.MustParse("6f1c2b7e-3d1a-4c8e-9b0f-5a7d2e4c1b93")

// ItemID is the stable id of the demo item with the given key.
func ItemID(key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(key)).String()
}

type itemSeed struct {
	Key         string
	Title       string
	Description string
	PriceCents  int64
	Discount    *domain.ItemDiscount
	Stock       int
}

func demoItems() []itemSeed {
	return []itemSeed{
		{
			Key:         "demo-shirt",
			Title:       "Demo T-Shirt",
			Description: "Soft cotton tee for demo purposes",
			PriceCents:  1999,
			Stock:       25,
		},
		{
			Key:         "demo-mug",
			Title:       "Demo Mug",
			Description: "Ceramic mug with demo logo",
			PriceCents:  1299,
			Discount:    &domain.ItemDiscount{Kind: domain.DiscountPercentage, Value: decimal.NewFromInt(15)},
			Stock:       10,
		},
		{
			Key:         "demo-kettle",
			Title:       "Blue Kettle",
			Description: "Stovetop kettle, 1.5l",
			PriceCents:  4500,
			Discount:    &domain.ItemDiscount{Kind: domain.DiscountFixed, Value: decimal.NewFromInt(500)},
			Stock:       3,
		},
		{
			Key:         "demo-poster",
			Title:       "Limited Poster",
			Description: "Signed print, one of a kind",
			PriceCents:  9900,
			Stock:       1,
		},
	}
}

func demoCodes(now time.Time) []domain.DiscountCode {
	return []domain.DiscountCode{
		{Code: "WELCOME10", Kind: domain.DiscountPercentage, Value: decimal.NewFromInt(10)},
		{Code: "FIVEOFF", Kind: domain.DiscountFixed, Value: decimal.NewFromInt(500), Stackable: true},
		{Code: "FREESHIP", Kind: domain.DiscountFixed, Value: decimal.NewFromInt(399), Stackable: true},
		{Code: "SPRING20", Kind: domain.DiscountPercentage, Value: decimal.NewFromInt(20), ValidFrom: now, ValidTo: now.AddDate(0, 3, 0)},
		{Code: "EXPIRED", Kind: domain.DiscountPercentage, Value: decimal.NewFromInt(50), ValidFrom: now.AddDate(-1, 0, 0), ValidTo: now.AddDate(0, -1, 0)},
	}
}

// Apply inserts demo items and discount codes for manual testing. Items keep
// stable ids so re-running it updates rather than duplicates them.
func Apply(ctx context.Context, items ItemWriter, codes DiscountWriter, now time.Time) error {
	for _, s := range demoItems() {
		_, err := items.Upsert(ctx, domain.Item{
			ID:          ItemID(s.Key),
			Title:       s.Title,
			Description: s.Description,
			PriceCents:  s.PriceCents,
			Discount:    s.Discount,
			Stock:       s.Stock,
		})
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", s.Key, err)
		}
	}

	for _, c := range demoCodes(now.UTC().Truncate(24 * time.Hour)) {
		if _, err := codes.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert discount code %s: %w", c.Code, err)
		}
	}

	return nil
}
