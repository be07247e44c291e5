package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront-cart/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ItemWriter interface {
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}

// CSVImporter reads item rows with the columns
// id,title,description,price_cents,discount_kind,discount_value,stock
// and upserts them. Columns are matched by header name, so order is free and
// unknown columns are ignored.
type CSVImporter struct {
	reader   *csv.Reader
	itemRepo ItemWriter
	logger   *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ItemWriter, logger *zap.Logger) *CSVImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		itemRepo: repo,
		logger:   logger,
	}
}

var requiredColumns = []string{"title", "price_cents", "stock"}

// Run upserts every data row and returns how many were written. It stops at
// the first invalid row; rows before it stay imported.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		item, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		saved, err := i.itemRepo.Upsert(ctx, item)
		if err != nil {
			return imported, fmt.Errorf("line %d: upsert item %q: %w", line, item.Title, err)
		}
		i.logger.Debug("item imported", zap.String("item_id", saved.ID), zap.Int("line", line))
		imported++
	}

	return imported, nil
}

func parseRow(record []string, index map[string]int) (domain.Item, error) {
	item := domain.Item{
		ID:          pick(record, index, "id"),
		Title:       pick(record, index, "title"),
		Description: pick(record, index, "description"),
	}
	if item.ID != "" {
		if err := uuid.Validate(item.ID); err != nil {
			return domain.Item{}, fmt.Errorf("invalid id %q: %w", item.ID, err)
		}
	}
	if item.Title == "" {
		return domain.Item{}, errors.New("title is required")
	}

	cents, err := strconv.ParseInt(pick(record, index, "price_cents"), 10, 64)
	if err != nil || cents < 0 {
		return domain.Item{}, fmt.Errorf("invalid price_cents for %q", item.Title)
	}
	item.PriceCents = cents

	stock, err := strconv.Atoi(pick(record, index, "stock"))
	if err != nil || stock < 0 {
		return domain.Item{}, fmt.Errorf("invalid stock for %q", item.Title)
	}
	item.Stock = stock

	kind := pick(record, index, "discount_kind")
	if kind == "" {
		return item, nil
	}
	dk := domain.DiscountKind(strings.ToLower(kind))
	if !dk.Valid() {
		return domain.Item{}, fmt.Errorf("unknown discount_kind %q for %q", kind, item.Title)
	}
	value, err := decimal.NewFromString(pick(record, index, "discount_value"))
	if err != nil || value.IsNegative() {
		return domain.Item{}, fmt.Errorf("invalid discount_value for %q", item.Title)
	}
	item.Discount = &domain.ItemDiscount{Kind: dk, Value: value}
	return item, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
