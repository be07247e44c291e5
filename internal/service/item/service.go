package item

import (
	"context"
	"strings"

	"storefront-cart/internal/domain"
	itemrepo "storefront-cart/internal/repository/item"

	"github.com/google/uuid"
)

type Service struct {
	repo itemrepo.Repository
}

func New(repo itemrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return nonNil(items), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return item, nil
}

// Search matches query case-insensitively against item titles and descriptions.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidInput
	}
	items, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return nonNil(items), nil
}

func nonNil(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}
