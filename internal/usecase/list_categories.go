package usecase

import (
	"context"
	"fmt"
	"log/slog"
)

// ListParams are the caller-facing inputs of the listar_categorias tool.
type ListParams struct {
	IncludeCount bool
}

// CategoryView is a category enriched with its available-product count.
type CategoryView struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	SortOrder    int    `json:"ordem"`
	ProductCount int64  `json:"produtos_count"`
}

// ListCategoriesUseCase lists the categories of the fixed catalog, optionally
// counting available products per category.
type ListCategoriesUseCase struct {
	repo      CatalogRepository
	catalogID string
	logger    *slog.Logger
}

// NewListCategoriesUseCase creates a new ListCategoriesUseCase bound to the
// configured catalog identifier.
func NewListCategoriesUseCase(repo CatalogRepository, catalogID string, logger *slog.Logger) *ListCategoriesUseCase {
	return &ListCategoriesUseCase{
		repo:      repo,
		catalogID: catalogID,
		logger:    logger.With("usecase", "ListCategories"),
	}
}

// Execute fetches every category of the catalog in display order. When
// p.IncludeCount is set, a second grouped query counts available products per
// category; that query failing is non-fatal enrichment — it is logged and the
// categories come back with zero counts. A failure of the main category query
// fails the whole call.
func (uc *ListCategoriesUseCase) Execute(ctx context.Context, p ListParams) ([]CategoryView, error) {
	categories, err := uc.repo.ListCategories(ctx, uc.catalogID)
	if err != nil {
		uc.logger.Error("Category query failed.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	counts := make(map[string]int64)
	if p.IncludeCount {
		rows, err := uc.repo.CountAvailableProducts(ctx, uc.catalogID)
		if err != nil {
			uc.logger.Warn("Product count query failed, returning zero counts.", slog.Any("error", err))
		} else {
			for _, row := range rows {
				counts[row.CategoryID] = row.Count
			}
		}
	}

	views := make([]CategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, CategoryView{
			ID:           c.ID,
			Name:         c.Name,
			SortOrder:    c.SortOrder,
			ProductCount: counts[c.ID],
		})
	}
	return views, nil
}
