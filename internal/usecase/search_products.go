package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
	"github.com/cardapiodigital/cardapio-mcp/internal/format"
)

// Limit bounds for product searches. Out-of-range requests are clamped, not
// rejected.
const (
	MinSearchLimit     = 1
	MaxSearchLimit     = 50
	DefaultSearchLimit = 10
)

// SearchParams are the caller-facing inputs of the buscar_produtos tool.
type SearchParams struct {
	Term          string
	CategoryID    string
	OnlyAvailable bool
	Limit         int
}

// ProductView is a product joined with its category name, prices already
// coerced and formatted for display.
type ProductView struct {
	ID           string  `json:"id"`
	Name         string  `json:"nome"`
	Description  string  `json:"descricao"`
	Price        float64 `json:"preco"`
	PriceDisplay string  `json:"preco_formatado"`
	ImageURL     string  `json:"imagem_url"`
	Available    bool    `json:"disponivel"`
	CategoryName *string `json:"categoria"`
}

// SearchProductsUseCase performs the filtered product lookup and the
// two-query category join.
type SearchProductsUseCase struct {
	repo   CatalogRepository
	logger *slog.Logger
}

// NewSearchProductsUseCase creates a new SearchProductsUseCase.
func NewSearchProductsUseCase(repo CatalogRepository, logger *slog.Logger) *SearchProductsUseCase {
	return &SearchProductsUseCase{
		repo:   repo,
		logger: logger.With("usecase", "SearchProducts"),
	}
}

// ClampLimit forces a requested limit into [MinSearchLimit, MaxSearchLimit].
// The absent-argument default is applied at the tool layer, before clamping.
func ClampLimit(limit int) int {
	if limit < MinSearchLimit {
		return MinSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Execute runs the product query, then fetches only the categories referenced
// by the result set and joins them in memory. The two-query protocol is a
// deliberate portability tradeoff over a store-side join. A category
// reference with no matching category yields a null categoria field.
func (uc *SearchProductsUseCase) Execute(ctx context.Context, p SearchParams) ([]ProductView, error) {
	log := uc.logger.With(slog.String("term", p.Term))

	q := ProductQuery{
		NameContains:  format.NormalizeText(p.Term),
		CategoryID:    format.NormalizeText(p.CategoryID),
		OnlyAvailable: p.OnlyAvailable,
		Limit:         ClampLimit(p.Limit),
	}

	products, err := uc.repo.SearchProducts(ctx, q)
	if err != nil {
		log.Error("Product query failed.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	categories, err := uc.fetchReferencedCategories(ctx, products)
	if err != nil {
		log.Error("Category lookup failed.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to resolve product categories: %w", err)
	}

	views := JoinCategories(products, categories)
	log.Debug("Product search completed.", slog.Int("count", len(views)))
	return views, nil
}

// fetchReferencedCategories collects the distinct category ids of the result
// set and fetches only those rows, keeping the second query bounded by the
// first one's limit.
func (uc *SearchProductsUseCase) fetchReferencedCategories(ctx context.Context, products []domain.Product) ([]domain.Category, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.CategoryID == "" {
			continue
		}
		if _, ok := seen[p.CategoryID]; ok {
			continue
		}
		seen[p.CategoryID] = struct{}{}
		ids = append(ids, p.CategoryID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return uc.repo.CategoriesByID(ctx, ids)
}

// JoinCategories attaches category names to products by identifier lookup.
// Products referencing an unknown category keep a nil CategoryName.
func JoinCategories(products []domain.Product, categories []domain.Category) []ProductView {
	byID := make(map[string]string, len(categories))
	for _, c := range categories {
		byID[c.ID] = c.Name
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		v := ProductView{
			ID:           p.ID,
			Name:         p.Name,
			Description:  format.NormalizeText(p.Description),
			Price:        format.CoerceMonetary(p.Price),
			PriceDisplay: format.FormatMonetaryDisplay(p.Price),
			ImageURL:     p.ImageURL,
			Available:    p.Available,
		}
		if name, ok := byID[p.CategoryID]; ok {
			v.CategoryName = &name
		}
		views = append(views, v)
	}
	return views
}
