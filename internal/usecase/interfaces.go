package usecase

import (
	"context"
	"errors"

	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound = errors.New("tool not found")
)

// ProductQuery carries the filters for a product lookup against the store.
// Zero values mean "no filter"; Limit is expected to be pre-clamped by the
// caller.
type ProductQuery struct {
	// NameContains is matched case-insensitively as a substring of the
	// product name.
	NameContains string
	// CategoryID filters to an exact category when non-empty.
	CategoryID string
	// OnlyAvailable restricts the result to available products.
	OnlyAvailable bool
	// Limit caps the number of returned rows.
	Limit int
}

// CatalogRepository is the outbound port to the hosted catalog store.
// Implementations must be safe for concurrent use; every method is a single
// round-trip query with no transaction spanning calls.
type CatalogRepository interface {
	// SearchProducts returns products matching the query, ordered by display
	// order then name ascending.
	SearchProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error)

	// CategoriesByID returns only the categories with the given identifiers.
	// Unknown identifiers are silently absent from the result.
	CategoriesByID(ctx context.Context, ids []string) ([]domain.Category, error)

	// ListCategories returns every category of the given catalog, ordered by
	// display order ascending.
	ListCategories(ctx context.Context, catalogID string) ([]domain.Category, error)

	// CountAvailableProducts returns the number of available products per
	// category for the given catalog.
	CountAvailableProducts(ctx context.Context, catalogID string) ([]domain.CategoryCount, error)

	// Ping issues one trivial query to verify store connectivity.
	Ping(ctx context.Context) error
}
