// Package postgres implements the catalog repository against the hosted
// Postgres store via gorm. The service only ever reads: no migrations, no
// writes, no transactions spanning calls.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
	"github.com/cardapiodigital/cardapio-mcp/internal/usecase"
)

// Repository implements usecase.CatalogRepository over a shared gorm
// connection pool.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the store at dsn and returns a repository over the
// connection pool. gorm's own logger is silenced; query failures surface as
// errors and are logged by the callers with operation context.
func Open(dsn string, logger *slog.Logger) (*Repository, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog store: %w", err)
	}
	return NewRepository(db, logger), nil
}

// NewRepository wraps an existing gorm handle. Used by Open and by tests that
// substitute their own database.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With("component", "postgres_repo"),
	}
}

// SearchProducts runs the filtered, ordered, limited product query.
func (r *Repository) SearchProducts(ctx context.Context, q usecase.ProductQuery) ([]domain.Product, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Product{})
	if q.NameContains != "" {
		tx = tx.Where("nome ILIKE ?", "%"+q.NameContains+"%")
	}
	if q.CategoryID != "" {
		tx = tx.Where("categoria_id = ?", q.CategoryID)
	}
	if q.OnlyAvailable {
		tx = tx.Where("disponivel = ?", true)
	}

	var products []domain.Product
	if err := tx.Order("ordem ASC, nome ASC").Limit(q.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	return products, nil
}

// CategoriesByID fetches only the referenced categories, keeping the join
// workload bounded by the product result set.
func (r *Repository) CategoriesByID(ctx context.Context, ids []string) ([]domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []domain.Category
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("category lookup failed: %w", err)
	}
	return categories, nil
}

// ListCategories fetches every category of the catalog in display order.
func (r *Repository) ListCategories(ctx context.Context, catalogID string) ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.WithContext(ctx).
		Where("catalogo_id = ?", catalogID).
		Order("ordem ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("category query failed: %w", err)
	}
	return categories, nil
}

// CountAvailableProducts groups available products by category for the given
// catalog.
func (r *Repository) CountAvailableProducts(ctx context.Context, catalogID string) ([]domain.CategoryCount, error) {
	var rows []domain.CategoryCount
	err := r.db.WithContext(ctx).Model(&domain.Product{}).
		Select("categoria_id, count(*) as count").
		Where("disponivel = ?", true).
		Where("categoria_id IN (?)",
			r.db.Model(&domain.Category{}).Select("id").Where("catalogo_id = ?", catalogID)).
		Group("categoria_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("product count query failed: %w", err)
	}
	return rows, nil
}

// Ping issues one trivial query to verify connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("store connectivity check failed: %w", err)
	}
	return nil
}
