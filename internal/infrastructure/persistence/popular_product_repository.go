package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCatalogPageSize = 100

// GormPopularProductRepository implements PopularProductRepository using GORM.
// Category membership is stored as one edge row per (product, category) pair,
// so adding a category is an insert and never a read-modify-write of a list.
type GormPopularProductRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPopularProductRepository creates a new GormPopularProductRepository
func NewGormPopularProductRepository(db *gorm.DB) *GormPopularProductRepository {
	return &GormPopularProductRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FindByExternalID finds a catalog row by its external product id
func (r *GormPopularProductRepository) FindByExternalID(ctx context.Context, externalID string) (*catalog.PopularProduct, error) {
	return r.load(r.db.WithContext(ctx), externalID)
}

// Upsert creates the row or overwrites its scalars, then adds the category edge.
// The three statements run in one transaction:
//
//	INSERT product ON CONFLICT (external_product_id) DO NOTHING
//	UPDATE scalars, version = version + 1     (only when the insert was a no-op)
//	INSERT edge ON CONFLICT DO NOTHING
//
// Two concurrent upserts for the same key can each win or lose the product
// insert, but both edge inserts land, so the category set converges to the union.
func (r *GormPopularProductRepository) Upsert(ctx context.Context, obs catalog.Observation) (*catalog.UpsertOutcome, error) {
	fresh, err := catalog.NewPopularProduct(obs)
	if err != nil {
		return nil, err
	}
	now := r.now()
	fresh.CreatedAt, fresh.UpdatedAt = now, now
	externalID := fresh.ExternalProductID

	outcome := &catalog.UpsertOutcome{}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PopularProductModelFromDomain(fresh)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_product_id"}},
			DoNothing: true,
		}).Create(model)
		if res.Error != nil {
			return fmt.Errorf("insert popular product: %w", res.Error)
		}
		outcome.Created = res.RowsAffected == 1

		if !outcome.Created {
			updates := models.SnapshotColumns(obs.Snapshot)
			updates["version"] = gorm.Expr("version + 1")
			updates["updated_at"] = now
			if fresh.Source != nil {
				for k, v := range models.SourceColumns(fresh.Source) {
					updates[k] = v
				}
			}
			res = tx.Model(&models.PopularProductModel{}).
				Where("external_product_id = ?", externalID).
				Updates(updates)
			if res.Error != nil {
				return fmt.Errorf("update popular product: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// deleted between our insert and update; the queue retries the job
				return shared.ErrConcurrencyConflict
			}
		}

		edge := &models.PopularProductCategoryModel{
			ExternalProductID: externalID,
			CategoryID:        obs.CategoryID,
			CreatedAt:         now,
		}
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
		if res.Error != nil {
			return fmt.Errorf("insert category edge: %w", res.Error)
		}
		outcome.CategoryAdded = res.RowsAffected == 1

		loaded, err := r.load(tx, externalID)
		if err != nil {
			return err
		}
		outcome.Product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Created {
		outcome.Events = append(outcome.Events, catalog.NewPopularProductCreatedEvent(outcome.Product, obs.CategoryID))
	} else {
		outcome.Events = append(outcome.Events, catalog.NewPopularProductUpdatedEvent(outcome.Product))
		if outcome.CategoryAdded {
			outcome.Events = append(outcome.Events, catalog.NewPopularProductCategoryAddedEvent(outcome.Product, obs.CategoryID))
		}
	}
	return outcome, nil
}

// UpdateSnapshot overwrites the scalars of an existing row and keeps its categories and source
func (r *GormPopularProductRepository) UpdateSnapshot(ctx context.Context, externalID string, snapshot catalog.ProductSnapshot) (*catalog.PopularProduct, []shared.DomainEvent, error) {
	if snapshot.Price.IsNegative() {
		return nil, nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}

	var product *catalog.PopularProduct
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := models.SnapshotColumns(snapshot)
		updates["version"] = gorm.Expr("version + 1")
		updates["updated_at"] = r.now()
		res := tx.Model(&models.PopularProductModel{}).
			Where("external_product_id = ?", externalID).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update popular product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		loaded, err := r.load(tx, externalID)
		if err != nil {
			return err
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return product, []shared.DomainEvent{catalog.NewPopularProductUpdatedEvent(product)}, nil
}

// DeleteByExternalID removes the row and its category edges
func (r *GormPopularProductRepository) DeleteByExternalID(ctx context.Context, externalID, reason string) ([]shared.DomainEvent, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("external_product_id = ?", externalID).
			Delete(&models.PopularProductCategoryModel{}).Error; err != nil {
			return fmt.Errorf("delete category edges: %w", err)
		}
		res := tx.Where("external_product_id = ?", externalID).Delete(&models.PopularProductModel{})
		if res.Error != nil {
			return fmt.Errorf("delete popular product: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, nil
	}
	return []shared.DomainEvent{catalog.NewPopularProductDeletedEvent(externalID, reason)}, nil
}

// List returns a page of catalog rows, optionally restricted to one category
func (r *GormPopularProductRepository) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.PopularProduct, int64, error) {
	f := filter.Filter.Normalize(maxCatalogPageSize)
	db := r.db.WithContext(ctx)

	query := db.Model(&models.PopularProductModel{})
	if filter.CategoryID != "" {
		members := db.Model(&models.PopularProductCategoryModel{}).
			Select("external_product_id").
			Where("category_id = ?", filter.CategoryID)
		query = query.Where("external_product_id IN (?)", members)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count popular products: %w", err)
	}

	var rows []models.PopularProductModel
	if err := query.
		Order(popularProductOrder.clause(f.OrderBy, f.OrderDir)).
		Order("external_product_id ASC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list popular products: %w", err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ExternalProductID
	}
	categories, err := r.loadCategories(db, ids)
	if err != nil {
		return nil, 0, err
	}

	products := make([]catalog.PopularProduct, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain(categories[rows[i].ExternalProductID])
	}
	return products, total, nil
}

// FindStale returns external ids of rows not updated since the cutoff, oldest first
func (r *GormPopularProductRepository) FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.PopularProductModel{}).
		Where("updated_at < ?", updatedBefore.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("external_product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find stale popular products: %w", err)
	}
	return ids, nil
}

// CountByCategory returns the number of catalog rows per category
func (r *GormPopularProductRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		CategoryID string
		Count      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PopularProductCategoryModel{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count popular products by category: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}

func (r *GormPopularProductRepository) load(db *gorm.DB, externalID string) (*catalog.PopularProduct, error) {
	var model models.PopularProductModel
	if err := db.Where("external_product_id = ?", externalID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("load popular product: %w", err)
	}
	var categoryIDs []string
	if err := db.Model(&models.PopularProductCategoryModel{}).
		Where("external_product_id = ?", externalID).
		Order("category_id").
		Pluck("category_id", &categoryIDs).Error; err != nil {
		return nil, fmt.Errorf("load category edges: %w", err)
	}
	return model.ToDomain(categoryIDs), nil
}

func (r *GormPopularProductRepository) loadCategories(db *gorm.DB, externalIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return result, nil
	}
	var edges []models.PopularProductCategoryModel
	if err := db.Where("external_product_id IN ?", externalIDs).
		Order("category_id").
		Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("load category edges: %w", err)
	}
	for _, e := range edges {
		result[e.ExternalProductID] = append(result[e.ExternalProductID], e.CategoryID)
	}
	return result, nil
}

// Ensure GormPopularProductRepository implements PopularProductRepository
var _ catalog.PopularProductRepository = (*GormPopularProductRepository)(nil)
