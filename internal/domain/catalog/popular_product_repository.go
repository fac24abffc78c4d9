package catalog

import (
	"context"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
)

// UpsertOutcome is the result of an atomic create-or-merge
type UpsertOutcome struct {
	Product       *PopularProduct
	Created       bool
	CategoryAdded bool
	Events        []shared.DomainEvent
}

// ListFilter narrows catalog listings
type ListFilter struct {
	shared.Filter
	CategoryID string
}

// PopularProductRepository defines persistence for the popular-products catalog.
// Writes return the domain events they produced instead of firing hooks.
type PopularProductRepository interface {
	// FindByExternalID finds a row by its natural key
	FindByExternalID(ctx context.Context, externalID string) (*PopularProduct, error)

	// Upsert creates the row or overwrites its scalars, and adds the observation's
	// category to the set. Concurrent calls for the same key never lose a category.
	Upsert(ctx context.Context, obs Observation) (*UpsertOutcome, error)

	// UpdateSnapshot overwrites scalars of an existing row without touching categories
	UpdateSnapshot(ctx context.Context, externalID string, snapshot ProductSnapshot) (*PopularProduct, []shared.DomainEvent, error)

	// DeleteByExternalID removes the row and its category edges.
	// Deleting a missing row is not an error and returns no events.
	DeleteByExternalID(ctx context.Context, externalID, reason string) ([]shared.DomainEvent, error)

	// List returns a page of rows
	List(ctx context.Context, filter ListFilter) ([]PopularProduct, int64, error)

	// FindStale returns external ids of rows not updated since the cutoff, oldest first
	FindStale(ctx context.Context, updatedBefore time.Time, limit int) ([]string, error)

	// CountByCategory returns the number of rows per category
	CountByCategory(ctx context.Context) (map[string]int64, error)
}
