package gpadmin

import "context"

// =====================================
// Entity Store
// =====================================

// Store persists and queries entities of type T. The gpagorm, gpabun and
// gpamongo packages provide implementations.
type Store[T any] interface {
	// Create inserts a new entity.
	Create(ctx context.Context, entity *T) error

	// FindByID retrieves a single entity by its primary key.
	// Returns ErrorTypeNotFound if the entity doesn't exist.
	FindByID(ctx context.Context, id interface{}, opts ...QueryOption) (*T, error)

	// QueryOne returns the first entity matching opts, or ErrorTypeNotFound.
	QueryOne(ctx context.Context, opts ...QueryOption) (*T, error)

	// Query returns every entity matching opts.
	Query(ctx context.Context, opts ...QueryOption) ([]*T, error)

	// Count returns the number of entities matching opts. Limit, offset,
	// ordering and preloads are ignored.
	Count(ctx context.Context, opts ...QueryOption) (int64, error)

	// Update writes the given columns of entity. Keys are column names.
	Update(ctx context.Context, entity *T, updates map[string]interface{}) error

	// Delete removes entity.
	Delete(ctx context.Context, entity *T) error

	// Transaction runs fn against a store bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	Transaction(ctx context.Context, fn TransactionFunc[T]) error
}

// TransactionFunc is executed within a store transaction
type TransactionFunc[T any] func(tx Store[T]) error
