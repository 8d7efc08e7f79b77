package gpadmin

import "context"

// CountFunc returns the number of stored entities of a resource
type CountFunc func(ctx context.Context) (int64, error)

// OrderAllocator hands out the order position of a new entity on sortable
// resources. sequence identifies the resource.
type OrderAllocator interface {
	Next(ctx context.Context, sequence string, count CountFunc) (int64, error)
}

// CountAllocator assigns the current entity count. Two entities created at
// the same time may receive the same position; use
// gparedis.SequenceAllocator when that matters.
type CountAllocator struct{}

func (CountAllocator) Next(ctx context.Context, _ string, count CountFunc) (int64, error) {
	return count(ctx)
}
