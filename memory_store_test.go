package gpadmin

import (
	"context"
	"fmt"
	"sync"
)

// memoryStore is an in-memory Store used by the package tests. It records
// the calls made to it and the last query it received.
type memoryStore[T any] struct {
	mu       sync.Mutex
	items    []*T
	calls    []string
	last     *Query
	failWith error
	txCount  int
}

func newMemoryStore[T any](items ...*T) *memoryStore[T] {
	return &memoryStore[T]{items: items}
}

func (s *memoryStore[T]) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *memoryStore[T]) Create(ctx context.Context, entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create")
	s.items = append(s.items, entity)
	return nil
}

func (s *memoryStore[T]) FindByID(ctx context.Context, id interface{}, opts ...QueryOption) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("find")
	for _, item := range s.items {
		if fmt.Sprint(ResolvePath(item, "ID")) == fmt.Sprint(id) {
			return item, nil
		}
	}
	return nil, NewError(ErrorTypeNotFound, "entity not found")
}

func (s *memoryStore[T]) QueryOne(ctx context.Context, opts ...QueryOption) (*T, error) {
	items, err := s.Query(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewError(ErrorTypeNotFound, "entity not found")
	}
	return items[0], nil
}

func (s *memoryStore[T]) Query(ctx context.Context, opts ...QueryOption) ([]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("query")
	q := BuildQuery(opts...)
	s.last = q

	items := s.items
	if q.Offset != nil {
		if *q.Offset >= len(items) {
			return []*T{}, nil
		}
		items = items[*q.Offset:]
	}
	if q.Limit != nil && *q.Limit < len(items) {
		items = items[:*q.Limit]
	}
	return append([]*T(nil), items...), nil
}

func (s *memoryStore[T]) Count(ctx context.Context, opts ...QueryOption) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("count")
	return int64(len(s.items)), nil
}

func (s *memoryStore[T]) Update(ctx context.Context, entity *T, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update")
	for k, v := range updates {
		if err := SetPath(entity, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore[T]) Delete(ctx context.Context, entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete")
	if s.failWith != nil {
		return s.failWith
	}
	for i, item := range s.items {
		if item == entity {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memoryStore[T]) Transaction(ctx context.Context, fn TransactionFunc[T]) error {
	s.mu.Lock()
	s.record("begin")
	s.txCount++
	s.mu.Unlock()
	return fn(s)
}
