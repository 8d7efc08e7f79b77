package gpadmin

import "go.uber.org/zap"

// Resource defaults
const (
	DefaultPerPage   = 25
	DefaultSortField = "order"
	DefaultSortBy    = "id"
	DefaultNameField = "name"
)

// settings is the static configuration of a resource
type settings struct {
	name           string
	perPage        int
	sortable       bool
	sortField      string
	defaultSort    string
	search         []string
	with           []string
	nameField      string
	singleResource bool
	atomicDelete   bool
	allocator      OrderAllocator
	logger         *zap.Logger
}

func defaultSettings() settings {
	return settings{
		perPage:     DefaultPerPage,
		sortField:   DefaultSortField,
		defaultSort: DefaultSortBy,
		nameField:   DefaultNameField,
		allocator:   CountAllocator{},
		logger:      zap.NewNop(),
	}
}

// ResourceOption configures a Resource
type ResourceOption func(*settings)

// WithName overrides the resource name derived from the entity type
func WithName(name string) ResourceOption {
	return func(s *settings) { s.name = name }
}

// WithPerPage sets the index page size
func WithPerPage(n int) ResourceOption {
	return func(s *settings) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithSortable makes the resource manually arrangeable. Lists are always
// ordered by the sort field, "order" unless given.
func WithSortable(field ...string) ResourceOption {
	return func(s *settings) {
		s.sortable = true
		if len(field) > 0 && field[0] != "" {
			s.sortField = field[0]
		}
	}
}

// WithDefaultSort sets the column lists are ordered by when nothing else
// applies
func WithDefaultSort(field string) ResourceOption {
	return func(s *settings) { s.defaultSort = field }
}

// WithSearch sets the columns matched by the search box
func WithSearch(fields ...string) ResourceOption {
	return func(s *settings) { s.search = append(s.search, fields...) }
}

// WithEagerLoad sets the relations loaded with every row, replacing the
// ones derived from relationship fields
func WithEagerLoad(relations ...string) ResourceOption {
	return func(s *settings) { s.with = append(s.with, relations...) }
}

// WithNameField sets the attribute used as an entity's display name
func WithNameField(field string) ResourceOption {
	return func(s *settings) { s.nameField = field }
}

// WithSingleResource marks a resource holding exactly one entity
func WithSingleResource() ResourceOption {
	return func(s *settings) { s.singleResource = true }
}

// WithAtomicDelete runs pruning and deletion inside one store transaction.
// Files removed by prune hooks are not restored on rollback.
func WithAtomicDelete() ResourceOption {
	return func(s *settings) { s.atomicDelete = true }
}

// WithOrderAllocator replaces the count based order allocation
func WithOrderAllocator(a OrderAllocator) ResourceOption {
	return func(s *settings) {
		if a != nil {
			s.allocator = a
		}
	}
}

// WithLogger sets the logger. Resources are silent by default.
func WithLogger(l *zap.Logger) ResourceOption {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
