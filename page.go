package gpadmin

import "context"

// Page is one slice of a paginated result set
type Page[T any] struct {
	Items    []*T
	Total    int64
	Page     int
	PerPage  int
	LastPage int
}

// HasMorePages reports whether a page follows this one
func (p *Page[T]) HasMorePages() bool {
	return p.Page < p.LastPage
}

// Paginate counts the rows matching opts and loads the requested page.
// page is clamped to 1, perPage falls back to DefaultPerPage.
func Paginate[T any](ctx context.Context, store Store[T], page, perPage int, opts ...QueryOption) (*Page[T], error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total, err := store.Count(ctx, opts...)
	if err != nil {
		return nil, err
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	// Pages past the last one are empty and never queried
	items := make([]*T, 0)
	if total > 0 && page <= lastPage {
		pageOpts := make([]QueryOption, 0, len(opts)+2)
		pageOpts = append(pageOpts, opts...)
		pageOpts = append(pageOpts, Limit(perPage), Offset((page-1)*perPage))
		items, err = store.Query(ctx, pageOpts...)
		if err != nil {
			return nil, err
		}
	}

	return &Page[T]{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}, nil
}
