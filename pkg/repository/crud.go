package repository

import "context"

// Reader is the read side of a repository.
type Reader[T any, ID comparable] interface {
	FindByID(ctx context.Context, id ID) (*T, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
	FindAll(ctx context.Context, opts QueryOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer is the write side of a repository. Save creates or replaces the document.
type Writer[T any, ID comparable] interface {
	Save(ctx context.Context, entity *T) error
	Delete(ctx context.Context, entity *T) error
	DeleteByID(ctx context.Context, id ID) error
}

// Repository reads and writes entities of type T keyed by ID.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}

// QueryOptions narrows, orders and pages FindAll.
type QueryOptions struct {
	Filter     Filter
	Sort       []SortField
	Pagination Pagination
}

// Filter maps document fields to the values they must equal. Slice values match any of
// their elements. Entries are combined with AND logic.
type Filter map[string]interface{}

// SortField orders results by one field. Earlier fields take precedence.
type SortField struct {
	Field string
	Order SortOrder
}

// SortOrder is asc or desc. Anything else sorts ascending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Asc and Desc build sort fields.
func Asc(field string) SortField  { return SortField{Field: field, Order: SortAsc} }
func Desc(field string) SortField { return SortField{Field: field, Order: SortDesc} }

// Pagination selects a 1-based page. A zero PageSize uses query.default_page_size.
type Pagination struct {
	Page     int
	PageSize int
}

// window returns the from/size pair of the page, falling back to defaultSize.
func (p Pagination) window(defaultSize int) (from, size int) {
	size = p.PageSize
	if size <= 0 {
		size = defaultSize
	}
	if p.Page > 1 && size > 0 {
		from = (p.Page - 1) * size
	}
	return from, size
}
