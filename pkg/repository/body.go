package repository

import (
	"reflect"
	"sort"
)

// searchBody translates QueryOptions into a _search request body.
func searchBody(opts QueryOptions, defaultPageSize int) map[string]any {
	body := map[string]any{
		"query": filterQuery(opts.Filter),
	}

	if sorts := sortClauses(opts.Sort); len(sorts) > 0 {
		body["sort"] = sorts
	}

	from, size := opts.Pagination.window(defaultPageSize)
	if size > 0 {
		body["size"] = size
	}
	if from > 0 {
		body["from"] = from
	}
	return body
}

func sortClauses(fields []SortField) []any {
	clauses := make([]any, 0, len(fields))
	for _, f := range fields {
		if f.Field == "" {
			continue
		}
		order := SortAsc
		if f.Order == SortDesc {
			order = SortDesc
		}
		clauses = append(clauses, map[string]any{f.Field: map[string]any{"order": string(order)}})
	}
	return clauses
}

// filterQuery builds a bool query whose filter clauses require every entry of f. Slice
// values become terms clauses.
func filterQuery(f Filter) map[string]any {
	if len(f) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	clauses := make([]any, 0, len(fields))
	for _, field := range fields {
		value := f[field]
		if values, ok := listValues(value); ok {
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: values}})
			continue
		}
		clauses = append(clauses, map[string]any{"term": map[string]any{field: value}})
	}
	return map[string]any{"bool": map[string]any{"filter": clauses}}
}

func listValues(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
