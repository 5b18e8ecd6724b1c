package mapping

import "strings"

// IndexCoordinates names the index (or indices) a request targets.
type IndexCoordinates struct {
	names []string
}

// Of builds coordinates from one or more index names. Blank names are dropped.
func Of(names ...string) IndexCoordinates {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return IndexCoordinates{names: kept}
}

// IndexNames returns a copy of the index names.
func (c IndexCoordinates) IndexNames() []string {
	return append([]string(nil), c.names...)
}

// IndexName returns the names joined with "," as used in request paths.
func (c IndexCoordinates) IndexName() string {
	return strings.Join(c.names, ",")
}

// IsZero reports whether no index name is set.
func (c IndexCoordinates) IsZero() bool {
	return len(c.names) == 0
}

func (c IndexCoordinates) String() string {
	return "IndexCoordinates{indexNames=[" + c.IndexName() + "]}"
}
