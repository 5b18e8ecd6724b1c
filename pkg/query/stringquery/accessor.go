package stringquery

import (
	"fmt"
	"sort"
	"strings"
)

// NamedPrefix is the marker that starts a named placeholder token.
const NamedPrefix = ":"

// ParameterAccessor exposes the values bound to one query invocation.
type ParameterAccessor interface {
	// BindableValue returns the value at a zero-based position. A nil value is
	// a legitimate binding and renders as null.
	BindableValue(index int) (any, error)
	// Parameters returns the named parameters in declaration order.
	Parameters() []Parameter
}

// Parameter describes one named parameter and the token that stands for it.
type Parameter struct {
	Name        string
	Placeholder string
	Index       int
}

// PlaceholderFor returns the default token for a parameter name.
func PlaceholderFor(name string) string {
	return NamedPrefix + name
}

// Args binds values by position.
type Args []any

// BindableValue returns the value at index.
func (a Args) BindableValue(index int) (any, error) {
	if index < 0 || index >= len(a) {
		return nil, fmt.Errorf("%w: %d (have %d values)", ErrIndexOutOfRange, index, len(a))
	}
	return a[index], nil
}

// Parameters returns nil; positional arguments declare no names.
func (a Args) Parameters() []Parameter { return nil }

// NamedArgs binds values by position and declares a name for each position.
type NamedArgs struct {
	values Args
	params []Parameter
}

// NewNamedArgs declares names[i] for values[i].
func NewNamedArgs(names []string, values []any) (*NamedArgs, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("named arguments: %d names for %d values", len(names), len(values))
	}
	params := make([]Parameter, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("named arguments: empty name at index %d", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("named arguments: duplicate name %q", name)
		}
		seen[name] = struct{}{}
		params = append(params, Parameter{Name: name, Placeholder: PlaceholderFor(name), Index: i})
	}
	return &NamedArgs{values: Args(values), params: params}, nil
}

// NamedValues declares one parameter per map key, in sorted key order.
func NamedValues(values map[string]any) *NamedArgs {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &NamedArgs{
		values: make(Args, len(names)),
		params: make([]Parameter, len(names)),
	}
	for i, name := range names {
		out.values[i] = values[name]
		out.params[i] = Parameter{Name: name, Placeholder: PlaceholderFor(name), Index: i}
	}
	return out
}

// BindableValue returns the value at index.
func (n *NamedArgs) BindableValue(index int) (any, error) {
	return n.values.BindableValue(index)
}

// Parameters returns the declared parameters.
func (n *NamedArgs) Parameters() []Parameter {
	return n.params
}
