package stringquery

import (
	"errors"
	"testing"
)

func TestArgsBindableValue(t *testing.T) {
	args := Args{"a", nil}

	if v, err := args.BindableValue(0); err != nil || v != "a" {
		t.Fatalf("BindableValue(0) = %v, %v", v, err)
	}
	if v, err := args.BindableValue(1); err != nil || v != nil {
		t.Fatalf("BindableValue(1) = %v, %v", v, err)
	}
	for _, idx := range []int{-1, 2} {
		if _, err := args.BindableValue(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("BindableValue(%d) error = %v", idx, err)
		}
	}
	if args.Parameters() != nil {
		t.Errorf("Args should declare no parameters")
	}
}

func TestNewNamedArgs(t *testing.T) {
	args, err := NewNamedArgs([]string{"first", " second "}, []any{1, "two"})
	if err != nil {
		t.Fatalf("NewNamedArgs() error = %v", err)
	}
	params := args.Parameters()
	if len(params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(params))
	}
	if params[1] != (Parameter{Name: "second", Placeholder: ":second", Index: 1}) {
		t.Errorf("unexpected parameter %+v", params[1])
	}
	if v, _ := args.BindableValue(1); v != "two" {
		t.Errorf("BindableValue(1) = %v", v)
	}

	invalid := []struct {
		name   string
		names  []string
		values []any
	}{
		{name: "length mismatch", names: []string{"a"}, values: nil},
		{name: "empty name", names: []string{" "}, values: []any{1}},
		{name: "duplicate", names: []string{"a", "a"}, values: []any{1, 2}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewNamedArgs(tt.names, tt.values); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNamedValuesSortedDeclaration(t *testing.T) {
	args := NamedValues(map[string]any{"b": 2, "a": 1, "c": nil})
	params := args.Parameters()

	want := []string{"a", "b", "c"}
	for i, p := range params {
		if p.Name != want[i] || p.Index != i || p.Placeholder != ":"+want[i] {
			t.Errorf("parameter %d = %+v", i, p)
		}
	}
	if v, _ := args.BindableValue(1); v != 2 {
		t.Errorf("BindableValue(1) = %v", v)
	}
}

func TestMissingBindingErrorMessage(t *testing.T) {
	positional := &MissingBindingError{Index: 2, Err: ErrIndexOutOfRange}
	if got := positional.Error(); got != "missing query parameter binding: parameter index 2: parameter index out of range" {
		t.Errorf("Error() = %q", got)
	}
	named := &MissingBindingError{Index: 0, Name: "n"}
	if got := named.Error(); got != `missing query parameter binding: parameter "n" (index 0)` {
		t.Errorf("Error() = %q", got)
	}
}
