package stringquery

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestResolvePositional(t *testing.T) {
	r := New(nil, ModePositional)

	tests := []struct {
		name     string
		template string
		args     Args
		want     string
	}{
		{
			name:     "single string",
			template: `{"match":{"name":"?0"}}`,
			args:     Args{"Jack"},
			want:     `{"match":{"name":"Jack"}}`,
		},
		{
			name:     "index ten not confused with one",
			template: `?1 ?10`,
			args:     Args{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10"},
			want:     `a1 a10`,
		},
		{
			name:     "repeated placeholder",
			template: `?0-?0`,
			args:     Args{"x"},
			want:     `x-x`,
		},
		{
			name:     "absent value",
			template: `{"term":{"f":?0}}`,
			args:     Args{nil},
			want:     `{"term":{"f":null}}`,
		},
		{
			name:     "collection of strings",
			template: `{"terms":{"f":?0}}`,
			args:     Args{[]string{"a", "b"}},
			want:     `{"terms":{"f":["a","b"]}}`,
		},
		{
			name:     "collection of numbers",
			template: `{"terms":{"f":?0}}`,
			args:     Args{[]int{1, 2}},
			want:     `{"terms":{"f":[1,2]}}`,
		},
		{
			name:     "quote escaped in leaf",
			template: `"?0"`,
			args:     Args{`say "hi"`},
			want:     `"say \"hi\""`,
		},
		{
			name:     "question mark without digits stays literal",
			template: `{"q":"what?"} ?x ?`,
			args:     Args{},
			want:     `{"q":"what?"} ?x ?`,
		},
		{
			name:     "empty template",
			template: ``,
			args:     nil,
			want:     ``,
		},
		{
			name:     "unused arguments ignored",
			template: `?1`,
			args:     Args{"a", "b", "c"},
			want:     `b`,
		},
		{
			name:     "substituted text is not rescanned",
			template: `?0 ?1`,
			args:     Args{"?1", "z"},
			want:     `?1 z`,
		},
		{
			name:     "mixed collection",
			template: `?0`,
			args:     Args{[]any{"a", 1, true, nil}},
			want:     `["a",1,true,null]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.template, tt.args)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvePositionalMissingBinding(t *testing.T) {
	r := New(nil, ModePositional)

	got, err := r.Resolve(`{"match":{"a":"?0","b":"?3"}}`, Args{"only"})
	if err == nil {
		t.Fatalf("expected error, got %q", got)
	}
	if got != "" {
		t.Errorf("expected no partial result, got %q", got)
	}
	if !errors.Is(err, ErrMissingBinding) {
		t.Errorf("expected ErrMissingBinding, got %v", err)
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected wrapped ErrIndexOutOfRange, got %v", err)
	}
	var mb *MissingBindingError
	if !errors.As(err, &mb) {
		t.Fatalf("expected *MissingBindingError, got %T", err)
	}
	if mb.Index != 3 {
		t.Errorf("Index = %d, want 3", mb.Index)
	}
}

func TestResolveNilAccessor(t *testing.T) {
	r := New(nil, ModePositional)

	if _, err := r.Resolve(`?0`, nil); !errors.Is(err, ErrMissingBinding) {
		t.Fatalf("expected ErrMissingBinding, got %v", err)
	}
	got, err := r.Resolve(`{"match_all":{}}`, nil)
	if err != nil || got != `{"match_all":{}}` {
		t.Fatalf("Resolve() = %q, %v", got, err)
	}
}

func TestResolveIndexOverflowStaysLiteral(t *testing.T) {
	r := New(nil, ModePositional)
	tmpl := `?99999999999999999999999 ?0`

	got, err := r.Resolve(tmpl, Args{"v"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != `?99999999999999999999999 v` {
		t.Errorf("Resolve() = %q", got)
	}
}

type failingAccessor struct{ err error }

func (f failingAccessor) BindableValue(int) (any, error) { return nil, f.err }
func (f failingAccessor) Parameters() []Parameter        { return nil }

func TestResolveAccessorError(t *testing.T) {
	cause := errors.New("boom")
	r := New(nil, ModePositional)

	_, err := r.Resolve(`?0`, failingAccessor{err: cause})
	if !errors.Is(err, ErrMissingBinding) || !errors.Is(err, cause) {
		t.Fatalf("expected missing binding wrapping cause, got %v", err)
	}
}

func TestResolveNamed(t *testing.T) {
	r := New(nil, ModeNamed)

	tests := []struct {
		name     string
		template string
		names    []string
		values   []any
		want     string
	}{
		{
			name:     "single parameter",
			template: `{"match":{"name":":name"}}`,
			names:    []string{"name"},
			values:   []any{"Jack"},
			want:     `{"match":{"name":"Jack"}}`,
		},
		{
			name:     "repeated parameter",
			template: `:a :a`,
			names:    []string{"a"},
			values:   []any{1},
			want:     `1 1`,
		},
		{
			name:     "prefix tokens resolved longest first",
			template: `:name :nameLong`,
			names:    []string{"name", "nameLong"},
			values:   []any{"short", "long"},
			want:     `short long`,
		},
		{
			name:     "declaration order does not matter",
			template: `:nameLong :name`,
			names:    []string{"nameLong", "name"},
			values:   []any{"long", "short"},
			want:     `long short`,
		},
		{
			name:     "undeclared token passes through",
			template: `:name :other`,
			names:    []string{"name"},
			values:   []any{"v"},
			want:     `v :other`,
		},
		{
			name:     "declared token followed by identifier characters",
			template: `:nameLong x:name_raw :name1`,
			names:    []string{"name"},
			values:   []any{"v"},
			want:     `vLong xv_raw v1`,
		},
		{
			name:     "token matched anywhere in text",
			template: `{"query_string":{"query":"name::lastname AND x:lastnameSuffix"}}`,
			names:    []string{"lastname"},
			values:   []any{"Miller"},
			want:     `{"query_string":{"query":"name:Miller AND xMillerSuffix"}}`,
		},
		{
			name:     "declared but unused",
			template: `{"match_all":{}}`,
			names:    []string{"unused"},
			values:   []any{"v"},
			want:     `{"match_all":{}}`,
		},
		{
			name:     "absent and collection",
			template: `{"a"::a,"b"::b}`,
			names:    []string{"a", "b"},
			values:   []any{nil, []string{"x", `y"z`}},
			want:     `{"a":null,"b":["x","y\"z"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := NewNamedArgs(tt.names, tt.values)
			if err != nil {
				t.Fatalf("NewNamedArgs() error = %v", err)
			}
			got, err := r.Resolve(tt.template, args)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveNamedIgnoresPositionalMarkers(t *testing.T) {
	r := New(nil, ModeNamed)

	got, err := r.Resolve(`?0 :a`, NamedValues(map[string]any{"a": "x"}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != `?0 x` {
		t.Errorf("Resolve() = %q", got)
	}
}

type customTokenAccessor struct{}

func (customTokenAccessor) BindableValue(index int) (any, error) {
	return Args{"first", "second"}.BindableValue(index)
}

func (customTokenAccessor) Parameters() []Parameter {
	return []Parameter{
		{Name: "first", Placeholder: "@first", Index: 0},
		{Name: "again", Placeholder: "@first", Index: 1},
		{Name: "second", Placeholder: "${second}", Index: 1},
	}
}

func TestResolveNamedCustomPlaceholders(t *testing.T) {
	r := New(nil, ModeNamed)

	got, err := r.Resolve(`@first ${second}`, customTokenAccessor{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != `first second` {
		t.Errorf("Resolve() = %q", got)
	}
}

type outOfRangeNamed struct{}

func (outOfRangeNamed) BindableValue(index int) (any, error) { return Args{}.BindableValue(index) }
func (outOfRangeNamed) Parameters() []Parameter {
	return []Parameter{{Name: "gone", Placeholder: ":gone", Index: 4}}
}

func TestResolveNamedMissingBinding(t *testing.T) {
	r := New(nil, ModeNamed)

	_, err := r.Resolve(`{"a":":gone"}`, outOfRangeNamed{})
	var mb *MissingBindingError
	if !errors.As(err, &mb) {
		t.Fatalf("expected *MissingBindingError, got %v", err)
	}
	if mb.Name != "gone" || mb.Index != 4 {
		t.Errorf("unexpected binding error fields: %+v", mb)
	}
}

func TestResolveStrictNamed(t *testing.T) {
	r := New(nil, ModeNamed, WithStrictNamed())
	args := NamedValues(map[string]any{"name": "v"})

	got, err := r.Resolve(`{"a":":name","b":true,"c":"12:30"}`, args)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != `{"a":"v","b":true,"c":"12:30"}` {
		t.Errorf("Resolve() = %q", got)
	}

	_, err = r.Resolve(`{"a":":name","b":":missing"}`, args)
	var mb *MissingBindingError
	if !errors.As(err, &mb) {
		t.Fatalf("expected *MissingBindingError, got %v", err)
	}
	if mb.Name != "missing" || mb.Index != -1 {
		t.Errorf("unexpected binding error fields: %+v", mb)
	}

	if _, err := r.Resolve(`:x`, nil); !errors.Is(err, ErrMissingBinding) {
		t.Errorf("expected ErrMissingBinding without accessor, got %v", err)
	}
}

type opaque struct{ n int }

func TestResolveWithoutFallback(t *testing.T) {
	r := New(nil, ModePositional, WithoutFallback())

	_, err := r.Resolve(`?0`, Args{opaque{n: 1}})
	if !errors.Is(err, ErrUnconvertibleValue) {
		t.Fatalf("expected ErrUnconvertibleValue, got %v", err)
	}
	var uv *UnconvertibleValueError
	if !errors.As(err, &uv) || uv.Type != reflect.TypeOf(opaque{}) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPrepare(t *testing.T) {
	r := New(nil, ModePositional)
	if err := r.Prepare(`{"term":{"a":?0}}`, nil); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if r.cache.Len() != 1 {
		t.Fatalf("expected the template to be cached, got %d entries", r.cache.Len())
	}
	got, err := r.Resolve(`{"term":{"a":?0}}`, Args{1})
	if err != nil || got != `{"term":{"a":1}}` {
		t.Fatalf("Resolve() = %q, %v", got, err)
	}
	if r.cache.Len() != 1 {
		t.Fatalf("expected Resolve to reuse the prepared template, got %d entries", r.cache.Len())
	}

	strict := New(nil, ModeNamed, WithStrictNamed())
	args, err := NewNamedArgs([]string{"a"}, []any{nil})
	if err != nil {
		t.Fatal(err)
	}
	if err := strict.Prepare(`:a :b`, args); !errors.Is(err, ErrMissingBinding) {
		t.Fatalf("expected ErrMissingBinding, got %v", err)
	}
	if err := strict.Prepare(`:a`, args); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
}

func TestResolveTemplateCacheDisabled(t *testing.T) {
	r := New(nil, ModePositional, WithTemplateCache(0))
	if r.cache != nil {
		t.Fatalf("expected cache to be disabled")
	}
	got, err := r.Resolve(`?0`, Args{1})
	if err != nil || got != "1" {
		t.Fatalf("Resolve() = %q, %v", got, err)
	}
}

func TestResolveNamedCacheKeysOnDeclaredTokens(t *testing.T) {
	r := New(nil, ModeNamed)
	tmpl := `:a :b`

	first, err := r.Resolve(tmpl, NamedValues(map[string]any{"a": 1}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(tmpl, NamedValues(map[string]any{"a": 1, "b": 2}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first != `1 :b` || second != `1 2` {
		t.Errorf("unexpected results %q and %q", first, second)
	}
}

func TestResolveConcurrent(t *testing.T) {
	r := New(nil, ModePositional, WithTemplateCache(4))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmpl := fmt.Sprintf(`{"term":{"f%d":?0}}`, i%8)
			got, err := r.Resolve(tmpl, Args{i})
			if err != nil {
				errs <- err
				return
			}
			if !strings.Contains(got, fmt.Sprintf(`:%d}`, i)) {
				errs <- fmt.Errorf("unexpected result %q for %d", got, i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "positional", want: ModePositional},
		{in: "", want: ModePositional},
		{in: " Named ", want: ModeNamed},
		{in: "other", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMode(%q) error = %v", tt.in, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ModeNamed.String() != "named" || Mode(7).String() != "mode(7)" {
		t.Errorf("unexpected Mode.String output")
	}
}
