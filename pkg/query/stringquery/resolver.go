package stringquery

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTemplateCacheSize is the number of tokenized templates kept by a Resolver.
const DefaultTemplateCacheSize = 256

// Mode selects how placeholders are recognised in a template.
type Mode int

const (
	// ModePositional substitutes ?0, ?1, ... by zero-based index.
	ModePositional Mode = iota
	// ModeNamed substitutes the tokens declared by the accessor's parameters.
	ModeNamed
)

func (m Mode) String() string {
	switch m {
	case ModePositional:
		return "positional"
	case ModeNamed:
		return "named"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode parses "positional" or "named".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positional", "":
		return ModePositional, nil
	case "named":
		return ModeNamed, nil
	default:
		return 0, fmt.Errorf("unknown placeholder mode %q (must be positional or named)", s)
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTemplateCache sets the number of tokenized templates to keep. Zero disables caching.
func WithTemplateCache(size int) Option {
	return func(r *Resolver) {
		r.cacheSize = size
	}
}

// WithoutFallback makes values the conversion context cannot handle an error
// instead of rendering them with fmt.Sprint.
func WithoutFallback() Option {
	return func(r *Resolver) {
		r.fallback = false
	}
}

// WithStrictNamed rejects :identifier tokens that the accessor does not declare.
func WithStrictNamed() Option {
	return func(r *Resolver) {
		r.strict = true
	}
}

// Resolver substitutes placeholders in query templates with converted argument values.
// A Resolver is safe for concurrent use.
type Resolver struct {
	conv      ConversionContext
	mode      Mode
	fallback  bool
	strict    bool
	cacheSize int
	cache     *lru.Cache[string, *template]
}

// New creates a Resolver. A nil conversion context selects DefaultConversionContext.
func New(conv ConversionContext, mode Mode, opts ...Option) *Resolver {
	if conv == nil {
		conv = DefaultConversionContext{}
	}
	r := &Resolver{
		conv:      conv,
		mode:      mode,
		fallback:  true,
		cacheSize: DefaultTemplateCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		r.cache, _ = lru.New[string, *template](r.cacheSize)
	}
	return r
}

// Mode reports the placeholder mode the resolver was built with.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve returns template with every placeholder replaced by the converted value the
// accessor binds to it. On error the partially substituted text is discarded.
func (r *Resolver) Resolve(tmpl string, accessor ParameterAccessor) (string, error) {
	t, err := r.prepare(tmpl, accessor)
	if err != nil {
		return "", err
	}
	if t == nil || t.placeholders == 0 {
		return tmpl, nil
	}
	return r.render(t, accessor)
}

// Prepare tokenizes tmpl for the parameters the accessor declares and keeps the result
// in the template cache. Values are not read. With WithStrictNamed it reports undeclared
// tokens the same way Resolve does.
func (r *Resolver) Prepare(tmpl string, accessor ParameterAccessor) error {
	_, err := r.prepare(tmpl, accessor)
	return err
}

// prepare returns nil when the template cannot hold placeholders for accessor.
func (r *Resolver) prepare(tmpl string, accessor ParameterAccessor) (*template, error) {
	if tmpl == "" {
		return nil, nil
	}

	var params []Parameter
	if r.mode == ModeNamed {
		if accessor != nil {
			params = accessor.Parameters()
		}
		if len(params) == 0 && !r.strict {
			return nil, nil
		}
	}

	t := r.tokenize(tmpl, params)
	if r.strict && r.mode == ModeNamed && len(t.undeclared) > 0 {
		return nil, &MissingBindingError{
			Index: -1,
			Name:  t.undeclared[0],
			Err:   fmt.Errorf("%w: %s%s is not declared", ErrMissingBinding, NamedPrefix, t.undeclared[0]),
		}
	}
	return t, nil
}

func (r *Resolver) tokenize(tmpl string, params []Parameter) *template {
	key := cacheKey(r.mode, tmpl, params)
	if r.cache != nil {
		if t, ok := r.cache.Get(key); ok {
			return t
		}
	}
	var t *template
	if r.mode == ModeNamed {
		t = parseNamed(tmpl, params)
	} else {
		t = parsePositional(tmpl)
	}
	if r.cache != nil {
		r.cache.Add(key, t)
	}
	return t
}

func (r *Resolver) render(t *template, accessor ParameterAccessor) (string, error) {
	rendered := make(map[int]string, t.placeholders)
	var b strings.Builder
	b.Grow(len(t.raw))
	for _, seg := range t.segments {
		if seg.kind == segmentLiteral {
			b.WriteString(seg.text)
			continue
		}
		text, ok := rendered[seg.index]
		if !ok {
			var err error
			text, err = r.bind(seg, accessor)
			if err != nil {
				return "", err
			}
			rendered[seg.index] = text
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func (r *Resolver) bind(seg segment, accessor ParameterAccessor) (string, error) {
	if accessor == nil {
		return "", &MissingBindingError{Index: seg.index, Name: seg.name, Err: ErrMissingBinding}
	}
	value, err := accessor.BindableValue(seg.index)
	if err != nil {
		return "", &MissingBindingError{Index: seg.index, Name: seg.name, Err: err}
	}
	text, err := r.Convert(value)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", seg.text, err)
	}
	return text, nil
}

// cacheKey identifies a tokenized template. Named templates depend on the declared
// tokens as well as the raw text.
func cacheKey(mode Mode, tmpl string, params []Parameter) string {
	if mode != ModeNamed {
		return "p\x00" + tmpl
	}
	var b strings.Builder
	b.WriteString("n\x00")
	for _, p := range params {
		b.WriteString(p.Placeholder)
		b.WriteByte('\x01')
		b.WriteString(p.Name)
		b.WriteByte('\x01')
		b.WriteString(strconv.Itoa(p.Index))
		b.WriteByte('\x00')
	}
	b.WriteString(tmpl)
	return b.String()
}
