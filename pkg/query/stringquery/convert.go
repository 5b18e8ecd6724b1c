package stringquery

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const nullLiteral = "null"

var (
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	stringerType      = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	jsonNumberType    = reflect.TypeOf(json.Number(""))
)

// ConversionContext turns bound values into their textual query form.
// Implementations must be safe for concurrent use.
type ConversionContext interface {
	CanConvert(t reflect.Type) bool
	ConvertToString(v any) (string, error)
}

// DefaultConversionContext converts primitives, time values, UUIDs and any
// type implementing encoding.TextMarshaler or fmt.Stringer.
type DefaultConversionContext struct{}

// CanConvert reports whether t has a known textual form.
func (DefaultConversionContext) CanConvert(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(textMarshalerType) || t.Implements(stringerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// ConvertToString returns the textual form of v.
func (DefaultConversionContext) ConvertToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case time.Duration:
		return x.String(), nil
	case json.Number:
		return x.String(), nil
	case uuid.UUID:
		return x.String(), nil
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return "", err
		}
		return string(text), nil
	case fmt.Stringer:
		return x.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), nil
		}
	}
	return "", fmt.Errorf("no conversion for %T", v)
}

// Convert returns the textual query form of value: null when absent, a bracketed
// list for slices and arrays, otherwise the escaped leaf text.
func (r *Resolver) Convert(value any) (string, error) {
	if isAbsent(value) {
		return nullLiteral, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && !r.conv.CanConvert(rv.Type()) {
		return r.Convert(rv.Elem().Interface())
	}
	if isCollection(rv.Type()) {
		return r.convertCollection(rv)
	}
	return r.convertLeaf(value)
}

func (r *Resolver) convertCollection(rv reflect.Value) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		item := rv.Index(i).Interface()
		text, err := r.Convert(item)
		if err != nil {
			return "", err
		}
		if isText(item) {
			b.WriteByte('"')
			b.WriteString(text)
			b.WriteByte('"')
			continue
		}
		b.WriteString(text)
	}
	b.WriteByte(']')
	return b.String(), nil
}

func (r *Resolver) convertLeaf(value any) (string, error) {
	t := reflect.TypeOf(value)
	var text string
	switch {
	case r.conv.CanConvert(t):
		converted, err := r.conv.ConvertToString(value)
		if err != nil {
			return "", &UnconvertibleValueError{Type: t, Err: err}
		}
		text = converted
	case r.fallback:
		text = fmt.Sprint(value)
	default:
		return "", &UnconvertibleValueError{Type: t}
	}
	return strings.ReplaceAll(text, `"`, `\"`), nil
}

func isAbsent(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// isCollection excludes byte slices and arrays, which are text or identifiers
// (uuid.UUID is a [16]byte).
func isCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

func isText(value any) bool {
	if isAbsent(value) {
		return false
	}
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String && t != jsonNumberType
}
