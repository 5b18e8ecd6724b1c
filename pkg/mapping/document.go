package mapping

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	"github.com/nimburion/searchrepo/pkg/query/stringquery"
)

var (
	// ErrNoIDField is returned when an entity type has no id field.
	ErrNoIDField = errors.New("entity has no id field")
	// ErrMissingID is returned when an entity's id is absent and cannot be generated.
	ErrMissingID = errors.New("entity id is missing")
	// ErrNotPointer is returned when an operation must write into the entity.
	ErrNotPointer = errors.New("entity must be a non-nil pointer to a struct")
)

var (
	idConversion stringquery.DefaultConversionContext
	uuidType     = reflect.TypeOf(uuid.UUID{})
)

// StringIDRepresentation returns the textual form used as document _id.
// A nil id has no representation.
func StringIDRepresentation(id any) (string, bool) {
	if id == nil {
		return "", false
	}
	rv := reflect.ValueOf(id)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		id = rv.Elem().Interface()
	}
	if s, ok := id.(string); ok {
		return s, true
	}
	if text, err := idConversion.ConvertToString(id); err == nil {
		return text, true
	}
	return fmt.Sprint(id), true
}

// EntityID returns the string id of entity, or false when it has none yet.
func EntityID(entity any) (string, bool, error) {
	meta, rv, err := inspect(entity)
	if err != nil {
		return "", false, err
	}
	if meta.IDField == nil {
		return "", false, fmt.Errorf("%w: %s", ErrNoIDField, meta.Type)
	}
	fv, err := rv.FieldByIndexErr(meta.IDField.Index)
	if err != nil || fv.IsZero() {
		return "", false, nil
	}
	id, ok := StringIDRepresentation(fv.Interface())
	return id, ok && id != "", nil
}

// EntityRouting returns the value of the field tagged search:"routing".
func EntityRouting(entity any) (string, bool) {
	meta, rv, err := inspect(entity)
	if err != nil || meta.RoutingField == nil {
		return "", false
	}
	fv, err := rv.FieldByIndexErr(meta.RoutingField.Index)
	if err != nil || fv.IsZero() {
		return "", false
	}
	routing, ok := StringIDRepresentation(fv.Interface())
	return routing, ok && routing != ""
}

// EntityVersion returns the value of the field tagged search:"version".
func EntityVersion(entity any) (int64, bool) {
	meta, rv, err := inspect(entity)
	if err != nil || meta.VersionField == nil {
		return 0, false
	}
	fv, err := rv.FieldByIndexErr(meta.VersionField.Index)
	if err != nil {
		return 0, false
	}
	if fv.CanInt() {
		return fv.Int(), true
	}
	return int64(fv.Uint()), true
}

// SetEntityVersion writes version into the field tagged search:"version", if any.
func SetEntityVersion(entity any, version int64) error {
	meta, err := MetadataOf(entity)
	if err != nil {
		return err
	}
	if meta.VersionField == nil {
		return nil
	}
	rv, err := writable(entity)
	if err != nil {
		return err
	}
	fv := rv.FieldByIndex(meta.VersionField.Index)
	if fv.CanInt() {
		fv.SetInt(version)
	} else {
		fv.SetUint(uint64(version))
	}
	return nil
}

// ToDocument returns the document id and JSON source of entity. An empty string id is
// replaced with a new UUID, written back into the entity.
func ToDocument(entity any) (string, json.RawMessage, error) {
	meta, err := MetadataOf(entity)
	if err != nil {
		return "", nil, err
	}
	if meta.IDField == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrNoIDField, meta.Type)
	}

	id, ok, err := EntityID(entity)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		rv, err := writable(entity)
		if err != nil {
			return "", nil, err
		}
		fv := rv.FieldByIndex(meta.IDField.Index)
		generated := uuid.New()
		switch {
		case fv.Type() == uuidType:
			fv.Set(reflect.ValueOf(generated))
		case fv.Kind() == reflect.String:
			fv.SetString(generated.String())
		default:
			return "", nil, fmt.Errorf("%w: %s.%s", ErrMissingID, meta.Type, meta.IDField.Name)
		}
		id = generated.String()
	}

	source, err := json.Marshal(entity)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", meta.Type, err)
	}
	return id, source, nil
}

// FromSource decodes a document source into dst and sets its id field from id.
func FromSource(id string, source json.RawMessage, dst any) error {
	meta, err := MetadataOf(dst)
	if err != nil {
		return err
	}
	rv, err := writable(dst)
	if err != nil {
		return err
	}
	if len(source) > 0 {
		if err := json.Unmarshal(source, dst); err != nil {
			return fmt.Errorf("failed to decode %s source: %w", meta.Type, err)
		}
	}
	if meta.IDField == nil || id == "" {
		return nil
	}
	fv, err := rv.FieldByIndexErr(meta.IDField.Index)
	if err != nil {
		return fmt.Errorf("set id of %s: %w", meta.Type, err)
	}
	return setID(fv, id)
}

func setID(fv reflect.Value, id string) error {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	if fv.CanAddr() {
		if u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(id))
		}
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(id)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(id, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse id %q: %w", id, err)
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(id, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse id %q: %w", id, err)
		}
		fv.SetUint(n)
	default:
		return fmt.Errorf("unsupported id field type %s", fv.Type())
	}
	return nil
}

func inspect(entity any) (*Metadata, reflect.Value, error) {
	meta, err := MetadataOf(entity)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, reflect.Value{}, ErrNotPointer
		}
		rv = rv.Elem()
	}
	return meta, rv, nil
}

func writable(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotPointer
	}
	return rv.Elem(), nil
}
