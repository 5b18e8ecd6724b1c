package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TagName is the struct tag marking the id, routing and version fields.
const TagName = "search"

// DefaultMetadataCacheSize bounds the number of entity types whose metadata is kept.
const DefaultMetadataCacheSize = 256

// ErrNotStruct is returned when metadata is requested for a non-struct type.
var ErrNotStruct = errors.New("entity must be a struct or a pointer to a struct")

// IndexNamer lets an entity choose its own index name.
type IndexNamer interface {
	IndexName() string
}

// Field describes one mapped struct field.
type Field struct {
	Name         string
	DocumentName string
	Type         reflect.Type
	Index        []int
}

// Metadata is the document mapping of one entity type.
type Metadata struct {
	Type         reflect.Type
	IndexName    string
	Fields       []Field
	IDField      *Field
	RoutingField *Field
	VersionField *Field
}

// Coordinates returns the entity's index coordinates.
func (m *Metadata) Coordinates() IndexCoordinates {
	return Of(m.IndexName)
}

// Mapper builds and caches entity metadata. It is safe for concurrent use.
type Mapper struct {
	cache *lru.Cache[reflect.Type, *Metadata]
}

// NewMapper creates a Mapper keeping metadata for up to cacheSize types.
func NewMapper(cacheSize int) *Mapper {
	if cacheSize <= 0 {
		cacheSize = DefaultMetadataCacheSize
	}
	cache, _ := lru.New[reflect.Type, *Metadata](cacheSize)
	return &Mapper{cache: cache}
}

var defaultMapper = NewMapper(DefaultMetadataCacheSize)

// MetadataOf returns the metadata of entity's type using the shared mapper.
func MetadataOf(entity any) (*Metadata, error) {
	return defaultMapper.MetadataOf(entity)
}

// MetadataFor returns the metadata of t using the shared mapper.
func MetadataFor(t reflect.Type) (*Metadata, error) {
	return defaultMapper.MetadataFor(t)
}

// MetadataOf returns the metadata of entity's dynamic type.
func (m *Mapper) MetadataOf(entity any) (*Metadata, error) {
	if entity == nil {
		return nil, ErrNotStruct
	}
	return m.MetadataFor(reflect.TypeOf(entity))
}

// MetadataFor returns the metadata of t, building it on first use.
func (m *Mapper) MetadataFor(t reflect.Type) (*Metadata, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, t)
	}
	if meta, ok := m.cache.Get(t); ok {
		return meta, nil
	}
	meta, err := buildMetadata(t)
	if err != nil {
		return nil, err
	}
	m.cache.Add(t, meta)
	return meta, nil
}

func buildMetadata(t reflect.Type) (*Metadata, error) {
	meta := &Metadata{Type: t}

	if namer, ok := reflect.New(t).Interface().(IndexNamer); ok {
		meta.IndexName = strings.TrimSpace(namer.IndexName())
	}
	if meta.IndexName == "" {
		meta.IndexName = defaultIndexName(t.Name())
	}

	roles := map[string]int{}
	fallbackID := -1
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		docName, skip := jsonName(sf)
		if skip {
			continue
		}
		pos := len(meta.Fields)
		meta.Fields = append(meta.Fields, Field{
			Name:         sf.Name,
			DocumentName: docName,
			Type:         sf.Type,
			Index:        sf.Index,
		})

		for _, role := range strings.Split(sf.Tag.Get(TagName), ",") {
			role = strings.TrimSpace(role)
			switch role {
			case "id", "routing", "version":
			default:
				continue
			}
			if _, dup := roles[role]; dup {
				return nil, fmt.Errorf("%s: more than one field tagged %s:%q", t, TagName, role)
			}
			roles[role] = pos
		}
		if sf.Name == "ID" && fallbackID < 0 {
			fallbackID = pos
		}
	}

	if _, ok := roles["id"]; !ok && fallbackID >= 0 {
		roles["id"] = fallbackID
	}
	if pos, ok := roles["id"]; ok {
		meta.IDField = &meta.Fields[pos]
	}
	if pos, ok := roles["routing"]; ok {
		meta.RoutingField = &meta.Fields[pos]
	}
	if pos, ok := roles["version"]; ok {
		meta.VersionField = &meta.Fields[pos]
	}

	if meta.VersionField != nil && !isInteger(meta.VersionField.Type) {
		return nil, fmt.Errorf("%s: version field %s must be an integer", t, meta.VersionField.Name)
	}
	return meta, nil
}

func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, false
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
