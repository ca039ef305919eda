package registry

import (
	"sort"
	"strings"

	"github.com/tiglabs/baudschema/mapper"
)

// Snapshot is one published state of the registry. A snapshot is never
// modified after publication; every accessor answers from the same state.
type Snapshot struct {
	version       uint64
	types         map[string]*mapper.TypeMapping
	objectPaths   map[string]*mapper.ObjectNode
	fieldTypes    *mapper.FieldTypeLookup
	parentTypes   map[string]struct{}
	hasNested     bool
	defaultSource mapper.CompressedSource
}

func emptySnapshot(defaultSource mapper.CompressedSource) *Snapshot {
	return &Snapshot{
		types:         make(map[string]*mapper.TypeMapping),
		objectPaths:   make(map[string]*mapper.ObjectNode),
		fieldTypes:    mapper.NewFieldTypeLookup(),
		parentTypes:   make(map[string]struct{}),
		defaultSource: defaultSource,
	}
}

// next returns a copy of s with the version bumped. Maps are shared until
// one of the with* methods replaces them.
func (s *Snapshot) next() *Snapshot {
	n := *s
	n.version++
	return &n
}

func (s *Snapshot) withType(tm *mapper.TypeMapping) {
	types := make(map[string]*mapper.TypeMapping, len(s.types)+1)
	for k, v := range s.types {
		types[k] = v
	}
	types[tm.Type()] = tm
	s.types = types
	if tm.HasActiveParent() && tm.Type() != mapper.DefaultMappingType {
		if _, ok := s.parentTypes[tm.ParentType()]; !ok {
			parents := make(map[string]struct{}, len(s.parentTypes)+1)
			for k := range s.parentTypes {
				parents[k] = struct{}{}
			}
			parents[tm.ParentType()] = struct{}{}
			s.parentTypes = parents
		}
	}
}

func (s *Snapshot) withObjects(objects []*mapper.ObjectNode) {
	if len(objects) == 0 {
		return
	}
	paths := make(map[string]*mapper.ObjectNode, len(s.objectPaths)+len(objects))
	for k, v := range s.objectPaths {
		paths[k] = v
	}
	for _, o := range objects {
		paths[o.FullPath()] = o
		if o.Nested() {
			s.hasNested = true
		}
	}
	s.objectPaths = paths
}

func (s *Snapshot) withFields(typeName string, fields []*mapper.FieldNode) {
	s.fieldTypes = s.fieldTypes.CopyAndAddAll(typeName, fields)
}

// Version increases with every published change.
func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) HasMapping(typeName string) bool {
	_, ok := s.types[typeName]
	return ok
}

// Types returns the registered type names in order, without the default
// mapping type.
func (s *Snapshot) Types() []string {
	types := make([]string, 0, len(s.types))
	for t := range s.types {
		if t != mapper.DefaultMappingType {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

func (s *Snapshot) TypeMapping(typeName string) *mapper.TypeMapping {
	return s.types[typeName]
}

// DocMappers returns the mappings ordered by type name.
func (s *Snapshot) DocMappers(includeDefault bool) []*mapper.TypeMapping {
	names := s.Types()
	if includeDefault {
		if _, ok := s.types[mapper.DefaultMappingType]; ok {
			names = append([]string{mapper.DefaultMappingType}, names...)
		}
	}
	mappers := make([]*mapper.TypeMapping, 0, len(names))
	for _, name := range names {
		mappers = append(mappers, s.types[name])
	}
	return mappers
}

// FullName returns the field type registered under a full field name.
func (s *Snapshot) FullName(fullName string) *mapper.FieldType {
	return s.fieldTypes.Get(fullName)
}

func (s *Snapshot) IndexName(indexName string) *mapper.FieldType {
	return s.fieldTypes.GetByIndexName(indexName)
}

// SmartNameFieldType looks name up as a full name, then as an index name.
func (s *Snapshot) SmartNameFieldType(name string) *mapper.FieldType {
	if ft := s.FullName(name); ft != nil {
		return ft
	}
	return s.IndexName(name)
}

// SimpleMatchToIndexNames expands a '*' pattern to the matching index
// names. A name without wildcards is returned as is.
func (s *Snapshot) SimpleMatchToIndexNames(pattern string) []string {
	if !mapper.IsSimpleMatchPattern(pattern) {
		return []string{pattern}
	}
	return s.fieldTypes.SimpleMatchToIndexNames(pattern)
}

func (s *Snapshot) FieldTypes() *mapper.FieldTypeLookup {
	return s.fieldTypes
}

func (s *Snapshot) ObjectMapper(path string) *mapper.ObjectNode {
	return s.objectPaths[path]
}

// ResolveClosestNestedObjectMapper returns the deepest nested object
// enclosing fieldName, or nil.
func (s *Snapshot) ResolveClosestNestedObjectMapper(fieldName string) *mapper.ObjectNode {
	for i := strings.LastIndexByte(fieldName, '.'); i >= 0; i = strings.LastIndexByte(fieldName, '.') {
		fieldName = fieldName[:i]
		if o, ok := s.objectPaths[fieldName]; ok && o.Nested() {
			return o
		}
	}
	return nil
}

func (s *Snapshot) ParentTypes() []string {
	parents := make([]string, 0, len(s.parentTypes))
	for p := range s.parentTypes {
		parents = append(parents, p)
	}
	sort.Strings(parents)
	return parents
}

func (s *Snapshot) HasNested() bool {
	return s.hasNested
}

func (s *Snapshot) DefaultMappingSource() mapper.CompressedSource {
	return s.defaultSource
}
