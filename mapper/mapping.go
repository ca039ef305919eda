package mapper

import (
	"fmt"
	"sync/atomic"

	"github.com/blevesearch/bleve/search/query"
	"github.com/pkg/errors"

	atomic2 "github.com/tiglabs/baudschema/util/atomic"
)

// ErrStaleMerge is returned by Apply when the mapping changed after the
// merge result was computed.
var ErrStaleMerge = errors.New("merge result is stale")

// Mapping is the parsed tree of one type: root object, metadata fields and
// the free form _meta section.
type Mapping struct {
	root    *ObjectNode
	meta    *MetadataFields
	metaMap map[string]interface{}
}

func (m *Mapping) Root() *ObjectNode {
	return m.root
}

func (m *Mapping) Metadata() *MetadataFields {
	return m.meta
}

func (m *Mapping) MetaMap() map[string]interface{} {
	return m.metaMap
}

// Collect returns every non-root object and every field of the tree,
// metadata fields first, multi-fields right after their parent.
func (m *Mapping) Collect() ([]*ObjectNode, []*FieldNode) {
	var objects []*ObjectNode
	fields := append([]*FieldNode(nil), m.meta.Nodes()...)
	var walk func(o *ObjectNode)
	walk = func(o *ObjectNode) {
		for _, f := range o.FieldNodes() {
			fields = appendField(fields, f)
		}
		for _, child := range o.Objects() {
			objects = append(objects, child)
			walk(child)
		}
	}
	walk(m.root)
	return objects, fields
}

func appendField(fields []*FieldNode, f *FieldNode) []*FieldNode {
	fields = append(fields, f)
	for _, sub := range f.Fields() {
		fields = appendField(fields, sub)
	}
	return fields
}

type mappingState struct {
	mapping *Mapping
	source  CompressedSource
}

// TypeMapping is the schema of one document type. Its identity is stable:
// merges targeting the type swap the tree and source in place.
type TypeMapping struct {
	typeName string
	state    atomic.Pointer[mappingState]
	closed   *atomic2.AtomicBool
}

func newTypeMapping(typeName string, m *Mapping) (*TypeMapping, error) {
	src, err := serialize(typeName, m)
	if err != nil {
		return nil, newParseError(typeName, err, "failed to serialize mapping")
	}
	tm := &TypeMapping{typeName: typeName, closed: atomic2.NewAtomicBool(false)}
	tm.state.Store(&mappingState{mapping: m, source: NewCompressedSource(src)})
	return tm, nil
}

func (tm *TypeMapping) Type() string {
	return tm.typeName
}

func (tm *TypeMapping) Mapping() *Mapping {
	return tm.state.Load().mapping
}

// Source returns the canonical serialized form of the current tree.
func (tm *TypeMapping) Source() CompressedSource {
	return tm.state.Load().source
}

func (tm *TypeMapping) ParentType() string {
	return tm.Mapping().meta.ParentType()
}

func (tm *TypeMapping) HasActiveParent() bool {
	return tm.ParentType() != ""
}

func (tm *TypeMapping) TypeFieldIndexed() bool {
	return tm.Mapping().meta.TypeIndexed()
}

// TypeFilter matches the documents of this type: a term on _type, or a
// prefix on _uid when the type field is not indexed.
func (tm *TypeMapping) TypeFilter() query.Query {
	if tm.TypeFieldIndexed() {
		return NewTypeTermFilter(tm.typeName)
	}
	q := query.NewPrefixQuery(tm.typeName + UIDDelimiter)
	q.SetField(UIDFieldName)
	return q
}

func NewTypeTermFilter(typeName string) query.Query {
	q := query.NewTermQuery(typeName)
	q.SetField(TypeFieldName)
	return q
}

// MergeResult is the outcome of merging a candidate tree into a type. It
// is computed without touching the type and installed with Apply.
type MergeResult struct {
	base    *mappingState
	mapping *Mapping
	source  CompressedSource
	changed bool

	// objects of the merged tree that did not exist before
	NewObjects []*ObjectNode
	// existing objects rebuilt by the merge, under their unchanged paths
	UpdatedObjects []*ObjectNode
	// fields that are new or whose field type changed
	ChangedFields []*FieldNode
}

func (r *MergeResult) Mapping() *Mapping {
	return r.mapping
}

func (r *MergeResult) Source() CompressedSource {
	return r.source
}

func (r *MergeResult) Changed() bool {
	return r.changed
}

// Merge computes the structural merge of candidate into the current tree.
// Field types shared with other types are checked by the caller, here
// only conflicts that can never be merged are reported.
func (tm *TypeMapping) Merge(candidate *Mapping, updateAllTypes bool) (*MergeResult, error) {
	base := tm.state.Load()
	m := &merger{}
	root := m.mergeObject(base.mapping.root, candidate.root)
	meta, conflicts := base.mapping.meta.merge(candidate.meta)
	m.conflicts = append(m.conflicts, conflicts...)
	if len(m.conflicts) > 0 {
		return nil, NewFieldConflictError(tm.typeName, "", m.conflicts...)
	}

	merged := &Mapping{root: root, meta: meta, metaMap: base.mapping.metaMap}
	if candidate.metaMap != nil {
		merged.metaMap = deepCopyMap(candidate.metaMap)
	}
	src, err := serialize(tm.typeName, merged)
	if err != nil {
		return nil, newParseError(tm.typeName, err, "failed to serialize merged mapping")
	}
	source := NewCompressedSource(src)
	return &MergeResult{
		base:          base,
		mapping:       merged,
		source:        source,
		changed:       !source.Equal(base.source),
		NewObjects:     m.newObjects,
		UpdatedObjects: m.updatedObjects,
		ChangedFields:  m.changedFields,
	}, nil
}

// UpdateFieldTypes computes the tree in which every field whose full name
// maps to a different field type takes that field type. Metadata fields
// are left alone. Install the result with Apply.
func (tm *TypeMapping) UpdateFieldTypes(fieldType func(name string) *FieldType) (*MergeResult, error) {
	base := tm.state.Load()
	m := &merger{}
	root := m.updateObject(base.mapping.root, fieldType)
	if root == base.mapping.root {
		return &MergeResult{base: base, mapping: base.mapping, source: base.source}, nil
	}
	updated := &Mapping{root: root, meta: base.mapping.meta, metaMap: base.mapping.metaMap}
	src, err := serialize(tm.typeName, updated)
	if err != nil {
		return nil, newParseError(tm.typeName, err, "failed to serialize updated mapping")
	}
	source := NewCompressedSource(src)
	return &MergeResult{
		base:           base,
		mapping:        updated,
		source:         source,
		changed:        !source.Equal(base.source),
		UpdatedObjects: m.updatedObjects,
		ChangedFields:  m.changedFields,
	}, nil
}

// Apply installs a merge result computed by Merge on this type.
func (tm *TypeMapping) Apply(r *MergeResult) error {
	if !r.changed {
		return nil
	}
	if !tm.state.CompareAndSwap(r.base, &mappingState{mapping: r.mapping, source: r.source}) {
		return errors.Wrapf(ErrStaleMerge, "type [%s]", tm.typeName)
	}
	return nil
}

func (tm *TypeMapping) Close() {
	tm.closed.Set(true)
}

func (tm *TypeMapping) Closed() bool {
	return tm.closed.Get()
}

func (tm *TypeMapping) String() string {
	return fmt.Sprintf("mapping[%s]", tm.typeName)
}
