package mapper

import (
	"fmt"
	"sort"
	"sync/atomic"
)

const pathSeparator = "."

var nodeIDs uint64

// every node gets a process wide id so that collected nodes can be
// deduplicated without relying on pointer identity
func nextNodeID() uint64 {
	return atomic.AddUint64(&nodeIDs, 1)
}

// FieldNode is a leaf of a mapping tree.
type FieldNode struct {
	id        uint64
	name      string
	leaf      string
	fieldType *FieldType
	fields    map[string]*FieldNode
}

func newFieldNode(leaf string, ft *FieldType, fields map[string]*FieldNode) *FieldNode {
	return &FieldNode{
		id:        nextNodeID(),
		name:      ft.Name,
		leaf:      leaf,
		fieldType: ft,
		fields:    fields,
	}
}

func (f *FieldNode) ID() uint64 {
	return f.id
}

// Name returns the full dotted name of the field.
func (f *FieldNode) Name() string {
	return f.name
}

func (f *FieldNode) FieldType() *FieldType {
	return f.fieldType
}

// copyOf keeps the id and field type of f with a fresh multi-field map.
func (f *FieldNode) copyOf() *FieldNode {
	c := *f
	if len(f.fields) > 0 {
		c.fields = make(map[string]*FieldNode, len(f.fields))
		for k, v := range f.fields {
			c.fields[k] = v
		}
	}
	return &c
}

// Fields returns the multi-fields in name order.
func (f *FieldNode) Fields() []*FieldNode {
	return sortedFields(f.fields)
}

func (f *FieldNode) String() string {
	return fmt.Sprintf("field[%s:%s]", f.name, f.fieldType.Type)
}

// ObjectNode is an object or nested field of a mapping tree. The root
// object of a type has an empty full path.
type ObjectNode struct {
	id       uint64
	fullPath string
	leaf     string
	nested   bool
	enabled  *bool
	dynamic  string

	includeInParent *bool
	includeInRoot   *bool
	includeInAll    *bool

	objects map[string]*ObjectNode
	fields  map[string]*FieldNode
}

func newObjectNode(fullPath, leaf string) *ObjectNode {
	return &ObjectNode{
		id:       nextNodeID(),
		fullPath: fullPath,
		leaf:     leaf,
		objects:  make(map[string]*ObjectNode),
		fields:   make(map[string]*FieldNode),
	}
}

// copyOf keeps the id and options of o with fresh child maps.
func (o *ObjectNode) copyOf() *ObjectNode {
	c := *o
	c.objects = make(map[string]*ObjectNode, len(o.objects))
	for k, v := range o.objects {
		c.objects[k] = v
	}
	c.fields = make(map[string]*FieldNode, len(o.fields))
	for k, v := range o.fields {
		c.fields[k] = v
	}
	return &c
}

func (o *ObjectNode) ID() uint64 {
	return o.id
}

func (o *ObjectNode) FullPath() string {
	return o.fullPath
}

func (o *ObjectNode) Name() string {
	return o.leaf
}

func (o *ObjectNode) Nested() bool {
	return o.nested
}

func (o *ObjectNode) Enabled() bool {
	return o.enabled == nil || *o.enabled
}

// Dynamic returns "true", "false", "strict" or "" when inherited.
func (o *ObjectNode) Dynamic() string {
	return o.dynamic
}

func (o *ObjectNode) Objects() []*ObjectNode {
	names := make([]string, 0, len(o.objects))
	for name := range o.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	objs := make([]*ObjectNode, 0, len(names))
	for _, name := range names {
		objs = append(objs, o.objects[name])
	}
	return objs
}

func (o *ObjectNode) FieldNodes() []*FieldNode {
	return sortedFields(o.fields)
}

// CheckMerge reports whether other could be merged into o without
// performing the merge.
func (o *ObjectNode) CheckMerge(other *ObjectNode) error {
	var conflicts []string
	if o.nested != other.nested {
		if o.nested {
			conflicts = append(conflicts, fmt.Sprintf("object mapping [%s] can't be changed from nested to non-nested", o.fullPath))
		} else {
			conflicts = append(conflicts, fmt.Sprintf("object mapping [%s] can't be changed from non-nested to nested", o.fullPath))
		}
	}
	if o.enabled != nil && other.enabled != nil && *o.enabled != *other.enabled {
		conflicts = append(conflicts, fmt.Sprintf("can't update attribute for type [%s.enabled] in index mapping", o.fullPath))
	}
	if len(conflicts) > 0 {
		return NewFieldConflictError("", o.fullPath, conflicts...)
	}
	return nil
}

func (o *ObjectNode) String() string {
	if o.nested {
		return fmt.Sprintf("nested[%s]", o.fullPath)
	}
	return fmt.Sprintf("object[%s]", o.fullPath)
}

func sortedFields(m map[string]*FieldNode) []*FieldNode {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]*FieldNode, 0, len(names))
	for _, name := range names {
		fields = append(fields, m[name])
	}
	return fields
}

func childPath(parent, leaf string) string {
	if parent == "" {
		return leaf
	}
	return parent + pathSeparator + leaf
}
