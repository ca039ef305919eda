package mapper

import "fmt"

type merger struct {
	conflicts      []string
	newObjects     []*ObjectNode
	updatedObjects []*ObjectNode
	changedFields  []*FieldNode
}

func (m *merger) mergeObject(existing, incoming *ObjectNode) *ObjectNode {
	merged := existing.copyOf()
	if existing.fullPath != "" {
		if err := existing.CheckMerge(incoming); err != nil {
			m.conflicts = append(m.conflicts, err.(*FieldConflictError).Conflicts...)
		}
	} else if existing.enabled != nil && incoming.enabled != nil && *existing.enabled != *incoming.enabled {
		m.conflicts = append(m.conflicts, "can't update attribute for type [enabled] in index mapping")
	}
	if incoming.enabled != nil {
		merged.enabled = incoming.enabled
	}
	if incoming.dynamic != "" {
		merged.dynamic = incoming.dynamic
	}
	if incoming.includeInAll != nil {
		merged.includeInAll = incoming.includeInAll
	}
	if incoming.includeInParent != nil {
		merged.includeInParent = incoming.includeInParent
	}
	if incoming.includeInRoot != nil {
		merged.includeInRoot = incoming.includeInRoot
	}

	for _, obj := range incoming.Objects() {
		if _, ok := existing.fields[obj.leaf]; ok {
			m.conflicts = append(m.conflicts, fmt.Sprintf("can't merge a non object mapping [%s] with an object mapping [%s]", obj.fullPath, obj.fullPath))
			continue
		}
		if cur, ok := existing.objects[obj.leaf]; ok {
			merged.objects[obj.leaf] = m.mergeObject(cur, obj)
			continue
		}
		merged.objects[obj.leaf] = obj
		m.addObject(obj)
	}
	for _, f := range incoming.FieldNodes() {
		if _, ok := existing.objects[f.leaf]; ok {
			m.conflicts = append(m.conflicts, fmt.Sprintf("can't merge an object mapping [%s] with a non object mapping [%s]", f.name, f.name))
			continue
		}
		if cur, ok := existing.fields[f.leaf]; ok {
			merged.fields[f.leaf] = m.mergeField(cur, f)
			continue
		}
		merged.fields[f.leaf] = f
		m.addField(f)
	}
	if merged.fullPath != "" {
		m.updatedObjects = append(m.updatedObjects, merged)
	}
	return merged
}

func (m *merger) mergeField(existing, incoming *FieldNode) *FieldNode {
	if conflicts := existing.fieldType.CheckCompatibility(incoming.fieldType, false); len(conflicts) > 0 {
		m.conflicts = append(m.conflicts, conflicts...)
		return existing
	}
	merged := &FieldNode{
		id:        existing.id,
		name:      existing.name,
		leaf:      existing.leaf,
		fieldType: existing.fieldType,
	}
	if len(existing.fields) > 0 || len(incoming.fields) > 0 {
		merged.fields = make(map[string]*FieldNode, len(existing.fields)+len(incoming.fields))
		for leaf, sub := range existing.fields {
			merged.fields[leaf] = sub
		}
		for _, sub := range incoming.Fields() {
			if cur, ok := existing.fields[sub.leaf]; ok {
				merged.fields[sub.leaf] = m.mergeField(cur, sub)
				continue
			}
			merged.fields[sub.leaf] = sub
			m.addField(sub)
		}
	}
	if !existing.fieldType.Equal(incoming.fieldType) {
		merged.fieldType = incoming.fieldType
		m.changedFields = append(m.changedFields, merged)
	}
	return merged
}

func (m *merger) addObject(o *ObjectNode) {
	m.newObjects = append(m.newObjects, o)
	for _, f := range o.FieldNodes() {
		m.addField(f)
	}
	for _, child := range o.Objects() {
		m.addObject(child)
	}
}

func (m *merger) addField(f *FieldNode) {
	m.changedFields = append(m.changedFields, f)
	for _, sub := range f.Fields() {
		m.addField(sub)
	}
}

// updateObject replaces the field types of o's fields for which fieldType
// returns a different one. Unchanged subtrees are shared.
func (m *merger) updateObject(o *ObjectNode, fieldType func(name string) *FieldType) *ObjectNode {
	var updated *ObjectNode
	for leaf, f := range o.fields {
		if nf := m.updateField(f, fieldType); nf != f {
			if updated == nil {
				updated = o.copyOf()
			}
			updated.fields[leaf] = nf
		}
	}
	for leaf, child := range o.objects {
		if nc := m.updateObject(child, fieldType); nc != child {
			if updated == nil {
				updated = o.copyOf()
			}
			updated.objects[leaf] = nc
		}
	}
	if updated == nil {
		return o
	}
	if updated.fullPath != "" {
		m.updatedObjects = append(m.updatedObjects, updated)
	}
	return updated
}

func (m *merger) updateField(f *FieldNode, fieldType func(name string) *FieldType) *FieldNode {
	var updated *FieldNode
	if ft := fieldType(f.name); ft != nil && !ft.Equal(f.fieldType) {
		updated = f.copyOf()
		updated.fieldType = ft.Clone()
		m.changedFields = append(m.changedFields, updated)
	}
	for leaf, sub := range f.fields {
		if ns := m.updateField(sub, fieldType); ns != sub {
			if updated == nil {
				updated = f.copyOf()
			}
			updated.fields[leaf] = ns
		}
	}
	if updated == nil {
		return f
	}
	return updated
}
